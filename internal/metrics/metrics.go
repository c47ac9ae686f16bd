package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lockup"

var (
	LockupsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lockups_created_total",
		Help:      "Lockups created, by source (deposit, draft, compensation)",
	}, []string{"source"})

	Claims = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "claims_total",
		Help:      "Claim operations that produced a payout",
	})

	Terminations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "terminations_total",
		Help:      "Lockups terminated",
	})

	Refunds = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deposit_refunds_total",
		Help:      "Deposits sent back to the sender, by reason",
	}, []string{"reason"})

	Transfers = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transfers_total",
		Help:      "Outgoing transfers by kind and final status",
	}, []string{"kind", "status"})

	NumLockups = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "lockups",
		Help:      "Number of lockups ever created",
	})

	NumDraftGroups = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "draft_groups",
		Help:      "Number of draft groups ever created",
	})

	PendingTransfers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pending_transfers",
		Help:      "Transfers debited locally but not yet completed",
	})
)

// NewRegistry creates a registry with process, Go and ledger collectors.
func NewRegistry(service string) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registerer := prometheus.WrapRegistererWith(prometheus.Labels{"service": service}, registry)

	registerer.MustRegister(prometheus.NewProcessCollector(
		prometheus.ProcessCollectorOpts{Namespace: namespace},
	))
	registerer.MustRegister(prometheus.NewGoCollector())

	registerer.MustRegister(LockupsCreated)
	registerer.MustRegister(Claims)
	registerer.MustRegister(Terminations)
	registerer.MustRegister(Refunds)
	registerer.MustRegister(Transfers)
	registerer.MustRegister(NumLockups)
	registerer.MustRegister(NumDraftGroups)
	registerer.MustRegister(PendingTransfers)

	return registry
}
