package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ft-lockup/backend/internal/app"
	"github.com/ft-lockup/backend/internal/config"
	"github.com/ft-lockup/backend/internal/db"
	"github.com/ft-lockup/backend/internal/events"
	"github.com/ft-lockup/backend/internal/indexer"
	"github.com/ft-lockup/backend/internal/metrics"
	"github.com/ft-lockup/backend/internal/ton"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.UseMemoryStore() {
		log.Fatal("POSTGRES_DSN is required: the worker shares the ledger with the API")
	}

	store, closeStore, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open store", zap.Error(err))
	}
	defer closeStore()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	_, transferer, err := app.ConnectTON(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to connect to TON network", zap.Error(err))
	}

	ledger, err := app.NewLedger(ctx, cfg, store, transferer, events.NewRedisPublisher(rdb, log), log)
	if err != nil {
		log.Fatal("failed to build ledger", zap.Error(err))
	}

	j := &jobs{ctx: ctx, cfg: cfg, ledger: ledger, rdb: rdb, log: log}

	scheduler := cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(zap.NewStdLog(log)))))
	schedule := map[string]struct {
		spec string
		fn   func()
	}{
		"retry stale transfers": {cfg.RetryStaleCron, j.retryStaleTransfers},
		"refresh gauges":        {cfg.RefreshGaugeCron, j.refreshGauges},
	}
	for name, job := range schedule {
		if _, err := scheduler.AddFunc(job.spec, job.fn); err != nil {
			log.Fatal("failed to schedule job", zap.String("job", name), zap.String("spec", job.spec), zap.Error(err))
		}
		log.Info("scheduled job", zap.String("job", name), zap.String("spec", job.spec))
	}
	scheduler.Start()

	// Metrics
	registry := metrics.NewRegistry("worker")
	srv := fiber.New(fiber.Config{DisableStartupMessage: true})
	srv.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	srv.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	go func() {
		addr := fmt.Sprintf(":%s", cfg.WorkerPort)
		if err := srv.Listen(addr); err != nil {
			log.Error("metrics server stopped", zap.Error(err))
		}
	}()

	log.Info("worker started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down worker")
	cancel()
	<-scheduler.Stop().Done()
	_ = srv.ShutdownWithTimeout(5 * time.Second)
}

type jobs struct {
	ctx    context.Context
	cfg    *config.Config
	ledger *app.Ledger
	rdb    *redis.Client
	log    *zap.Logger
}

// retryStaleTransfers sends again the transfers that are still pending
// although the indexer has seen the hot wallet well past their last
// attempt. Messages of such attempts have expired without reaching the
// chain, so a new send cannot pay twice.
func (j *jobs) retryStaleTransfers() {
	synced, err := indexer.SyncedAt(j.ctx, j.rdb)
	if err != nil {
		j.log.Error("failed to read indexer progress", zap.Error(err))
		return
	}
	if synced.IsZero() {
		j.log.Warn("indexer has not synced yet, not retrying transfers")
		return
	}

	before := synced.Add(-ton.MessageTTL - time.Minute)
	if cutoff := time.Now().Add(-j.cfg.TransferRetryAfter); cutoff.Before(before) {
		before = cutoff
	}
	n, err := j.ledger.Transfers.RetryStale(j.ctx, before, j.cfg.TransferRetryBatch)
	if err != nil {
		j.log.Error("failed to retry stale transfers", zap.Error(err))
		return
	}
	if n > 0 {
		j.log.Info("stale transfers retried", zap.Int("count", n))
	}
}

func (j *jobs) refreshGauges() {
	if _, err := j.ledger.Transfers.CountPending(j.ctx); err != nil {
		j.log.Warn("failed to count pending transfers", zap.Error(err))
	}
	if _, err := j.ledger.Lockups.GetNumLockups(j.ctx); err != nil {
		j.log.Warn("failed to count lockups", zap.Error(err))
	}
	if _, err := j.ledger.Drafts.GetNumDraftGroups(j.ctx); err != nil {
		j.log.Warn("failed to count draft groups", zap.Error(err))
	}
}
