package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ft-lockup/backend/internal/events"
	"github.com/ft-lockup/backend/internal/metrics"
	"github.com/ft-lockup/backend/internal/models"
	"github.com/ft-lockup/backend/internal/repositories"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Transferer moves tokens out of the hot wallet. A nil error means the
// transfer was handed to the network. An error wrapping
// models.ErrTransferNotSent means nothing left the wallet; any other error
// leaves the outcome unknown.
type Transferer interface {
	Transfer(ctx context.Context, to string, amount decimal.Decimal, memo string) error
}

// TransferService runs outgoing payouts. The local debit and a pending
// Transfer record are committed by the caller; Dispatch performs the
// transfer and then either marks it sent or reverts the debit. Transfers
// with an unknown outcome stay pending until ConfirmSent sees them on chain
// or RetryStale sends them again.
type TransferService struct {
	store      repositories.Store
	transferer Transferer
	publisher  events.Publisher
	timeout    time.Duration
	log        *zap.Logger
}

func NewTransferService(
	store repositories.Store,
	transferer Transferer,
	publisher events.Publisher,
	timeout time.Duration,
	log *zap.Logger,
) *TransferService {
	return &TransferService{
		store:      store,
		transferer: transferer,
		publisher:  publisher,
		timeout:    timeout,
		log:        log,
	}
}

func newPendingTransfer(kind, beneficiary string, amount decimal.Decimal, memo string) *models.Transfer {
	return &models.Transfer{
		ID:          uuid.New(),
		Kind:        kind,
		Beneficiary: beneficiary,
		Amount:      amount,
		Memo:        memo,
		Status:      models.TransferStatusPending,
	}
}

// TransferMemo is the comment sent with t. It ends with the transfer id so
// that the outgoing message can be matched back to t.
func TransferMemo(t *models.Transfer) string {
	return fmt.Sprintf("%s [%s]", t.Memo, t.ID)
}

// ParseTransferRef extracts the transfer id from a comment built by
// TransferMemo.
func ParseTransferRef(comment string) (uuid.UUID, bool) {
	open := strings.LastIndexByte(comment, '[')
	if open < 0 || !strings.HasSuffix(comment, "]") {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(comment[open+1 : len(comment)-1])
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Dispatch sends t and completes it. It returns the amount that actually
// left the wallet: t.Amount on success, zero when the transfer was not sent
// and got compensated, and zero when the outcome is unknown and t stays
// pending.
func (s *TransferService) Dispatch(ctx context.Context, t *models.Transfer) (decimal.Decimal, error) {
	tctx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	transferErr := s.transferer.Transfer(tctx, t.Beneficiary, t.Amount, TransferMemo(t))
	if transferErr == nil {
		return s.Complete(ctx, t.ID, nil)
	}

	fields := []zap.Field{
		zap.String("transfer_id", t.ID.String()),
		zap.String("kind", t.Kind),
		zap.String("beneficiary", t.Beneficiary),
		zap.String("amount", t.Amount.String()),
		zap.Error(transferErr),
	}
	if !errors.Is(transferErr, models.ErrTransferNotSent) {
		s.log.Error("transfer outcome unknown, left pending", fields...)
		metrics.Transfers.WithLabelValues(t.Kind, "unknown").Inc()
		return decimal.Zero, nil
	}
	s.log.Warn("transfer failed", fields...)
	return s.Complete(ctx, t.ID, transferErr)
}

// Complete finalizes a pending transfer. On failure the debit is reverted:
// claimed amounts go back to their lockups, and recovered or refunded
// amounts become a new unlocked lockup of the beneficiary.
func (s *TransferService) Complete(ctx context.Context, id uuid.UUID, transferErr error) (decimal.Decimal, error) {
	var (
		t          *models.Transfer
		compensate []events.Event
	)
	err := s.store.Atomic(ctx, func(tx repositories.Tx) error {
		var err error
		t, err = tx.GetTransfer(ctx, id)
		if err != nil {
			return err
		}
		if t.Status != models.TransferStatusPending {
			return fmt.Errorf("%w: %s is %s", models.ErrTransferNotPending, id, t.Status)
		}
		compensate = nil

		if transferErr == nil {
			t.Status = models.TransferStatusSent
			return tx.UpdateTransfer(ctx, t)
		}

		switch t.Kind {
		case models.TransferKindClaim:
			for _, c := range t.Claims {
				l, err := tx.GetLockup(ctx, c.Index)
				if err != nil {
					return err
				}
				if err := l.Unclaim(c.UnclaimedBalance); err != nil {
					return err
				}
				if err := tx.ReplaceLockup(ctx, c.Index, l); err != nil {
					return err
				}
				if err := addAccountLockup(ctx, tx, l.AccountID, c.Index); err != nil {
					return err
				}
			}
		case models.TransferKindTermination, models.TransferKindRefund:
			l := models.NewUnlocked(t.Beneficiary, t.Amount)
			idx, err := insertLockup(ctx, tx, l)
			if err != nil {
				return err
			}
			compensate = append(compensate, events.Event{
				Type: events.EventLockupCreated,
				Payload: map[string]any{
					"account_id":    t.Beneficiary,
					"index":         idx,
					"total":         t.Amount.String(),
					"from_transfer": t.ID.String(),
				},
			})
		default:
			return fmt.Errorf("%w: unknown transfer kind %q", models.ErrInvariant, t.Kind)
		}

		t.Status = models.TransferStatusReverted
		t.Error = transferErr.Error()
		if err := tx.UpdateTransfer(ctx, t); err != nil {
			return err
		}
		return tx.LogAudit(ctx, models.AuditLog{
			ActorType:  models.ActorSystem,
			Action:     "transfer_reverted",
			EntityType: "transfer",
			EntityID:   t.ID.String(),
			Meta:       map[string]any{"kind": t.Kind, "amount": t.Amount.String(), "error": t.Error},
		})
	})
	if err != nil {
		return decimal.Zero, err
	}

	metrics.Transfers.WithLabelValues(t.Kind, t.Status).Inc()
	if t.Status == models.TransferStatusSent {
		return t.Amount, nil
	}

	if len(compensate) > 0 {
		metrics.LockupsCreated.WithLabelValues("compensation").Inc()
	}
	publishAll(ctx, s.publisher, s.log, append(compensate, events.Event{
		Type: events.EventTransferFailed,
		Payload: map[string]any{
			"account_id":  t.Beneficiary,
			"transfer_id": t.ID.String(),
			"kind":        t.Kind,
			"amount":      t.Amount.String(),
		},
	})...)
	return decimal.Zero, nil
}

// ConfirmSent settles a pending transfer whose message was seen leaving the
// hot wallet. Confirming a sent transfer again is a no-op.
func (s *TransferService) ConfirmSent(ctx context.Context, id uuid.UUID) error {
	var (
		t       *models.Transfer
		settled bool
	)
	err := s.store.Atomic(ctx, func(tx repositories.Tx) error {
		var err error
		t, err = tx.GetTransfer(ctx, id)
		if err != nil {
			return err
		}
		switch t.Status {
		case models.TransferStatusSent:
			return nil
		case models.TransferStatusReverted:
			return fmt.Errorf("%w: reverted transfer %s reached the chain", models.ErrInvariant, id)
		}
		settled = true
		t.Status = models.TransferStatusSent
		if err := tx.UpdateTransfer(ctx, t); err != nil {
			return err
		}
		return tx.LogAudit(ctx, models.AuditLog{
			ActorType:  models.ActorSystem,
			Action:     "transfer_confirmed",
			EntityType: "transfer",
			EntityID:   t.ID.String(),
			Meta:       map[string]any{"kind": t.Kind, "amount": t.Amount.String()},
		})
	})
	if err != nil || !settled {
		return err
	}
	metrics.Transfers.WithLabelValues(t.Kind, t.Status).Inc()
	s.log.Info("transfer confirmed on chain", zap.String("transfer_id", id.String()), zap.String("kind", t.Kind))
	return nil
}

// RetryStale re-dispatches transfers pending since before `before`, e.g.
// after a crash between debit and completion or a send with an unknown
// outcome. The caller picks `before` so that any message sent for those
// transfers has either been confirmed with ConfirmSent or expired.
func (s *TransferService) RetryStale(ctx context.Context, before time.Time, limit int) (int, error) {
	var stale []*models.Transfer
	err := s.store.Atomic(ctx, func(tx repositories.Tx) error {
		var err error
		stale, err = tx.ListPendingTransfers(ctx, before, limit)
		if err != nil {
			return err
		}
		// stamp the new attempt before sending it
		for _, t := range stale {
			if err := tx.UpdateTransfer(ctx, t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, t := range stale {
		if _, err := s.Dispatch(ctx, t); err != nil {
			s.log.Error("failed to complete stale transfer", zap.String("transfer_id", t.ID.String()), zap.Error(err))
			continue
		}
		s.log.Info("stale transfer dispatched", zap.String("transfer_id", t.ID.String()), zap.String("kind", t.Kind))
	}
	return len(stale), nil
}

// CountPending refreshes the pending transfers gauge.
func (s *TransferService) CountPending(ctx context.Context) (int, error) {
	var n int
	err := s.store.Atomic(ctx, func(tx repositories.Tx) error {
		var err error
		n, err = tx.CountPendingTransfers(ctx)
		return err
	})
	if err == nil {
		metrics.PendingTransfers.Set(float64(n))
	}
	return n, err
}
