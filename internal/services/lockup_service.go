package services

import (
	"context"
	"fmt"
	"slices"

	"github.com/ft-lockup/backend/internal/events"
	"github.com/ft-lockup/backend/internal/metrics"
	"github.com/ft-lockup/backend/internal/models"
	"github.com/ft-lockup/backend/internal/repositories"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type LockupService struct {
	store          repositories.Store
	transfers      *TransferService
	publisher      events.Publisher
	tokenAccountID string
	now            Clock
	log            *zap.Logger
}

func NewLockupService(
	store repositories.Store,
	transfers *TransferService,
	publisher events.Publisher,
	tokenAccountID string,
	now Clock,
	log *zap.Logger,
) *LockupService {
	return &LockupService{
		store:          store,
		transfers:      transfers,
		publisher:      publisher,
		tokenAccountID: tokenAccountID,
		now:            now,
		log:            log,
	}
}

// ClaimRequest asks for a part of one lockup. A nil Amount claims everything
// unlocked so far.
type ClaimRequest struct {
	Index  models.LockupIndex `json:"index"`
	Amount *decimal.Decimal   `json:"amount,omitempty"`
}

// Claim pays out everything unlocked in all of caller's lockups and returns
// the amount transferred.
func (s *LockupService) Claim(ctx context.Context, caller string) (decimal.Decimal, error) {
	return s.claim(ctx, caller, nil)
}

// ClaimLockups claims explicit amounts from lockups owned by caller.
func (s *LockupService) ClaimLockups(ctx context.Context, caller string, reqs []ClaimRequest) (decimal.Decimal, error) {
	if len(reqs) == 0 {
		return decimal.Zero, nil
	}
	seen := make(map[models.LockupIndex]struct{}, len(reqs))
	for _, r := range reqs {
		if _, ok := seen[r.Index]; ok {
			return decimal.Zero, fmt.Errorf("%w: lockup #%d", models.ErrDuplicateIndex, r.Index)
		}
		seen[r.Index] = struct{}{}
	}
	return s.claim(ctx, caller, reqs)
}

func (s *LockupService) claim(ctx context.Context, caller string, reqs []ClaimRequest) (decimal.Decimal, error) {
	now := s.now().Unix()

	var transfer *models.Transfer
	err := s.store.Atomic(ctx, func(tx repositories.Tx) error {
		transfer = nil
		owned, err := tx.GetAccountLockups(ctx, caller)
		if err != nil {
			return err
		}
		if reqs == nil {
			for _, idx := range owned {
				reqs = append(reqs, ClaimRequest{Index: idx})
			}
		}

		remaining := slices.Clone(owned)
		var (
			claims []models.LockupClaim
			total  = decimal.Zero
		)
		for _, r := range reqs {
			if !slices.Contains(owned, r.Index) {
				return fmt.Errorf("%w: #%d is not owned by %s", models.ErrLockupNotFound, r.Index, caller)
			}
			l, err := tx.GetLockup(ctx, r.Index)
			if err != nil {
				return err
			}

			var c models.LockupClaim
			if r.Amount == nil {
				c, err = l.Claim(r.Index, now)
			} else {
				c, err = l.ClaimAmount(r.Index, *r.Amount, now)
			}
			if err != nil {
				return err
			}
			if err := tx.ReplaceLockup(ctx, r.Index, l); err != nil {
				return err
			}

			if c.IsFinal {
				remaining = slices.DeleteFunc(remaining, func(idx models.LockupIndex) bool { return idx == r.Index })
			}
			if c.UnclaimedBalance.IsPositive() {
				claims = append(claims, c)
				total = total.Add(c.UnclaimedBalance)
			}
		}
		if len(remaining) != len(owned) {
			if err := tx.SaveAccountLockups(ctx, caller, remaining); err != nil {
				return err
			}
		}
		if total.IsZero() {
			return nil
		}

		transfer = newPendingTransfer(models.TransferKindClaim, caller, total,
			fmt.Sprintf("Claiming unlocked %s balance from %s", total, s.tokenAccountID))
		transfer.Claims = claims
		if err := tx.InsertTransfer(ctx, transfer); err != nil {
			return err
		}
		return tx.LogAudit(ctx, models.AuditLog{
			Actor:      caller,
			ActorType:  models.ActorAccount,
			Action:     "lockups_claimed",
			EntityType: "account",
			EntityID:   caller,
			Meta:       map[string]any{"amount": total.String(), "lockups": len(claims)},
		})
	})
	if err != nil {
		return decimal.Zero, err
	}
	if transfer == nil {
		return decimal.Zero, nil
	}

	metrics.Claims.Inc()
	evs := make([]events.Event, 0, len(transfer.Claims))
	for _, c := range transfer.Claims {
		evs = append(evs, events.Event{
			Type: events.EventLockupClaimed,
			Payload: map[string]any{
				"account_id": caller,
				"index":      c.Index,
				"amount":     c.UnclaimedBalance.String(),
				"is_final":   c.IsFinal,
			},
		})
	}
	publishAll(ctx, s.publisher, s.log, evs...)

	return s.transfers.Dispatch(ctx, transfer)
}

// Terminate claws back the unvested part of lockup idx and sends it to the
// configured payer. cutoff defaults to now and cannot be in the past.
// revealed is the vesting schedule, required when only its hash was stored.
func (s *LockupService) Terminate(
	ctx context.Context,
	caller string,
	idx models.LockupIndex,
	revealed models.Schedule,
	cutoff *int64,
) (decimal.Decimal, error) {
	now := s.now().Unix()
	at := now
	if cutoff != nil {
		if *cutoff < now {
			return decimal.Zero, fmt.Errorf("%w: got %d, now is %d", models.ErrTerminationInThePast, *cutoff, now)
		}
		at = *cutoff
	}

	var (
		transfer *models.Transfer
		account  string
		unvested decimal.Decimal
	)
	err := s.store.Atomic(ctx, func(tx repositories.Tx) error {
		transfer = nil
		if err := assertWhitelisted(ctx, tx, caller); err != nil {
			return err
		}
		l, err := tx.GetLockup(ctx, idx)
		if err != nil {
			return err
		}

		var payer string
		unvested, payer, err = l.Terminate(caller, revealed, at)
		if err != nil {
			return err
		}
		if err := tx.ReplaceLockup(ctx, idx, l); err != nil {
			return err
		}
		account = l.AccountID

		if l.TotalBalance().IsZero() {
			if err := removeAccountLockup(ctx, tx, l.AccountID, idx); err != nil {
				return err
			}
		}

		if unvested.IsPositive() {
			transfer = newPendingTransfer(models.TransferKindTermination, payer, unvested,
				fmt.Sprintf("Terminated lockup #%d", idx))
			transfer.LockupIndex = &idx
			if err := tx.InsertTransfer(ctx, transfer); err != nil {
				return err
			}
		}

		return tx.LogAudit(ctx, models.AuditLog{
			Actor:      caller,
			ActorType:  models.ActorAccount,
			Action:     "lockup_terminated",
			EntityType: "lockup",
			EntityID:   fmt.Sprint(idx),
			Meta:       map[string]any{"unvested": unvested.String(), "cutoff": at, "payer": payer},
		})
	})
	if err != nil {
		return decimal.Zero, err
	}

	metrics.Terminations.Inc()
	publishAll(ctx, s.publisher, s.log, events.Event{
		Type: events.EventLockupTerminated,
		Payload: map[string]any{
			"account_id": account,
			"index":      idx,
			"unvested":   unvested.String(),
			"cutoff":     at,
		},
	})
	s.log.Info("lockup terminated",
		zap.Uint32("index", idx),
		zap.String("terminator", caller),
		zap.String("unvested", unvested.String()),
		zap.Int64("cutoff", at),
	)

	if transfer == nil {
		return decimal.Zero, nil
	}
	return s.transfers.Dispatch(ctx, transfer)
}

// --- Views ---

func (s *LockupService) GetTokenAccountID() string {
	return s.tokenAccountID
}

func (s *LockupService) GetNumLockups(ctx context.Context) (uint32, error) {
	var n uint32
	err := s.store.Atomic(ctx, func(tx repositories.Tx) error {
		var err error
		n, err = tx.NumLockups(ctx)
		return err
	})
	if err == nil {
		metrics.NumLockups.Set(float64(n))
	}
	return n, err
}

func (s *LockupService) GetLockup(ctx context.Context, idx models.LockupIndex) (*models.LockupView, error) {
	now := s.now().Unix()
	var view *models.LockupView
	err := s.store.Atomic(ctx, func(tx repositories.Tx) error {
		l, err := tx.GetLockup(ctx, idx)
		if err != nil {
			return err
		}
		v := l.View(idx, now)
		view = &v
		return nil
	})
	return view, err
}

// GetLockups returns lockups with indices in [from, to), clipped to the
// number of lockups.
func (s *LockupService) GetLockups(ctx context.Context, from, to uint32) ([]models.LockupView, error) {
	now := s.now().Unix()
	var views []models.LockupView
	err := s.store.Atomic(ctx, func(tx repositories.Tx) error {
		n, err := tx.NumLockups(ctx)
		if err != nil {
			return err
		}
		from, to, err := checkPage(from, to, n)
		if err != nil {
			return err
		}
		views = make([]models.LockupView, 0, to-from)
		for idx := from; idx < to; idx++ {
			l, err := tx.GetLockup(ctx, idx)
			if err != nil {
				return err
			}
			views = append(views, l.View(idx, now))
		}
		return nil
	})
	return views, err
}

// GetLockupsByIndex returns the lockups that exist among indices, in order.
func (s *LockupService) GetLockupsByIndex(ctx context.Context, indices []models.LockupIndex) ([]models.LockupView, error) {
	now := s.now().Unix()
	var views []models.LockupView
	err := s.store.Atomic(ctx, func(tx repositories.Tx) error {
		views = make([]models.LockupView, 0, len(indices))
		for _, idx := range indices {
			l, err := tx.GetLockup(ctx, idx)
			if models.KindOf(err) == models.KindNotFound {
				continue
			}
			if err != nil {
				return err
			}
			views = append(views, l.View(idx, now))
		}
		return nil
	})
	return views, err
}

// GetAccountLockups returns the lockups of accountID that still hold
// something to claim.
func (s *LockupService) GetAccountLockups(ctx context.Context, accountID string) ([]models.LockupView, error) {
	now := s.now().Unix()
	var views []models.LockupView
	err := s.store.Atomic(ctx, func(tx repositories.Tx) error {
		indices, err := tx.GetAccountLockups(ctx, accountID)
		if err != nil {
			return err
		}
		views = make([]models.LockupView, 0, len(indices))
		for _, idx := range indices {
			l, err := tx.GetLockup(ctx, idx)
			if err != nil {
				return err
			}
			views = append(views, l.View(idx, now))
		}
		return nil
	})
	return views, err
}

func (s *LockupService) HashSchedule(schedule models.Schedule) models.ScheduleHash {
	return schedule.Hash()
}

// ValidateSchedule checks schedule against total and, when given, a vesting
// schedule it must never run ahead of.
func (s *LockupService) ValidateSchedule(schedule models.Schedule, total decimal.Decimal, vesting models.Schedule) error {
	if err := schedule.AssertValid(total); err != nil {
		return err
	}
	if vesting == nil {
		return nil
	}
	if err := vesting.AssertValid(total); err != nil {
		return err
	}
	return schedule.AssertValidTerminationSchedule(vesting)
}
