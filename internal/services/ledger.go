package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/ft-lockup/backend/internal/events"
	"github.com/ft-lockup/backend/internal/models"
	"github.com/ft-lockup/backend/internal/repositories"
	"go.uber.org/zap"
)

// Clock returns the current time. Services take it as a dependency so that
// tests can move time forward.
type Clock func() time.Time

// AccountResolver validates an account id and returns its canonical form.
type AccountResolver func(accountID string) (string, error)

// resolveAccount applies resolve, or only rejects empty ids when there is no
// resolver.
func resolveAccount(resolve AccountResolver, accountID string) (string, error) {
	if accountID == "" {
		return "", models.ErrInvalidAccount
	}
	if resolve == nil {
		return accountID, nil
	}
	return resolve(accountID)
}

// resolveLockupAccounts canonicalizes every account named by l.
func resolveLockupAccounts(resolve AccountResolver, l *models.Lockup) error {
	var err error
	if l.AccountID, err = resolveAccount(resolve, l.AccountID); err != nil {
		return err
	}
	cfg := l.TerminationConfig
	if cfg == nil {
		return nil
	}
	if cfg.TerminatorID, err = resolveAccount(resolve, cfg.TerminatorID); err != nil {
		return err
	}
	if cfg.PayerID != "" {
		if cfg.PayerID, err = resolveAccount(resolve, cfg.PayerID); err != nil {
			return err
		}
	}
	return nil
}

func assertWhitelisted(ctx context.Context, tx repositories.Tx, accountID string) error {
	ok, err := tx.IsWhitelisted(ctx, accountID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrNotWhitelisted, accountID)
	}
	return nil
}

func addAccountLockup(ctx context.Context, tx repositories.Tx, accountID string, idx models.LockupIndex) error {
	indices, err := tx.GetAccountLockups(ctx, accountID)
	if err != nil {
		return err
	}
	if slices.Contains(indices, idx) {
		return nil
	}
	return tx.SaveAccountLockups(ctx, accountID, append(indices, idx))
}

func removeAccountLockup(ctx context.Context, tx repositories.Tx, accountID string, idx models.LockupIndex) error {
	indices, err := tx.GetAccountLockups(ctx, accountID)
	if err != nil {
		return err
	}
	pos := slices.Index(indices, idx)
	if pos < 0 {
		return nil
	}
	return tx.SaveAccountLockups(ctx, accountID, slices.Delete(indices, pos, pos+1))
}

// insertLockup stores a new lockup and indexes it under its account.
func insertLockup(ctx context.Context, tx repositories.Tx, l *models.Lockup) (models.LockupIndex, error) {
	idx, err := tx.InsertLockup(ctx, l)
	if err != nil {
		return 0, err
	}
	if err := addAccountLockup(ctx, tx, l.AccountID, idx); err != nil {
		return 0, err
	}
	return idx, nil
}

// publishAll sends events after the transaction that produced them has
// committed. Delivery failures are logged, never returned.
func publishAll(ctx context.Context, publisher events.Publisher, log *zap.Logger, evs ...events.Event) {
	for _, ev := range evs {
		if err := publisher.Publish(ctx, events.StreamLockup, ev); err != nil {
			log.Warn("failed to publish event", zap.String("type", ev.Type), zap.Error(err))
		}
	}
}

func checkPage(from, to, n uint32) (uint32, uint32, error) {
	if to > n {
		to = n
	}
	if from > to {
		return 0, 0, fmt.Errorf("%w: from %d is after to %d", models.ErrInvalidRange, from, to)
	}
	return from, to, nil
}
