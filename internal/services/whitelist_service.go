package services

import (
	"context"

	"github.com/ft-lockup/backend/internal/models"
	"github.com/ft-lockup/backend/internal/repositories"
	"go.uber.org/zap"
)

// WhitelistService manages the accounts allowed to deposit, create draft
// groups and terminate.
type WhitelistService struct {
	store   repositories.Store
	resolve AccountResolver
	log     *zap.Logger
}

func NewWhitelistService(store repositories.Store, resolve AccountResolver, log *zap.Logger) *WhitelistService {
	return &WhitelistService{store: store, resolve: resolve, log: log}
}

// Seed adds accounts without an authorization check. Used on startup.
func (s *WhitelistService) Seed(ctx context.Context, accounts []string) error {
	resolved := make([]string, 0, len(accounts))
	for _, a := range accounts {
		id, err := resolveAccount(s.resolve, a)
		if err != nil {
			return err
		}
		resolved = append(resolved, id)
	}
	return s.store.Atomic(ctx, func(tx repositories.Tx) error {
		for _, a := range resolved {
			if err := tx.AddToWhitelist(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *WhitelistService) Add(ctx context.Context, caller, accountID string) error {
	accountID, err := resolveAccount(s.resolve, accountID)
	if err != nil {
		return err
	}
	return s.change(ctx, caller, accountID, "whitelist_added", func(tx repositories.Tx) error {
		return tx.AddToWhitelist(ctx, accountID)
	})
}

func (s *WhitelistService) Remove(ctx context.Context, caller, accountID string) error {
	accountID, err := resolveAccount(s.resolve, accountID)
	if err != nil {
		return err
	}
	return s.change(ctx, caller, accountID, "whitelist_removed", func(tx repositories.Tx) error {
		return tx.RemoveFromWhitelist(ctx, accountID)
	})
}

func (s *WhitelistService) change(ctx context.Context, caller, accountID, action string, fn func(tx repositories.Tx) error) error {
	err := s.store.Atomic(ctx, func(tx repositories.Tx) error {
		if err := assertWhitelisted(ctx, tx, caller); err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			return err
		}
		return tx.LogAudit(ctx, models.AuditLog{
			Actor:      caller,
			ActorType:  models.ActorAccount,
			Action:     action,
			EntityType: "whitelist",
			EntityID:   accountID,
		})
	})
	if err != nil {
		return err
	}
	s.log.Info(action, zap.String("caller", caller), zap.String("account_id", accountID))
	return nil
}

func (s *WhitelistService) IsWhitelisted(ctx context.Context, accountID string) (bool, error) {
	var ok bool
	err := s.store.Atomic(ctx, func(tx repositories.Tx) error {
		var err error
		ok, err = tx.IsWhitelisted(ctx, accountID)
		return err
	})
	return ok, err
}

func (s *WhitelistService) List(ctx context.Context) ([]string, error) {
	var out []string
	err := s.store.Atomic(ctx, func(tx repositories.Tx) error {
		var err error
		out, err = tx.ListWhitelist(ctx)
		return err
	})
	return out, err
}
