package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/ft-lockup/backend/internal/app"
	"github.com/ft-lockup/backend/internal/config"
	"github.com/ft-lockup/backend/internal/db"
	"github.com/ft-lockup/backend/internal/repositories"
	"github.com/ft-lockup/backend/internal/ton"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errNoPostgres = errors.New("POSTGRES_DSN is required")

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log := setup()
			defer log.Sync()
			if cfg.UseMemoryStore() {
				return errNoPostgres
			}

			ctx := cmd.Context()
			pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
			if err != nil {
				return err
			}
			defer pool.Close()
			return app.Migrate(ctx, pool, cfg, log)
		},
	}
}

func whitelistCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "whitelist",
		Short: "Manage the deposit whitelist directly in the database",
	}
	c.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List whitelisted accounts",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd.Context(), func(store repositories.Store) error {
					var accounts []string
					err := store.Atomic(cmd.Context(), func(tx repositories.Tx) error {
						var err error
						accounts, err = tx.ListWhitelist(cmd.Context())
						return err
					})
					if err != nil {
						return err
					}
					for _, a := range accounts {
						fmt.Fprintln(cmd.OutOrStdout(), a)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "add <address>...",
			Short: "Whitelist accounts",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return updateWhitelist(cmd.Context(), args, func(tx repositories.Tx, id string) error {
					return tx.AddToWhitelist(cmd.Context(), id)
				})
			},
		},
		&cobra.Command{
			Use:   "remove <address>...",
			Short: "Remove accounts from the whitelist",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return updateWhitelist(cmd.Context(), args, func(tx repositories.Tx, id string) error {
					return tx.RemoveFromWhitelist(cmd.Context(), id)
				})
			},
		},
	)
	return c
}

func updateWhitelist(ctx context.Context, accounts []string, apply func(tx repositories.Tx, id string) error) error {
	ids := make([]string, 0, len(accounts))
	for _, a := range accounts {
		id, err := ton.NormalizeAccount(a)
		if err != nil {
			return fmt.Errorf("%s: %w", a, err)
		}
		ids = append(ids, id)
	}
	return withStore(ctx, func(store repositories.Store) error {
		return store.Atomic(ctx, func(tx repositories.Tx) error {
			for _, id := range ids {
				if err := apply(tx, id); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

func withStore(ctx context.Context, fn func(store repositories.Store) error) error {
	cfg, log := setup()
	defer log.Sync()
	if cfg.UseMemoryStore() {
		return errNoPostgres
	}

	store, closeStore, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(store)
}

func setup() (*config.Config, *zap.Logger) {
	log, _ := zap.NewDevelopment()
	return config.Load(), log
}
