// Package app wires the ledger services from configuration. Every binary
// builds the same graph; they differ only in what they expose.
package app

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ft-lockup/backend/internal/config"
	"github.com/ft-lockup/backend/internal/db"
	"github.com/ft-lockup/backend/internal/events"
	"github.com/ft-lockup/backend/internal/repositories"
	"github.com/ft-lockup/backend/internal/repositories/memstore"
	"github.com/ft-lockup/backend/internal/services"
	"github.com/ft-lockup/backend/internal/ton"
	"github.com/ft-lockup/backend/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	tonapi "github.com/xssnick/tonutils-go/ton"
	"go.uber.org/zap"
)

// OpenStore returns the Postgres store, or the in-memory one when no DSN is
// configured. Migrations are applied before the store is returned. The
// returned close func is never nil.
func OpenStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (repositories.Store, func(), error) {
	if cfg.UseMemoryStore() {
		return memstore.New(), func() {}, nil
	}

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := Migrate(ctx, pool, cfg, log); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return repositories.NewPostgresStore(pool), pool.Close, nil
}

// Migrate applies the embedded migrations, or the ones in MIGRATIONS_DIR
// when it is set.
func Migrate(ctx context.Context, pool *pgxpool.Pool, cfg *config.Config, log *zap.Logger) error {
	var fsys fs.FS = migrations.FS
	if cfg.MigrationsDir != "" {
		fsys = os.DirFS(cfg.MigrationsDir)
	}
	if err := db.RunMigrations(ctx, pool, fsys, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Ledger groups the services that share one store.
type Ledger struct {
	Store     repositories.Store
	Transfers *services.TransferService
	Lockups   *services.LockupService
	Drafts    *services.DraftService
	Deposits  *services.DepositService
	Whitelist *services.WhitelistService
}

// NewLedger builds the services and seeds the deposit whitelist.
func NewLedger(
	ctx context.Context,
	cfg *config.Config,
	store repositories.Store,
	transferer services.Transferer,
	publisher events.Publisher,
	log *zap.Logger,
) (*Ledger, error) {
	now := services.Clock(time.Now)
	resolve := services.AccountResolver(ton.NormalizeAccount)

	tokenAccountID := cfg.TokenAccountID
	if tokenAccountID != "" {
		id, err := ton.NormalizeAccount(tokenAccountID)
		if err != nil {
			return nil, fmt.Errorf("TOKEN_ACCOUNT_ID: %w", err)
		}
		tokenAccountID = id
	}

	transfers := services.NewTransferService(store, transferer, publisher, cfg.TransferTimeout, log)
	l := &Ledger{
		Store:     store,
		Transfers: transfers,
		Lockups:   services.NewLockupService(store, transfers, publisher, tokenAccountID, now, log),
		Drafts:    services.NewDraftService(store, publisher, resolve, log),
		Deposits:  services.NewDepositService(store, transfers, publisher, resolve, log),
		Whitelist: services.NewWhitelistService(store, resolve, log),
	}

	if err := l.Whitelist.Seed(ctx, cfg.DepositWhitelist); err != nil {
		return nil, fmt.Errorf("seed whitelist: %w", err)
	}
	if len(cfg.DepositWhitelist) > 0 {
		log.Info("deposit whitelist seeded", zap.Int("accounts", len(cfg.DepositWhitelist)))
	}
	return l, nil
}

// ConnectTON opens the lite client and the hot wallet. Without a seed the
// ledger still runs but every payout is compensated.
func ConnectTON(ctx context.Context, cfg *config.Config, log *zap.Logger) (tonapi.APIClientWrapped, services.Transferer, error) {
	api, err := ton.Connect(ctx, ton.LiteServerConfig{
		Network: cfg.TONNetwork,
		Host:    cfg.LiteServerHost,
		Port:    cfg.LiteServerPort,
		Key:     cfg.LiteServerKey,
	}, log)
	if err != nil {
		return nil, nil, err
	}

	if cfg.TONHotWalletSeed == "" {
		log.Warn("TON_HOT_WALLET_SEED not set, outgoing transfers are disabled")
		return api, ton.NoWallet{}, nil
	}
	w, err := ton.NewWallet(api, cfg.TONHotWalletSeed, log)
	if err != nil {
		return nil, nil, err
	}
	return api, w, nil
}
