package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ft-lockup/backend/internal/app"
	"github.com/ft-lockup/backend/internal/config"
	"github.com/ft-lockup/backend/internal/db"
	"github.com/ft-lockup/backend/internal/events"
	"github.com/ft-lockup/backend/internal/indexer"
	"github.com/xssnick/tonutils-go/address"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.TONHotWalletAddress == "" {
		log.Fatal("TON_HOT_WALLET_ADDRESS is required")
	}
	if cfg.UseMemoryStore() {
		log.Fatal("POSTGRES_DSN is required: the indexer shares the ledger with the API")
	}

	hotWallet, err := address.ParseAddr(cfg.TONHotWalletAddress)
	if err != nil {
		log.Fatal("invalid TON_HOT_WALLET_ADDRESS", zap.String("addr", cfg.TONHotWalletAddress), zap.Error(err))
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

	tonAPI, transferer, err := app.ConnectTON(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to connect to TON network", zap.Error(err))
	}

	ledger, err := app.NewLedger(ctx, cfg, store, transferer, events.NewRedisPublisher(rdb, log), log)
	if err != nil {
		log.Fatal("failed to build ledger", zap.Error(err))
	}

	log.Info("TON indexer started",
		zap.String("hot_wallet", hotWallet.String()),
		zap.String("network", cfg.TONNetwork),
	)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down TON indexer")
		cancel()
	}()

	indexer.New(tonAPI, hotWallet, rdb, ledger.Deposits, ledger.Transfers, cfg.IndexerPollInterval, cfg.IndexerBatchSize, log).Run(ctx)
}
