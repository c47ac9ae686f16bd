package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ft-lockup/backend/internal/app"
	"github.com/ft-lockup/backend/internal/config"
	"github.com/ft-lockup/backend/internal/db"
	"github.com/ft-lockup/backend/internal/events"
	apphttp "github.com/ft-lockup/backend/internal/http"
	"github.com/ft-lockup/backend/internal/http/handlers"
	"github.com/ft-lockup/backend/internal/indexer"
	"github.com/ft-lockup/backend/internal/metrics"
	"github.com/ft-lockup/backend/internal/services"
	"github.com/ft-lockup/backend/internal/ton"
	"github.com/gofiber/fiber/v2"
	"github.com/xssnick/tonutils-go/address"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	store, closeStore, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open store", zap.Error(err))
	}
	defer closeStore()

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// TON
	tonAPI, transferer, err := app.ConnectTON(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to connect to TON network", zap.Error(err))
	}

	// Services
	ledger, err := app.NewLedger(ctx, cfg, store, transferer, publisher, log)
	if err != nil {
		log.Fatal("failed to build ledger", zap.Error(err))
	}
	authService := services.NewAuthService(rdb, ton.NewChainWalletKeys(tonAPI), cfg, log)

	// With the in-memory store no other process sees the ledger, so deposits
	// are indexed here.
	if cfg.UseMemoryStore() && cfg.TONHotWalletAddress != "" {
		hotWallet, err := address.ParseAddr(cfg.TONHotWalletAddress)
		if err != nil {
			log.Fatal("invalid TON_HOT_WALLET_ADDRESS", zap.String("addr", cfg.TONHotWalletAddress), zap.Error(err))
		}
		ix := indexer.New(tonAPI, hotWallet, rdb, ledger.Deposits, ledger.Transfers, cfg.IndexerPollInterval, cfg.IndexerBatchSize, log)
		go ix.Run(ctx)
		log.Info("in-process deposit indexer started", zap.String("hot_wallet", hotWallet.String()))
	}

	// Handlers
	wsHub := handlers.NewWSHub(cfg, subscriber, log)
	if err := wsHub.Start(ctx); err != nil {
		log.Fatal("failed to start ws hub", zap.Error(err))
	}

	h := apphttp.Handlers{
		Auth:      handlers.NewAuthHandler(authService, log),
		Meta:      handlers.NewMetaHandler(cfg),
		Lockup:    handlers.NewLockupHandler(ledger.Lockups, ton.NormalizeAccount, log),
		Draft:     handlers.NewDraftHandler(ledger.Drafts, log),
		Whitelist: handlers.NewWhitelistHandler(ledger.Whitelist, log),
		WSHub:     wsHub,
	}

	// Fiber app
	fiberApp := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(fiberApp, cfg, log, rdb, metrics.NewRegistry("api"), h)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = fiberApp.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := fiberApp.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
