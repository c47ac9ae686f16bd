package http

import (
	"strings"
	"time"

	"github.com/ft-lockup/backend/internal/config"
	"github.com/ft-lockup/backend/internal/http/handlers"
	"github.com/ft-lockup/backend/internal/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Handlers struct {
	Auth      *handlers.AuthHandler
	Meta      *handlers.MetaHandler
	Lockup    *handlers.LockupHandler
	Draft     *handlers.DraftHandler
	Whitelist *handlers.WhitelistHandler
	WSHub     *handlers.WSHub
}

// SetupRouter mounts the API. rdb may be nil, which disables rate limiting.
func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb redis.UniversalClient,
	registry *prometheus.Registry,
	h Handlers,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowHeaders: strings.Join([]string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"}, ", "),
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := app.Group("/api/v1")
	api.Use(middleware.RateLimitMiddleware(rdb, cfg.RateLimitRPM, time.Minute))

	// Auth (public)
	api.Post("/auth/proof-payload", h.Auth.GeneratePayload)
	api.Post("/auth/ton-proof", h.Auth.TonProof)

	// Views (public)
	api.Get("/token", h.Meta.GetToken)
	api.Get("/whitelist", h.Whitelist.List)
	api.Get("/lockups", h.Lockup.GetLockups)
	api.Get("/lockups/count", h.Lockup.GetNumLockups)
	api.Get("/lockups/batch", h.Lockup.GetLockupsByIndex)
	api.Get("/lockups/:index", h.Lockup.GetLockup)
	api.Get("/accounts/:account/lockups", h.Lockup.GetAccountLockups)
	api.Get("/draft-groups", h.Draft.GetDraftGroups)
	api.Get("/draft-groups/count", h.Draft.GetNumDraftGroups)
	api.Get("/draft-groups/:id", h.Draft.GetDraftGroup)
	api.Get("/drafts", h.Draft.GetDrafts)
	api.Get("/drafts/:id", h.Draft.GetDraft)
	api.Post("/schedules/hash", h.Lockup.HashSchedule)
	api.Post("/schedules/validate", h.Lockup.ValidateSchedule)

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// Claims
	protected.Post("/claim", h.Lockup.Claim)
	protected.Post("/claim/lockups", h.Lockup.ClaimLockups)

	// Termination
	protected.Post("/lockups/:index/terminate", h.Lockup.Terminate)

	// Whitelist
	protected.Post("/whitelist", h.Whitelist.Add)
	protected.Delete("/whitelist/:account", h.Whitelist.Remove)

	// Drafts
	protected.Post("/draft-groups", h.Draft.CreateDraftGroup)
	protected.Post("/drafts", h.Draft.CreateDraft)
	protected.Post("/drafts/batch", h.Draft.CreateDrafts)
	protected.Post("/drafts/convert", h.Draft.ConvertDrafts)
	protected.Post("/drafts/:id/convert", h.Draft.ConvertDraft)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(h.WSHub.HandleWS))
}
