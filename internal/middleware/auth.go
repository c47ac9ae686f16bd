package middleware

import (
	"strings"

	"github.com/ft-lockup/backend/internal/auth"
	"github.com/ft-lockup/backend/internal/config"
	"github.com/ft-lockup/backend/internal/http/dto"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const CtxAccountID = "account_id"

// AuthMiddleware accepts "Authorization: Bearer <jwt>" and stores the
// wallet's account id in the request locals.
func AuthMiddleware(cfg *config.Config, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "missing authorization header"})
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "invalid authorization format"})
		}

		claims, err := auth.ParseJWT(cfg.JWTSecret, tokenStr)
		if err != nil {
			log.Debug("jwt parse error", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "invalid or expired token"})
		}

		c.Locals(CtxAccountID, claims.AccountID)
		return c.Next()
	}
}

func GetAccountID(c *fiber.Ctx) string {
	id, _ := c.Locals(CtxAccountID).(string)
	return id
}
