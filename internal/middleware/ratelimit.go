package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/ft-lockup/backend/internal/http/dto"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// RateLimitMiddleware is a fixed-window limiter keyed by route and caller.
// Authenticated callers are counted by account, others by IP. Without Redis
// every request passes.
func RateLimitMiddleware(rdb redis.UniversalClient, limit int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rdb == nil || limit <= 0 {
			return c.Next()
		}

		who := GetAccountID(c)
		if who == "" {
			who = c.IP()
		}
		key := fmt.Sprintf("rl:%s:%s", c.Path(), who)

		ctx := context.Background()
		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			return c.Next() // fail open
		}

		if count == 1 {
			rdb.Expire(ctx, key, window)
		}

		if count > int64(limit) {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.ErrorResponse{
				Error:     "rate limit exceeded",
				RequestID: GetRequestID(c),
			})
		}

		return c.Next()
	}
}
