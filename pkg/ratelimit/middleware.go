package ratelimit

import (
	"strconv"

	"github.com/aibles/iam/pkg/config"
	"github.com/gofiber/fiber/v2"
)

// Middleware admits requests before any route handler runs. Rejections
// answer 429 with a Retry-After header.
func Middleware(limiter *Limiter, cfg *config.RateLimitConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !cfg.Enabled {
			return c.Next()
		}

		key := ClientKey(c.IP(), c.Get(fiber.HeaderXForwardedFor), cfg.TrustedProxies)
		allowed, retryAfter := limiter.Allow(key)
		if !allowed {
			err := ErrExceeded(retryAfter)
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(err.Details["retry_after_seconds"].(int)))
			return err
		}

		return c.Next()
	}
}
