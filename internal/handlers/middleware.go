package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Vectreal/vectreal-platform-sub000/internal/ratelimit"
)

// RateLimit returns a middleware gating requests through the injected keyed
// limiter, one bucket per client IP.
func RateLimit(limiter *ratelimit.KeyedLimiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !limiter.Allow(c.IP()) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": true, "message": "rate limit exceeded",
			})
		}
		return c.Next()
	}
}
