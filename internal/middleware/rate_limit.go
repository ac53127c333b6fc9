package middleware

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/veloshop/veloshop_auth/internal/ratelimit"
)

// AuthRateLimit throttles the auth endpoints per client IP. The limiter
// fails open, so an unavailable counter backend never locks callers out;
// per-account budgets are enforced separately by the orchestrator.
func AuthRateLimit(limiter ratelimit.Limiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if limiter == nil {
			return c.Next()
		}
		ok, err := limiter.Allow(c.UserContext(), c.IP())
		if err != nil {
			return c.Next()
		}
		if !ok {
			return fiber.NewError(http.StatusTooManyRequests, "too many requests, try again later")
		}
		return c.Next()
	}
}
