package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/veloshop/veloshop_auth/internal/auth"
)

// RegisterAuthRoutes wires authentication endpoints. rateLimiter throttles
// the whole group per client IP; requireAuth guards the protected subset.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, rateLimiter, requireAuth fiber.Handler) {
	group := r.Group("/auth")
	if rateLimiter != nil {
		group.Use(rateLimiter)
	}

	group.Post("/register", h.Register)
	group.Post("/login", h.Login)
	group.Post("/refresh-token", h.Refresh)
	group.Post("/verify-email", h.VerifyEmail)
	group.Post("/resend-verification", h.ResendVerification)
	group.Post("/forgot-password", h.ForgotPassword)
	group.Post("/reset-password", h.ResetPassword)

	protected := group.Group("", requireAuth)
	protected.Post("/logout", h.Logout)
	protected.Post("/change-password", h.ChangePassword)
	protected.Get("/me", h.Me)
}
