package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/veloshop/veloshop_auth/internal/apperr"
	"github.com/veloshop/veloshop_auth/internal/middleware"
	"github.com/veloshop/veloshop_auth/internal/user"
)

// Handler exposes the authentication endpoints.
type Handler struct {
	svc *Service
}

// NewHandler builds the auth HTTP handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func fail(err error) error {
	return fiber.NewError(apperr.Status(err), apperr.Message(err))
}

type registerRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Password    string `json:"password"`
	StoreID     string `json:"store_id"`
}

// Register creates a new unverified account.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	created, err := h.svc.Register(c.UserContext(), user.CreateInput{
		Name:        req.Name,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Password:    req.Password,
		StoreID:     req.StoreID,
	})
	if err != nil {
		return fail(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"user":    created,
		"message": "user registered successfully, please verify your email",
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login validates credentials and returns a token pair.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	u, pair, err := h.svc.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return fail(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"user":         u,
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresIn":    pair.ExpiresIn,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh rotates a refresh token presented as a bearer header or body field.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	refreshToken := middleware.BearerToken(c)
	if refreshToken == "" {
		var req refreshRequest
		_ = c.BodyParser(&req)
		refreshToken = req.RefreshToken
	}
	if refreshToken == "" {
		return fiber.NewError(http.StatusUnauthorized, "refresh token required")
	}
	pair, err := h.svc.Refresh(c.UserContext(), refreshToken)
	if err != nil {
		return fail(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresIn":    pair.ExpiresIn,
	})
}

type verifyEmailRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// VerifyEmail consumes a verification code.
func (h *Handler) VerifyEmail(c *fiber.Ctx) error {
	var req verifyEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.VerifyEmail(c.UserContext(), req.Email, req.OTP); err != nil {
		return fail(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "email verified successfully"})
}

type emailRequest struct {
	Email string `json:"email"`
}

// ResendVerification triggers a new verification code. The response shape
// never reveals whether the account exists.
func (h *Handler) ResendVerification(c *fiber.Ctx) error {
	var req emailRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.ResendVerification(c.UserContext(), req.Email); err != nil {
		return fail(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "verification email sent"})
}

// ForgotPassword triggers a reset code, uniformly shaped like ResendVerification.
func (h *Handler) ForgotPassword(c *fiber.Ctx) error {
	var req emailRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.ForgotPassword(c.UserContext(), req.Email); err != nil {
		return fail(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "password reset otp sent to email"})
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

// ResetPassword completes the forgot-password flow.
func (h *Handler) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.ResetPassword(c.UserContext(), req.Email, req.OTP, req.NewPassword); err != nil {
		return fail(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "password reset successfully"})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword replaces the password of the authenticated user.
func (h *Handler) ChangePassword(c *fiber.Ctx) error {
	id, err := middleware.IdentityFrom(c)
	if err != nil {
		return fail(err)
	}
	var req changePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.ChangePassword(c.UserContext(), id, req.CurrentPassword, req.NewPassword); err != nil {
		return fail(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "password changed successfully"})
}

// Logout ends the calling session.
func (h *Handler) Logout(c *fiber.Ctx) error {
	id, err := middleware.IdentityFrom(c)
	if err != nil {
		return fail(err)
	}
	if err := h.svc.Logout(c.UserContext(), id); err != nil {
		return fail(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "logged out successfully"})
}

// Me returns the authenticated user's public profile.
func (h *Handler) Me(c *fiber.Ctx) error {
	id, err := middleware.IdentityFrom(c)
	if err != nil {
		return fail(err)
	}
	u, err := h.svc.Profile(c.UserContext(), id)
	if err != nil {
		return fail(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"user": u})
}
