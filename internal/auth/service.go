package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/veloshop/veloshop_auth/internal/apperr"
	"github.com/veloshop/veloshop_auth/internal/otp"
	"github.com/veloshop/veloshop_auth/internal/password"
	"github.com/veloshop/veloshop_auth/internal/ratelimit"
	"github.com/veloshop/veloshop_auth/internal/token"
	"github.com/veloshop/veloshop_auth/internal/user"
)

// ErrInvalidCredentials is deliberately the same for an unknown email and a
// wrong password so login responses cannot be used to enumerate accounts.
var ErrInvalidCredentials = apperr.E(apperr.KindUnauthorized, "invalid email or password")

// ErrTooManyAttempts caps both failed logins and OTP guesses.
var ErrTooManyAttempts = apperr.E(apperr.KindRateLimited, "too many attempts, try again later")

// Service composes the credential store, OTP issuer and token service into
// the externally observed authentication operations.
type Service struct {
	users        *user.Service
	otps         *otp.Service
	tokens       *token.Service
	loginLimiter ratelimit.Limiter
	otpLimiter   ratelimit.Limiter
	logger       *slog.Logger
}

// NewService wires the orchestrator.
func NewService(users *user.Service, otps *otp.Service, tokens *token.Service,
	loginLimiter, otpLimiter ratelimit.Limiter, logger *slog.Logger) *Service {
	return &Service{
		users:        users,
		otps:         otps,
		tokens:       tokens,
		loginLimiter: loginLimiter,
		otpLimiter:   otpLimiter,
		logger:       logger,
	}
}

// Register creates an unverified user and sends a verify-email code.
// A failed delivery does not undo the registration; the user can request a
// resend.
func (s *Service) Register(ctx context.Context, input user.CreateInput) (user.Public, error) {
	u, err := s.users.Create(ctx, input)
	if err != nil {
		return user.Public{}, err
	}
	if err := s.otps.Issue(ctx, u.Email, u.Name, otp.PurposeVerifyEmail); err != nil {
		s.logger.Warn("issue verification otp after register", "email", u.Email, "error", err)
	}
	return u.Public(), nil
}

// Login verifies credentials and opens a session. Failures are uniform
// regardless of whether the email exists.
func (s *Service) Login(ctx context.Context, email, password string) (user.Public, token.Pair, error) {
	normalized, err := user.NormalizeEmail(email)
	if err != nil {
		return user.Public{}, token.Pair{}, ErrInvalidCredentials
	}

	if ok, _ := s.loginLimiter.Allow(ctx, normalized); !ok {
		return user.Public{}, token.Pair{}, ErrTooManyAttempts
	}

	u, err := s.users.FindByEmail(ctx, normalized)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return user.Public{}, token.Pair{}, ErrInvalidCredentials
		}
		return user.Public{}, token.Pair{}, err
	}

	ok, err := s.users.VerifyPassword(u, password)
	if err != nil {
		return user.Public{}, token.Pair{}, err
	}
	if !ok {
		return user.Public{}, token.Pair{}, ErrInvalidCredentials
	}

	if err := s.loginLimiter.Reset(ctx, normalized); err != nil {
		s.logger.Warn("reset login attempts", "email", normalized, "error", err)
	}

	pair, err := s.tokens.IssuePair(ctx, u.ID)
	if err != nil {
		return user.Public{}, token.Pair{}, err
	}
	return u.Public(), pair, nil
}

// VerifyEmail consumes a verify-email code and marks the account verified.
func (s *Service) VerifyEmail(ctx context.Context, email, code string) error {
	normalized, err := user.NormalizeEmail(email)
	if err != nil {
		return err
	}

	if ok, _ := s.otpLimiter.Allow(ctx, "verify:"+normalized); !ok {
		return ErrTooManyAttempts
	}
	if err := s.otps.Verify(ctx, normalized, otp.PurposeVerifyEmail, code); err != nil {
		return err
	}

	u, err := s.users.FindByEmail(ctx, normalized)
	if err != nil {
		return err
	}
	if err := s.users.MarkVerified(ctx, u.ID); err != nil {
		return err
	}
	if err := s.otpLimiter.Reset(ctx, "verify:"+normalized); err != nil {
		s.logger.Warn("reset otp attempts", "email", normalized, "error", err)
	}
	return nil
}

// ResendVerification issues a fresh verify-email code. The response is the
// same whether or not the email belongs to an account, and a code goes out
// only when it does and the account is still unverified.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	normalized, err := user.NormalizeEmail(email)
	if err != nil {
		return err
	}
	if ok, _ := s.otpLimiter.Allow(ctx, "resend:"+normalized); !ok {
		return ErrTooManyAttempts
	}

	u, err := s.users.FindByEmail(ctx, normalized)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil
		}
		return err
	}
	if u.EmailVerified {
		return nil
	}
	return s.otps.Issue(ctx, u.Email, u.Name, otp.PurposeVerifyEmail)
}

// ForgotPassword issues a reset code when the account exists and reports
// success either way.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	normalized, err := user.NormalizeEmail(email)
	if err != nil {
		return err
	}
	if ok, _ := s.otpLimiter.Allow(ctx, "forgot:"+normalized); !ok {
		return ErrTooManyAttempts
	}

	u, err := s.users.FindByEmail(ctx, normalized)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil
		}
		return err
	}
	return s.otps.Issue(ctx, u.Email, u.Name, otp.PurposeResetPassword)
}

// ResetPassword exchanges a valid reset code for a new password and revokes
// every existing session of the user.
func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	normalized, err := user.NormalizeEmail(email)
	if err != nil {
		return err
	}

	if ok, _ := s.otpLimiter.Allow(ctx, "reset:"+normalized); !ok {
		return ErrTooManyAttempts
	}
	// A rejected password must not burn the code, so the policy check runs
	// before the one-time consume.
	if err := password.ValidatePolicy(newPassword); err != nil {
		return err
	}
	if err := s.otps.Verify(ctx, normalized, otp.PurposeResetPassword, code); err != nil {
		return err
	}

	u, err := s.users.FindByEmail(ctx, normalized)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, u.ID, newPassword); err != nil {
		return err
	}
	if err := s.tokens.RevokeAllForUser(ctx, u.ID, ""); err != nil {
		s.logger.Warn("revoke sessions after reset", "user_id", u.ID, "error", err)
	}
	if err := s.otpLimiter.Reset(ctx, "reset:"+normalized); err != nil {
		s.logger.Warn("reset otp attempts", "email", normalized, "error", err)
	}
	return nil
}

// ChangePassword replaces the password for an authenticated user and ends
// every other session so a stolen token cannot outlive the change.
func (s *Service) ChangePassword(ctx context.Context, id token.Identity, currentPassword, newPassword string) error {
	u, err := s.users.FindByID(ctx, id.UserID)
	if err != nil {
		return err
	}
	ok, err := s.users.VerifyPassword(u, currentPassword)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.E(apperr.KindUnauthorized, "current password is incorrect")
	}
	if err := s.users.UpdatePassword(ctx, u.ID, newPassword); err != nil {
		return err
	}
	if err := s.tokens.RevokeAllForUser(ctx, u.ID, id.SessionID); err != nil {
		s.logger.Warn("revoke other sessions after password change", "user_id", u.ID, "error", err)
	}
	return nil
}

// Logout revokes the calling session.
func (s *Service) Logout(ctx context.Context, id token.Identity) error {
	return s.tokens.RevokeSession(ctx, id.SessionID)
}

// Profile returns the public attributes of the authenticated user.
func (s *Service) Profile(ctx context.Context, id token.Identity) (user.Public, error) {
	u, err := s.users.FindByID(ctx, id.UserID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			// Token valid but subject gone: an auth failure, not a 404.
			return user.Public{}, apperr.E(apperr.KindUnauthorized, "user no longer exists")
		}
		return user.Public{}, err
	}
	return u.Public(), nil
}

// Refresh rotates a refresh token into a new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (token.Pair, error) {
	pair, err := s.tokens.Rotate(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, token.ErrReused) {
			s.logger.Warn("refresh token reuse detected; session chain revoked")
		}
		return token.Pair{}, err
	}
	return pair, nil
}
