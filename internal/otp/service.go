package otp

import (
	"context"
	"log/slog"
	"time"

	"github.com/veloshop/veloshop_auth/internal/apperr"
	"github.com/veloshop/veloshop_auth/internal/notification"
)

// Options configures code lifetimes and notifier behavior.
type Options struct {
	VerifyTTL     time.Duration
	ResetTTL      time.Duration
	NotifyTimeout time.Duration
}

// Service issues and verifies one-time codes. Issued codes go to the
// notifier only; they are never returned to the caller.
type Service struct {
	store    Store
	notifier notification.Notifier
	logger   *slog.Logger
	opts     Options
}

// NewService builds the OTP issuer.
func NewService(store Store, notifier notification.Notifier, logger *slog.Logger, opts Options) *Service {
	if opts.VerifyTTL <= 0 {
		opts.VerifyTTL = 10 * time.Minute
	}
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = 15 * time.Minute
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 5 * time.Second
	}
	return &Service{store: store, notifier: notifier, logger: logger, opts: opts}
}

func (s *Service) ttl(purpose Purpose) time.Duration {
	if purpose == PurposeResetPassword {
		return s.opts.ResetTTL
	}
	return s.opts.VerifyTTL
}

func kindFor(purpose Purpose) string {
	if purpose == PurposeResetPassword {
		return notification.KindPasswordReset
	}
	return notification.KindEmailVerification
}

// Issue generates a fresh code for the (email, purpose) pair, replacing any
// outstanding one, and hands it to the notifier. Delivery failure does not
// fail the issue: the code stays valid until expiry either way.
func (s *Service) Issue(ctx context.Context, email, name string, purpose Purpose) error {
	code, err := generateCode()
	if err != nil {
		return apperr.Wrap(apperr.KindTransient, "issue otp", err)
	}

	ttl := s.ttl(purpose)
	expiresAt := time.Now().Add(ttl)
	if err := s.store.Save(ctx, email, purpose, hashCode(code), expiresAt); err != nil {
		return err
	}

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.NotifyTimeout)
	defer cancel()
	msg := notification.Message{
		Kind:        kindFor(purpose),
		Destination: email,
		Name:        name,
		Code:        code,
		ExpiresIn:   ttl,
	}
	if err := s.notifier.Send(notifyCtx, msg); err != nil {
		s.logger.Warn("otp delivery failed", "kind", msg.Kind, "destination", email, "error", err)
	}
	return nil
}

// Verify consumes the code on match. Mismatches do not consume; attempt
// budgets are the caller's policy, enforced around this call.
func (s *Service) Verify(ctx context.Context, email string, purpose Purpose, code string) error {
	if len(code) != codeDigits {
		return ErrMismatch
	}
	return s.store.Consume(ctx, email, purpose, hashCode(code))
}
