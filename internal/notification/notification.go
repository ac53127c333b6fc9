package notification

import (
	"context"
	"log/slog"
	"time"
)

const (
	// KindEmailVerification indicates a verify-email OTP delivery.
	KindEmailVerification = "email_verification"
	// KindPasswordReset indicates a password-reset OTP delivery.
	KindPasswordReset = "password_reset"
)

// Message describes an OTP delivery payload.
type Message struct {
	Kind        string
	Destination string
	Name        string
	Code        string
	ExpiresIn   time.Duration
}

// Notifier delivers one-time codes to downstream channels (email, SMS).
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes deliveries to the
// logger. It prints the code, which is acceptable only for local runs.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("otp notification",
		"kind", message.Kind,
		"destination", message.Destination,
		"code", message.Code,
		"expires_in", message.ExpiresIn.String(),
	)
	return nil
}
