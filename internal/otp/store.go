package otp

import (
	"context"
	"time"
)

// Store persists at most one active code per (email, purpose) pair.
//
// Save replaces any prior record for the pair in one step, so two
// outstanding codes are never simultaneously valid. Consume atomically
// checks the candidate digest and deletes the record on match; a mismatch
// leaves the record in place so the caller may retry within its rate budget.
type Store interface {
	Save(ctx context.Context, email string, purpose Purpose, codeHash string, expiresAt time.Time) error
	Consume(ctx context.Context, email string, purpose Purpose, codeHash string) error
}

// Records outlive their logical expiry by a grace period so Consume can
// report Expired instead of NotFound shortly after the deadline.
const expiryGrace = 5 * time.Minute
