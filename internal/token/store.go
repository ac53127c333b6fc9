package token

import (
	"context"
	"time"
)

// SessionStore tracks live sessions and their current rotation identifier.
// A session missing from the store is revoked; entries evict with the
// refresh TTL so the revocation set never grows without bound.
type SessionStore interface {
	// Put registers a session with its current rotation id.
	Put(ctx context.Context, sessionID, userID, rotationID string, ttl time.Duration) error
	// Live reports whether the session has not been revoked.
	Live(ctx context.Context, sessionID string) (bool, error)
	// Swap atomically advances the rotation id if oldRotationID is current.
	// A stale oldRotationID means the refresh token was already used: the
	// whole session is deleted and ErrReused returned.
	Swap(ctx context.Context, sessionID, oldRotationID, newRotationID string, ttl time.Duration) error
	// Delete revokes one session.
	Delete(ctx context.Context, sessionID string) error
	// DeleteAllForUser revokes every session of a user except keepSessionID
	// (empty keeps none).
	DeleteAllForUser(ctx context.Context, userID, keepSessionID string) error
}
