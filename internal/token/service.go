package token

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/veloshop/veloshop_auth/internal/apperr"
)

// Verification failures. All of them read as authentication errors to the
// HTTP layer; ErrReused additionally means the session chain was revoked.
var (
	ErrInvalid = apperr.E(apperr.KindUnauthorized, "invalid token")
	ErrExpired = apperr.E(apperr.KindUnauthorized, "token has expired")
	ErrRevoked = apperr.E(apperr.KindUnauthorized, "session revoked")
	ErrReused  = apperr.E(apperr.KindUnauthorized, "refresh token already used")
)

// Identity names the subject a verified access token belongs to.
type Identity struct {
	UserID    string
	SessionID string
}

// Pair is an access/refresh token pair for one session.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Options carries signing secrets and lifetimes.
type Options struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Service mints, verifies, rotates and revokes token pairs. Session
// liveness is checked on every access verification, so revocation takes
// effect immediately even though tokens are never physically destroyed.
type Service struct {
	sessions SessionStore
	opts     Options
}

// NewService builds the token service.
func NewService(sessions SessionStore, opts Options) *Service {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 15 * time.Minute
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 7 * 24 * time.Hour
	}
	return &Service{sessions: sessions, opts: opts}
}

// IssuePair opens a new session for the user and signs both tokens.
func (s *Service) IssuePair(ctx context.Context, userID string) (Pair, error) {
	sessionID := uuid.New().String()
	rotationID := uuid.New().String()

	if err := s.sessions.Put(ctx, sessionID, userID, rotationID, s.opts.RefreshTTL); err != nil {
		return Pair{}, err
	}
	return s.sign(userID, sessionID, rotationID)
}

// VerifyAccess validates signature, expiry and session liveness.
func (s *Service) VerifyAccess(ctx context.Context, tokenString string) (Identity, error) {
	claims, err := parseAccess(tokenString, s.opts.AccessSecret)
	if err != nil {
		return Identity{}, err
	}
	live, err := s.sessions.Live(ctx, claims.SessionID)
	if err != nil {
		return Identity{}, err
	}
	if !live {
		return Identity{}, ErrRevoked
	}
	return Identity{UserID: claims.Subject, SessionID: claims.SessionID}, nil
}

// Rotate exchanges a refresh token for a fresh pair. Each refresh token is
// single-use: presenting a stale one revokes the whole session chain and
// fails with ErrReused.
func (s *Service) Rotate(ctx context.Context, refreshToken string) (Pair, error) {
	claims, err := parseRefresh(refreshToken, s.opts.RefreshSecret)
	if err != nil {
		return Pair{}, err
	}

	newRotationID := uuid.New().String()
	if err := s.sessions.Swap(ctx, claims.SessionID, claims.RotationID, newRotationID, s.opts.RefreshTTL); err != nil {
		return Pair{}, err
	}
	return s.sign(claims.Subject, claims.SessionID, newRotationID)
}

// RevokeSession ends one session; its access and refresh tokens stop
// working immediately.
func (s *Service) RevokeSession(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(ctx, sessionID)
}

// RevokeAllForUser ends every session of the user except keepSessionID
// (empty revokes all of them).
func (s *Service) RevokeAllForUser(ctx context.Context, userID, keepSessionID string) error {
	return s.sessions.DeleteAllForUser(ctx, userID, keepSessionID)
}

func (s *Service) sign(userID, sessionID, rotationID string) (Pair, error) {
	access, err := signAccess(userID, sessionID, s.opts.AccessSecret, s.opts.AccessTTL)
	if err != nil {
		return Pair{}, apperr.Wrap(apperr.KindTransient, "sign access token", err)
	}
	refresh, err := signRefresh(userID, sessionID, rotationID, s.opts.RefreshSecret, s.opts.RefreshTTL)
	if err != nil {
		return Pair{}, apperr.Wrap(apperr.KindTransient, "sign refresh token", err)
	}
	return Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.opts.AccessTTL.Seconds()),
	}, nil
}
