package token

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestService(store SessionStore) *Service {
	return NewService(store, Options{
		AccessSecret:  []byte("test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	})
}

func newRedisSessionStore(t *testing.T) *RedisStore {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })
	return NewRedisStore(cache)
}

func TestIssueAndVerify(t *testing.T) {
	svc := newTestService(NewMemoryStore())
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected both tokens")
	}

	id, err := svc.VerifyAccess(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.UserID != "user-1" {
		t.Fatalf("unexpected subject %s", id.UserID)
	}
}

func TestVerifyRejectsGarbageAndWrongType(t *testing.T) {
	svc := newTestService(NewMemoryStore())
	ctx := context.Background()

	if _, err := svc.VerifyAccess(ctx, "not-a-token"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected invalid, got %v", err)
	}

	pair, err := svc.IssuePair(ctx, "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	// A refresh token must not pass as an access token.
	if _, err := svc.VerifyAccess(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected invalid, got %v", err)
	}
	// Nor the other way around.
	if _, err := svc.Rotate(ctx, pair.AccessToken); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected invalid, got %v", err)
	}
}

func TestVerifyExpiredAccess(t *testing.T) {
	svc := NewService(NewMemoryStore(), Options{
		AccessSecret:  []byte("test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
		AccessTTL:     time.Millisecond,
		RefreshTTL:    time.Hour,
	})
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := svc.VerifyAccess(ctx, pair.AccessToken); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected expired, got %v", err)
	}
}

func TestRevokeSessionKillsAccessImmediately(t *testing.T) {
	svc := newTestService(NewMemoryStore())
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	id, err := svc.VerifyAccess(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if err := svc.RevokeSession(ctx, id.SessionID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := svc.VerifyAccess(ctx, pair.AccessToken); !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected revoked, got %v", err)
	}
	if _, err := svc.Rotate(ctx, pair.RefreshToken); !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected revoked refresh, got %v", err)
	}
}

func TestRotateSingleUse(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		runRotateSingleUse(t, NewMemoryStore())
	})
	t.Run("redis", func(t *testing.T) {
		runRotateSingleUse(t, newRedisSessionStore(t))
	})
}

func runRotateSingleUse(t *testing.T, store SessionStore) {
	svc := newTestService(store)
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	next, err := svc.Rotate(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatalf("rotation must mint a new refresh token")
	}

	// Replaying the old refresh token is reuse and revokes the chain.
	if _, err := svc.Rotate(ctx, pair.RefreshToken); !errors.Is(err, ErrReused) {
		t.Fatalf("expected reused, got %v", err)
	}
	if _, err := svc.VerifyAccess(ctx, next.AccessToken); !errors.Is(err, ErrRevoked) {
		t.Fatalf("access must die with the chain, got %v", err)
	}
	if _, err := svc.Rotate(ctx, next.RefreshToken); !errors.Is(err, ErrRevoked) {
		t.Fatalf("refresh must die with the chain, got %v", err)
	}
}

func TestConcurrentRotateExactlyOneWinner(t *testing.T) {
	svc := newTestService(newRedisSessionStore(t))
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	const racers = 8
	var wg sync.WaitGroup
	results := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Rotate(ctx, pair.RefreshToken)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, reused int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrReused) || errors.Is(err, ErrRevoked):
			reused++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
	if reused != racers-1 {
		t.Fatalf("expected %d losers, got %d", racers-1, reused)
	}
}

func TestRevokeAllForUserKeepsCurrent(t *testing.T) {
	svc := newTestService(newRedisSessionStore(t))
	ctx := context.Background()

	current, err := svc.IssuePair(ctx, "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	other, err := svc.IssuePair(ctx, "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	id, err := svc.VerifyAccess(ctx, current.AccessToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if err := svc.RevokeAllForUser(ctx, "user-1", id.SessionID); err != nil {
		t.Fatalf("revoke all: %v", err)
	}
	if _, err := svc.VerifyAccess(ctx, current.AccessToken); err != nil {
		t.Fatalf("kept session must stay live: %v", err)
	}
	if _, err := svc.VerifyAccess(ctx, other.AccessToken); !errors.Is(err, ErrRevoked) {
		t.Fatalf("other session must be revoked, got %v", err)
	}

	// Revoking everything ends the kept session too.
	if err := svc.RevokeAllForUser(ctx, "user-1", ""); err != nil {
		t.Fatalf("revoke all: %v", err)
	}
	if _, err := svc.VerifyAccess(ctx, current.AccessToken); !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected revoked, got %v", err)
	}
}
