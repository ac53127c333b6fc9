package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryLimiterWindow(t *testing.T) {
	l := NewMemoryLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "ada@example.com")
		if err != nil || !ok {
			t.Fatalf("attempt %d should be allowed, ok=%v err=%v", i, ok, err)
		}
	}
	if ok, _ := l.Allow(ctx, "ada@example.com"); ok {
		t.Fatalf("fourth attempt should be denied")
	}
	if ok, _ := l.Allow(ctx, "bob@example.com"); !ok {
		t.Fatalf("separate key should not be affected")
	}

	if err := l.Reset(ctx, "ada@example.com"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if ok, _ := l.Allow(ctx, "ada@example.com"); !ok {
		t.Fatalf("attempt after reset should be allowed")
	}
}

func TestRedisLimiter(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	l := NewRedisLimiter(cache, "login", 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if ok, _ := l.Allow(ctx, "ada@example.com"); !ok {
			t.Fatalf("attempt %d should be allowed", i)
		}
	}
	if ok, _ := l.Allow(ctx, "ada@example.com"); ok {
		t.Fatalf("third attempt should be denied")
	}

	// Counters expire with the window.
	mr.FastForward(2 * time.Minute)
	if ok, _ := l.Allow(ctx, "ada@example.com"); !ok {
		t.Fatalf("attempt after window should be allowed")
	}
}

// failExpireHook lets every command through except EXPIRE.
type failExpireHook struct{}

func (failExpireHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (failExpireHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if cmd.Name() == "expire" {
			err := errors.New("expire unavailable")
			cmd.SetErr(err)
			return err
		}
		return next(ctx, cmd)
	}
}

func (failExpireHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestRedisLimiterDropsCounterWhenExpireFails(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()
	cache.AddHook(failExpireHook{})

	l := NewRedisLimiter(cache, "login", 1, time.Minute)
	ctx := context.Background()

	if ok, err := l.Allow(ctx, "ada@example.com"); err != nil || !ok {
		t.Fatalf("attempt must fail open when expire fails, ok=%v err=%v", ok, err)
	}
	// The counter must not survive without an expiry, or the key would be
	// locked out forever.
	if mr.Exists("rl:login:ada@example.com") {
		t.Fatalf("counter without expiry must be dropped")
	}
}

func TestRedisLimiterFailsOpen(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()
	mr.Close() // simulate outage

	l := NewRedisLimiter(cache, "login", 1, time.Minute)
	if ok, err := l.Allow(context.Background(), "ada@example.com"); err != nil || !ok {
		t.Fatalf("limiter must fail open when redis is down, ok=%v err=%v", ok, err)
	}
}
