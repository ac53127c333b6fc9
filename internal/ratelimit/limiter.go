package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter bounds how often a keyed action may happen inside a fixed window.
// The orchestrator uses it around login attempts and OTP verification.
type Limiter interface {
	// Allow records one attempt for key and reports whether it is still
	// within budget.
	Allow(ctx context.Context, key string) (bool, error)
	// Reset clears the counter for key, e.g. after a successful login.
	Reset(ctx context.Context, key string) error
}

// RedisLimiter counts attempts in Redis with a fixed expiring window.
// Cache errors fail open: an unavailable limiter must not lock everyone out.
type RedisLimiter struct {
	cache  *redis.Client
	prefix string
	max    int
	window time.Duration
}

// NewRedisLimiter builds a Redis-backed fixed-window limiter.
func NewRedisLimiter(cache *redis.Client, prefix string, max int, window time.Duration) *RedisLimiter {
	if max <= 0 {
		max = 5
	}
	return &RedisLimiter{cache: cache, prefix: prefix, max: max, window: window}
}

func (l *RedisLimiter) key(key string) string {
	return "rl:" + l.prefix + ":" + key
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	cnt, err := l.cache.Incr(ctx, l.key(key)).Result()
	if err != nil {
		return true, nil // fail-open on cache errors
	}
	if cnt == 1 {
		if err := l.cache.Expire(ctx, l.key(key), l.window).Err(); err != nil {
			// A counter that never expires would lock the key out for good;
			// drop it and fail open.
			l.cache.Del(ctx, l.key(key))
			return true, nil
		}
	}
	return cnt <= int64(l.max), nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.cache.Del(ctx, l.key(key)).Err()
}

type windowCount struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is the in-process equivalent for tests and local runs.
type MemoryLimiter struct {
	mu     sync.Mutex
	counts map[string]windowCount
	max    int
	window time.Duration
}

// NewMemoryLimiter builds an in-memory fixed-window limiter.
func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	if max <= 0 {
		max = 5
	}
	return &MemoryLimiter{counts: make(map[string]windowCount), max: max, window: window}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	wc, ok := l.counts[key]
	if !ok || now.After(wc.resetAt) {
		wc = windowCount{resetAt: now.Add(l.window)}
	}
	wc.count++
	l.counts[key] = wc
	return wc.count <= l.max, nil
}

func (l *MemoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.counts, key)
	return nil
}
