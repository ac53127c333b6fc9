package otp

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/veloshop/veloshop_auth/internal/apperr"
)

const otpKeyPrefix = "otp"

// consumeScript atomically resolves a candidate code against the stored
// record: 1 = consumed, -1 = missing, -2 = expired, -3 = mismatch. Expired
// records are deleted; mismatches are kept for bounded retries. Comparing
// digests rather than codes keeps the equality check timing-irrelevant.
var consumeScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then return -1 end
local sep = string.find(v, ':')
local hash = string.sub(v, 1, sep - 1)
local exp = tonumber(string.sub(v, sep + 1))
if tonumber(ARGV[2]) > exp then
  redis.call('DEL', KEYS[1])
  return -2
end
if hash ~= ARGV[1] then return -3 end
redis.call('DEL', KEYS[1])
return 1
`)

// RedisStore keeps OTP records in Redis keyed by (purpose, email).
type RedisStore struct {
	cache *redis.Client
}

// NewRedisStore builds a Redis-backed OTP store.
func NewRedisStore(cache *redis.Client) *RedisStore {
	return &RedisStore{cache: cache}
}

func otpKey(email string, purpose Purpose) string {
	return otpKeyPrefix + ":" + string(purpose) + ":" + email
}

// Save writes the record with a TTL. A single SET replaces whatever code was
// outstanding for the pair, which is the required invalidate-prior step.
func (s *RedisStore) Save(ctx context.Context, email string, purpose Purpose, codeHash string, expiresAt time.Time) error {
	value := fmt.Sprintf("%s:%d", codeHash, expiresAt.Unix())
	ttl := time.Until(expiresAt) + expiryGrace
	if err := s.cache.Set(ctx, otpKey(email, purpose), value, ttl).Err(); err != nil {
		return apperr.Wrap(apperr.KindTransient, "save otp", err)
	}
	return nil
}

// Consume runs the atomic check-and-delete.
func (s *RedisStore) Consume(ctx context.Context, email string, purpose Purpose, codeHash string) error {
	res, err := consumeScript.Run(ctx, s.cache, []string{otpKey(email, purpose)}, codeHash, time.Now().Unix()).Int()
	if err != nil {
		return apperr.Wrap(apperr.KindTransient, "consume otp", err)
	}
	switch res {
	case 1:
		return nil
	case -2:
		return ErrExpired
	case -3:
		return ErrMismatch
	default:
		return ErrNotFound
	}
}
