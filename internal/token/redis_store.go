package token

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/veloshop/veloshop_auth/internal/apperr"
)

const (
	sessionKeyPrefix      = "session"
	userSessionsKeyPrefix = "usersessions"
)

// swapScript performs the single-use rotation check: 1 = rotated,
// -1 = session revoked/expired, -2 = rotation id stale (reuse) in which case
// the session is deleted so the stolen chain dies with it.
var swapScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then return -1 end
local sep = string.find(v, ':')
local uid = string.sub(v, 1, sep - 1)
local rid = string.sub(v, sep + 1)
if rid ~= ARGV[1] then
  redis.call('DEL', KEYS[1])
  return -2
end
redis.call('SET', KEYS[1], uid .. ':' .. ARGV[2], 'PX', ARGV[3])
return 1
`)

// RedisStore keeps session state in Redis with TTL-based eviction.
type RedisStore struct {
	cache *redis.Client
}

// NewRedisStore builds a Redis-backed session store.
func NewRedisStore(cache *redis.Client) *RedisStore {
	return &RedisStore{cache: cache}
}

func sessionKey(sessionID string) string {
	return sessionKeyPrefix + ":" + sessionID
}

func userSessionsKey(userID string) string {
	return userSessionsKeyPrefix + ":" + userID
}

func (s *RedisStore) Put(ctx context.Context, sessionID, userID, rotationID string, ttl time.Duration) error {
	pipe := s.cache.TxPipeline()
	pipe.Set(ctx, sessionKey(sessionID), userID+":"+rotationID, ttl)
	pipe.SAdd(ctx, userSessionsKey(userID), sessionID)
	pipe.Expire(ctx, userSessionsKey(userID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperr.Wrap(apperr.KindTransient, "store session", err)
	}
	return nil
}

func (s *RedisStore) Live(ctx context.Context, sessionID string) (bool, error) {
	_, err := s.cache.Get(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, apperr.Wrap(apperr.KindTransient, "check session", err)
	}
	return true, nil
}

func (s *RedisStore) Swap(ctx context.Context, sessionID, oldRotationID, newRotationID string, ttl time.Duration) error {
	res, err := swapScript.Run(ctx, s.cache, []string{sessionKey(sessionID)},
		oldRotationID, newRotationID, ttl.Milliseconds()).Int()
	if err != nil {
		return apperr.Wrap(apperr.KindTransient, "rotate session", err)
	}
	switch res {
	case 1:
		return nil
	case -2:
		return ErrReused
	default:
		return ErrRevoked
	}
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.cache.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return apperr.Wrap(apperr.KindTransient, "delete session", err)
	}
	return nil
}

func (s *RedisStore) DeleteAllForUser(ctx context.Context, userID, keepSessionID string) error {
	ids, err := s.cache.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return apperr.Wrap(apperr.KindTransient, "list sessions", err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		if id == keepSessionID {
			continue
		}
		keys = append(keys, sessionKey(id))
	}
	if keepSessionID == "" {
		keys = append(keys, userSessionsKey(userID))
	} else if len(keys) > 0 {
		removed := make([]any, 0, len(ids))
		for _, id := range ids {
			if id != keepSessionID {
				removed = append(removed, id)
			}
		}
		if err := s.cache.SRem(ctx, userSessionsKey(userID), removed...).Err(); err != nil {
			return apperr.Wrap(apperr.KindTransient, "trim sessions", err)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.cache.Del(ctx, keys...).Err(); err != nil {
		return apperr.Wrap(apperr.KindTransient, "delete sessions", err)
	}
	return nil
}
