package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/boostgw/boostgw/internal/storage"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps last-action timestamps in redis with a TTL, for
// deployments that want cooldowns to survive restarts.
type RedisStore struct {
	redis *storage.RedisClient
}

func NewRedisStore(redis *storage.RedisClient) *RedisStore {
	return &RedisStore{redis: redis}
}

func (s *RedisStore) Last(ctx context.Context, key string) (time.Time, bool, error) {
	val, err := s.redis.Get(ctx, "cooldown:"+key)
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}

	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		// Unreadable entry, treat as absent
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms), true, nil
}

func (s *RedisStore) Mark(ctx context.Context, key string, t time.Time, ttl time.Duration) error {
	return s.redis.Set(ctx, "cooldown:"+key, strconv.FormatInt(t.UnixMilli(), 10), ttl)
}
