package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares counters between replicas. The first INCR of a
// window sets its expiry.
type RedisStore struct {
	Client redis.UniversalClient
	Prefix string
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{Client: client, Prefix: "ratelimit:"}
}

func (s *RedisStore) Hit(ctx context.Context, key string, d time.Duration) (int, time.Time, error) {
	k := s.Prefix + key

	count, err := s.Client.Incr(ctx, k).Result()
	if err != nil {
		return 0, time.Time{}, err
	}
	if count == 1 {
		if err := s.Client.PExpire(ctx, k, d).Err(); err != nil {
			return 0, time.Time{}, err
		}
		return 1, time.Now().Add(d), nil
	}

	left, err := s.Client.PTTL(ctx, k).Result()
	if err != nil {
		return 0, time.Time{}, err
	}
	if left <= 0 {
		// key lost its expiry, start a fresh window
		if err := s.Client.PExpire(ctx, k, d).Err(); err != nil {
			return 0, time.Time{}, err
		}
		left = d
	}
	return int(count), time.Now().Add(left), nil
}
