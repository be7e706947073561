package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "rl:"

// Redis is a fixed-window counter: INCR, with the TTL set on the first hit
// of each window.
type Redis struct {
	client    redis.UniversalClient
	window    time.Duration
	threshold int64
}

func NewRedis(client redis.UniversalClient, window time.Duration, threshold int) *Redis {
	return &Redis{client: client, window: window, threshold: int64(threshold)}
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	k := redisKeyPrefix + key

	count, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, k, r.window).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	return count <= r.threshold, nil
}
