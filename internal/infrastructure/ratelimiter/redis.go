package ratelimiter

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "notification-service:"

// Redis keeps bucket state in a shared redis so every replica throttles the
// same source together.
type Redis struct {
	client *redis.Client
}

func NewRedis(addr string) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
		}),
	}
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Get(ctx context.Context, key string) (int64, error) {
	v, err := r.client.Get(ctx, redisKeyPrefix+key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, ErrCacheMiss
	}
	return v, err
}

func (r *Redis) SetWithExpiration(ctx context.Context, key string, value int64, expiration time.Duration) error {
	return r.client.Set(ctx, redisKeyPrefix+key, value, expiration).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
