package ratelimiter

import (
	"context"
	"errors"
	"time"
)

var ErrCacheMiss = errors.New("cache miss")

// GetterSetter stores the bucket state. The in-memory store is per process;
// the redis store shares buckets across replicas.
type GetterSetter interface {
	Get(ctx context.Context, key string) (int64, error)
	SetWithExpiration(ctx context.Context, key string, value int64, expiration time.Duration) error
	Close() error
}
