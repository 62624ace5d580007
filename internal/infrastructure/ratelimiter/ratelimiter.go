// Package ratelimiter is a token bucket keyed by request source. It guards
// the websocket handshake against reconnect storms.
package ratelimiter

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	bucketKeyPrefix   = "rl:bucket:"
	lastFillKeyPrefix = "rl:fill:"
	// Sources hash onto a fixed lock set so client-chosen keys cannot grow it.
	lockStripes = 256
)

type Limiter interface {
	Allow(ctx context.Context, sourceKey string) bool
	GetSourceKey(r *http.Request) string
	Remaining(ctx context.Context, sourceKey string) int
	RetryAfter() time.Duration
}

type RateLimiter struct {
	maxRatePerSecond      int
	maxRatePerMillisecond float64
	maxBurst              int
	cache                 GetterSetter
	cacheTTL              time.Duration
	sourceHeaderKey       string
	now                   func() time.Time
	// Serializes read-modify-write per source within this process.
	locks [lockStripes]sync.Mutex
}

type Options struct {
	MaxRatePerSecond int
	MaxBurst         int
	Cache            GetterSetter
	CacheTTL         time.Duration
	// SourceHeaderKey names a header set by a trusted proxy in front of the
	// service. Empty means the connection's remote address is the source.
	SourceHeaderKey string
}

func New(options Options) *RateLimiter {
	if options.Cache == nil {
		options.Cache = NewInMemory()
	}

	if options.CacheTTL == 0 {
		options.CacheTTL = 10 * time.Second
	}

	if options.MaxBurst <= 0 {
		options.MaxBurst = options.MaxRatePerSecond
	}

	return &RateLimiter{
		maxRatePerSecond:      options.MaxRatePerSecond,
		maxRatePerMillisecond: float64(options.MaxRatePerSecond) / 1000.0,
		maxBurst:              options.MaxBurst,
		cache:                 options.Cache,
		cacheTTL:              options.CacheTTL,
		sourceHeaderKey:       options.SourceHeaderKey,
		now:                   time.Now,
	}
}

type bucketState struct {
	tokens   float64
	lastFill int64 // unix milliseconds
}

func (rl *RateLimiter) getLock(sourceKey string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sourceKey))
	return &rl.locks[h.Sum32()%lockStripes]
}

// Tokens are stored in thousandths so fractional refills survive a round
// trip through an integer store.
func (rl *RateLimiter) getState(ctx context.Context, sourceKey string, now int64) bucketState {
	full := bucketState{tokens: float64(rl.maxBurst), lastFill: now}

	milliTokens, bucketErr := rl.cache.Get(ctx, bucketKeyPrefix+sourceKey)
	lastFill, fillErr := rl.cache.Get(ctx, lastFillKeyPrefix+sourceKey)

	if errors.Is(bucketErr, ErrCacheMiss) || errors.Is(fillErr, ErrCacheMiss) {
		return full
	}

	// Fail open when the store is unavailable.
	if bucketErr != nil || fillErr != nil {
		return full
	}

	return bucketState{
		tokens:   float64(milliTokens) / 1000,
		lastFill: lastFill,
	}
}

func (rl *RateLimiter) setState(ctx context.Context, sourceKey string, state bucketState) {
	_ = rl.cache.SetWithExpiration(ctx, bucketKeyPrefix+sourceKey, int64(math.Round(state.tokens*1000)), rl.cacheTTL)
	_ = rl.cache.SetWithExpiration(ctx, lastFillKeyPrefix+sourceKey, state.lastFill, rl.cacheTTL)
}

func (rl *RateLimiter) refillTokens(state bucketState, now int64) bucketState {
	elapsed := now - state.lastFill
	if elapsed <= 0 {
		return state
	}

	tokens := state.tokens + float64(elapsed)*rl.maxRatePerMillisecond
	if tokens > float64(rl.maxBurst) {
		tokens = float64(rl.maxBurst)
	}

	return bucketState{
		tokens:   tokens,
		lastFill: now,
	}
}

func (rl *RateLimiter) Allow(ctx context.Context, sourceKey string) bool {
	lock := rl.getLock(sourceKey)
	lock.Lock()
	defer lock.Unlock()

	now := rl.now().UnixMilli()
	state := rl.refillTokens(rl.getState(ctx, sourceKey, now), now)

	if state.tokens >= 1 {
		state.tokens--
		rl.setState(ctx, sourceKey, state)
		return true
	}

	rl.setState(ctx, sourceKey, state)
	return false
}

// Remaining reports the whole tokens left for sourceKey.
func (rl *RateLimiter) Remaining(ctx context.Context, sourceKey string) int {
	lock := rl.getLock(sourceKey)
	lock.Lock()
	defer lock.Unlock()

	now := rl.now().UnixMilli()
	state := rl.refillTokens(rl.getState(ctx, sourceKey, now), now)

	return int(math.Floor(state.tokens))
}

// RetryAfter is how long one token takes to refill.
func (rl *RateLimiter) RetryAfter() time.Duration {
	if rl.maxRatePerSecond <= 0 {
		return time.Second
	}
	return time.Second / time.Duration(rl.maxRatePerSecond)
}

// GetSourceKey keys on the configured proxy header when present, taking the
// last comma-separated entry since that is the one the proxy appended.
// Otherwise it keys on the remote host.
func (rl *RateLimiter) GetSourceKey(r *http.Request) string {
	if rl.sourceHeaderKey != "" {
		if values := r.Header.Values(rl.sourceHeaderKey); len(values) > 0 {
			entries := strings.Split(values[len(values)-1], ",")
			if key := strings.TrimSpace(entries[len(entries)-1]); key != "" {
				return key
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
