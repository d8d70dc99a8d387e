package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultRateLimitPrefix = "ratelimit"

// SlidingWindowLimiter is a Redis-backed sliding-window limiter shared by all
// replicas. Each key is a sorted set of request timestamps (ms scores).
// Key format: <prefix>:<bucket>:<key>
type SlidingWindowLimiter struct {
	client redis.UniversalClient
	prefix string
	max    int
	window time.Duration
	now    func() time.Time
}

// NewSlidingWindowLimiter returns a limiter admitting max requests per window
// for each key. bucket separates independent limiters on the same Redis.
func NewSlidingWindowLimiter(client redis.UniversalClient, bucket string, max int, window time.Duration, now func() time.Time) *SlidingWindowLimiter {
	if now == nil {
		now = time.Now
	}
	return &SlidingWindowLimiter{
		client: client,
		prefix: defaultRateLimitPrefix + ":" + bucket,
		max:    max,
		window: window,
		now:    now,
	}
}

// Allow adds the request to the window and removes it again when the window
// was already full, so rejected requests are never counted.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := l.now()
	redisKey := l.key(key)
	member := strconv.FormatInt(now.UnixMilli(), 10) + ":" + uuid.NewString()
	cutoff := strconv.FormatInt(now.Add(-l.window).UnixMilli(), 10)

	var card *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, redisKey, "-inf", cutoff)
		pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixMilli()), Member: member})
		card = pipe.ZCard(ctx, redisKey)
		pipe.PExpire(ctx, redisKey, l.window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", redisKey, err)
	}

	if card.Val() <= int64(l.max) {
		return true, nil
	}
	if err := l.client.ZRem(ctx, redisKey, member).Err(); err != nil {
		return false, fmt.Errorf("rate limit %s: undo: %w", redisKey, err)
	}
	return false, nil
}

func (l *SlidingWindowLimiter) Limit() int            { return l.max }
func (l *SlidingWindowLimiter) Window() time.Duration { return l.window }

// Reset clears the window for key.
func (l *SlidingWindowLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.key(key)).Err()
}

func (l *SlidingWindowLimiter) key(k string) string {
	return fmt.Sprintf("%s:%s", l.prefix, k)
}
