package ports

import (
	"context"
	"time"
)

// RateLimiter admits or rejects a request for key within a sliding window.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	// Limit and Window describe the configured threshold, for response headers.
	Limit() int
	Window() time.Duration
}
