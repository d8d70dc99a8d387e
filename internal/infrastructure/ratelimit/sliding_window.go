// Package ratelimit holds the in-process sliding-window rate limiter.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Config defines one limiter bucket.
type Config struct {
	// Max is the number of requests admitted per key within Window.
	Max int
	// Window is the length of the sliding window.
	Window time.Duration
}

// AuthConfig returns the default limits for credential endpoints.
func AuthConfig() Config {
	return Config{Max: 5, Window: 15 * time.Minute}
}

// APIConfig returns the default limits for the general API.
func APIConfig() Config {
	return Config{Max: 100, Window: 15 * time.Minute}
}

// SlidingWindow admits at most Max requests per key in any trailing Window.
// Rejected requests are not recorded. State lives in process memory, so each
// replica counts independently.
type SlidingWindow struct {
	cfg  Config
	now  func() time.Time
	mu   sync.Mutex
	hits map[string][]time.Time
}

// NewSlidingWindow returns a limiter for cfg. A nil now uses time.Now.
func NewSlidingWindow(cfg Config, now func() time.Time) *SlidingWindow {
	if cfg.Max <= 0 {
		cfg.Max = APIConfig().Max
	}
	if cfg.Window <= 0 {
		cfg.Window = APIConfig().Window
	}
	if now == nil {
		now = time.Now
	}
	return &SlidingWindow{cfg: cfg, now: now, hits: make(map[string][]time.Time)}
}

// Allow records a request for key and reports whether it is admitted. It
// never fails.
func (l *SlidingWindow) Allow(_ context.Context, key string) (bool, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := prune(l.hits[key], now.Add(-l.cfg.Window))
	if len(recent) >= l.cfg.Max {
		l.hits[key] = recent
		return false, nil
	}
	l.hits[key] = append(recent, now)
	return true, nil
}

// Remaining returns how many more requests key may make right now.
func (l *SlidingWindow) Remaining(key string) int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	n := l.cfg.Max - len(prune(l.hits[key], now.Add(-l.cfg.Window)))
	if n < 0 {
		return 0
	}
	return n
}

func (l *SlidingWindow) Limit() int            { return l.cfg.Max }
func (l *SlidingWindow) Window() time.Duration { return l.cfg.Window }

// Cleanup drops keys with no request inside the window.
func (l *SlidingWindow) Cleanup() {
	cutoff := l.now().Add(-l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, times := range l.hits {
		recent := prune(times, cutoff)
		if len(recent) == 0 {
			delete(l.hits, key)
			continue
		}
		l.hits[key] = recent
	}
}

// StartCleanup runs Cleanup once per window until ctx is done.
func (l *SlidingWindow) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.Window)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (l *SlidingWindow) keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}

// prune drops timestamps at or before cutoff. times is in insertion order,
// which is chronological for a monotonic clock.
func prune(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	return times[i:]
}
