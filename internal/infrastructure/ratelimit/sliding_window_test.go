package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *testClock {
	return &testClock{now: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func allowN(t *testing.T, l *SlidingWindow, key string, n int) []bool {
	t.Helper()
	out := make([]bool, n)
	for i := range out {
		ok, err := l.Allow(context.Background(), key)
		require.NoError(t, err)
		out[i] = ok
	}
	return out
}

func TestSlidingWindow_AuthBucket(t *testing.T) {
	clock := newClock()
	l := NewSlidingWindow(AuthConfig(), clock.Now)

	got := allowN(t, l, "10.0.0.1", 6)
	assert.Equal(t, []bool{true, true, true, true, true, false}, got)
	assert.Equal(t, 0, l.Remaining("10.0.0.1"))

	clock.Advance(15*time.Minute + time.Second)
	ok, err := l.Allow(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok, "requests older than the window must expire")
}

func TestSlidingWindow_RejectionsAreNotRecorded(t *testing.T) {
	clock := newClock()
	l := NewSlidingWindow(Config{Max: 2, Window: time.Minute}, clock.Now)

	allowN(t, l, "k", 2)
	clock.Advance(30 * time.Second)
	// Rejected attempts must not extend the window.
	assert.Equal(t, []bool{false, false, false}, allowN(t, l, "k", 3))

	clock.Advance(30 * time.Second)
	assert.Equal(t, []bool{true, true, false}, allowN(t, l, "k", 3))
}

func TestSlidingWindow_SlidesPerRequest(t *testing.T) {
	clock := newClock()
	l := NewSlidingWindow(Config{Max: 3, Window: 10 * time.Minute}, clock.Now)

	allowN(t, l, "k", 1) // t=0
	clock.Advance(4 * time.Minute)
	allowN(t, l, "k", 2) // t=4
	assert.Equal(t, []bool{false}, allowN(t, l, "k", 1))

	clock.Advance(6 * time.Minute) // t=10: the t=0 hit expires, the t=4 hits remain
	assert.Equal(t, []bool{true, false}, allowN(t, l, "k", 2))
}

func TestSlidingWindow_KeysAreIndependent(t *testing.T) {
	l := NewSlidingWindow(Config{Max: 1, Window: time.Minute}, newClock().Now)

	assert.Equal(t, []bool{true, false}, allowN(t, l, "a", 2))
	assert.Equal(t, []bool{true}, allowN(t, l, "b", 1))
	assert.Equal(t, 1, l.Limit())
	assert.Equal(t, time.Minute, l.Window())
}

func TestSlidingWindow_Cleanup(t *testing.T) {
	clock := newClock()
	l := NewSlidingWindow(Config{Max: 3, Window: time.Minute}, clock.Now)

	allowN(t, l, "old", 1)
	clock.Advance(45 * time.Second)
	allowN(t, l, "fresh", 1)
	clock.Advance(30 * time.Second)

	l.Cleanup()
	assert.Equal(t, 1, l.keys())
	assert.Equal(t, 3, l.Remaining("old"))
	assert.Equal(t, 2, l.Remaining("fresh"))
}

func TestSlidingWindow_Concurrent(t *testing.T) {
	l := NewSlidingWindow(Config{Max: 50, Window: time.Hour}, newClock().Now)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _ := l.Allow(context.Background(), "shared")
			if ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func TestNewSlidingWindow_Defaults(t *testing.T) {
	l := NewSlidingWindow(Config{}, nil)
	assert.Equal(t, 100, l.Limit())
	assert.Equal(t, 15*time.Minute, l.Window())
}
