package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(limit int, window time.Duration) (*MemoryStore, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewMemoryStore(limit, window)
	s.now = clock.Now
	return s, clock
}

func TestMemoryStore_FixedWindow(t *testing.T) {
	s, clock := newTestStore(5, 15*time.Minute)

	for i := 1; i <= 5; i++ {
		ok, err := s.Allow("10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok, "attempt %d", i)
	}

	ok, _ := s.Allow("10.0.0.1")
	assert.False(t, ok, "6th attempt inside the window")

	ok, _ = s.Allow("10.0.0.2")
	assert.True(t, ok, "other clients are counted separately")

	clock.Advance(15 * time.Minute)
	ok, _ = s.Allow("10.0.0.1")
	assert.True(t, ok, "new window after expiry")
}

func TestMemoryStore_SweepsExpiredWindows(t *testing.T) {
	s, clock := newTestStore(1, time.Minute)

	_, _ = s.Allow("a")
	_, _ = s.Allow("b")
	assert.Equal(t, 2, s.Len())

	clock.Advance(2 * time.Minute)
	_, _ = s.Allow("c")
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_Concurrent(t *testing.T) {
	s := NewMemoryStore(50, time.Minute)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := s.Allow("shared"); ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
}

type stubCounter struct {
	counts map[string]int64
	err    error
	keys   []string
}

func (c *stubCounter) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	if c.err != nil {
		return 0, c.err
	}
	c.keys = append(c.keys, key)
	c.counts[key]++
	return c.counts[key], nil
}

func TestRedisStore_Allow(t *testing.T) {
	counter := &stubCounter{counts: map[string]int64{}}
	s := NewRedisStore(counter, "ratelimit:login:", 2, time.Minute)

	ok, err := s.Allow("10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = s.Allow("10.0.0.1")
	assert.True(t, ok)
	ok, _ = s.Allow("10.0.0.1")
	assert.False(t, ok)

	assert.Equal(t, "ratelimit:login:10.0.0.1", counter.keys[0])
}

func TestRedisStore_FailsClosed(t *testing.T) {
	s := NewRedisStore(&stubCounter{err: errors.New("connection refused")}, "rl:", 5, time.Minute)

	ok, err := s.Allow("10.0.0.1")
	assert.Error(t, err)
	assert.False(t, ok)
}
