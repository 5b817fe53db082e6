// Package ratelimit throttles login attempts per client with fixed windows.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a fixed-window counter keyed by client identifier. Expired
// windows are swept on access, so memory stays bounded by the clients seen in
// the last window.
type MemoryStore struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	windows   map[string]*fixedWindow
	lastSweep time.Time
	now       func() time.Time
}

type fixedWindow struct {
	count   int
	resetAt time.Time
}

// NewMemoryStore allows limit attempts per identifier in each window.
func NewMemoryStore(limit int, window time.Duration) *MemoryStore {
	return &MemoryStore{
		limit:   limit,
		window:  window,
		windows: make(map[string]*fixedWindow),
		now:     time.Now,
	}
}

// Allow counts one attempt and reports whether it is within the limit.
func (s *MemoryStore) Allow(identifier string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)

	w, ok := s.windows[identifier]
	if !ok || !now.Before(w.resetAt) {
		w = &fixedWindow{resetAt: now.Add(s.window)}
		s.windows[identifier] = w
	}
	w.count++
	return w.count <= s.limit, nil
}

// Len returns the number of tracked identifiers.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// sweep drops expired windows at most once per window length.
func (s *MemoryStore) sweep(now time.Time) {
	if now.Sub(s.lastSweep) < s.window {
		return
	}
	for id, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, id)
		}
	}
	s.lastSweep = now
}

// Counter increments a key that expires window after its first increment.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisStore shares counters between API replicas.
type RedisStore struct {
	counter Counter
	prefix  string
	limit   int
	window  time.Duration
	timeout time.Duration
}

// NewRedisStore builds a store on counter, namespacing keys with prefix.
func NewRedisStore(counter Counter, prefix string, limit int, window time.Duration) *RedisStore {
	return &RedisStore{
		counter: counter,
		prefix:  prefix,
		limit:   limit,
		window:  window,
		timeout: time.Second,
	}
}

// Allow counts one attempt. Redis errors deny the attempt.
func (s *RedisStore) Allow(identifier string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.counter.Incr(ctx, s.prefix+identifier, s.window)
	if err != nil {
		return false, err
	}
	return n <= int64(s.limit), nil
}
