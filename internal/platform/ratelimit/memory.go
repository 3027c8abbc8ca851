package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"
)

type counter struct {
	count   int
	resetAt time.Time
}

// MemoryStore counts requests in process memory. Counters are not shared between instances.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]counter
	now      func() time.Time
}

// NewMemoryStore constructs an empty store. A nil clock uses time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{counters: make(map[string]counter), now: now}
}

// CheckAndIncrement implements Store.
func (s *MemoryStore) CheckAndIncrement(_ context.Context, key string, limit int, span time.Duration) (Decision, error) {
	if limit <= 0 || span <= 0 {
		return Decision{}, ErrInvalidLimit
	}
	key = strings.TrimSpace(key)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.counters[key]
	if !ok || !now.Before(current.resetAt) {
		current = counter{resetAt: now.Add(span)}
	}
	if current.count >= limit {
		return decide(current.count, limit, current.resetAt, false), nil
	}
	current.count++
	s.counters[key] = current
	return decide(current.count, limit, current.resetAt, true), nil
}

// Sweep removes expired counters and returns how many were dropped.
func (s *MemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, current := range s.counters {
		if !now.Before(current.resetAt) {
			delete(s.counters, key)
			removed++
		}
	}
	return removed, nil
}

// Len reports how many keys are tracked.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}
