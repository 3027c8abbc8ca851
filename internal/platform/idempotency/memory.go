package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps keys in process memory. It serves local development and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

// Begin implements Store.
func (s *MemoryStore) Begin(_ context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Entry, bool, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now = now.UTC()
	id := documentID(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[id]; ok && !existing.expired(now) {
		if existing.Fingerprint != fingerprint {
			return Entry{}, false, ErrKeyReused
		}
		return existing, false, nil
	}
	entry := Entry{
		Key:         key,
		Fingerprint: fingerprint,
		State:       StateInFlight,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	s.entries[id] = entry
	return entry, true, nil
}

// Finish implements Store.
func (s *MemoryStore) Finish(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := documentID(entry.Key)
	if existing, ok := s.entries[id]; ok && existing.Fingerprint != entry.Fingerprint {
		return ErrKeyReused
	}
	entry.State = StateDone
	entry.Body = append([]byte(nil), entry.Body...)
	s.entries[id] = entry
	return nil
}

// Abandon implements Store.
func (s *MemoryStore) Abandon(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, documentID(key))
	return nil
}

// Purge implements Store.
func (s *MemoryStore) Purge(_ context.Context, now time.Time, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, entry := range s.entries {
		if limit > 0 && removed >= limit {
			break
		}
		if entry.expired(now) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed, nil
}
