package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps last-action timestamps in a mutex-guarded map with a
// periodic janitor, so the map does not grow without bound.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	last      time.Time
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
	}
}

func (s *MemoryStore) Last(ctx context.Context, key string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if !ok {
		return time.Time{}, false, nil
	}
	if time.Now().After(ent.expiresAt) {
		delete(s.entries, key)
		return time.Time{}, false, nil
	}
	return ent.last, true, nil
}

func (s *MemoryStore) Mark(ctx context.Context, key string, t time.Time, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = memoryEntry{last: t, expiresAt: t.Add(ttl)}
	return nil
}

// Cleanup drops expired entries.
func (s *MemoryStore) Cleanup() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if now.After(ent.expiresAt) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor cleans expired entries every interval until ctx is done.
func (s *MemoryStore) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 2 * time.Minute
	}

	t := time.NewTicker(interval)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
