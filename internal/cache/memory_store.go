package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	entry     Entry
	expiresAt time.Time
}

// MemoryIdempotencyStore is a single-instance store with TTL expiry and a
// background sweeper
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	ttl     time.Duration
	stop    chan struct{}
	once    sync.Once
}

// NewMemoryIdempotencyStore creates the store and starts its sweeper
func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	s := &MemoryIdempotencyStore{
		entries: make(map[string]*memoryEntry),
		ttl:     ttl,
		stop:    make(chan struct{}),
	}
	go s.sweep(time.Minute)
	return s
}

func (s *MemoryIdempotencyStore) Acquire(ctx context.Context, key, fingerprint string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if e, ok := s.entries[key]; ok && now.Before(e.expiresAt) {
		cp := e.entry
		return &cp, nil
	}

	s.entries[key] = &memoryEntry{
		entry:     Entry{State: StatePending, Fingerprint: fingerprint, CreatedAt: now.UTC()},
		expiresAt: now.Add(s.ttl),
	}
	return nil, nil
}

func (s *MemoryIdempotencyStore) Complete(ctx context.Context, key, fingerprint string, statusCode int, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	stored := make([]byte, len(body))
	copy(stored, body)
	s.entries[key] = &memoryEntry{
		entry: Entry{
			State:       StateCompleted,
			Fingerprint: fingerprint,
			StatusCode:  statusCode,
			Body:        stored,
			CreatedAt:   now.UTC(),
		},
		expiresAt: now.Add(s.ttl),
	}
	return nil
}

func (s *MemoryIdempotencyStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// Stop ends the sweeper goroutine
func (s *MemoryIdempotencyStore) Stop() {
	s.once.Do(func() { close(s.stop) })
}

func (s *MemoryIdempotencyStore) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			now := time.Now()
			for key, e := range s.entries {
				if now.After(e.expiresAt) {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		case <-s.stop:
			return
		}
	}
}
