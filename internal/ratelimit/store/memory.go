package store

import (
	"context"
	"sync"
	"time"
)

// entry represents a stored counter with expiration.
type entry struct {
	value      int64
	expiration time.Time
}

// MemoryStore implements Store using process-local memory.
type MemoryStore struct {
	mu     sync.Mutex
	data   map[string]*entry
	ticker *time.Ticker
	done   chan struct{}
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithCleanupInterval(time.Minute)
}

// NewMemoryStoreWithCleanupInterval creates a new in-memory store with a
// custom cleanup interval.
func NewMemoryStoreWithCleanupInterval(interval time.Duration) *MemoryStore {
	s := &MemoryStore{
		data:   make(map[string]*entry),
		ticker: time.NewTicker(interval),
		done:   make(chan struct{}),
	}

	go s.cleanupLoop()

	return s
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, key string) (int64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	if !ok {
		return 0, &ErrKeyNotFound{Key: key}
	}

	if !e.expiration.IsZero() && time.Now().After(e.expiration) {
		delete(s.data, key)
		return 0, &ErrKeyNotFound{Key: key}
	}

	return e.value, nil
}

// IncrementWithExpiry implements Store.
func (s *MemoryStore) IncrementWithExpiry(ctx context.Context, key string, delta int64, expiration time.Duration) (int64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	e, ok := s.data[key]
	if !ok || (!e.expiration.IsZero() && now.After(e.expiration)) {
		e = &entry{}
		if expiration > 0 {
			e.expiration = now.Add(expiration)
		}
		s.data[key] = e
	}

	e.value += delta
	return e.value, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.ticker.Stop()
	close(s.done)
	return nil
}

// cleanupLoop periodically removes expired counters.
func (s *MemoryStore) cleanupLoop() {
	for {
		select {
		case <-s.done:
			return
		case <-s.ticker.C:
			s.removeExpired()
		}
	}
}

// removeExpired removes all expired counters.
func (s *MemoryStore) removeExpired() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.data {
		if !e.expiration.IsZero() && now.After(e.expiration) {
			delete(s.data, key)
		}
	}
}
