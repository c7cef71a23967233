package store

import (
	"context"
	"path"
	"sync"
	"time"
)

// entry is a counter value with its expiration time. A zero expiration
// means the entry never expires.
type entry struct {
	value     int64
	expiresAt time.Time
}

// MemoryStore implements Store using in-process storage. It is intended
// for tests and single-instance development setups; production uses the
// Redis store.
type MemoryStore struct {
	mu      sync.Mutex
	data    map[string]*entry
	janitor *time.Ticker
	done    chan struct{}
	closed  bool
}

// NewMemoryStore creates a new in-memory store with a one-minute
// expired-entry janitor.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithJanitorInterval(time.Minute)
}

// NewMemoryStoreWithJanitorInterval creates a new in-memory store with a
// custom janitor interval.
func NewMemoryStoreWithJanitorInterval(interval time.Duration) *MemoryStore {
	s := &MemoryStore{
		data:    make(map[string]*entry),
		janitor: time.NewTicker(interval),
		done:    make(chan struct{}),
	}

	go s.runJanitor()

	return s
}

// runJanitor periodically removes expired entries.
func (s *MemoryStore) runJanitor() {
	for {
		select {
		case <-s.done:
			return
		case now := <-s.janitor.C:
			s.mu.Lock()
			for key, e := range s.data {
				if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
					delete(s.data, key)
				}
			}
			s.mu.Unlock()
		}
	}
}

// get returns the live entry for key, discarding it if expired.
// Callers must hold s.mu.
func (s *MemoryStore) get(key string, now time.Time) *entry {
	e, ok := s.data[key]
	if !ok {
		return nil
	}
	if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
		delete(s.data, key)
		return nil
	}
	return e
}

// Increment implements Store.
func (s *MemoryStore) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	return s.IncrementWithExpiry(ctx, key, delta, 0)
}

// IncrementWithExpiry implements Store. The whole operation runs under
// one lock, so the increment and the conditional expiry are atomic.
func (s *MemoryStore) IncrementWithExpiry(ctx context.Context, key string, delta int64, expiration time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.get(key, now)
	if e == nil {
		e = &entry{}
		if expiration > 0 {
			e.expiresAt = now.Add(expiration)
		}
		s.data[key] = e
	}
	e.value += delta

	return e.value, nil
}

// Keys implements Store. The pattern uses path.Match glob syntax, which
// covers the prefix globs the limiter issues.
func (s *MemoryStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []string
	for key := range s.data {
		if s.get(key, now) == nil {
			continue
		}
		if ok, err := path.Match(pattern, key); err == nil && ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.janitor.Stop()
	close(s.done)
	return nil
}
