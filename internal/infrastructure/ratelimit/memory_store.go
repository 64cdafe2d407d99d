package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process CounterStore for single-instance deployments
// and tests. Expired counters are swept lazily on write.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
	clock    Clock
}

type memoryCounter struct {
	value     int64
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-process counter store
func NewMemoryStore(clock Clock) *MemoryStore {
	if clock == nil {
		clock = SystemClock()
	}
	return &MemoryStore{
		counters: make(map[string]*memoryCounter),
		clock:    clock,
	}
}

// Incr implements CounterStore
func (s *MemoryStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.sweep(now)

	counter, ok := s.counters[key]
	if !ok || now.After(counter.expiresAt) {
		counter = &memoryCounter{expiresAt: now.Add(ttl)}
		s.counters[key] = counter
	}
	counter.value++
	return counter.value, nil
}

func (s *MemoryStore) sweep(now time.Time) {
	if len(s.counters) < 1024 {
		return
	}
	for key, counter := range s.counters {
		if now.After(counter.expiresAt) {
			delete(s.counters, key)
		}
	}
}
