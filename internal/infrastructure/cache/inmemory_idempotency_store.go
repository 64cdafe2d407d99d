// Package cache holds the envelope deduplication stores. Platforms redeliver
// webhooks on timeout and on at-least-once delivery, so every envelope digest
// is remembered for a TTL and redeliveries are acknowledged without touching
// the pipeline.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/syncbridge/backend/internal/domain/shared"
	"github.com/syncbridge/backend/internal/domain/unified"
)

// EnvelopeDigest derives the deduplication key of an envelope from the
// platform, the transport signature, and the raw body. Two deliveries of the
// same platform event hash identically; a changed body or re-signed payload
// is a new digest and goes through the pipeline again.
func EnvelopeDigest(envelope *unified.WebhookEnvelope) string {
	h := sha256.New()
	h.Write([]byte(envelope.Platform))
	h.Write([]byte{'|'})
	h.Write([]byte(envelope.Signature))
	h.Write([]byte{'|'})
	h.Write(envelope.RawBody)
	return hex.EncodeToString(h.Sum(nil))
}

type digestEntry struct {
	expiresAt time.Time
}

// InMemoryIdempotencyStore keeps processed digests in a map, suitable for
// single-instance deployments and tests. A background sweeper drops expired
// digests so memory stays bounded by the TTL window.
type InMemoryIdempotencyStore struct {
	mu        sync.RWMutex
	digests   map[string]digestEntry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)

// NewInMemoryIdempotencyStore creates the store and starts its sweeper
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	store := &InMemoryIdempotencyStore{
		digests:  make(map[string]digestEntry),
		stopChan: make(chan struct{}),
	}
	store.wg.Add(1)
	go store.sweepLoop()
	return store
}

// MarkProcessed implements shared.IdempotencyStore
func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, digest string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.digests[digest]; ok && time.Now().Before(e.expiresAt) {
		return false, nil
	}
	s.digests[digest] = digestEntry{expiresAt: time.Now().Add(ttl)}
	return true, nil
}

// IsProcessed implements shared.IdempotencyStore
func (s *InMemoryIdempotencyStore) IsProcessed(_ context.Context, digest string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.digests[digest]
	if !ok || time.Now().After(e.expiresAt) {
		return false, nil
	}
	return true, nil
}

// Close stops the sweeper; safe to call multiple times
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

// Size returns the number of remembered digests
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.digests)
}

func (s *InMemoryIdempotencyStore) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *InMemoryIdempotencyStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for digest, e := range s.digests {
		if now.After(e.expiresAt) {
			delete(s.digests, digest)
		}
	}
}
