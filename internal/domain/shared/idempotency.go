package shared

import (
	"context"
	"time"
)

// IdempotencyStore stores processed webhook envelope digests so that a
// redelivered envelope can be acknowledged without re-entering the pipeline.
type IdempotencyStore interface {
	// MarkProcessed marks a digest as processed with a TTL.
	// Returns true if the digest was newly marked, false if it was already processed.
	MarkProcessed(ctx context.Context, digest string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a digest has already been processed.
	IsProcessed(ctx context.Context, digest string) (bool, error)

	// Close closes the store and releases resources
	Close() error
}

// IdempotencyConfig holds configuration for envelope deduplication
type IdempotencyConfig struct {
	// TTL is the time-to-live for processed digests.
	// After this duration, the same envelope is processed again; conflict
	// resolution determinism keeps the outcome identical either way.
	TTL time.Duration

	// Enabled determines whether deduplication is enabled
	Enabled bool
}

// DefaultIdempotencyConfig returns the default deduplication configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
