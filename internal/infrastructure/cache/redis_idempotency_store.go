package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/syncbridge/backend/internal/domain/shared"
)

const defaultDigestPrefix = "webhook:digest:"

// RedisIdempotencyStore shares processed digests across instances so a
// redelivery landing on a different instance is still recognized.
type RedisIdempotencyStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

var _ shared.IdempotencyStore = (*RedisIdempotencyStore)(nil)

// NewRedisIdempotencyStore creates a store over an existing Redis client.
// The client is shared with other components and is not closed by Close.
func NewRedisIdempotencyStore(client redis.UniversalClient, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = defaultDigestPrefix
	}
	return &RedisIdempotencyStore{client: client, keyPrefix: keyPrefix}
}

// MarkProcessed implements shared.IdempotencyStore. SETNX with TTL keeps the
// claim atomic: exactly one of two racing deliveries wins.
func (s *RedisIdempotencyStore) MarkProcessed(ctx context.Context, digest string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+digest, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("cache: failed to mark digest as processed: %w", err)
	}
	return ok, nil
}

// IsProcessed implements shared.IdempotencyStore
func (s *RedisIdempotencyStore) IsProcessed(ctx context.Context, digest string) (bool, error) {
	exists, err := s.client.Exists(ctx, s.keyPrefix+digest).Result()
	if err != nil {
		return false, fmt.Errorf("cache: failed to check digest: %w", err)
	}
	return exists > 0, nil
}

// Close implements shared.IdempotencyStore; the shared client stays open
func (s *RedisIdempotencyStore) Close() error {
	return nil
}
