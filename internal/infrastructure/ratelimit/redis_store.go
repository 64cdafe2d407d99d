package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a CounterStore over Redis so a fleet of instances shares
// one admission budget per platform.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a Redis-backed counter store
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "syncbridge"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Incr implements CounterStore. The TTL is attached only when the counter is
// created so the window expiry is not pushed forward by later increments.
func (s *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	fullKey := s.prefix + ":" + key

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.ExpireNX(ctx, fullKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("ratelimit: failed to increment counter: %w", err)
	}
	return incr.Val(), nil
}
