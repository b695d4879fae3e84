package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares rendered images between replicas. Redis expires keys on
// its own, so it does not implement Sweeper.
type RedisStore struct {
	client *redis.Client
	prefix string
}

type RedisConfig struct {
	Prefix string
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redis.Client, config RedisConfig) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: config.Prefix,
	}
}

// key builds the final Redis key with prefix.
func (c *RedisStore) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

// Get retrieves a value from Redis.
// On Redis error, it returns (nil, false, err) so caller can log and treat as miss.
func (c *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, fmt.Errorf("context error: %w", err)
	}

	res, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	return res, true, nil
}

// Set stores a value in Redis with TTL.
// If ttl <= 0, it does nothing (no caching).
func (c *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	if ttl <= 0 {
		return nil
	}

	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

// Ping checks if Redis connection is healthy.
func (c *RedisStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	return c.client.Ping(ctx).Err()
}

var _ Store = (*RedisStore)(nil)
