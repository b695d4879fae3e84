package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	BackendMemory = "memory"
	BackendLRU    = "lru"
	BackendRedis  = "redis"
)

// DefaultTTL is how long a rendered image stays valid.
const DefaultTTL = time.Hour

type Config struct {
	Backend    string
	TTL        time.Duration
	MaxEntries int // lru only
	Prefix     string
	VersionID  string
}

// NewStore builds the configured backend. redisClient is only used by the redis backend.
func NewStore(cfg Config, redisClient *redis.Client, opts ...Option) (Store, error) {
	switch cfg.Backend {
	case BackendRedis:
		if redisClient == nil {
			return nil, errors.New("redis backend requires a redis client")
		}
		return NewRedisStore(redisClient, RedisConfig{
			Prefix: cfg.Prefix,
		}), nil
	case BackendLRU:
		return NewLRUStore(cfg.MaxEntries, opts...)
	case BackendMemory, "":
		return NewMemoryStore(opts...), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
