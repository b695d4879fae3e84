package cache

import (
	"context"
	"time"
)

// Store is the byte-level backend behind the render cache.
// Implemented by the memory and LRU stores (single process) and Redis (shared).
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Sweeper is implemented by stores that must evict expired entries themselves.
// Sweep returns how many entries it removed.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Option configures stores and the render cache.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now (for tests).
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
