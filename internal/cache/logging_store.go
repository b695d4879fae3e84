package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"texrender/pkg/logging"
)

// LoggingStore wraps a Store with structured logging of every operation.
type LoggingStore struct {
	inner Store
}

// NewLoggingStore returns a store that logs around inner.
func NewLoggingStore(inner Store) *LoggingStore {
	return &LoggingStore{inner: inner}
}

func (c *LoggingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	value, ok, err := c.inner.Get(ctx, key)

	result := "miss"
	if err != nil {
		result = "error"
	} else if ok {
		result = "hit"
	}

	fields := append(keyFields(key),
		zap.String("store_result", result), // hit | miss | error
		zap.Float64("latency_ms", elapsedMs(start)),
	)

	logger := logging.L(ctx)
	if err != nil {
		logger.Error("render_store_get", append(fields, zap.Error(err))...)
	} else {
		logger.Debug("render_store_get", fields...)
	}

	return value, ok, err
}

func (c *LoggingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := c.inner.Set(ctx, key, value, ttl)

	fields := append(keyFields(key),
		zap.Int("bytes", len(value)),
		zap.Duration("ttl", ttl),
		zap.Float64("latency_ms", elapsedMs(start)),
	)

	logger := logging.L(ctx)
	if err != nil {
		logger.Error("render_store_set", append(fields, zap.Error(err))...)
	} else {
		logger.Debug("render_store_set", fields...)
	}

	return err
}

// Sweep forwards to the inner store when it sweeps; otherwise it is a no-op.
func (c *LoggingStore) Sweep(ctx context.Context) (int, error) {
	sw, ok := c.inner.(Sweeper)
	if !ok {
		return 0, nil
	}

	start := time.Now()
	n, err := sw.Sweep(ctx)

	logger := logging.L(ctx)
	if err != nil {
		logger.Error("render_store_sweep", zap.Error(err))
	} else if n > 0 {
		logger.Info("render_store_sweep",
			zap.Int("evicted", n),
			zap.Float64("latency_ms", elapsedMs(start)),
		)
	}
	return n, err
}

func keyFields(key string) []zap.Field {
	fields := []zap.Field{zap.String("hash_key", key)}
	if k, ok := parseKey(key); ok {
		fields = append(fields,
			zap.String("version_id", k.VersionID),
			zap.String("hash", k.Hash),
		)
	}
	return fields
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

var (
	_ Store   = (*LoggingStore)(nil)
	_ Sweeper = (*LoggingStore)(nil)
)
