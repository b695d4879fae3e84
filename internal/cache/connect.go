package cache

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Pinger is implemented by *RedisStore.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RetryConfig bounds how long startup waits for a shared backend.
type RetryConfig struct {
	MaxRetries  int           // default: 4
	BaseBackoff time.Duration // default: 200ms
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 4
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 200 * time.Millisecond
	}
	return c
}

// WaitForBackend pings p until it answers, retrying transient network errors
// with exponential backoff and full jitter. Other errors fail immediately.
func WaitForBackend(ctx context.Context, p Pinger, cfg RetryConfig, logger *zap.Logger) error {
	cfg = cfg.withDefaults()
	maxAttempts := cfg.MaxRetries + 1

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := p.Ping(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if !isTransientNetError(err) {
			return err
		}
		lastErr = err

		if attempt == maxAttempts-1 {
			break
		}

		backoff := computeBackoff(cfg.BaseBackoff, attempt)
		logger.Info("cache backend not ready, retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxAttempts),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("cache backend unreachable after %d attempts: %w", maxAttempts, lastErr)
}

// isTransientNetError reports whether a network error may clear up on retry,
// for example while Redis is still starting next to us.
func isTransientNetError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout || dnsErr.IsTemporary || dnsErr.IsNotFound
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" || opErr.Op == "read" || opErr.Op == "write" {
			return true
		}
	}

	// go-redis does not always keep the net error in the chain
	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"i/o timeout",
		"loading the dataset in memory",
	} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// computeBackoff returns a random wait in [0, base*2^attempt), capped at 10s.
func computeBackoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	const maxExponent = 10
	if attempt > maxExponent {
		attempt = maxExponent
	}

	maxBackoff := time.Duration(float64(base) * math.Pow(2, float64(attempt)))

	const maxAllowed = 10 * time.Second
	if maxBackoff > maxAllowed {
		maxBackoff = maxAllowed
	}

	return time.Duration(rand.Float64() * float64(maxBackoff))
}
