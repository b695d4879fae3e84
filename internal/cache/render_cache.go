// Package cache memoizes rendered LaTeX by exact content.
//
// RenderCache sits in front of the full synthesize + compile sequence and is
// keyed on the raw content the caller submits. Entries are valid for a fixed
// window (one hour by default); after every write the backing store is swept
// of expired entries. Concurrent requests for the same uncached content share
// one compile.
//
// Question records that inline a rendered image are expected to keep a
// "render up to date" flag, clear it when their LaTeX changes, and call
// GetOrRender lazily on first view rather than on every save.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"texrender/internal/metrics"
	"texrender/internal/pipeline"
	"texrender/pkg/logging"
)

// RenderFunc produces an image for raw content. It must not fail; failures
// are carried in the Outcome as a diagnostic image.
type RenderFunc func(ctx context.Context, content string) pipeline.Outcome

// Entry is what gets stored per key.
type Entry struct {
	Image     string    `json:"image"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Result is returned to callers of GetOrRender.
type Result struct {
	Image string
	// Error is the diagnostic shown in Image, empty on success.
	Error string
	Hit   bool
	// Shared is true when the compile was shared with a concurrent request.
	Shared bool
}

type RenderCache struct {
	store     Store
	render    RenderFunc
	ttl       time.Duration
	versionID string
	now       func() time.Time
	group     singleflight.Group
}

// NewRenderCache wires a store and a render function. cfg.Backend is ignored here;
// use NewStore to build the store.
func NewRenderCache(store Store, render RenderFunc, cfg Config, opts ...Option) *RenderCache {
	o := buildOptions(opts)

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &RenderCache{
		store:     store,
		render:    render,
		ttl:       ttl,
		versionID: cfg.VersionID,
		now:       o.now,
	}
}

// GetOrRender returns the cached image for content, rendering it on a miss.
func (c *RenderCache) GetOrRender(ctx context.Context, content string) Result {
	start := time.Now()
	key := BuildKey(content, c.versionID)
	cacheKey := key.String()
	logger := logging.L(ctx)

	if entry, ok := c.lookup(ctx, cacheKey, logger); ok {
		metrics.RenderCacheHitsTotal.Inc()
		logger.Info("render_cache_decision",
			zap.String("hash_key", key.Hash),
			zap.String("version_id", key.VersionID),
			zap.Bool("cache_hit", true),
			zap.Duration("total_latency_ms", time.Since(start)),
		)
		return Result{Image: entry.Image, Error: entry.Error, Hit: true}
	}

	metrics.RenderCacheMissesTotal.Inc()

	// The compile is shared, so one caller going away must not cancel it.
	fillCtx := context.WithoutCancel(ctx)
	v, _, shared := c.group.Do(cacheKey, func() (any, error) {
		// a flight for this key may have finished between our lookup and Do
		if entry, ok := c.lookup(fillCtx, cacheKey, logger); ok {
			return Result{Image: entry.Image, Error: entry.Error, Hit: true}, nil
		}
		return c.fill(fillCtx, content, cacheKey, logger), nil
	})

	res := v.(Result)
	res.Shared = shared
	if shared {
		metrics.RenderSingleflightSharedTotal.Inc()
	}

	logger.Info("render_cache_decision",
		zap.String("hash_key", key.Hash),
		zap.String("version_id", key.VersionID),
		zap.Bool("cache_hit", res.Hit),
		zap.Bool("shared", shared),
		zap.Bool("render_ok", res.Error == ""),
		zap.Duration("total_latency_ms", time.Since(start)),
	)

	return res
}

// lookup returns a fresh entry. Store and decode errors count as misses.
func (c *RenderCache) lookup(ctx context.Context, key string, logger *zap.Logger) (Entry, bool) {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		// Cache is best-effort; log and treat as miss.
		logger.Warn("render_cache_get_error", zap.Error(err))
		return Entry{}, false
	}
	if !ok {
		return Entry{}, false
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		logger.Warn("render_cache_unmarshal_error", zap.Error(err))
		return Entry{}, false
	}

	if c.now().Sub(entry.CreatedAt) >= c.ttl {
		return Entry{}, false
	}
	return entry, true
}

func (c *RenderCache) fill(ctx context.Context, content, key string, logger *zap.Logger) Result {
	out := c.render(ctx, content)

	res := Result{Image: out.Image}
	if out.Failure != nil {
		res.Error = out.Failure.Error()
		// timeouts and missing tools are not a property of the content
		if out.Failure.Kind == pipeline.SystemError {
			logger.Info("render_cache_skip_transient", zap.String("error", res.Error))
			return res
		}
	}

	raw, err := json.Marshal(Entry{Image: res.Image, Error: res.Error, CreatedAt: c.now()})
	if err != nil {
		logger.Warn("render_cache_marshal_error", zap.Error(err))
		return res
	}
	if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
		logger.Warn("render_cache_set_error", zap.Error(err))
		return res
	}

	c.sweep(ctx, logger)
	return res
}

// sweep evicts expired entries after a write. Failure to evict is not fatal.
func (c *RenderCache) sweep(ctx context.Context, logger *zap.Logger) {
	sw, ok := c.store.(Sweeper)
	if !ok {
		return
	}
	n, err := sw.Sweep(ctx)
	if err != nil {
		logger.Warn("render_cache_sweep_error", zap.Error(err))
		return
	}
	if n > 0 {
		metrics.RenderCacheEvictionsTotal.Add(float64(n))
	}
}
