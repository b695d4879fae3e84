package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"texrender/internal/cache"
	"texrender/internal/config"
	"texrender/internal/handlers"
	"texrender/internal/httpserver"
	"texrender/internal/metrics"
	"texrender/internal/pipeline"
	"texrender/internal/toolcheck"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the render HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := ctx.loggerValue()
			defer logger.Sync()

			sigCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runServer(sigCtx, cfg, logger, nil, ctx.pipelineOpts...)
		},
	}
}

// runServer serves until ctx is done, then shuts down gracefully.
// A nil listener binds cfg.Server.Port.
func runServer(ctx context.Context, cfg *config.Config, logger *zap.Logger, ln net.Listener, opts ...pipeline.Option) error {
	// ----- Metrics -----
	metrics.Register()

	cacheCfg := cfg.CacheConfig()
	logger.Info("loaded config",
		zap.String("port", cfg.Server.Port),
		zap.String("cache_backend", cacheCfg.Backend),
		zap.Duration("cache_ttl", cacheCfg.TTL),
		zap.String("version_id", cacheCfg.VersionID),
		zap.String("compiler", cfg.Render.Compiler),
		zap.String("format", cfg.Render.Format),
	)

	// ----- Redis client (only if needed) -----
	var redisClient *redis.Client
	if cacheCfg.Backend == cache.BackendRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisAddr,
		})
		defer redisClient.Close()
	}

	// ----- Render cache -----
	store, err := cache.NewStore(cacheCfg, redisClient)
	if err != nil {
		return err
	}
	var pinger handlers.Pinger
	if rs, ok := store.(*cache.RedisStore); ok {
		// Fail fast if Redis is misconfigured, but give it a moment to come up
		if err := cache.WaitForBackend(ctx, rs, cache.RetryConfig{}, logger); err != nil {
			logger.Error("redis connection failed", zap.Error(err))
			return fmt.Errorf("redis ping: %w", err)
		}
		logger.Info("redis connection established",
			zap.String("addr", cfg.Cache.RedisAddr),
		)
		pinger = rs
	}

	pipe, err := pipeline.New(cfg.PipelineConfig(), opts...)
	if err != nil {
		return err
	}
	pc := pipe.Config()
	reqs := toolcheck.Requirements(pc.Compiler, pc.Converter)
	for _, s := range toolcheck.Check(reqs) {
		if !s.Available {
			logger.Warn("toolchain binary missing; renders will return diagnostics",
				zap.String("tool", s.Name),
				zap.String("command", s.Command),
			)
		}
	}

	renderCache := cache.NewRenderCache(cache.NewLoggingStore(store), pipe.Render, cacheCfg)

	// ----- Handlers -----
	compileHandler := handlers.NewCompileHandler(renderCache, pc.Format)
	healthHandler := handlers.NewHealthHandler(reqs, pinger)

	// ----- Router + middleware -----
	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, compileHandler, healthHandler, httpserver.Options{
		RequestTimeout: cfg.RequestTimeout(),
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
	})

	// ----- HTTP server -----
	// WriteTimeout leaves room for the request timeout to answer first
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout() + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if ln == nil {
		ln, err = net.Listen("tcp", srv.Addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", srv.Addr, err)
		}
	}

	logger.Info("starting texrender",
		zap.String("addr", ln.Addr().String()),
		zap.String("cache_backend", cacheCfg.Backend),
		zap.String("format", string(pc.Format)),
	)

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// ----- Graceful shutdown -----
	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error("server error", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}
