package logging

import (
	"context"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey int

// prevents differences when adding new constants
const loggerKey ctxKey = iota

var (
	defaultLogger     *zap.Logger
	defaultLoggerOnce sync.Once
)

// Options tweaks logger construction. The zero value reads ENV and LOG_LEVEL.
type Options struct {
	// Development forces the console encoder.
	Development bool
	// Level overrides LOG_LEVEL when non-empty ("debug", "info", ...).
	Level string
}

// NewLogger builds the service logger.
// JSON production output by default; console output when ENV=dev or stderr is a terminal.
func NewLogger(opts Options) (*zap.Logger, error) {
	env := os.Getenv("ENV")

	var config zap.Config

	if opts.Development || env == "dev" || env == "development" || stderrIsTerminal() {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
		//to see who calls it
		config.DisableCaller = false
	}

	//adjustable log level so it can change at runtime
	logLevel := opts.Level
	if logLevel == "" {
		logLevel = os.Getenv("LOG_LEVEL")
	}

	if logLevel != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(logLevel)); err == nil {
			config.Level = zap.NewAtomicLevelAt(level)
		}
	}

	return config.Build()
}

func stderrIsTerminal() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// DefaultLogger returns the process-wide logger, built once from the environment.
func DefaultLogger() *zap.Logger {
	defaultLoggerOnce.Do(func() {
		logger, err := NewLogger(Options{})
		if err != nil {
			_, _ = os.Stderr.WriteString("failed to create logger: " + err.Error() + "\n")
			logger = zap.NewNop()
		}
		defaultLogger = logger
	})
	return defaultLogger
}

// WithLogger attaches a logger to ctx.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from ctx, falling back to DefaultLogger.
func FromContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return DefaultLogger()
	}

	logger, ok := ctx.Value(loggerKey).(*zap.Logger)
	if ok && logger != nil {
		return logger
	}
	return DefaultLogger()
}

func L(ctx context.Context) *zap.Logger {
	return FromContext(ctx)
}

// WithFields adds structured fields to the logger in context.
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	logger := FromContext(ctx).With(fields...)
	return WithLogger(ctx, logger)
}
