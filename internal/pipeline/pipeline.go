// Package pipeline compiles complete LaTeX documents into inline images.
//
// Compile never returns an error: every failure (bad LaTeX, missing tools,
// timeouts, converter crashes) becomes a small diagnostic SVG carrying the
// underlying message, so pages that embed renders need no error handling.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/tdewolff/minify/v2"
	"go.uber.org/zap"

	"texrender/internal/latex"
	"texrender/internal/metrics"
	"texrender/pkg/logging"
)

const sourceName = "content.tex"

// Option configures the pipeline.
type Option func(*Pipeline)

// WithToolchain replaces the subprocess toolchain (primarily for tests).
func WithToolchain(tc Toolchain) Option {
	return func(p *Pipeline) {
		if tc != nil {
			p.toolchain = tc
		}
	}
}

// WithExecutor keeps the subprocess toolchain but swaps how commands run.
func WithExecutor(e Executor) Option {
	return func(p *Pipeline) {
		if e != nil {
			p.toolchain = NewExecToolchain(p.cfg, e)
		}
	}
}

type Pipeline struct {
	cfg       Config
	toolchain Toolchain
	minifier  *minify.M
}

// New creates a pipeline with the given configuration.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}

	p := &Pipeline{
		cfg:       cfg,
		toolchain: NewExecToolchain(cfg, nil),
	}
	if !cfg.DisableMinify && cfg.Format == FormatSVG {
		p.minifier = newMinifier()
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Render synthesizes a complete document from a fragment and compiles it.
func (p *Pipeline) Render(ctx context.Context, content string) Outcome {
	return p.Compile(ctx, latex.EnsureCompleteDocument(content))
}

// Compile turns a complete document into an image data URI.
func (p *Pipeline) Compile(ctx context.Context, document string) (out Outcome) {
	start := time.Now()
	logger := logging.L(ctx).With(zap.String("render_id", uuid.NewString()))

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("render panic recovered", zap.Any("panic", rec))
			out = failed(&Failure{Kind: SystemError, Detail: fmt.Sprint(rec)})
		}

		elapsed := time.Since(start)
		metrics.RenderCompilationsTotal.WithLabelValues(out.Label()).Inc()
		metrics.RenderCompileDurationSeconds.Observe(elapsed.Seconds())

		fields := []zap.Field{
			zap.String("outcome", out.Label()),
			zap.Int("document_bytes", len(document)),
			zap.Duration("duration", elapsed),
		}
		if out.Failure != nil {
			logger.Warn("render_failed", append(fields, zap.String("diagnostic", out.Failure.Error()))...)
			return
		}
		logger.Info("render_completed", fields...)
	}()

	image, f := p.compile(ctx, document, logger)
	if f != nil {
		return failed(f)
	}
	return Outcome{Image: image}
}

func failed(f *Failure) Outcome {
	return Outcome{Image: ErrorImage(f.Error()), Failure: f}
}

func (p *Pipeline) compile(ctx context.Context, document string, logger *zap.Logger) (string, *Failure) {
	dir, err := os.MkdirTemp(p.cfg.WorkDir, "texrender-*")
	if err != nil {
		return "", &Failure{Kind: SystemError, Detail: fmt.Sprintf("create work dir: %v", err), Err: err}
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn("remove work dir", zap.String("dir", dir), zap.Error(err))
		}
	}()

	src := filepath.Join(dir, sourceName)
	// trailing blank lines keep the compiler from tokenizing past \end{document} into EOF
	if err := os.WriteFile(src, []byte(document+"\n\n"), 0o600); err != nil {
		return "", &Failure{Kind: SystemError, Detail: fmt.Sprintf("write source: %v", err), Err: err}
	}

	res, err := p.toolchain.Compile(ctx, src, dir)
	if err != nil {
		return "", asFailure(err, SystemError)
	}

	logger.Debug("compiler finished",
		zap.Int("exit_code", res.ExitCode),
		zap.Bool("artifact", res.ArtifactPath != ""),
	)

	if res.ExitCode != 0 && (res.ArtifactPath == "" || !p.cfg.AcceptPartialOutput) {
		return "", &Failure{Kind: CompilerError, Detail: diagnoseCompile(res)}
	}
	if res.ArtifactPath == "" {
		return "", &Failure{Kind: ArtifactMissing, Detail: "PDF file was not created"}
	}

	dest := filepath.Join(dir, "content."+string(p.cfg.Format))
	if err := p.toolchain.Convert(ctx, res.ArtifactPath, dest); err != nil {
		return "", asFailure(err, ConverterError)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		return "", &Failure{Kind: ConverterError, Detail: "converter produced no image", Err: err}
	}

	if p.minifier != nil {
		if small, err := p.minifier.Bytes(FormatSVG.MIME(), data); err == nil {
			data = small
		} else {
			logger.Debug("svg minify failed, using original", zap.Error(err))
		}
	}

	return DataURI(p.cfg.Format.MIME(), data), nil
}

// asFailure keeps a toolchain-classified failure or wraps err as kind.
func asFailure(err error, kind FailureKind) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Kind: kind, Detail: err.Error(), Err: err}
}
