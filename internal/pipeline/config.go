package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	defaultCompiler       = "pdflatex"
	defaultSVGConverter   = "pdf2svg"
	defaultPNGConverter   = "pdftoppm"
	defaultPNGResolution  = 300
	defaultCompileTimeout = 30 * time.Second
	defaultConvertTimeout = 15 * time.Second
)

type Config struct {
	Compiler  string // default: pdflatex
	Converter string // default: pdf2svg for svg, pdftoppm for png
	Format    Format // default: svg

	PNGResolution int // dpi passed to pdftoppm (default: 300)

	CompileTimeout time.Duration // per compiler run (default: 30s)
	ConvertTimeout time.Duration // per converter run (default: 15s)

	// WorkDir is the parent of per-render scratch directories. Empty means os.TempDir.
	WorkDir string

	ShellEscape bool

	// AcceptPartialOutput renders whatever PDF the compiler managed to write
	// even when it exited non-zero. Off by default so authors see their errors.
	AcceptPartialOutput bool

	DisableMinify bool
}

// Validate checks a config after defaults are applied.
func (c *Config) Validate() error {
	if c.Compiler == "" {
		return errors.New("compiler is required")
	}
	if c.Converter == "" {
		return errors.New("converter is required")
	}
	if !c.Format.Valid() {
		return fmt.Errorf("unsupported format %q", c.Format)
	}
	if c.CompileTimeout <= 0 || c.ConvertTimeout <= 0 {
		return errors.New("timeouts must be positive")
	}
	return nil
}

// WithDefaults returns a copy of Config with defaults applied.
func (c *Config) WithDefaults() Config {
	cfg := *c

	cfg.Compiler = strings.TrimSpace(cfg.Compiler)
	cfg.Converter = strings.TrimSpace(cfg.Converter)
	cfg.Format = Format(strings.ToLower(strings.TrimSpace(string(cfg.Format))))

	if cfg.Format == "" {
		cfg.Format = FormatSVG
	}
	if cfg.Compiler == "" {
		cfg.Compiler = defaultCompiler
	}
	if cfg.Converter == "" {
		cfg.Converter = defaultSVGConverter
		if cfg.Format == FormatPNG {
			cfg.Converter = defaultPNGConverter
		}
	}
	if cfg.PNGResolution <= 0 {
		cfg.PNGResolution = defaultPNGResolution
	}
	if cfg.CompileTimeout <= 0 {
		cfg.CompileTimeout = defaultCompileTimeout
	}
	if cfg.ConvertTimeout <= 0 {
		cfg.ConvertTimeout = defaultConvertTimeout
	}

	return cfg
}

// Binaries lists the external programs this config invokes.
func (c *Config) Binaries() []string {
	return []string{c.Compiler, c.Converter}
}
