package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"texrender/internal/cache"
	"texrender/internal/pipeline"
)

//go:embed sample_config.toml
var sampleConfig string

// EnvConfigPath names the config file when --config is not given.
const EnvConfigPath = "TEXRENDER_CONFIG"

// Config is the full service configuration.
type Config struct {
	Server Server `toml:"server"`
	Cache  Cache  `toml:"cache"`
	Render Render `toml:"render"`
}

type Server struct {
	Port                  string `toml:"port"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	MaxBodyBytes          int64  `toml:"max_body_bytes"`
	ShutdownSeconds       int    `toml:"shutdown_seconds"`
}

type Cache struct {
	Backend    string `toml:"backend"` // memory, lru or redis
	TTLSeconds int    `toml:"ttl_seconds"`
	MaxEntries int    `toml:"max_entries"`
	RedisAddr  string `toml:"redis_addr"`
	Prefix     string `toml:"prefix"`
	VersionID  string `toml:"version_id"`
}

type Render struct {
	Compiler              string `toml:"compiler"`
	Converter             string `toml:"converter"`
	Format                string `toml:"format"`
	PNGResolution         int    `toml:"png_resolution"`
	CompileTimeoutSeconds int    `toml:"compile_timeout_seconds"`
	ConvertTimeoutSeconds int    `toml:"convert_timeout_seconds"`
	WorkDir               string `toml:"work_dir"`
	ShellEscape           bool   `toml:"shell_escape"`
	AcceptPartialOutput   bool   `toml:"accept_partial_output"`
	MinifySVG             bool   `toml:"minify_svg"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: Server{
			Port:                  "8080",
			RequestTimeoutSeconds: 60,
			MaxBodyBytes:          1 << 20,
			ShutdownSeconds:       10,
		},
		Cache: Cache{
			Backend:    cache.BackendMemory,
			TTLSeconds: int(cache.DefaultTTL / time.Second),
			MaxEntries: 1024,
			RedisAddr:  "127.0.0.1:6379",
			Prefix:     "texrender",
			VersionID:  "v1",
		},
		Render: Render{
			Compiler:              "pdflatex",
			Format:                string(pipeline.FormatSVG),
			PNGResolution:         300,
			CompileTimeoutSeconds: 30,
			ConvertTimeoutSeconds: 15,
			MinifySVG:             true,
		},
	}
}

// Load builds a Config from defaults, the optional TOML file at path and the
// environment, in that order. An empty path falls back to $TEXRENDER_CONFIG.
// A named file that does not exist is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = strings.TrimSpace(os.Getenv(EnvConfigPath))
	}
	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) decodeFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file %s not found", path)
		}
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(c); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Server.Port = getenv("PORT", c.Server.Port)
	c.Cache.Backend = getenv("CACHE_BACKEND", c.Cache.Backend)
	c.Cache.RedisAddr = getenv("REDIS_ADDR", c.Cache.RedisAddr)
	c.Cache.VersionID = getenv("RENDER_VERSION", c.Cache.VersionID)
	c.Render.Compiler = getenv("LATEX_COMPILER", c.Render.Compiler)
	c.Render.Converter = getenv("LATEX_CONVERTER", c.Render.Converter)
	c.Render.Format = getenv("RENDER_FORMAT", c.Render.Format)
	c.Render.WorkDir = getenv("RENDER_WORK_DIR", c.Render.WorkDir)

	ints := []struct {
		key string
		dst *int
	}{
		{"CACHE_TTL_SECONDS", &c.Cache.TTLSeconds},
		{"CACHE_MAX_ENTRIES", &c.Cache.MaxEntries},
		{"COMPILE_TIMEOUT_SECONDS", &c.Render.CompileTimeoutSeconds},
		{"CONVERT_TIMEOUT_SECONDS", &c.Render.ConvertTimeoutSeconds},
	}
	for _, e := range ints {
		if err := getenvInt(e.key, e.dst); err != nil {
			return err
		}
	}

	if err := getenvBool("LATEX_SHELL_ESCAPE", &c.Render.ShellEscape); err != nil {
		return err
	}
	return getenvBool("MINIFY_SVG", &c.Render.MinifySVG)
}

func (c *Config) normalize() {
	c.Server.Port = strings.TrimSpace(c.Server.Port)
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	c.Cache.VersionID = strings.TrimSpace(c.Cache.VersionID)
	c.Render.Compiler = strings.TrimSpace(c.Render.Compiler)
	c.Render.Converter = strings.TrimSpace(c.Render.Converter)
	c.Render.Format = strings.ToLower(strings.TrimSpace(c.Render.Format))
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if _, err := strconv.ParseUint(c.Server.Port, 10, 16); err != nil {
		return fmt.Errorf("server.port %q is not a valid port", c.Server.Port)
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return errors.New("server.request_timeout_seconds must be positive")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return errors.New("server.max_body_bytes must be positive")
	}
	if c.Server.ShutdownSeconds <= 0 {
		return errors.New("server.shutdown_seconds must be positive")
	}

	switch c.Cache.Backend {
	case cache.BackendMemory, cache.BackendLRU:
	case cache.BackendRedis:
		if strings.TrimSpace(c.Cache.RedisAddr) == "" {
			return errors.New("cache.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown cache.backend %q", c.Cache.Backend)
	}
	if c.Cache.TTLSeconds <= 0 {
		return errors.New("cache.ttl_seconds must be positive")
	}
	if c.Cache.Backend == cache.BackendLRU && c.Cache.MaxEntries <= 0 {
		return errors.New("cache.max_entries must be positive for the lru backend")
	}

	if c.Render.Compiler == "" {
		return errors.New("render.compiler is required")
	}
	if !pipeline.Format(c.Render.Format).Valid() {
		return fmt.Errorf("unsupported render.format %q", c.Render.Format)
	}
	if c.Render.PNGResolution <= 0 {
		return errors.New("render.png_resolution must be positive")
	}
	if c.Render.CompileTimeoutSeconds <= 0 || c.Render.ConvertTimeoutSeconds <= 0 {
		return errors.New("render timeouts must be positive")
	}
	return nil
}

// PipelineConfig maps the render section onto the pipeline.
func (c *Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		Compiler:            c.Render.Compiler,
		Converter:           c.Render.Converter,
		Format:              pipeline.Format(c.Render.Format),
		PNGResolution:       c.Render.PNGResolution,
		CompileTimeout:      seconds(c.Render.CompileTimeoutSeconds),
		ConvertTimeout:      seconds(c.Render.ConvertTimeoutSeconds),
		WorkDir:             c.Render.WorkDir,
		ShellEscape:         c.Render.ShellEscape,
		AcceptPartialOutput: c.Render.AcceptPartialOutput,
		DisableMinify:       !c.Render.MinifySVG,
	}
}

// CacheConfig maps the cache section onto the render cache.
func (c *Config) CacheConfig() cache.Config {
	return cache.Config{
		Backend:    c.Cache.Backend,
		TTL:        seconds(c.Cache.TTLSeconds),
		MaxEntries: c.Cache.MaxEntries,
		Prefix:     c.Cache.Prefix,
		VersionID:  c.Cache.VersionID,
	}
}

func (c *Config) RequestTimeout() time.Duration { return seconds(c.Server.RequestTimeoutSeconds) }
func (c *Config) ShutdownTimeout() time.Duration { return seconds(c.Server.ShutdownSeconds) }

// CreateSample writes a sample configuration file to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// getenv returns the value of the environment variable key or def if not set.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, dst *int) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %q is not an integer", key, v)
	}
	*dst = n
	return nil
}

func getenvBool(key string, dst *bool) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %q is not a boolean", key, v)
	}
	*dst = b
	return nil
}
