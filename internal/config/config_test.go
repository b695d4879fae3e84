package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"texrender/internal/cache"
	"texrender/internal/config"
	"texrender/internal/pipeline"
)

// clearEnv blanks every override so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		config.EnvConfigPath, "PORT", "CACHE_BACKEND", "CACHE_TTL_SECONDS", "CACHE_MAX_ENTRIES",
		"REDIS_ADDR", "RENDER_VERSION", "LATEX_COMPILER", "LATEX_CONVERTER", "RENDER_FORMAT",
		"COMPILE_TIMEOUT_SECONDS", "CONVERT_TIMEOUT_SECONDS", "RENDER_WORK_DIR",
		"LATEX_SHELL_ESCAPE", "MINIFY_SVG",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "texrender.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Fatalf("unexpected port %q", cfg.Server.Port)
	}
	if cfg.Cache.Backend != cache.BackendMemory {
		t.Fatalf("unexpected backend %q", cfg.Cache.Backend)
	}

	cc := cfg.CacheConfig()
	if cc.TTL != time.Hour {
		t.Fatalf("expected one hour ttl, got %s", cc.TTL)
	}

	pc := cfg.PipelineConfig()
	if pc.Compiler != "pdflatex" || pc.Format != pipeline.FormatSVG {
		t.Fatalf("unexpected pipeline config %+v", pc)
	}
	if pc.CompileTimeout != 30*time.Second || pc.ConvertTimeout != 15*time.Second {
		t.Fatalf("unexpected timeouts %s/%s", pc.CompileTimeout, pc.ConvertTimeout)
	}
	if pc.DisableMinify {
		t.Fatal("expected minify on by default")
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
[server]
port = "9000"

[cache]
backend = "lru"
ttl_seconds = 120
max_entries = 16

[render]
format = "png"
shell_escape = true
`)
	t.Setenv("PORT", "9100")
	t.Setenv("CACHE_TTL_SECONDS", "60")
	t.Setenv("MINIFY_SVG", "false")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "9100" {
		t.Fatalf("env should override file port, got %q", cfg.Server.Port)
	}
	if cfg.Cache.Backend != cache.BackendLRU || cfg.Cache.MaxEntries != 16 {
		t.Fatalf("unexpected cache section %+v", cfg.Cache)
	}
	if cfg.CacheConfig().TTL != time.Minute {
		t.Fatalf("expected env ttl, got %s", cfg.CacheConfig().TTL)
	}
	pc := cfg.PipelineConfig()
	if pc.Format != pipeline.FormatPNG || !pc.ShellEscape || !pc.DisableMinify {
		t.Fatalf("unexpected pipeline config %+v", pc)
	}
}

func TestLoadUsesEnvConfigPath(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "[cache]\nversion_id = \"v7\"\n")
	t.Setenv(config.EnvConfigPath, path)

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Cache.VersionID != "v7" {
		t.Fatalf("expected version from file, got %q", cfg.Cache.VersionID)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		file string
		want string
	}{
		{name: "backend", env: map[string]string{"CACHE_BACKEND": "memcached"}, want: "cache.backend"},
		{name: "format", env: map[string]string{"RENDER_FORMAT": "gif"}, want: "render.format"},
		{name: "ttl", env: map[string]string{"CACHE_TTL_SECONDS": "0"}, want: "ttl_seconds"},
		{name: "ttl not int", env: map[string]string{"CACHE_TTL_SECONDS": "soon"}, want: "not an integer"},
		{name: "timeout", env: map[string]string{"COMPILE_TIMEOUT_SECONDS": "-1"}, want: "timeouts"},
		{name: "bool", env: map[string]string{"LATEX_SHELL_ESCAPE": "maybe"}, want: "not a boolean"},
		{name: "port", env: map[string]string{"PORT": "http"}, want: "server.port"},
		{name: "lru size", file: "[cache]\nbackend = \"lru\"\nmax_entries = 0\n", want: "max_entries"},
		{name: "unknown key", file: "[render]\nengine = \"xelatex\"\n", want: "parse config"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			path := ""
			if tc.file != "" {
				path = writeConfig(t, tc.file)
			}
			_, err := config.Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestCreateSample(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "texrender.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var parsed config.Config
	if err := toml.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("sample is not valid toml: %v", err)
	}
	if parsed.Render.Compiler != "pdflatex" {
		t.Fatalf("unexpected sample compiler %q", parsed.Render.Compiler)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample should load cleanly: %v", err)
	}
	if cfg.Cache.TTLSeconds != 3600 {
		t.Fatalf("unexpected sample ttl %d", cfg.Cache.TTLSeconds)
	}
}
