package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"texrender/internal/cache"
	"texrender/internal/handlers"
	"texrender/internal/metrics"
	"texrender/internal/pipeline"
	"texrender/internal/toolcheck"
)

func newTestServer(t *testing.T, render cache.RenderFunc) *httptest.Server {
	t.Helper()
	metrics.Register()

	rc := cache.NewRenderCache(cache.NewMemoryStore(), render, cache.Config{VersionID: "vtest"})
	compile := handlers.NewCompileHandler(rc, pipeline.FormatSVG)
	health := handlers.NewHealthHandler(toolcheck.Requirements("", ""), nil)

	r := chi.NewRouter()
	SetupRouter(r, zaptest.NewLogger(t), compile, health, Options{MaxBodyBytes: 4096})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, body string) (int, handlers.CompileResponse) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/compile-latex", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out handlers.CompileResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestCompileRouteUsesCache(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, func(_ context.Context, content string) pipeline.Outcome {
		calls.Add(1)
		return pipeline.Outcome{Image: pipeline.DataURI("image/svg+xml", []byte("<svg>"+content+"</svg>"))}
	})

	status, first := post(t, srv, `{"latex": "$a+b$"}`)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, first.Success)
	assert.False(t, first.Cached)

	status, second := post(t, srv, `{"latex": "$a+b$"}`)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Image, second.Image)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCompileRouteRejectsEmpty(t *testing.T) {
	srv := newTestServer(t, func(context.Context, string) pipeline.Outcome {
		t.Fatal("renderer should not run")
		return pipeline.Outcome{}
	})

	status, out := post(t, srv, `{"latex": ""}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, out.Success)
	assert.Equal(t, "No LaTeX content provided", out.Error)
}

func TestCompileRouteBodyLimit(t *testing.T) {
	srv := newTestServer(t, func(context.Context, string) pipeline.Outcome {
		return pipeline.Outcome{}
	})

	body := `{"latex": "` + strings.Repeat("x", 8192) + `"}`
	resp, err := http.Post(srv.URL+"/api/compile-latex", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestProbesAndMetrics(t *testing.T) {
	srv := newTestServer(t, func(context.Context, string) pipeline.Outcome {
		return pipeline.Outcome{}
	})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	// blank commands never resolve, so the service is not ready
	resp, err = http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "gateway_latency_seconds")
}

func TestCompileRouteMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, func(context.Context, string) pipeline.Outcome {
		return pipeline.Outcome{}
	})

	resp, err := http.Get(srv.URL + "/api/compile-latex")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
