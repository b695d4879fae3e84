// Package handlers serves the render endpoint and health probes.
//
// Clients that embed rendered images in stored records (quiz questions, for
// example) should keep a "render up to date" flag on the record, clear it
// whenever the LaTeX changes, and call POST /api/compile-latex on first view.
// Repeat calls with unchanged content are served from the render cache.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"texrender/internal/cache"
	"texrender/internal/pipeline"
	"texrender/pkg/logging"
)

const errNoContent = "No LaTeX content provided"

// Renderer is satisfied by *cache.RenderCache.
type Renderer interface {
	GetOrRender(ctx context.Context, content string) cache.Result
}

// CompileRequest is the body of POST /api/compile-latex.
type CompileRequest struct {
	LaTeX *string `json:"latex"`
}

type CompileResponse struct {
	Success bool   `json:"success"`
	Image   string `json:"image,omitempty"`
	Format  string `json:"format,omitempty"`
	Cached  bool   `json:"cached"`
	Error   string `json:"error,omitempty"`
}

// CompileHandler holds dependencies for the /api/compile-latex endpoint.
type CompileHandler struct {
	Renderer Renderer
	Format   pipeline.Format
}

func NewCompileHandler(r Renderer, format pipeline.Format) *CompileHandler {
	if format == "" {
		format = pipeline.FormatSVG
	}
	return &CompileHandler{
		Renderer: r,
		Format:   format,
	}
}

// CompileLaTeX handles POST /api/compile-latex.
// Render failures still answer 200: the image then carries the diagnostic.
func (h *CompileHandler) CompileLaTeX(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)
	start := time.Now()

	var req CompileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Warn("request body too large", zap.Int64("limit", tooLarge.Limit))
			writeJSON(w, http.StatusRequestEntityTooLarge, CompileResponse{Error: "request body too large"})
			return
		}
		logger.Warn("invalid request", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, CompileResponse{Error: "invalid JSON"})
		return
	}

	if req.LaTeX == nil || strings.TrimSpace(*req.LaTeX) == "" {
		logger.Info("empty render request")
		writeJSON(w, http.StatusBadRequest, CompileResponse{Error: errNoContent})
		return
	}

	res := h.Renderer.GetOrRender(ctx, *req.LaTeX)

	logger.Info("compile_latex",
		zap.Int("content_bytes", len(*req.LaTeX)),
		zap.Bool("cached", res.Hit),
		zap.Bool("render_ok", res.Error == ""),
		zap.Duration("total_latency_ms", time.Since(start)),
	)

	writeJSON(w, http.StatusOK, CompileResponse{
		Success: true,
		Image:   res.Image,
		Format:  string(h.Format),
		Cached:  res.Hit,
		Error:   res.Error,
	})
}

// writeJSON is a small helper to send JSON responses consistently.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
