package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"texrender/internal/toolcheck"
	"texrender/pkg/logging"
)

// Pinger reports whether a dependency such as Redis is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	Requirements []toolcheck.Requirement
	Store        Pinger // optional, pinged on readiness
	PingTimeout  time.Duration

	check func([]toolcheck.Requirement) []toolcheck.Status
}

type ReadyResponse struct {
	Ready     bool               `json:"ready"`
	Toolchain []toolcheck.Status `json:"toolchain"`
	Cache     string             `json:"cache,omitempty"`
}

func NewHealthHandler(reqs []toolcheck.Requirement, store Pinger) *HealthHandler {
	return &HealthHandler{
		Requirements: reqs,
		Store:        store,
		PingTimeout:  2 * time.Second,
		check:        toolcheck.Check,
	}
}

// Healthz reports liveness only.
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Readyz answers 503 until the toolchain binaries resolve and the cache store responds.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)

	statuses := h.check(h.Requirements)
	resp := ReadyResponse{
		Ready:     toolcheck.AllAvailable(statuses),
		Toolchain: statuses,
	}

	if h.Store != nil {
		pingCtx, cancel := context.WithTimeout(ctx, h.PingTimeout)
		err := h.Store.Ping(pingCtx)
		cancel()
		if err != nil {
			logger.Warn("readiness cache ping failed", zap.Error(err))
			resp.Ready = false
			resp.Cache = "unreachable"
		} else {
			resp.Cache = "ok"
		}
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
