package handler

import (
	"context"
	"net/http"
)

// Pinger reports whether a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles the health check endpoint.
type HealthHandler struct {
	store       Pinger
	backend     string
	gatewayMode string
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(store Pinger, backend, gatewayMode string) *HealthHandler {
	return &HealthHandler{store: store, backend: backend, gatewayMode: gatewayMode}
}

// Check handles GET /health.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":  "ok",
		"backend": h.backend,
		"gateway": h.gatewayMode,
	}

	if err := h.store.Ping(r.Context()); err != nil {
		status["store"] = "error"
		status["status"] = "degraded"
	} else {
		status["store"] = "ok"
	}

	code := http.StatusOK
	if status["status"] == "degraded" {
		code = http.StatusServiceUnavailable
	}

	JSON(w, code, status)
}
