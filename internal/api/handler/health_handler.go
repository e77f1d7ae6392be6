package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger checks a backing dependency, e.g. pgxpool.Pool.Ping.
type Pinger func(ctx context.Context) error

// HealthHandler serves the liveness probe endpoint.
type HealthHandler struct {
	ping Pinger
}

// NewHealthHandler returns a HealthHandler. A nil ping reports healthy
// without checking anything.
func NewHealthHandler(ping Pinger) *HealthHandler { return &HealthHandler{ping: ping} }

// Health handles GET /health
//
// @Summary  Liveness probe
// @Tags     system
// @Produce  json
// @Success  200  {object}  map[string]string
// @Failure  503  {object}  map[string]string
// @Router   /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
