package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/classifyhub/subject-queue/internal/dispatch"
)

// MetricsHandler serves a human-readable JSON snapshot of the refill backlog.
// Raw Prometheus metrics are available at /metrics via promhttp.
type MetricsHandler struct {
	depths dispatch.DepthReporter
	logger *zap.Logger
}

func NewMetricsHandler(depths dispatch.DepthReporter, logger *zap.Logger) *MetricsHandler {
	return &MetricsHandler{depths: depths, logger: logger}
}

// GetMetrics handles GET /api/v1/metrics
//
// @Summary  Real-time refill backlog snapshot
// @Tags     metrics
// @Produce  json
// @Success  200  {object}  map[string]any
// @Failure  503  {object}  map[string]string
// @Router   /api/v1/metrics [get]
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	user, shared, err := h.depths.Depths(r.Context())
	if err != nil {
		h.logger.Warn("read dispatch depth failed", zap.Error(err))
		respondError(w, http.StatusServiceUnavailable, "dispatch backlog unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"dispatch_depth": map[string]int{
			"user":   user,
			"shared": shared,
			"total":  user + shared,
		},
	})
}
