package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	apimw "github.com/classifyhub/subject-queue/internal/api/middleware"
	"github.com/classifyhub/subject-queue/internal/domain"
	"github.com/classifyhub/subject-queue/internal/repository"
	"github.com/classifyhub/subject-queue/internal/service"
)

// QueueHandler exposes queue maintenance and inspection endpoints.
type QueueHandler struct {
	maintainer *service.Maintainer
	queues     *repository.QueueRepository
	logger     *zap.Logger
}

func NewQueueHandler(maintainer *service.Maintainer, queues *repository.QueueRepository, logger *zap.Logger) *QueueHandler {
	return &QueueHandler{maintainer: maintainer, queues: queues, logger: logger}
}

// Apply handles POST /api/v1/workflows/{workflowID}/queue_ops
//
// @Summary     Run a queue maintenance operation
// @Tags        queues
// @Accept      json
// @Produce     json
// @Param       workflowID  path      int                    true  "Workflow ID"
// @Param       body        body      domain.QueueOpRequest  true  "Operation"
// @Success     200         {object}  domain.Queue           "Single-queue operations"
// @Success     204         "Fan-out operation applied, or nothing to do"
// @Failure     422         {object}  map[string]string
// @Failure     503         {object}  map[string]string
// @Router      /api/v1/workflows/{workflowID}/queue_ops [post]
func (h *QueueHandler) Apply(w http.ResponseWriter, r *http.Request) {
	workflowID, err := parseWorkflowID(r)
	if err != nil {
		mapError(w, err)
		return
	}

	var req domain.QueueOpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	q, err := h.maintainer.Apply(r.Context(), workflowID, req)
	if err != nil {
		h.logger.Warn("queue operation failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.String("op", string(req.Op)),
			zap.Int64("workflow_id", workflowID),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	if q == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondJSON(w, http.StatusOK, q)
}

// BelowMinimum handles GET /api/v1/queues/below_minimum
//
// @Summary  Queues holding fewer subjects than the refill threshold
// @Tags     queues
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   /api/v1/queues/below_minimum [get]
func (h *QueueHandler) BelowMinimum(w http.ResponseWriter, r *http.Request) {
	queues, err := h.queues.BelowMinimum(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	if queues == nil {
		queues = []*domain.Queue{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"threshold": domain.MinThreshold,
		"count":     len(queues),
		"queues":    queues,
	})
}
