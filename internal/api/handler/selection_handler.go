package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/classifyhub/subject-queue/internal/api/middleware"
	"github.com/classifyhub/subject-queue/internal/domain"
	"github.com/classifyhub/subject-queue/internal/service"
)

// SelectionHandler serves queued subjects to classification clients.
type SelectionHandler struct {
	selector *service.Selector
	logger   *zap.Logger
}

func NewSelectionHandler(selector *service.Selector, logger *zap.Logger) *SelectionHandler {
	return &SelectionHandler{selector: selector, logger: logger}
}

// QueuedSubjects handles GET /api/v1/workflows/{workflowID}/queued_subjects
//
// @Summary  Next page of subjects for the caller
// @Tags     selection
// @Produce  json
// @Param    workflowID      path      int     true   "Workflow ID"
// @Param    X-User-ID       header    int     false  "Classifying user; absent for anonymous"
// @Param    subject_set_id  query     int     false  "Subject set (required for grouped workflows)"
// @Param    page_size       query     int     false  "Default 10, max 100"
// @Success  200             {object}  domain.Selection
// @Failure  400             {object}  map[string]string
// @Failure  422             {object}  map[string]string
// @Router   /api/v1/workflows/{workflowID}/queued_subjects [get]
func (h *SelectionHandler) QueuedSubjects(w http.ResponseWriter, r *http.Request) {
	workflowID, err := parseWorkflowID(r)
	if err != nil {
		mapError(w, domain.ErrMissingWorkflow)
		return
	}

	q := r.URL.Query()
	req := domain.SelectRequest{
		WorkflowID: workflowID,
		UserID:     apimw.GetUserID(r.Context()),
	}
	if v := q.Get("subject_set_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			respondError(w, http.StatusBadRequest, "subject_set_id must be a positive integer")
			return
		}
		req.SubjectSetID = &id
	}
	if v := q.Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "page_size must be an integer")
			return
		}
		req.PageSize = n
	}

	sel, err := h.selector.QueuedSubjects(r.Context(), req)
	if err != nil {
		h.logger.Warn("queued subjects failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Int64("workflow_id", workflowID),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sel)
}

func parseWorkflowID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "workflowID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrMissingWorkflow
	}
	return id, nil
}
