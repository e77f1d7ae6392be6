package handler

import (
	"errors"
	"net/http"

	"github.com/classifyhub/subject-queue/internal/api/render"
	"github.com/classifyhub/subject-queue/internal/domain"
)

func respondJSON(w http.ResponseWriter, status int, v any) { render.JSON(w, status, v) }

func respondError(w http.ResponseWriter, status int, msg string) { render.Error(w, status, msg) }

// mapError writes the status for a service error. Unknown errors become a
// bare 500 so storage details never reach the client.
func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrQueueUnavailable),
		errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrMissingWorkflow),
		errors.Is(err, domain.ErrMissingGroupParameter),
		errors.Is(err, domain.ErrSubjectSetNotLinked),
		errors.Is(err, domain.ErrInvalidOperation):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrNotImplemented):
		respondError(w, http.StatusNotImplemented, err.Error())
	case errors.Is(err, domain.ErrRetriesExhausted),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrDispatchQueueFull):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
