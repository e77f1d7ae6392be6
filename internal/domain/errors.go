package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound              = errors.New("not found")
	ErrMissingWorkflow       = errors.New("workflow_id parameter missing or unknown")
	ErrMissingGroupParameter = errors.New("subject_set_id parameter missing for grouped workflow")
	ErrSubjectSetNotLinked   = errors.New("subject set is not linked to the workflow")
	ErrConflict              = errors.New("conflict: queue was modified concurrently")
	ErrRetriesExhausted      = errors.New("queue update retries exhausted")
	ErrNotImplemented        = errors.New("selection for prioritized workflows is not implemented")
	ErrQueueUnavailable      = errors.New("default queue not yet available")
	ErrDispatchQueueFull     = errors.New("refill dispatch queue is at capacity")
	ErrInvalidOperation      = errors.New("invalid queue operation")
)
