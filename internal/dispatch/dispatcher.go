// Package dispatch defines how queue refills are handed to a background
// executor. Dispatch is fire-and-forget: it returns once the job is
// accepted, never waits for the refill, and reports no completion.
// A job may run more than once for the same queue, so refills must be
// idempotent.
package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/classifyhub/subject-queue/internal/domain"
)

// Dispatcher schedules an out-of-band refill of the queue named by key.
type Dispatcher interface {
	Dispatch(ctx context.Context, key domain.QueueKey) error
}

// DepthReporter reports how many refill jobs wait in each tier.
type DepthReporter interface {
	Depths(ctx context.Context) (user, shared int, err error)
}

// Job is the serialised form of a refill request.
type Job struct {
	ID         string          `json:"id"`
	Key        domain.QueueKey `json:"key"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

func NewJob(key domain.QueueKey) Job {
	return Job{ID: uuid.New().String(), Key: key, EnqueuedAt: time.Now().UTC()}
}

// Hook observes accepted dispatches; used for metrics.
type Hook func(tier domain.RefillTier)

func noopHook(domain.RefillTier) {}
