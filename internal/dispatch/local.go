package dispatch

import (
	"context"

	"github.com/classifyhub/subject-queue/internal/domain"
	"github.com/classifyhub/subject-queue/internal/queue"
)

// Local dispatches refills onto an in-process RefillQueue drained by a
// worker.Pool.
type Local struct {
	q      *queue.RefillQueue
	onSent Hook
}

// NewLocal returns a Local dispatcher. onSent is optional (nil = no-op).
func NewLocal(q *queue.RefillQueue, onSent Hook) *Local {
	if onSent == nil {
		onSent = noopHook
	}
	return &Local{q: q, onSent: onSent}
}

// Dispatch never blocks; a full tier yields domain.ErrDispatchQueueFull.
func (l *Local) Dispatch(_ context.Context, key domain.QueueKey) error {
	job := NewJob(key)
	if err := l.q.Enqueue(queue.Item{JobID: job.ID, Key: key, EnqueuedAt: job.EnqueuedAt}); err != nil {
		return err
	}
	l.onSent(key.Tier())
	return nil
}

func (l *Local) Depths(context.Context) (user, shared int, err error) {
	user, shared = l.q.Depths()
	return user, shared, nil
}

var (
	_ Dispatcher    = (*Local)(nil)
	_ DepthReporter = (*Local)(nil)
)
