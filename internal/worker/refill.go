package worker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/classifyhub/subject-queue/internal/domain"
	"github.com/classifyhub/subject-queue/internal/repository"
	"github.com/classifyhub/subject-queue/internal/sampler"
)

// Refiller samples fresh subjects for one queue and appends them.
//
// Refills are idempotent: the append is a set union, so a duplicate job
// never queues an id twice.
type Refiller struct {
	workflows repository.WorkflowRepository
	sampler   *sampler.Sampler
	queues    *repository.QueueRepository
	size      int
	logger    *zap.Logger
}

func NewRefiller(
	workflows repository.WorkflowRepository,
	smp *sampler.Sampler,
	queues *repository.QueueRepository,
	size int,
	logger *zap.Logger,
) *Refiller {
	if size <= 0 {
		size = sampler.DefaultLimit
	}
	return &Refiller{workflows: workflows, sampler: smp, queues: queues, size: size, logger: logger}
}

// Refill tops up the queue named by key and returns how many ids were sampled.
func (r *Refiller) Refill(ctx context.Context, key domain.QueueKey) (int, error) {
	wf, err := r.workflows.Get(ctx, key.WorkflowID)
	if errors.Is(err, domain.ErrNotFound) {
		return 0, fmt.Errorf("refill %s: %w", key, domain.ErrMissingWorkflow)
	}
	if err != nil {
		return 0, fmt.Errorf("refill %s: %w", key, err)
	}

	ids, err := r.sampler.Select(ctx, wf, sampler.Options{
		UserID:       key.UserID,
		SubjectSetID: key.SubjectSetID,
		Limit:        r.size,
	})
	if err != nil {
		return 0, fmt.Errorf("refill %s: %w", key, err)
	}
	if len(ids) == 0 {
		r.logger.Debug("refill found no available subjects", zap.String("queue", key.String()))
		return 0, nil
	}

	if _, err := r.queues.Append(ctx, key, ids); err != nil {
		return 0, fmt.Errorf("refill %s: %w", key, err)
	}
	return len(ids), nil
}
