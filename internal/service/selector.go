package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/classifyhub/subject-queue/internal/dispatch"
	"github.com/classifyhub/subject-queue/internal/domain"
	"github.com/classifyhub/subject-queue/internal/repository"
)

// SelectorHooks carries the metric callbacks injected by main.
type SelectorHooks struct {
	OnServed func(tier domain.RefillTier, n int)
}

// Selector serves pages of queued subjects to classification clients.
// It never samples on the request path: it reads whatever the queue holds
// and, when the queue runs low, dispatches a refill and returns immediately.
type Selector struct {
	workflows  repository.WorkflowRepository
	queues     *repository.QueueRepository
	dispatcher dispatch.Dispatcher
	logger     *zap.Logger
	onServed   func(domain.RefillTier, int)
}

func NewSelector(
	workflows repository.WorkflowRepository,
	queues *repository.QueueRepository,
	dispatcher dispatch.Dispatcher,
	logger *zap.Logger,
	hooks SelectorHooks,
) *Selector {
	if hooks.OnServed == nil {
		hooks.OnServed = func(domain.RefillTier, int) {}
	}
	return &Selector{
		workflows:  workflows,
		queues:     queues,
		dispatcher: dispatcher,
		logger:     logger,
		onServed:   hooks.OnServed,
	}
}

// QueuedSubjects returns the next page of ids for the requesting user (or the
// anonymous shared queue when UserID is nil).
//
// Errors: domain.ErrMissingWorkflow when the workflow is absent,
// domain.ErrMissingGroupParameter when a grouped workflow gets no subject set,
// domain.ErrSubjectSetNotLinked when the set does not feed the workflow.
// Refill dispatch failures are logged and never surfaced.
func (s *Selector) QueuedSubjects(ctx context.Context, req domain.SelectRequest) (domain.Selection, error) {
	if req.WorkflowID == 0 {
		return domain.Selection{}, domain.ErrMissingWorkflow
	}
	wf, err := s.workflows.Get(ctx, req.WorkflowID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Selection{}, domain.ErrMissingWorkflow
	}
	if err != nil {
		return domain.Selection{}, fmt.Errorf("load workflow %d: %w", req.WorkflowID, err)
	}

	key := domain.QueueKey{WorkflowID: wf.ID, UserID: req.UserID}
	if wf.Grouped {
		if req.SubjectSetID == nil {
			return domain.Selection{}, domain.ErrMissingGroupParameter
		}
		if !wf.HasSubjectSet(*req.SubjectSetID) {
			return domain.Selection{}, fmt.Errorf("subject set %d: %w", *req.SubjectSetID, domain.ErrSubjectSetNotLinked)
		}
		key.SubjectSetID = req.SubjectSetID
	}

	q, err := s.queues.FindOrCreate(ctx, key)
	if err != nil {
		return domain.Selection{}, fmt.Errorf("resolve queue %s: %w", key, err)
	}

	dispatched := false
	if q.BelowMinimum() {
		if err := s.dispatcher.Dispatch(ctx, key); err != nil {
			s.logger.Warn("refill dispatch failed",
				zap.String("queue", key.String()),
				zap.Int("size", q.Len()),
				zap.Error(err),
			)
		} else {
			dispatched = true
		}
	}

	ids := q.NextSubjects(req.EffectivePageSize())
	s.onServed(key.Tier(), len(ids))
	return domain.Selection{
		IDs: ids,
		Context: domain.SelectionContext{
			QueueID:          q.ID,
			QueueSize:        q.Len(),
			RefillDispatched: dispatched,
		},
	}, nil
}
