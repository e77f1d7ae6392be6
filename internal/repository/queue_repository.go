package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/classifyhub/subject-queue/internal/backoff"
	"github.com/classifyhub/subject-queue/internal/dispatch"
	"github.com/classifyhub/subject-queue/internal/domain"
)

// DefaultMaxAttempts bounds the read-modify-write cycle of one mutation.
const DefaultMaxAttempts = 5

// ConflictHooks carries the metric callbacks for optimistic-lock conflicts.
type ConflictHooks struct {
	OnConflict  func()
	OnExhausted func()
}

// Options tunes the retry behaviour of a QueueRepository.
type Options struct {
	MaxAttempts int
	Backoff     backoff.Strategy
	Hooks       ConflictHooks
}

// QueueRepository exposes atomic append/remove/replace over queue content.
//
// Every mutation reads the queue, computes the new content and writes it
// only if the lock version is unchanged. A conflicting write re-reads and
// reapplies, up to MaxAttempts; there is no in-process locking, so
// concurrent writers in any number of processes compose correctly.
type QueueRepository struct {
	store       QueueStore
	dispatcher  dispatch.Dispatcher
	backoff     backoff.Strategy
	maxAttempts int
	hooks       ConflictHooks
	logger      *zap.Logger
}

func NewQueueRepository(
	store QueueStore,
	dispatcher dispatch.Dispatcher,
	logger *zap.Logger,
	opts Options,
) *QueueRepository {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Backoff == nil {
		opts.Backoff = backoff.NewConstant(0)
	}
	if opts.Hooks.OnConflict == nil {
		opts.Hooks.OnConflict = func() {}
	}
	if opts.Hooks.OnExhausted == nil {
		opts.Hooks.OnExhausted = func() {}
	}
	return &QueueRepository{
		store:       store,
		dispatcher:  dispatcher,
		backoff:     opts.Backoff,
		maxAttempts: opts.MaxAttempts,
		hooks:       opts.Hooks,
		logger:      logger,
	}
}

func (r *QueueRepository) Get(ctx context.Context, key domain.QueueKey) (*domain.Queue, error) {
	return r.store.Get(ctx, key)
}

func (r *QueueRepository) FindOrCreate(ctx context.Context, key domain.QueueKey) (*domain.Queue, error) {
	return r.store.FindOrCreate(ctx, key)
}

// Append unions ids into the queue's content, creating the queue if needed.
// Zero and duplicate ids are dropped; an empty list touches nothing and
// returns (nil, nil).
func (r *QueueRepository) Append(ctx context.Context, key domain.QueueKey, ids []int64) (*domain.Queue, error) {
	ids = domain.Compact(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	return r.mutate(ctx, "append", key, true, func(current []int64) []int64 {
		return domain.Union(current, ids)
	})
}

// Remove drops ids from the queue's content. A missing queue or an empty
// list is a no-op returning (nil, nil).
func (r *QueueRepository) Remove(ctx context.Context, key domain.QueueKey, ids []int64) (*domain.Queue, error) {
	ids = domain.Compact(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	q, err := r.mutate(ctx, "remove", key, false, func(current []int64) []int64 {
		return domain.Difference(current, ids)
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return q, err
}

// Replace overwrites the queue's content, creating the queue if needed.
func (r *QueueRepository) Replace(ctx context.Context, key domain.QueueKey, ids []int64) (*domain.Queue, error) {
	ids = domain.Compact(ids)
	return r.mutate(ctx, "replace", key, true, func([]int64) []int64 {
		return ids
	})
}

// BelowMinimum returns every queue holding fewer than domain.MinThreshold ids.
func (r *QueueRepository) BelowMinimum(ctx context.Context) ([]*domain.Queue, error) {
	return r.store.BelowMinimum(ctx, domain.MinThreshold)
}

func (r *QueueRepository) ListByWorkflow(ctx context.Context, workflowID int64) ([]*domain.Queue, error) {
	return r.store.ListByWorkflow(ctx, workflowID)
}

// CreateForUser seeds a user's queue from the workflow's shared default
// queue. If the default queue does not exist yet it dispatches a refill for
// it and returns domain.ErrQueueUnavailable; no user queue is created, so a
// burst of first-time users cannot create a stampede of empty queues before
// the pool is primed.
func (r *QueueRepository) CreateForUser(ctx context.Context, workflowID, userID int64) (*domain.Queue, error) {
	defaultKey := domain.DefaultKey(workflowID)
	shared, err := r.store.Get(ctx, defaultKey)
	if errors.Is(err, domain.ErrNotFound) {
		if err := r.dispatcher.Dispatch(ctx, defaultKey); err != nil {
			r.logger.Warn("could not dispatch default queue refill",
				zap.Int64("workflow_id", workflowID), zap.Error(err))
		}
		return nil, domain.ErrQueueUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("find default queue: %w", err)
	}

	userKey := domain.QueueKey{WorkflowID: workflowID, UserID: domain.Int64(userID)}
	if shared.Len() == 0 {
		return r.store.FindOrCreate(ctx, userKey)
	}
	return r.Append(ctx, userKey, shared.SetMemberSubjectIDs)
}

// DeleteByWorkflow removes every queue of a deleted workflow.
func (r *QueueRepository) DeleteByWorkflow(ctx context.Context, workflowID int64) (int, error) {
	return r.store.DeleteByWorkflow(ctx, workflowID)
}

// DeleteBySubjectSet removes the workflow's queues scoped to a deleted set.
func (r *QueueRepository) DeleteBySubjectSet(ctx context.Context, workflowID, subjectSetID int64) (int, error) {
	return r.store.DeleteBySubjectSet(ctx, workflowID, subjectSetID)
}

// mutate runs the read, compute, compare-and-swap cycle. When compute
// leaves the content unchanged no write is issued.
func (r *QueueRepository) mutate(
	ctx context.Context,
	op string,
	key domain.QueueKey,
	create bool,
	compute func(current []int64) []int64,
) (*domain.Queue, error) {
	for attempt := 1; ; attempt++ {
		var (
			q   *domain.Queue
			err error
		)
		if create {
			q, err = r.store.FindOrCreate(ctx, key)
		} else {
			q, err = r.store.Get(ctx, key)
		}
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", op, key, err)
		}

		next := compute(q.SetMemberSubjectIDs)
		if slices.Equal(next, q.SetMemberSubjectIDs) {
			return q, nil
		}

		updated, err := r.store.CompareAndSwap(ctx, q.ID, q.LockVersion, next)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("%s %s: %w", op, key, err)
		}

		r.hooks.OnConflict()
		if attempt >= r.maxAttempts {
			r.hooks.OnExhausted()
			r.logger.Warn("queue update gave up after conflicts",
				zap.String("op", op),
				zap.String("queue", key.String()),
				zap.Int("attempts", attempt),
			)
			return nil, fmt.Errorf("%s %s after %d attempts: %w: %w",
				op, key, attempt, domain.ErrRetriesExhausted, err)
		}

		r.logger.Debug("queue version conflict, retrying",
			zap.String("op", op),
			zap.String("queue", key.String()),
			zap.Int64("lock_version", q.LockVersion),
			zap.Int("attempt", attempt),
		)
		if err := backoff.Sleep(ctx, r.backoff, attempt); err != nil {
			return nil, fmt.Errorf("%s %s: %w", op, key, err)
		}
	}
}
