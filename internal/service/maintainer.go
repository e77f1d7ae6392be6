package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/classifyhub/subject-queue/internal/domain"
	"github.com/classifyhub/subject-queue/internal/repository"
	"github.com/classifyhub/subject-queue/internal/sampler"
)

// DefaultFanout bounds how many queues one *ForAll call updates at once.
const DefaultFanout = 8

// EnqueueOptions addresses a single queue of a workflow.
type EnqueueOptions struct {
	UserID       *int64
	SubjectSetID *int64
}

// MaintainerOptions tunes fan-out and reseeding.
type MaintainerOptions struct {
	Fanout     int
	ReseedSize int
}

// Maintainer keeps queue content consistent with subject lifecycle events:
// newly linked or retired subjects, classifications made elsewhere, and
// deleted workflows or subject sets. Every write goes through the
// QueueRepository conflict-retry path.
type Maintainer struct {
	workflows  repository.WorkflowRepository
	queues     *repository.QueueRepository
	pool       repository.SubjectPool
	sampler    *sampler.Sampler
	fanout     int
	reseedSize int
	logger     *zap.Logger
}

func NewMaintainer(
	workflows repository.WorkflowRepository,
	queues *repository.QueueRepository,
	pool repository.SubjectPool,
	smp *sampler.Sampler,
	logger *zap.Logger,
	opts MaintainerOptions,
) *Maintainer {
	if opts.Fanout <= 0 {
		opts.Fanout = DefaultFanout
	}
	if opts.ReseedSize <= 0 {
		opts.ReseedSize = sampler.DefaultLimit
	}
	return &Maintainer{
		workflows:  workflows,
		queues:     queues,
		pool:       pool,
		sampler:    smp,
		fanout:     opts.Fanout,
		reseedSize: opts.ReseedSize,
		logger:     logger,
	}
}

// EnqueueForAll adds ids to every queue of the workflow.
func (m *Maintainer) EnqueueForAll(ctx context.Context, workflowID int64, ids ...int64) error {
	return m.forAll(ctx, "enqueue_for_all", workflowID, ids, m.queues.Append)
}

// DequeueForAll removes ids from every queue of the workflow.
func (m *Maintainer) DequeueForAll(ctx context.Context, workflowID int64, ids ...int64) error {
	return m.forAll(ctx, "dequeue_for_all", workflowID, ids, m.queues.Remove)
}

// Enqueue adds ids to one queue, creating it if needed. For grouped
// workflows without an explicit subject set, the set of the first id is used.
func (m *Maintainer) Enqueue(ctx context.Context, workflowID int64, ids []int64, opts EnqueueOptions) (*domain.Queue, error) {
	ids = domain.Compact(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	key, err := m.resolveKey(ctx, workflowID, ids[0], opts)
	if err != nil {
		return nil, err
	}
	return m.queues.Append(ctx, key, ids)
}

// Dequeue removes ids from one queue. A missing queue is left missing.
func (m *Maintainer) Dequeue(ctx context.Context, workflowID int64, ids []int64, opts EnqueueOptions) (*domain.Queue, error) {
	ids = domain.Compact(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	key, err := m.resolveKey(ctx, workflowID, ids[0], opts)
	if err != nil {
		return nil, err
	}
	return m.queues.Remove(ctx, key, ids)
}

// Reload overwrites the content of the workflow's shared queue for
// subjectSetID (nil for the ungrouped queue). No other queue is touched.
func (m *Maintainer) Reload(ctx context.Context, workflowID int64, ids []int64, subjectSetID *int64) (*domain.Queue, error) {
	wf, err := m.workflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if err := checkSubjectSet(wf, subjectSetID); err != nil {
		return nil, err
	}
	return m.queues.Replace(ctx, domain.QueueKey{WorkflowID: wf.ID, SubjectSetID: subjectSetID}, ids)
}

// Reseed samples a fresh batch from the pool and reloads the shared queue
// with it. Run after subjects are linked into a set.
func (m *Maintainer) Reseed(ctx context.Context, workflowID int64, subjectSetID *int64) (*domain.Queue, error) {
	wf, err := m.workflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if !wf.Grouped {
		subjectSetID = nil
	}
	if err := checkSubjectSet(wf, subjectSetID); err != nil {
		return nil, err
	}
	ids, err := m.sampler.Select(ctx, wf, sampler.Options{SubjectSetID: subjectSetID, Limit: m.reseedSize})
	if err != nil {
		return nil, fmt.Errorf("reseed workflow %d: %w", workflowID, err)
	}
	return m.queues.Replace(ctx, domain.QueueKey{WorkflowID: wf.ID, SubjectSetID: subjectSetID}, ids)
}

// Retire marks pool rows retired and removes them from every queue that
// can hold them: the queues of each workflow linked to the row's subject
// set, not only those of workflowID. Every row must belong to workflowID's
// pool; nothing is retired otherwise.
func (m *Maintainer) Retire(ctx context.Context, workflowID int64, ids ...int64) error {
	ids = domain.Compact(ids)
	if len(ids) == 0 {
		return nil
	}
	wf, err := m.workflow(ctx, workflowID)
	if err != nil {
		return err
	}

	bySet := make(map[int64][]int64)
	for _, id := range ids {
		row, err := m.pool.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("retire subject %d: %w", id, err)
		}
		if !wf.HasSubjectSet(row.SubjectSetID) {
			return fmt.Errorf("retire subject %d of set %d: %w", id, row.SubjectSetID, domain.ErrSubjectSetNotLinked)
		}
		bySet[row.SubjectSetID] = append(bySet[row.SubjectSetID], id)
	}

	affected := make(map[int64][]int64)
	for setID, setIDs := range bySet {
		linked, err := m.workflows.LinkedWorkflows(ctx, setID)
		if err != nil {
			return fmt.Errorf("retire from set %d: %w", setID, err)
		}
		for _, wfID := range linked {
			affected[wfID] = append(affected[wfID], setIDs...)
		}
	}

	for _, id := range ids {
		if err := m.pool.MarkRetired(ctx, id); err != nil {
			return fmt.Errorf("retire subject %d: %w", id, err)
		}
	}
	for _, wfID := range slices.Sorted(maps.Keys(affected)) {
		if err := m.DequeueForAll(ctx, wfID, affected[wfID]...); err != nil {
			return err
		}
	}
	m.logger.Info("subjects retired",
		zap.Int64("workflow_id", workflowID),
		zap.Int("subjects", len(ids)),
		zap.Int("workflows", len(affected)),
	)
	return nil
}

// Purge deletes the queues of a deleted workflow, or only those scoped to
// subjectSetID when it is given.
func (m *Maintainer) Purge(ctx context.Context, workflowID int64, subjectSetID *int64) (int, error) {
	var (
		n   int
		err error
	)
	if subjectSetID != nil {
		n, err = m.queues.DeleteBySubjectSet(ctx, workflowID, *subjectSetID)
	} else {
		n, err = m.queues.DeleteByWorkflow(ctx, workflowID)
	}
	if err != nil {
		return 0, fmt.Errorf("purge workflow %d: %w", workflowID, err)
	}
	m.logger.Info("queues purged", zap.Int64("workflow_id", workflowID), zap.Int("count", n))
	return n, nil
}

// CreateForUser seeds the user's queue from the workflow's shared default
// queue. When the default queue does not exist yet a refill is dispatched for
// it and domain.ErrQueueUnavailable is returned.
func (m *Maintainer) CreateForUser(ctx context.Context, workflowID, userID int64) (*domain.Queue, error) {
	wf, err := m.workflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	return m.queues.CreateForUser(ctx, wf.ID, userID)
}

// Apply runs the operation named in req. It returns the affected queue for
// single-queue operations and nil otherwise.
func (m *Maintainer) Apply(ctx context.Context, workflowID int64, req domain.QueueOpRequest) (*domain.Queue, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	opts := EnqueueOptions{UserID: req.UserID, SubjectSetID: req.SubjectSetID}

	switch req.Op {
	case domain.OpEnqueue:
		return m.Enqueue(ctx, workflowID, req.IDs, opts)
	case domain.OpDequeue:
		return m.Dequeue(ctx, workflowID, req.IDs, opts)
	case domain.OpEnqueueForAll:
		return nil, m.EnqueueForAll(ctx, workflowID, req.IDs...)
	case domain.OpDequeueForAll:
		return nil, m.DequeueForAll(ctx, workflowID, req.IDs...)
	case domain.OpReload:
		return m.Reload(ctx, workflowID, req.IDs, req.SubjectSetID)
	case domain.OpReseed:
		return m.Reseed(ctx, workflowID, req.SubjectSetID)
	case domain.OpRetire:
		return nil, m.Retire(ctx, workflowID, req.IDs...)
	case domain.OpPurge:
		_, err := m.Purge(ctx, workflowID, req.SubjectSetID)
		return nil, err
	case domain.OpCreateForUser:
		return m.CreateForUser(ctx, workflowID, *req.UserID)
	}
	return nil, domain.ErrInvalidOperation
}

func (m *Maintainer) forAll(
	ctx context.Context,
	op string,
	workflowID int64,
	ids []int64,
	apply func(context.Context, domain.QueueKey, []int64) (*domain.Queue, error),
) error {
	ids = domain.Compact(ids)
	if len(ids) == 0 {
		return nil
	}
	queues, err := m.queues.ListByWorkflow(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("%s workflow %d: %w", op, workflowID, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.fanout)
	for _, q := range queues {
		key := q.Key()
		g.Go(func() error {
			_, err := apply(gctx, key, ids)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("%s workflow %d: %w", op, workflowID, err)
	}
	m.logger.Debug("queues updated",
		zap.String("op", op),
		zap.Int64("workflow_id", workflowID),
		zap.Int("queues", len(queues)),
		zap.Int("ids", len(ids)),
	)
	return nil
}

func (m *Maintainer) resolveKey(ctx context.Context, workflowID, firstID int64, opts EnqueueOptions) (domain.QueueKey, error) {
	wf, err := m.workflow(ctx, workflowID)
	if err != nil {
		return domain.QueueKey{}, err
	}
	key := domain.QueueKey{WorkflowID: wf.ID, UserID: opts.UserID}
	if !wf.Grouped {
		return key, nil
	}
	if opts.SubjectSetID != nil {
		key.SubjectSetID = opts.SubjectSetID
	} else {
		sms, err := m.pool.Get(ctx, firstID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.QueueKey{}, domain.ErrMissingGroupParameter
		}
		if err != nil {
			return domain.QueueKey{}, fmt.Errorf("infer subject set from %d: %w", firstID, err)
		}
		key.SubjectSetID = domain.Int64(sms.SubjectSetID)
	}
	if err := checkSubjectSet(wf, key.SubjectSetID); err != nil {
		return domain.QueueKey{}, err
	}
	return key, nil
}

// checkSubjectSet rejects a set that does not feed the workflow's pool.
// A nil set addresses the ungrouped queue and always passes.
func checkSubjectSet(wf *domain.Workflow, subjectSetID *int64) error {
	if subjectSetID == nil || wf.HasSubjectSet(*subjectSetID) {
		return nil
	}
	return fmt.Errorf("subject set %d of workflow %d: %w", *subjectSetID, wf.ID, domain.ErrSubjectSetNotLinked)
}

func (m *Maintainer) workflow(ctx context.Context, id int64) (*domain.Workflow, error) {
	if id == 0 {
		return nil, domain.ErrMissingWorkflow
	}
	wf, err := m.workflows.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrMissingWorkflow
	}
	if err != nil {
		return nil, fmt.Errorf("load workflow %d: %w", id, err)
	}
	return wf, nil
}
