// Package sampler draws approximately uniform random subsets of a
// workflow's subject pool without sorting the pool.
//
// Every set member subject carries a random rank fixed at insert time. A
// round picks two independent uniform values and takes rows whose rank falls
// between them; rounds repeat, deduplicated, until enough ids are collected.
// When the pool is no larger than the request, sampling degenerates to
// returning a permutation of the whole pool.
package sampler

import (
	"context"
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/classifyhub/subject-queue/internal/domain"
	"github.com/classifyhub/subject-queue/internal/repository"
)

const (
	// DefaultLimit is used when Options.Limit is not positive.
	DefaultLimit = 20
	// DefaultMaxRounds bounds range-sampling rounds before falling back to
	// an exhaustive shuffle.
	DefaultMaxRounds = 10
)

// Options selects what to sample for.
type Options struct {
	UserID       *int64
	SubjectSetID *int64
	Limit        int
}

type Sampler struct {
	pool      repository.SubjectPool
	maxRounds int
	logger    *zap.Logger
	uniform   func() float64
	shuffle   func(n int, swap func(i, j int))
}

func New(pool repository.SubjectPool, maxRounds int, logger *zap.Logger) *Sampler {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	return &Sampler{
		pool:      pool,
		maxRounds: maxRounds,
		logger:    logger,
		uniform:   rand.Float64,
		shuffle:   rand.Shuffle,
	}
}

// Select returns up to opts.Limit distinct available ids for the workflow.
//
// Grouped workflows must name a subject set (domain.ErrMissingGroupParameter).
// Prioritized workflows are not supported and yield domain.ErrNotImplemented.
func (s *Sampler) Select(ctx context.Context, wf *domain.Workflow, opts Options) ([]int64, error) {
	if wf.Prioritized {
		return nil, domain.ErrNotImplemented
	}
	filter := repository.PoolFilter{WorkflowID: wf.ID, UserID: opts.UserID}
	if wf.Grouped {
		if opts.SubjectSetID == nil {
			return nil, domain.ErrMissingGroupParameter
		}
		filter.SubjectSetID = opts.SubjectSetID
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	available, err := s.pool.AvailableCount(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("sample workflow %d: %w", wf.ID, err)
	}
	if available == 0 {
		return []int64{}, nil
	}
	if limit >= available {
		return s.everything(ctx, filter, limit)
	}

	picked := make([]int64, 0, limit)
	seen := make(map[int64]struct{}, limit)
	for round := 0; round < s.maxRounds && len(picked) < limit; round++ {
		lo, hi := s.uniform(), s.uniform()
		if lo > hi {
			lo, hi = hi, lo
		}
		batch, err := s.pool.SampleRange(ctx, filter, lo, hi, limit)
		if err != nil {
			return nil, fmt.Errorf("sample workflow %d: %w", wf.ID, err)
		}
		for _, id := range batch {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			picked = append(picked, id)
		}
	}

	if len(picked) < limit {
		s.logger.Debug("range sampling did not converge, shuffling pool",
			zap.Int64("workflow_id", wf.ID),
			zap.Int("picked", len(picked)),
			zap.Int("limit", limit),
			zap.Int("available", available),
		)
		return s.everything(ctx, filter, limit)
	}
	return picked[:limit], nil
}

// everything returns a random permutation of the available ids, trimmed to
// limit.
func (s *Sampler) everything(ctx context.Context, f repository.PoolFilter, limit int) ([]int64, error) {
	ids, err := s.pool.AvailableIDs(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("sample workflow %d: %w", f.WorkflowID, err)
	}
	s.shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}
