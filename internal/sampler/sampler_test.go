package sampler_test

import (
	"context"
	"math/rand/v2"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/classifyhub/subject-queue/internal/domain"
	"github.com/classifyhub/subject-queue/internal/repository"
	"github.com/classifyhub/subject-queue/internal/sampler"
)

const workflowID = 1

// newPool builds a pool of n active rows in subject set setID, ids starting at firstID.
func newPool(t *testing.T, pool *repository.MemorySubjectPool, setID, firstID int64, n int) []int64 {
	t.Helper()
	r := rand.New(rand.NewPCG(uint64(setID), uint64(firstID)))
	pool.Link(workflowID, setID)
	var ids []int64
	for i := 0; i < n; i++ {
		id := firstID + int64(i)
		pool.Add(domain.SetMemberSubject{ID: id, SubjectID: id * 10, SubjectSetID: setID, Random: r.Float64()})
		ids = append(ids, id)
	}
	return ids
}

func assertUniqueSubset(t *testing.T, got, pool []int64) {
	t.Helper()
	seen := map[int64]bool{}
	for _, id := range got {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
		assert.Contains(t, pool, id)
	}
}

var plain = &domain.Workflow{ID: workflowID}

func TestSelect_LimitBelowAvailable(t *testing.T) {
	pool := repository.NewMemorySubjectPool()
	all := newPool(t, pool, 1, 1, 500)
	s := sampler.New(pool, 0, zap.NewNop())

	got, err := s.Select(context.Background(), plain, sampler.Options{Limit: 20})
	require.NoError(t, err)
	assert.Len(t, got, 20)
	assertUniqueSubset(t, got, all)
}

func TestSelect_DefaultLimit(t *testing.T) {
	pool := repository.NewMemorySubjectPool()
	newPool(t, pool, 1, 1, 100)
	s := sampler.New(pool, 0, zap.NewNop())

	got, err := s.Select(context.Background(), plain, sampler.Options{})
	require.NoError(t, err)
	assert.Len(t, got, sampler.DefaultLimit)
}

func TestSelect_LimitAtOrAboveAvailableReturnsPermutation(t *testing.T) {
	pool := repository.NewMemorySubjectPool()
	all := newPool(t, pool, 1, 1, 15)
	s := sampler.New(pool, 0, zap.NewNop())

	for _, limit := range []int{15, 20} {
		got, err := s.Select(context.Background(), plain, sampler.Options{Limit: limit})
		require.NoError(t, err)
		assert.ElementsMatch(t, all, got, "limit %d", limit)
	}
}

func TestSelect_EmptyPool(t *testing.T) {
	s := sampler.New(repository.NewMemorySubjectPool(), 0, zap.NewNop())
	got, err := s.Select(context.Background(), plain, sampler.Options{Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSelect_Grouped(t *testing.T) {
	pool := repository.NewMemorySubjectPool()
	newPool(t, pool, 1, 1, 50)
	setTwo := newPool(t, pool, 2, 1000, 50)
	s := sampler.New(pool, 0, zap.NewNop())
	grouped := &domain.Workflow{ID: workflowID, Grouped: true}

	t.Run("filters by subject set", func(t *testing.T) {
		got, err := s.Select(context.Background(), grouped, sampler.Options{SubjectSetID: domain.Int64(2), Limit: 10})
		require.NoError(t, err)
		assert.Len(t, got, 10)
		assertUniqueSubset(t, got, setTwo)
	})

	t.Run("requires a subject set", func(t *testing.T) {
		_, err := s.Select(context.Background(), grouped, sampler.Options{Limit: 10})
		assert.ErrorIs(t, err, domain.ErrMissingGroupParameter)
	})
}

func TestSelect_PrioritizedIsNotImplemented(t *testing.T) {
	s := sampler.New(repository.NewMemorySubjectPool(), 0, zap.NewNop())
	for _, wf := range []*domain.Workflow{
		{ID: workflowID, Prioritized: true},
		{ID: workflowID, Prioritized: true, Grouped: true},
	} {
		_, err := s.Select(context.Background(), wf, sampler.Options{SubjectSetID: domain.Int64(1)})
		assert.ErrorIs(t, err, domain.ErrNotImplemented)
	}
}

func TestSelect_ExcludesRetiredAndSeen(t *testing.T) {
	pool := repository.NewMemorySubjectPool()
	all := newPool(t, pool, 1, 1, 10)
	require.NoError(t, pool.MarkRetired(context.Background(), 1))
	pool.Add(domain.SetMemberSubject{ID: 2, SubjectID: 20, SubjectSetID: 1, State: domain.StateInactive})
	pool.MarkSeen(7, workflowID, 30) // subject of row 3
	s := sampler.New(pool, 0, zap.NewNop())

	got, err := s.Select(context.Background(), plain, sampler.Options{UserID: domain.Int64(7), Limit: 50})
	require.NoError(t, err)
	assert.ElementsMatch(t, all[3:], got)

	anonymous, err := s.Select(context.Background(), plain, sampler.Options{Limit: 50})
	require.NoError(t, err)
	assert.ElementsMatch(t, all[2:], anonymous)
}

// countingPool counts range-sampling rounds.
type countingPool struct {
	repository.SubjectPool
	rounds atomic.Int32
}

func (c *countingPool) SampleRange(ctx context.Context, f repository.PoolFilter, lo, hi float64, limit int) ([]int64, error) {
	c.rounds.Add(1)
	return c.SubjectPool.SampleRange(ctx, f, lo, hi, limit)
}

// All ranks sit near 1 while every draw is 0.1, so no round ever matches.
// The sampler must stop after MaxRounds and fall back to a full shuffle.
func TestSelect_SparsePoolFallsBackAfterMaxRounds(t *testing.T) {
	mem := repository.NewMemorySubjectPool()
	mem.Link(workflowID, 1)
	var all []int64
	for id := int64(1); id <= 30; id++ {
		mem.Add(domain.SetMemberSubject{ID: id, SubjectID: id, SubjectSetID: 1, Random: 0.99})
		all = append(all, id)
	}
	pool := &countingPool{SubjectPool: mem}
	s := sampler.New(pool, 4, zap.NewNop())
	s.SetUniform(func() float64 { return 0.1 })

	got, err := s.Select(context.Background(), plain, sampler.Options{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, got, 10)
	assertUniqueSubset(t, got, all)
	assert.Equal(t, int32(4), pool.rounds.Load())
}
