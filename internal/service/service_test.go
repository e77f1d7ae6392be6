package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/classifyhub/subject-queue/internal/dispatch"
	"github.com/classifyhub/subject-queue/internal/domain"
	"github.com/classifyhub/subject-queue/internal/repository"
	"github.com/classifyhub/subject-queue/internal/sampler"
	"github.com/classifyhub/subject-queue/internal/service"
)

const (
	plainWF   = 1
	groupedWF = 2
)

type env struct {
	store      *repository.MemoryQueueStore
	pool       *repository.MemorySubjectPool
	workflows  *repository.MemoryWorkflowRepository
	dispatcher *dispatch.Recorder
	queues     *repository.QueueRepository
	selector   *service.Selector
	maintainer *service.Maintainer
	served     int
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		store:      repository.NewMemoryQueueStore(),
		pool:       repository.NewMemorySubjectPool(),
		dispatcher: dispatch.NewRecorder(),
	}
	e.workflows = repository.NewMemoryWorkflowRepository(
		domain.Workflow{ID: plainWF, SubjectSetIDs: []int64{10}},
		domain.Workflow{ID: groupedWF, Grouped: true, SubjectSetIDs: []int64{20, 21}},
	)
	e.pool.Link(plainWF, 10)
	e.pool.Link(groupedWF, 20)
	e.pool.Link(groupedWF, 21)
	for id := int64(1); id <= 100; id++ {
		e.pool.Add(domain.SetMemberSubject{ID: id, SubjectID: id, SubjectSetID: 10, Random: float64(id) / 100})
	}
	for id := int64(201); id <= 230; id++ {
		set := int64(20)
		if id > 215 {
			set = 21
		}
		e.pool.Add(domain.SetMemberSubject{ID: id, SubjectID: id, SubjectSetID: set, Random: float64(id-200) / 30})
	}

	logger := zap.NewNop()
	e.queues = repository.NewQueueRepository(e.store, e.dispatcher, logger, repository.Options{})
	e.selector = service.NewSelector(e.workflows, e.queues, e.dispatcher, logger, service.SelectorHooks{
		OnServed: func(domain.RefillTier, int) { e.served++ },
	})
	e.maintainer = service.NewMaintainer(e.workflows, e.queues, e.pool,
		sampler.New(e.pool, 0, logger), logger, service.MaintainerOptions{Fanout: 2})
	return e
}

func ids(from, to int64) []int64 {
	var out []int64
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

func queueIDs(t *testing.T, e *env, key domain.QueueKey) []int64 {
	t.Helper()
	q, err := e.queues.Get(context.Background(), key)
	require.NoError(t, err)
	return q.SetMemberSubjectIDs
}
