package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classifyhub/subject-queue/internal/domain"
	"github.com/classifyhub/subject-queue/internal/service"
)

func TestMaintainer_EnqueueDequeueForAllRoundTrip(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	keys := []domain.QueueKey{
		domain.DefaultKey(plainWF),
		{WorkflowID: plainWF, UserID: domain.Int64(1)},
		{WorkflowID: plainWF, UserID: domain.Int64(2)},
	}
	for _, k := range keys {
		e.store.Seed(k, []int64{1, 2, 3})
	}
	other := e.store.Seed(domain.DefaultKey(groupedWF), []int64{201})

	require.NoError(t, e.maintainer.EnqueueForAll(ctx, plainWF, 4))
	for _, k := range keys {
		assert.Equal(t, []int64{1, 2, 3, 4}, queueIDs(t, e, k), k.String())
	}

	require.NoError(t, e.maintainer.DequeueForAll(ctx, plainWF, 4))
	for _, k := range keys {
		assert.Equal(t, []int64{1, 2, 3}, queueIDs(t, e, k), k.String())
	}

	assert.Equal(t, other.SetMemberSubjectIDs, queueIDs(t, e, other.Key()))
}

func TestMaintainer_EmptyInputNeverReachesTheStore(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	q, err := e.maintainer.Enqueue(ctx, plainWF, nil, service.EnqueueOptions{})
	assert.NoError(t, err)
	assert.Nil(t, q)
	q, err = e.maintainer.Dequeue(ctx, plainWF, []int64{}, service.EnqueueOptions{})
	assert.NoError(t, err)
	assert.Nil(t, q)
	assert.NoError(t, e.maintainer.EnqueueForAll(ctx, plainWF))
	assert.NoError(t, e.maintainer.DequeueForAll(ctx, plainWF, 0))
	assert.NoError(t, e.maintainer.Retire(ctx, plainWF))

	assert.Zero(t, e.store.Reads())
	assert.Zero(t, e.store.Writes())
}

func TestMaintainer_Enqueue(t *testing.T) {
	ctx := context.Background()

	t.Run("user queue of an ungrouped workflow", func(t *testing.T) {
		e := newEnv(t)
		user := domain.Int64(5)
		_, err := e.maintainer.Enqueue(ctx, plainWF, []int64{1, 2}, service.EnqueueOptions{UserID: user, SubjectSetID: domain.Int64(10)})
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2}, queueIDs(t, e, domain.QueueKey{WorkflowID: plainWF, UserID: user}))
	})

	t.Run("grouped workflow infers the set from the first id", func(t *testing.T) {
		e := newEnv(t)
		q, err := e.maintainer.Enqueue(ctx, groupedWF, []int64{220, 221}, service.EnqueueOptions{})
		require.NoError(t, err)
		require.NotNil(t, q.SubjectSetID)
		assert.Equal(t, int64(21), *q.SubjectSetID)
	})

	t.Run("grouped workflow with an unknown id", func(t *testing.T) {
		e := newEnv(t)
		_, err := e.maintainer.Enqueue(ctx, groupedWF, []int64{9999}, service.EnqueueOptions{})
		assert.ErrorIs(t, err, domain.ErrMissingGroupParameter)
	})

	t.Run("unknown workflow", func(t *testing.T) {
		e := newEnv(t)
		_, err := e.maintainer.Enqueue(ctx, 99, []int64{1}, service.EnqueueOptions{})
		assert.ErrorIs(t, err, domain.ErrMissingWorkflow)
	})
}

func TestMaintainer_Dequeue(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	key := domain.QueueKey{WorkflowID: groupedWF, SubjectSetID: domain.Int64(20)}
	e.store.Seed(key, []int64{201, 202, 203})

	_, err := e.maintainer.Dequeue(ctx, groupedWF, []int64{202}, service.EnqueueOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int64{201, 203}, queueIDs(t, e, key))
}

func TestMaintainer_ReloadTouchesOnlyTheTarget(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	target := domain.QueueKey{WorkflowID: groupedWF, SubjectSetID: domain.Int64(20)}
	sibling := e.store.Seed(domain.QueueKey{WorkflowID: groupedWF, SubjectSetID: domain.Int64(21)}, []int64{216, 217})
	user := e.store.Seed(domain.QueueKey{WorkflowID: groupedWF, UserID: domain.Int64(1), SubjectSetID: domain.Int64(20)}, []int64{201})
	e.store.Seed(target, []int64{201, 202})

	q, err := e.maintainer.Reload(ctx, groupedWF, []int64{205, 206}, domain.Int64(20))
	require.NoError(t, err)
	assert.Equal(t, []int64{205, 206}, q.SetMemberSubjectIDs)

	for _, want := range []*domain.Queue{sibling, user} {
		got, err := e.queues.Get(ctx, want.Key())
		require.NoError(t, err)
		assert.Equal(t, want.SetMemberSubjectIDs, got.SetMemberSubjectIDs)
		assert.Equal(t, want.LockVersion, got.LockVersion)
	}
}

func TestMaintainer_ReloadUnknownWorkflow(t *testing.T) {
	e := newEnv(t)
	for _, id := range []int64{0, 999} {
		_, err := e.maintainer.Reload(context.Background(), id, []int64{1}, nil)
		assert.ErrorIs(t, err, domain.ErrMissingWorkflow)
	}
	assert.Zero(t, e.store.Writes())
}

func TestMaintainer_ReloadCreatesMissingQueue(t *testing.T) {
	e := newEnv(t)
	q, err := e.maintainer.Reload(context.Background(), plainWF, []int64{3, 4}, nil)
	require.NoError(t, err)
	assert.Nil(t, q.UserID)
	assert.Nil(t, q.SubjectSetID)
	assert.Equal(t, []int64{3, 4}, q.SetMemberSubjectIDs)
}

func TestMaintainer_Reseed(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	q, err := e.maintainer.Reseed(ctx, groupedWF, domain.Int64(21))
	require.NoError(t, err)
	assert.ElementsMatch(t, ids(216, 230), q.SetMemberSubjectIDs)

	q, err = e.maintainer.Reseed(ctx, plainWF, nil)
	require.NoError(t, err)
	assert.Len(t, q.SetMemberSubjectIDs, 20)

	_, err = e.maintainer.Reseed(ctx, groupedWF, nil)
	assert.ErrorIs(t, err, domain.ErrMissingGroupParameter)
}

func TestMaintainer_Retire(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.store.Seed(domain.DefaultKey(plainWF), []int64{1, 2, 3})
	b := e.store.Seed(domain.QueueKey{WorkflowID: plainWF, UserID: domain.Int64(4)}, []int64{2, 5})

	require.NoError(t, e.maintainer.Retire(ctx, plainWF, 2))
	assert.Equal(t, []int64{1, 3}, queueIDs(t, e, a.Key()))
	assert.Equal(t, []int64{5}, queueIDs(t, e, b.Key()))

	row, err := e.pool.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.StateRetired, row.State)

	assert.ErrorIs(t, e.maintainer.Retire(ctx, plainWF, 9999), domain.ErrNotFound)
}

func TestMaintainer_RetireReachesEveryLinkedWorkflow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	const siblingWF = 99
	e.workflows.Put(domain.Workflow{ID: siblingWF, SubjectSetIDs: []int64{10}})
	e.pool.Link(siblingWF, 10)
	own := e.store.Seed(domain.DefaultKey(plainWF), []int64{2, 3})
	sibling := e.store.Seed(domain.DefaultKey(siblingWF), []int64{2, 7})
	unrelated := e.store.Seed(domain.QueueKey{WorkflowID: groupedWF, SubjectSetID: domain.Int64(20)}, []int64{2, 201})

	require.NoError(t, e.maintainer.Retire(ctx, plainWF, 2))

	assert.Equal(t, []int64{3}, queueIDs(t, e, own.Key()))
	assert.Equal(t, []int64{7}, queueIDs(t, e, sibling.Key()))
	assert.Equal(t, []int64{2, 201}, queueIDs(t, e, unrelated.Key()))
}

func TestMaintainer_RetireRejectsRowsOutsideThePool(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	q := e.store.Seed(domain.DefaultKey(plainWF), []int64{50})

	err := e.maintainer.Retire(ctx, groupedWF, 201, 50)
	assert.ErrorIs(t, err, domain.ErrSubjectSetNotLinked)

	for _, id := range []int64{201, 50} {
		row, err := e.pool.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.StateActive, row.State, "row %d", id)
	}
	assert.Equal(t, []int64{50}, queueIDs(t, e, q.Key()))
	assert.Zero(t, e.store.Writes())
}

func TestMaintainer_UnlinkedSubjectSet(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.maintainer.Enqueue(ctx, groupedWF, []int64{201}, service.EnqueueOptions{SubjectSetID: domain.Int64(10)})
	assert.ErrorIs(t, err, domain.ErrSubjectSetNotLinked)

	_, err = e.maintainer.Enqueue(ctx, groupedWF, []int64{5}, service.EnqueueOptions{})
	assert.ErrorIs(t, err, domain.ErrSubjectSetNotLinked, "set inferred from a row outside the pool")

	_, err = e.maintainer.Reload(ctx, groupedWF, []int64{1}, domain.Int64(10))
	assert.ErrorIs(t, err, domain.ErrSubjectSetNotLinked)

	_, err = e.maintainer.Reseed(ctx, groupedWF, domain.Int64(10))
	assert.ErrorIs(t, err, domain.ErrSubjectSetNotLinked)

	all, err := e.queues.ListByWorkflow(ctx, groupedWF)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestMaintainer_Purge(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.store.Seed(domain.QueueKey{WorkflowID: groupedWF, SubjectSetID: domain.Int64(20)}, nil)
	e.store.Seed(domain.QueueKey{WorkflowID: groupedWF, SubjectSetID: domain.Int64(21)}, nil)
	e.store.Seed(domain.DefaultKey(plainWF), nil)

	n, err := e.maintainer.Purge(ctx, groupedWF, domain.Int64(20))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = e.maintainer.Purge(ctx, groupedWF, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	left, err := e.queues.ListByWorkflow(ctx, plainWF)
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestMaintainer_Apply(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.store.Seed(domain.DefaultKey(plainWF), []int64{1})

	_, err := e.maintainer.Apply(ctx, plainWF, domain.QueueOpRequest{Op: "shuffle"})
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)

	q, err := e.maintainer.Apply(ctx, plainWF, domain.QueueOpRequest{Op: domain.OpEnqueue, IDs: []int64{2}})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, q.SetMemberSubjectIDs)

	q, err = e.maintainer.Apply(ctx, plainWF, domain.QueueOpRequest{Op: domain.OpDequeueForAll, IDs: []int64{1}})
	require.NoError(t, err)
	assert.Nil(t, q)
	assert.Equal(t, []int64{2}, queueIDs(t, e, domain.DefaultKey(plainWF)))

	q, err = e.maintainer.Apply(ctx, plainWF, domain.QueueOpRequest{Op: domain.OpReload, IDs: []int64{7, 8}})
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 8}, q.SetMemberSubjectIDs)

	q, err = e.maintainer.Apply(ctx, plainWF, domain.QueueOpRequest{Op: domain.OpCreateForUser, UserID: domain.Int64(4)})
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 8}, q.SetMemberSubjectIDs)
	assert.Equal(t, int64(4), *q.UserID)

	q, err = e.maintainer.Apply(ctx, plainWF, domain.QueueOpRequest{Op: domain.OpPurge})
	require.NoError(t, err)
	assert.Nil(t, q)
	left, err := e.queues.ListByWorkflow(ctx, plainWF)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestMaintainer_CreateForUser(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.maintainer.CreateForUser(ctx, plainWF, 4)
	assert.ErrorIs(t, err, domain.ErrQueueUnavailable)
	assert.Equal(t, []domain.QueueKey{domain.DefaultKey(plainWF)}, e.dispatcher.Keys())

	_, err = e.maintainer.CreateForUser(ctx, 999, 4)
	assert.ErrorIs(t, err, domain.ErrMissingWorkflow)
}
