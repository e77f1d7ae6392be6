package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classifyhub/subject-queue/internal/domain"
)

func TestSelector_Errors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.selector.QueuedSubjects(ctx, domain.SelectRequest{})
	assert.ErrorIs(t, err, domain.ErrMissingWorkflow)

	_, err = e.selector.QueuedSubjects(ctx, domain.SelectRequest{WorkflowID: 99})
	assert.ErrorIs(t, err, domain.ErrMissingWorkflow)

	_, err = e.selector.QueuedSubjects(ctx, domain.SelectRequest{WorkflowID: groupedWF})
	assert.ErrorIs(t, err, domain.ErrMissingGroupParameter)

	_, err = e.selector.QueuedSubjects(ctx, domain.SelectRequest{WorkflowID: groupedWF, SubjectSetID: domain.Int64(10)})
	assert.ErrorIs(t, err, domain.ErrSubjectSetNotLinked)

	below, err := e.queues.BelowMinimum(ctx)
	require.NoError(t, err)
	assert.Empty(t, below, "a rejected selection must not leave a queue behind")

	assert.Zero(t, e.store.Writes())
	assert.Zero(t, e.dispatcher.Count())
}

func TestSelector_OwnedQueuePages(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	user := domain.Int64(7)
	e.store.Seed(domain.QueueKey{WorkflowID: plainWF, UserID: user}, ids(1, 30))

	req := domain.SelectRequest{WorkflowID: plainWF, UserID: user}
	first, err := e.selector.QueuedSubjects(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, ids(1, 10), first.IDs)
	assert.Equal(t, 30, first.Context.QueueSize)
	assert.False(t, first.Context.RefillDispatched)

	again, err := e.selector.QueuedSubjects(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.IDs, again.IDs, "owned reads are stable")

	req.PageSize = 20
	page, err := e.selector.QueuedSubjects(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, ids(1, 20), page.IDs)

	req.PageSize = 500
	page, err = e.selector.QueuedSubjects(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, ids(1, 30), page.IDs)

	assert.Zero(t, e.dispatcher.Count())
	assert.Equal(t, 4, e.served)
}

func TestSelector_SharedQueueSamples(t *testing.T) {
	e := newEnv(t)
	e.store.Seed(domain.DefaultKey(plainWF), ids(1, 61))

	sel, err := e.selector.QueuedSubjects(context.Background(), domain.SelectRequest{WorkflowID: plainWF, PageSize: 20})
	require.NoError(t, err)
	assert.Len(t, sel.IDs, 20)
	for _, id := range sel.IDs {
		assert.Contains(t, ids(1, 61), id)
	}
}

func TestSelector_LowQueueDispatchesRefill(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	sel, err := e.selector.QueuedSubjects(ctx, domain.SelectRequest{WorkflowID: plainWF, UserID: domain.Int64(3)})
	require.NoError(t, err)
	assert.Empty(t, sel.IDs)
	assert.True(t, sel.Context.RefillDispatched)
	assert.Equal(t, []domain.QueueKey{{WorkflowID: plainWF, UserID: domain.Int64(3)}}, e.dispatcher.Keys())
}

func TestSelector_DispatchFailureIsNotSurfaced(t *testing.T) {
	e := newEnv(t)
	e.dispatcher.Err = domain.ErrDispatchQueueFull
	e.store.Seed(domain.DefaultKey(plainWF), ids(1, 5))

	sel, err := e.selector.QueuedSubjects(context.Background(), domain.SelectRequest{WorkflowID: plainWF})
	require.NoError(t, err)
	assert.Len(t, sel.IDs, 5)
	assert.False(t, sel.Context.RefillDispatched)
}

func TestSelector_SubjectSetScoping(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	t.Run("grouped workflow resolves the set queue", func(t *testing.T) {
		e.store.Seed(domain.QueueKey{WorkflowID: groupedWF, SubjectSetID: domain.Int64(20)}, ids(201, 205))
		sel, err := e.selector.QueuedSubjects(ctx, domain.SelectRequest{WorkflowID: groupedWF, SubjectSetID: domain.Int64(20)})
		require.NoError(t, err)
		assert.ElementsMatch(t, ids(201, 205), sel.IDs)
	})

	t.Run("ungrouped workflow ignores the set", func(t *testing.T) {
		e.store.Seed(domain.DefaultKey(plainWF), ids(1, 25))
		sel, err := e.selector.QueuedSubjects(ctx, domain.SelectRequest{WorkflowID: plainWF, SubjectSetID: domain.Int64(10)})
		require.NoError(t, err)
		assert.Len(t, sel.IDs, domain.DefaultPageSize)
		_, err = e.queues.Get(ctx, domain.QueueKey{WorkflowID: plainWF, SubjectSetID: domain.Int64(10)})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
