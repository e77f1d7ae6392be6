package repository

import (
	"context"

	"github.com/classifyhub/subject-queue/internal/domain"
)

// QueueStore defines the persistence primitives for subject queues.
// The pgx implementation is in pg_queue_store.go.
// Tests use the in-memory implementation in memory_queue_store.go.
//
// Writes are conditional: CompareAndSwap succeeds only while the stored
// lock version still equals expectedVersion and returns domain.ErrConflict
// otherwise. Retrying is the caller's job (see QueueRepository).
type QueueStore interface {
	Get(ctx context.Context, key domain.QueueKey) (*domain.Queue, error)
	FindOrCreate(ctx context.Context, key domain.QueueKey) (*domain.Queue, error)
	CompareAndSwap(ctx context.Context, id, expectedVersion int64, ids []int64) (*domain.Queue, error)
	ListByWorkflow(ctx context.Context, workflowID int64) ([]*domain.Queue, error)
	BelowMinimum(ctx context.Context, threshold int) ([]*domain.Queue, error)
	DeleteByWorkflow(ctx context.Context, workflowID int64) (int, error)
	DeleteBySubjectSet(ctx context.Context, workflowID, subjectSetID int64) (int, error)
}

// PoolFilter narrows the candidate pool for one sampling call.
// SubjectSetID restricts to one set (grouped workflows); UserID excludes
// subjects that user has already seen in the workflow.
type PoolFilter struct {
	WorkflowID   int64
	SubjectSetID *int64
	UserID       *int64
}

// SubjectPool reads the set-member-subject rows eligible for a workflow.
type SubjectPool interface {
	AvailableCount(ctx context.Context, f PoolFilter) (int, error)
	// SampleRange returns up to limit available ids whose random rank lies
	// in [lo, hi].
	SampleRange(ctx context.Context, f PoolFilter, lo, hi float64, limit int) ([]int64, error)
	AvailableIDs(ctx context.Context, f PoolFilter) ([]int64, error)
	Get(ctx context.Context, id int64) (*domain.SetMemberSubject, error)
	MarkRetired(ctx context.Context, id int64) error
}

// WorkflowRepository resolves workflows by id.
type WorkflowRepository interface {
	Get(ctx context.Context, id int64) (*domain.Workflow, error)
	// LinkedWorkflows returns the ids of every workflow whose pool includes
	// the subject set, in ascending order.
	LinkedWorkflows(ctx context.Context, subjectSetID int64) ([]int64, error)
}
