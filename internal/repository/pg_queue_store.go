package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classifyhub/subject-queue/internal/domain"
)

const queueColumns = `id, workflow_id, user_id, subject_set_id, set_member_subject_ids,
	lock_version, created_at, updated_at`

// querier is the slice of *pgxpool.Pool the queue store uses.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgQueueStore struct {
	pool querier
}

// NewPgQueueStore returns a QueueStore backed by PostgreSQL.
func NewPgQueueStore(pool *pgxpool.Pool) QueueStore {
	return &pgQueueStore{pool: pool}
}

// Get matches nullable key columns through COALESCE so the lookup uses the
// same expression as the unique identity index.
func (s *pgQueueStore) Get(ctx context.Context, key domain.QueueKey) (*domain.Queue, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+queueColumns+`
		FROM subject_queues
		WHERE workflow_id = $1
		  AND COALESCE(user_id, 0) = COALESCE($2::bigint, 0)
		  AND COALESCE(subject_set_id, 0) = COALESCE($3::bigint, 0)`,
		key.WorkflowID, key.UserID, key.SubjectSetID)

	q, err := scanQueue(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get queue %s: %w", key, err)
	}
	return q, nil
}

// FindOrCreate returns the queue for key, inserting an empty one only when
// the read misses. Concurrent creators converge on the same row through the
// identity index.
func (s *pgQueueStore) FindOrCreate(ctx context.Context, key domain.QueueKey) (*domain.Queue, error) {
	q, err := s.Get(ctx, key)
	if !errors.Is(err, domain.ErrNotFound) {
		return q, err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO subject_queues (workflow_id, user_id, subject_set_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (workflow_id, COALESCE(user_id, 0), COALESCE(subject_set_id, 0)) DO NOTHING`,
		key.WorkflowID, key.UserID, key.SubjectSetID)
	if err != nil && !isUniqueViolation(err) {
		return nil, fmt.Errorf("create queue %s: %w", key, err)
	}
	return s.Get(ctx, key)
}

func (s *pgQueueStore) CompareAndSwap(ctx context.Context, id, expectedVersion int64, ids []int64) (*domain.Queue, error) {
	if ids == nil {
		ids = []int64{}
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE subject_queues
		SET set_member_subject_ids = $1, lock_version = lock_version + 1, updated_at = NOW()
		WHERE id = $2 AND lock_version = $3
		RETURNING `+queueColumns,
		ids, id, expectedVersion)

	q, err := scanQueue(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("update queue %d: %w", id, err)
	}
	return q, nil
}

func (s *pgQueueStore) ListByWorkflow(ctx context.Context, workflowID int64) ([]*domain.Queue, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+queueColumns+`
		FROM subject_queues WHERE workflow_id = $1 ORDER BY id`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("list queues for workflow %d: %w", workflowID, err)
	}
	defer rows.Close()
	return scanQueues(rows)
}

func (s *pgQueueStore) BelowMinimum(ctx context.Context, threshold int) ([]*domain.Queue, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+queueColumns+`
		FROM subject_queues
		WHERE cardinality(set_member_subject_ids) < $1
		ORDER BY id`, threshold)
	if err != nil {
		return nil, fmt.Errorf("find queues below minimum: %w", err)
	}
	defer rows.Close()
	return scanQueues(rows)
}

func (s *pgQueueStore) DeleteByWorkflow(ctx context.Context, workflowID int64) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM subject_queues WHERE workflow_id = $1`, workflowID)
	if err != nil {
		return 0, fmt.Errorf("delete queues for workflow %d: %w", workflowID, err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *pgQueueStore) DeleteBySubjectSet(ctx context.Context, workflowID, subjectSetID int64) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM subject_queues WHERE workflow_id = $1 AND subject_set_id = $2`,
		workflowID, subjectSetID)
	if err != nil {
		return 0, fmt.Errorf("delete queues for subject set %d: %w", subjectSetID, err)
	}
	return int(tag.RowsAffected()), nil
}

// ---- helpers ----

func scanQueue(row pgx.Row) (*domain.Queue, error) {
	var q domain.Queue
	err := row.Scan(
		&q.ID, &q.WorkflowID, &q.UserID, &q.SubjectSetID, &q.SetMemberSubjectIDs,
		&q.LockVersion, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func scanQueues(rows pgx.Rows) ([]*domain.Queue, error) {
	var result []*domain.Queue
	for rows.Next() {
		q, err := scanQueue(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, q)
	}
	return result, rows.Err()
}

// isUniqueViolation checks for PostgreSQL unique_violation (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
