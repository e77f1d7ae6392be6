package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classifyhub/subject-queue/internal/domain"
)

type pgWorkflowRepository struct {
	pool *pgxpool.Pool
}

// NewPgWorkflowRepository returns a WorkflowRepository backed by PostgreSQL.
func NewPgWorkflowRepository(pool *pgxpool.Pool) WorkflowRepository {
	return &pgWorkflowRepository{pool: pool}
}

func (r *pgWorkflowRepository) Get(ctx context.Context, id int64) (*domain.Workflow, error) {
	var wf domain.Workflow
	err := r.pool.QueryRow(ctx, `
		SELECT w.id, w.grouped, w.prioritized,
		       COALESCE(ARRAY(
		           SELECT ssw.subject_set_id FROM subject_sets_workflows ssw
		           WHERE ssw.workflow_id = w.id ORDER BY ssw.subject_set_id
		       ), '{}')
		FROM workflows w WHERE w.id = $1`, id).
		Scan(&wf.ID, &wf.Grouped, &wf.Prioritized, &wf.SubjectSetIDs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow %d: %w", id, err)
	}
	return &wf, nil
}

func (r *pgWorkflowRepository) LinkedWorkflows(ctx context.Context, subjectSetID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT workflow_id FROM subject_sets_workflows
		WHERE subject_set_id = $1 ORDER BY workflow_id`, subjectSetID)
	if err != nil {
		return nil, fmt.Errorf("list workflows of subject set %d: %w", subjectSetID, err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}
