package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classifyhub/subject-queue/internal/domain"
)

type pgSubjectPool struct {
	pool *pgxpool.Pool
}

// NewPgSubjectPool returns a SubjectPool reading set_member_subjects.
func NewPgSubjectPool(pool *pgxpool.Pool) SubjectPool {
	return &pgSubjectPool{pool: pool}
}

const poolFrom = `
	FROM set_member_subjects sms
	JOIN subject_sets_workflows ssw
	  ON ssw.subject_set_id = sms.subject_set_id AND ssw.workflow_id = $1`

func (p *pgSubjectPool) AvailableCount(ctx context.Context, f PoolFilter) (int, error) {
	where, args := buildPoolWhere(f)
	var n int
	if err := p.pool.QueryRow(ctx, "SELECT COUNT(*)"+poolFrom+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count available subjects: %w", err)
	}
	return n, nil
}

func (p *pgSubjectPool) SampleRange(ctx context.Context, f PoolFilter, lo, hi float64, limit int) ([]int64, error) {
	query, args := sampleRangeQuery(f, lo, hi, limit)
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sample subjects: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// sampleRangeQuery orders by rank so the (subject_set_id, state, random)
// index drives each round as a range scan starting at lo.
func sampleRangeQuery(f PoolFilter, lo, hi float64, limit int) (string, []any) {
	where, args := buildPoolWhere(f)
	args = append(args, lo, hi, limit)
	n := len(args)
	query := fmt.Sprintf("SELECT sms.id%s%s AND sms.random BETWEEN $%d AND $%d ORDER BY sms.random LIMIT $%d",
		poolFrom, where, n-2, n-1, n)
	return query, args
}

func (p *pgSubjectPool) AvailableIDs(ctx context.Context, f PoolFilter) ([]int64, error) {
	where, args := buildPoolWhere(f)
	rows, err := p.pool.Query(ctx, "SELECT sms.id"+poolFrom+where, args...)
	if err != nil {
		return nil, fmt.Errorf("list available subjects: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (p *pgSubjectPool) Get(ctx context.Context, id int64) (*domain.SetMemberSubject, error) {
	var s domain.SetMemberSubject
	err := p.pool.QueryRow(ctx, `
		SELECT id, subject_id, subject_set_id, state, random, created_at
		FROM set_member_subjects WHERE id = $1`, id).
		Scan(&s.ID, &s.SubjectID, &s.SubjectSetID, &s.State, &s.Random, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get set member subject %d: %w", id, err)
	}
	return &s, nil
}

func (p *pgSubjectPool) MarkRetired(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE set_member_subjects SET state = 'retired', updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("retire set member subject %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// buildPoolWhere builds the parameterised WHERE clause for a PoolFilter.
// $1 is always the workflow id (used by the join in poolFrom).
func buildPoolWhere(f PoolFilter) (string, []any) {
	args := []any{f.WorkflowID}
	conditions := []string{"sms.state = 'active'"}

	add := func(condition string, val any) {
		args = append(args, val)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if f.SubjectSetID != nil {
		add("sms.subject_set_id = $%d", *f.SubjectSetID)
	}
	if f.UserID != nil {
		add(`NOT EXISTS (
			SELECT 1 FROM user_seen_subjects uss
			WHERE uss.workflow_id = $1 AND uss.user_id = $%d
			  AND sms.subject_id = ANY(uss.subject_ids))`, *f.UserID)
	}

	return " WHERE " + strings.Join(conditions, " AND "), args
}
