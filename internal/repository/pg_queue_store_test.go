package repository

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classifyhub/subject-queue/internal/domain"
)

// fakeQuerier holds at most one queue row and counts statements.
type fakeQuerier struct {
	exists  bool
	execs   int
	queries int
}

func (f *fakeQuerier) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	f.execs++
	f.exists = true
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not used")
}

func (f *fakeQuerier) QueryRow(context.Context, string, ...any) pgx.Row {
	f.queries++
	return fakeRow{exists: f.exists}
}

type fakeRow struct{ exists bool }

func (r fakeRow) Scan(dest ...any) error {
	if !r.exists {
		return pgx.ErrNoRows
	}
	*dest[0].(*int64) = 7
	return nil
}

func TestPgQueueStore_FindOrCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("existing queue is read without an insert", func(t *testing.T) {
		db := &fakeQuerier{exists: true}
		q, err := (&pgQueueStore{pool: db}).FindOrCreate(ctx, domain.DefaultKey(1))
		require.NoError(t, err)
		assert.Equal(t, int64(7), q.ID)
		assert.Zero(t, db.execs)
		assert.Equal(t, 1, db.queries)
	})

	t.Run("missing queue is inserted then read back", func(t *testing.T) {
		db := &fakeQuerier{}
		q, err := (&pgQueueStore{pool: db}).FindOrCreate(ctx, domain.DefaultKey(1))
		require.NoError(t, err)
		assert.Equal(t, int64(7), q.ID)
		assert.Equal(t, 1, db.execs)
		assert.Equal(t, 2, db.queries)
	})
}
