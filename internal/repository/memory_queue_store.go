package repository

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/classifyhub/subject-queue/internal/domain"
)

// MemoryQueueStore is an in-memory QueueStore with the same conditional-write
// semantics as the PostgreSQL store. Tests use it directly; it also counts
// reads and writes so "no store access" paths can be asserted.
type MemoryQueueStore struct {
	mu     sync.Mutex
	nextID int64
	queues map[int64]*domain.Queue
	byKey  map[string]int64

	reads  atomic.Int64
	writes atomic.Int64

	// AfterRead, when set, runs after every Get or FindOrCreate returns a
	// queue and before the caller sees it. Tests use it to force
	// interleavings between concurrent read-modify-write cycles.
	AfterRead func(q *domain.Queue)

	// Optional error overrides for failure paths.
	FindOrCreateErr   error
	CompareAndSwapErr error
}

func NewMemoryQueueStore() *MemoryQueueStore {
	return &MemoryQueueStore{
		queues: make(map[int64]*domain.Queue),
		byKey:  make(map[string]int64),
	}
}

// Seed stores a queue with the given content, replacing any existing one
// for the key. It does not count as a write.
func (m *MemoryQueueStore) Seed(key domain.QueueKey, ids []int64) *domain.Queue {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.create(key)
	q.SetMemberSubjectIDs = append([]int64(nil), ids...)
	return q.Clone()
}

// Reads returns how many Get/FindOrCreate/List calls reached the store.
func (m *MemoryQueueStore) Reads() int64 { return m.reads.Load() }

// Writes returns how many rows were created, updated or deleted.
func (m *MemoryQueueStore) Writes() int64 { return m.writes.Load() }

func (m *MemoryQueueStore) Get(_ context.Context, key domain.QueueKey) (*domain.Queue, error) {
	m.reads.Add(1)
	m.mu.Lock()
	id, ok := m.byKey[key.String()]
	var q *domain.Queue
	if ok {
		q = m.queues[id].Clone()
	}
	m.mu.Unlock()

	if !ok {
		return nil, domain.ErrNotFound
	}
	m.afterRead(q)
	return q, nil
}

func (m *MemoryQueueStore) FindOrCreate(_ context.Context, key domain.QueueKey) (*domain.Queue, error) {
	if m.FindOrCreateErr != nil {
		return nil, m.FindOrCreateErr
	}
	m.reads.Add(1)
	m.mu.Lock()
	var q *domain.Queue
	if id, ok := m.byKey[key.String()]; ok {
		q = m.queues[id].Clone()
	} else {
		m.writes.Add(1)
		q = m.create(key).Clone()
	}
	m.mu.Unlock()

	m.afterRead(q)
	return q, nil
}

func (m *MemoryQueueStore) CompareAndSwap(_ context.Context, id, expectedVersion int64, ids []int64) (*domain.Queue, error) {
	if m.CompareAndSwapErr != nil {
		return nil, m.CompareAndSwapErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[id]
	if !ok || q.LockVersion != expectedVersion {
		return nil, domain.ErrConflict
	}
	m.writes.Add(1)
	q.SetMemberSubjectIDs = append([]int64{}, ids...)
	q.LockVersion++
	q.UpdatedAt = time.Now().UTC()
	return q.Clone(), nil
}

func (m *MemoryQueueStore) ListByWorkflow(_ context.Context, workflowID int64) ([]*domain.Queue, error) {
	m.reads.Add(1)
	return m.filter(func(q *domain.Queue) bool { return q.WorkflowID == workflowID }), nil
}

func (m *MemoryQueueStore) BelowMinimum(_ context.Context, threshold int) ([]*domain.Queue, error) {
	m.reads.Add(1)
	return m.filter(func(q *domain.Queue) bool { return q.Len() < threshold }), nil
}

func (m *MemoryQueueStore) DeleteByWorkflow(_ context.Context, workflowID int64) (int, error) {
	return m.delete(func(q *domain.Queue) bool { return q.WorkflowID == workflowID }), nil
}

func (m *MemoryQueueStore) DeleteBySubjectSet(_ context.Context, workflowID, subjectSetID int64) (int, error) {
	return m.delete(func(q *domain.Queue) bool {
		return q.WorkflowID == workflowID && q.SubjectSetID != nil && *q.SubjectSetID == subjectSetID
	}), nil
}

// ---- helpers ----

// create must be called with mu held.
func (m *MemoryQueueStore) create(key domain.QueueKey) *domain.Queue {
	if id, ok := m.byKey[key.String()]; ok {
		return m.queues[id]
	}
	m.nextID++
	now := time.Now().UTC()
	q := (&domain.Queue{
		ID:                  m.nextID,
		WorkflowID:          key.WorkflowID,
		UserID:              key.UserID,
		SubjectSetID:        key.SubjectSetID,
		SetMemberSubjectIDs: []int64{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}).Clone()
	m.queues[q.ID] = q
	m.byKey[key.String()] = q.ID
	return q
}

func (m *MemoryQueueStore) filter(keep func(*domain.Queue) bool) []*domain.Queue {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Queue
	for _, q := range m.queues {
		if keep(q) {
			out = append(out, q.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MemoryQueueStore) delete(match func(*domain.Queue) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, q := range m.queues {
		if match(q) {
			delete(m.byKey, q.Key().String())
			delete(m.queues, id)
			n++
		}
	}
	m.writes.Add(int64(n))
	return n
}

func (m *MemoryQueueStore) afterRead(q *domain.Queue) {
	if m.AfterRead != nil {
		m.AfterRead(q)
	}
}

var _ QueueStore = (*MemoryQueueStore)(nil)
