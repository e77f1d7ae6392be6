package repository

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/classifyhub/subject-queue/internal/domain"
)

// MemorySubjectPool is an in-memory SubjectPool for tests and local runs.
type MemorySubjectPool struct {
	mu    sync.RWMutex
	rows  map[int64]*domain.SetMemberSubject
	links map[int64]map[int64]struct{} // workflow id -> subject set ids
	seen  map[seenKey]map[int64]struct{}
}

type seenKey struct {
	userID, workflowID int64
}

func NewMemorySubjectPool() *MemorySubjectPool {
	return &MemorySubjectPool{
		rows:  make(map[int64]*domain.SetMemberSubject),
		links: make(map[int64]map[int64]struct{}),
		seen:  make(map[seenKey]map[int64]struct{}),
	}
}

// Add stores a row; an empty State defaults to active.
func (p *MemorySubjectPool) Add(rows ...domain.SetMemberSubject) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range rows {
		if r.State == "" {
			r.State = domain.StateActive
		}
		clone := r
		p.rows[r.ID] = &clone
	}
}

// Link makes a subject set's rows part of a workflow's pool.
func (p *MemorySubjectPool) Link(workflowID, subjectSetID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.links[workflowID] == nil {
		p.links[workflowID] = make(map[int64]struct{})
	}
	p.links[workflowID][subjectSetID] = struct{}{}
}

// MarkSeen records subjects the user has already classified in a workflow.
func (p *MemorySubjectPool) MarkSeen(userID, workflowID int64, subjectIDs ...int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := seenKey{userID, workflowID}
	if p.seen[k] == nil {
		p.seen[k] = make(map[int64]struct{})
	}
	for _, id := range subjectIDs {
		p.seen[k][id] = struct{}{}
	}
}

func (p *MemorySubjectPool) AvailableCount(_ context.Context, f PoolFilter) (int, error) {
	return len(p.available(f)), nil
}

func (p *MemorySubjectPool) SampleRange(_ context.Context, f PoolFilter, lo, hi float64, limit int) ([]int64, error) {
	var out []int64
	for _, r := range p.available(f) {
		if len(out) >= limit {
			break
		}
		if r.Random >= lo && r.Random <= hi {
			out = append(out, r.ID)
		}
	}
	return out, nil
}

func (p *MemorySubjectPool) AvailableIDs(_ context.Context, f PoolFilter) ([]int64, error) {
	rows := p.available(f)
	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids, nil
}

func (p *MemorySubjectPool) Get(_ context.Context, id int64) (*domain.SetMemberSubject, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *r
	return &clone, nil
}

func (p *MemorySubjectPool) MarkRetired(_ context.Context, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.State = domain.StateRetired
	return nil
}

// available returns matching rows ordered by id.
func (p *MemorySubjectPool) available(f PoolFilter) []*domain.SetMemberSubject {
	p.mu.RLock()
	defer p.mu.RUnlock()

	sets := p.links[f.WorkflowID]
	var seen map[int64]struct{}
	if f.UserID != nil {
		seen = p.seen[seenKey{*f.UserID, f.WorkflowID}]
	}

	var out []*domain.SetMemberSubject
	for _, r := range p.rows {
		if !r.Available() {
			continue
		}
		if _, linked := sets[r.SubjectSetID]; !linked {
			continue
		}
		if f.SubjectSetID != nil && r.SubjectSetID != *f.SubjectSetID {
			continue
		}
		if _, done := seen[r.SubjectID]; done {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MemoryWorkflowRepository is an in-memory WorkflowRepository.
type MemoryWorkflowRepository struct {
	mu        sync.RWMutex
	workflows map[int64]*domain.Workflow
}

func NewMemoryWorkflowRepository(workflows ...domain.Workflow) *MemoryWorkflowRepository {
	r := &MemoryWorkflowRepository{workflows: make(map[int64]*domain.Workflow)}
	r.Put(workflows...)
	return r
}

func (r *MemoryWorkflowRepository) Put(workflows ...domain.Workflow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, wf := range workflows {
		clone := wf
		r.workflows[wf.ID] = &clone
	}
}

func (r *MemoryWorkflowRepository) Get(_ context.Context, id int64) (*domain.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wf, ok := r.workflows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *wf
	return &clone, nil
}

func (r *MemoryWorkflowRepository) LinkedWorkflows(_ context.Context, subjectSetID int64) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []int64
	for id, wf := range r.workflows {
		if wf.HasSubjectSet(subjectSetID) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out, nil
}

var (
	_ SubjectPool        = (*MemorySubjectPool)(nil)
	_ WorkflowRepository = (*MemoryWorkflowRepository)(nil)
)
