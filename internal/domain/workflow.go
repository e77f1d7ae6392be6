package domain

import (
	"slices"
	"time"
)

// Workflow is the task context subjects are classified under. Only the
// fields the queue engine needs are carried.
type Workflow struct {
	ID            int64   `json:"id"`
	Grouped       bool    `json:"grouped"`
	Prioritized   bool    `json:"prioritized"`
	SubjectSetIDs []int64 `json:"subject_set_ids"`
}

// HasSubjectSet reports whether the subject set feeds the workflow's pool.
func (w *Workflow) HasSubjectSet(id int64) bool {
	return slices.Contains(w.SubjectSetIDs, id)
}

// SubjectState is the lifecycle state of a set member subject.
type SubjectState string

const (
	StateActive   SubjectState = "active"
	StateInactive SubjectState = "inactive"
	StateRetired  SubjectState = "retired"
)

func (s SubjectState) IsValid() bool {
	switch s {
	case StateActive, StateInactive, StateRetired:
		return true
	}
	return false
}

// SetMemberSubject links one subject into one subject set. Random is a
// uniform value in [0,1) fixed at insert time and used for range sampling.
type SetMemberSubject struct {
	ID           int64        `json:"id"`
	SubjectID    int64        `json:"subject_id"`
	SubjectSetID int64        `json:"subject_set_id"`
	State        SubjectState `json:"state"`
	Random       float64      `json:"random"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Available reports whether the row may be handed out.
func (s *SetMemberSubject) Available() bool { return s.State == StateActive }
