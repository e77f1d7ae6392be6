package domain

import (
	"math/rand/v2"
	"strconv"
	"time"
)

const (
	// MinThreshold is the queue length below which a refill is dispatched.
	MinThreshold = 20
	// DefaultPageSize is how many ids a selection returns when no page size is given.
	DefaultPageSize = 10
	// MaxPageSize caps the page size a caller may request.
	MaxPageSize = 100
)

// RefillTier separates refills for individual users from refills of the
// shared default queues so each gets its own dispatch capacity and rate.
type RefillTier string

const (
	TierUser   RefillTier = "user"
	TierShared RefillTier = "shared"
)

func (t RefillTier) IsValid() bool {
	switch t {
	case TierUser, TierShared:
		return true
	}
	return false
}

// QueueKey identifies a queue. A nil UserID addresses the shared
// anonymous queue of the workflow; a nil SubjectSetID addresses the
// ungrouped queue.
type QueueKey struct {
	WorkflowID   int64  `json:"workflow_id"`
	UserID       *int64 `json:"user_id,omitempty"`
	SubjectSetID *int64 `json:"subject_set_id,omitempty"`
}

// DefaultKey returns the key of the workflow's shared, ungrouped queue.
func DefaultKey(workflowID int64) QueueKey {
	return QueueKey{WorkflowID: workflowID}
}

// Owned reports whether the key belongs to an individual user.
func (k QueueKey) Owned() bool { return k.UserID != nil }

func (k QueueKey) Tier() RefillTier {
	if k.Owned() {
		return TierUser
	}
	return TierShared
}

// String renders the key as "w:<id>/u:<id|->/s:<id|->". It is stable and is
// used as a map and singleflight key.
func (k QueueKey) String() string {
	return "w:" + strconv.FormatInt(k.WorkflowID, 10) +
		"/u:" + optID(k.UserID) +
		"/s:" + optID(k.SubjectSetID)
}

func optID(id *int64) string {
	if id == nil {
		return "-"
	}
	return strconv.FormatInt(*id, 10)
}

// Int64 returns a pointer to v. Convenience for optional identifiers.
func Int64(v int64) *int64 { return &v }

// Queue is the persisted, ordered batch of set-member-subject ids staged for
// one (workflow, user, subject set) combination.
type Queue struct {
	ID                  int64     `json:"id"`
	WorkflowID          int64     `json:"workflow_id"`
	UserID              *int64    `json:"user_id,omitempty"`
	SubjectSetID        *int64    `json:"subject_set_id,omitempty"`
	SetMemberSubjectIDs []int64   `json:"set_member_subject_ids"`
	LockVersion         int64     `json:"lock_version"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (q *Queue) Key() QueueKey {
	return QueueKey{WorkflowID: q.WorkflowID, UserID: q.UserID, SubjectSetID: q.SubjectSetID}
}

func (q *Queue) Len() int { return len(q.SetMemberSubjectIDs) }

func (q *Queue) BelowMinimum() bool { return q.Len() < MinThreshold }

// Clone returns a deep copy so callers never share the content slice.
func (q *Queue) Clone() *Queue {
	c := *q
	c.SetMemberSubjectIDs = append([]int64(nil), q.SetMemberSubjectIDs...)
	if q.UserID != nil {
		c.UserID = Int64(*q.UserID)
	}
	if q.SubjectSetID != nil {
		c.SubjectSetID = Int64(*q.SubjectSetID)
	}
	return &c
}

// NextSubjects returns the next page of ids without mutating the queue.
//
// A queue owned by a user yields the first limit ids, so repeated calls are
// stable until the queue changes. The shared queue cannot track individual
// sessions, so it yields a fresh uniform sample on every call to spread
// anonymous traffic across the whole content.
func (q *Queue) NextSubjects(limit int) []int64 {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	ids := q.SetMemberSubjectIDs
	if limit > len(ids) {
		limit = len(ids)
	}
	if q.UserID != nil {
		return append([]int64(nil), ids[:limit]...)
	}

	out := make([]int64, 0, limit)
	for _, i := range rand.Perm(len(ids))[:limit] {
		out = append(out, ids[i])
	}
	return out
}
