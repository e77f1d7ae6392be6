package domain

import "fmt"

// SelectRequest is the serving layer's input to a queued selection.
type SelectRequest struct {
	WorkflowID   int64
	UserID       *int64
	SubjectSetID *int64
	PageSize     int
}

// EffectivePageSize applies the default and the upper bound.
func (r SelectRequest) EffectivePageSize() int {
	switch {
	case r.PageSize <= 0:
		return DefaultPageSize
	case r.PageSize > MaxPageSize:
		return MaxPageSize
	}
	return r.PageSize
}

// SelectionContext describes the queue a selection was served from.
type SelectionContext struct {
	QueueID          int64 `json:"queue_id"`
	QueueSize        int   `json:"queue_size"`
	RefillDispatched bool  `json:"refill_dispatched"`
}

// Selection is a page of set-member-subject ids plus its context.
type Selection struct {
	IDs     []int64          `json:"set_member_subject_ids"`
	Context SelectionContext `json:"selector_context"`
}

// QueueOp selects a maintenance operation.
type QueueOp string

const (
	OpEnqueue       QueueOp = "enqueue"
	OpDequeue       QueueOp = "dequeue"
	OpEnqueueForAll QueueOp = "enqueue_for_all"
	OpDequeueForAll QueueOp = "dequeue_for_all"
	OpReload        QueueOp = "reload"
	OpReseed        QueueOp = "reseed"
	OpRetire        QueueOp = "retire"
	OpPurge         QueueOp = "purge"
	OpCreateForUser QueueOp = "create_for_user"
)

func (o QueueOp) IsValid() bool {
	switch o {
	case OpEnqueue, OpDequeue, OpEnqueueForAll, OpDequeueForAll, OpReload, OpReseed, OpRetire,
		OpPurge, OpCreateForUser:
		return true
	}
	return false
}

// QueueOpRequest is the inbound payload for a maintenance call.
type QueueOpRequest struct {
	Op           QueueOp `json:"op"`
	IDs          []int64 `json:"ids"`
	UserID       *int64  `json:"user_id,omitempty"`
	SubjectSetID *int64  `json:"subject_set_id,omitempty"`
}

func (r *QueueOpRequest) Validate() error {
	if !r.Op.IsValid() {
		return ErrInvalidOperation
	}
	if r.Op == OpCreateForUser && r.UserID == nil {
		return fmt.Errorf("%w: %s needs user_id", ErrInvalidOperation, r.Op)
	}
	return nil
}
