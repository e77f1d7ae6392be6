package queue

import (
	"context"

	"github.com/classifyhub/subject-queue/internal/domain"
)

// DefaultCapacity is the per-tier buffer size used by New.
const DefaultCapacity = 2000

// RefillQueue buffers refill jobs in one channel per tier.
//
// User refills come from live selections of a signed-in user who will ask
// again within seconds; shared refills come from anonymous traffic and the
// below-minimum sweeper. Workers dequeue via the double-select pattern so
// user refills are served first while shared refills still make progress
// whenever the user tier is empty.
type RefillQueue struct {
	user   chan Item
	shared chan Item
}

func New() *RefillQueue {
	return NewWithCapacity(DefaultCapacity)
}

// NewWithCapacity creates a queue whose tiers each hold capacity items.
func NewWithCapacity(capacity int) *RefillQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &RefillQueue{
		user:   make(chan Item, capacity),
		shared: make(chan Item, capacity),
	}
}

// Enqueue places an item on its tier's channel.
// It is non-blocking: if the channel is full, ErrDispatchQueueFull is
// returned immediately so the serving request is never held up by refills.
func (q *RefillQueue) Enqueue(item Item) error {
	target := q.shared
	if item.Tier() == domain.TierUser {
		target = q.user
	}
	select {
	case target <- item:
		return nil
	default:
		return domain.ErrDispatchQueueFull
	}
}

// Dequeue blocks until an item is available or ctx is cancelled.
// Returns (Item{}, false) when ctx is cancelled.
func (q *RefillQueue) Dequeue(ctx context.Context) (Item, bool) {
	select {
	case item := <-q.user:
		return item, true
	default:
	}

	select {
	case item := <-q.user:
		return item, true
	case item := <-q.shared:
		return item, true
	case <-ctx.Done():
		return Item{}, false
	}
}

// Depths returns the number of items waiting in each tier.
func (q *RefillQueue) Depths() (user, shared int) {
	return len(q.user), len(q.shared)
}
