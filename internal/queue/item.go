package queue

import (
	"time"

	"github.com/classifyhub/subject-queue/internal/domain"
)

// Item is the minimal refill job placed on the queue.
// Workers resolve the workflow and sample the pool when they pick it up,
// so a job that waits in the queue still refills from the current pool.
type Item struct {
	JobID      string
	Key        domain.QueueKey
	EnqueuedAt time.Time
}

func (i Item) Tier() domain.RefillTier { return i.Key.Tier() }
