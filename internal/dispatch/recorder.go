package dispatch

import (
	"context"
	"sync"

	"github.com/classifyhub/subject-queue/internal/domain"
)

// Recorder is a hand-written Dispatcher for tests. It records every key it
// is asked to dispatch and runs nothing.
type Recorder struct {
	mu   sync.Mutex
	keys []domain.QueueKey

	// Err, when set, is returned from Dispatch and nothing is recorded.
	Err error
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Dispatch(_ context.Context, key domain.QueueKey) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
	return nil
}

// Keys returns a copy of the dispatched keys in call order.
func (r *Recorder) Keys() []domain.QueueKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.QueueKey(nil), r.keys...)
}

func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}

var _ Dispatcher = (*Recorder)(nil)
