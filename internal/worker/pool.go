package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/classifyhub/subject-queue/internal/queue"
)

// DefaultWorkers is used when NewPool is asked for a non-positive count.
const DefaultWorkers = 4

// Pool manages the lifecycle of the local refill workers. All workers share
// one RefillQueue; its double-select pattern handles tier ordering.
type Pool struct {
	workers []*Worker
	wg      sync.WaitGroup
}

func NewPool(n int, q *queue.RefillQueue, exec *Executor, logger *zap.Logger) *Pool {
	if n <= 0 {
		n = DefaultWorkers
	}
	workers := make([]*Worker, n)
	for i := range workers {
		workers[i] = NewWorker(i, q, exec, logger.With(zap.Int("worker_id", i)))
	}
	return &Pool{workers: workers}
}

// Start launches all workers as goroutines. Cancelling ctx triggers a
// graceful shutdown of the entire pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every worker has returned after ctx is cancelled.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }
