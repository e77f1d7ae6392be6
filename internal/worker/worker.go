package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/classifyhub/subject-queue/internal/dispatch"
	"github.com/classifyhub/subject-queue/internal/domain"
	"github.com/classifyhub/subject-queue/internal/queue"
	"github.com/classifyhub/subject-queue/internal/ratelimiter"
)

// MetricHooks carries the metric callback functions injected by main.
type MetricHooks struct {
	OnCompleted func(tier domain.RefillTier, latency time.Duration)
	OnFailed    func(tier domain.RefillTier)
}

// Executor runs refill jobs on behalf of every consumer in the process.
// Concurrent jobs for the same queue collapse into one refill, and each
// tier is throttled by its own limiter.
type Executor struct {
	refiller *Refiller
	limiter  *ratelimiter.TierLimiters
	inflight singleflight.Group
	logger   *zap.Logger

	onCompleted func(domain.RefillTier, time.Duration)
	onFailed    func(domain.RefillTier)
}

// NewExecutor constructs an Executor. Hook fields are optional (nil = no-op).
func NewExecutor(
	refiller *Refiller,
	limiter *ratelimiter.TierLimiters,
	logger *zap.Logger,
	hooks MetricHooks,
) *Executor {
	if hooks.OnCompleted == nil {
		hooks.OnCompleted = func(domain.RefillTier, time.Duration) {}
	}
	if hooks.OnFailed == nil {
		hooks.OnFailed = func(domain.RefillTier) {}
	}
	return &Executor{
		refiller:    refiller,
		limiter:     limiter,
		logger:      logger,
		onCompleted: hooks.OnCompleted,
		onFailed:    hooks.OnFailed,
	}
}

// Execute runs one refill job. Failures are logged and counted; the job is
// not retried because the next selection of a low queue dispatches again.
func (e *Executor) Execute(ctx context.Context, jobID string, key domain.QueueKey) {
	start := time.Now()
	tier := key.Tier()
	log := e.logger.With(zap.String("job_id", jobID), zap.String("queue", key.String()))

	// Block here until the tier's limiter grants a token.
	if err := e.limiter.Wait(ctx, tier); err != nil {
		return
	}

	v, err, shared := e.inflight.Do(key.String(), func() (any, error) {
		return e.refiller.Refill(ctx, key)
	})
	elapsed := time.Since(start)

	if err != nil {
		log.Warn("refill failed", zap.Error(err))
		e.onFailed(tier)
		return
	}

	e.onCompleted(tier, elapsed)
	log.Debug("refill completed",
		zap.Int("sampled", v.(int)),
		zap.Bool("shared", shared),
		zap.Duration("latency", elapsed),
	)
}

// Worker is a single goroutine that pulls refill jobs from the local queue.
type Worker struct {
	id     int
	q      *queue.RefillQueue
	exec   *Executor
	logger *zap.Logger
}

func NewWorker(id int, q *queue.RefillQueue, exec *Executor, logger *zap.Logger) *Worker {
	return &Worker{id: id, q: q, exec: exec, logger: logger}
}

// Run blocks until ctx is cancelled, processing one job per iteration.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("refill worker started", zap.Int("id", w.id))
	for {
		item, ok := w.q.Dequeue(ctx)
		if !ok {
			w.logger.Info("refill worker stopping", zap.Int("id", w.id))
			return
		}
		w.exec.Execute(ctx, item.JobID, item.Key)
	}
}

// Inline is a dispatch.Dispatcher that runs each refill synchronously on the
// caller's goroutine. One-shot commands use it when no worker pool runs.
type Inline struct {
	exec *Executor
}

func NewInline(exec *Executor) *Inline { return &Inline{exec: exec} }

func (i *Inline) Dispatch(ctx context.Context, key domain.QueueKey) error {
	i.exec.Execute(ctx, dispatch.NewJob(key).ID, key)
	return nil
}

var _ dispatch.Dispatcher = (*Inline)(nil)
