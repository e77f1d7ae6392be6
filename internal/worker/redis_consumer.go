package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/classifyhub/subject-queue/internal/dispatch"
)

// receiveTimeout bounds one blocking pop so shutdown is noticed promptly.
const receiveTimeout = 2 * time.Second

// JobSource yields dispatched refill jobs; *dispatch.Redis implements it.
type JobSource interface {
	Receive(ctx context.Context, timeout time.Duration) (*dispatch.Job, error)
}

// RedisConsumer drains refill jobs pushed by any process through the Redis
// dispatcher. It runs n goroutines, each popping and executing one job at a
// time.
type RedisConsumer struct {
	src    JobSource
	exec   *Executor
	n      int
	logger *zap.Logger
	wg     sync.WaitGroup
}

func NewRedisConsumer(src JobSource, exec *Executor, n int, logger *zap.Logger) *RedisConsumer {
	if n <= 0 {
		n = DefaultWorkers
	}
	return &RedisConsumer{src: src, exec: exec, n: n, logger: logger}
}

func (c *RedisConsumer) Start(ctx context.Context) {
	for i := 0; i < c.n; i++ {
		c.wg.Add(1)
		go func(id int) {
			defer c.wg.Done()
			c.run(ctx, c.logger.With(zap.Int("consumer_id", id)))
		}(i)
	}
}

// Wait blocks until every consumer goroutine has returned.
func (c *RedisConsumer) Wait() {
	c.wg.Wait()
}

func (c *RedisConsumer) run(ctx context.Context, log *zap.Logger) {
	log.Info("redis consumer started")
	for {
		if ctx.Err() != nil {
			log.Info("redis consumer stopping")
			return
		}
		job, err := c.src.Receive(ctx, receiveTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.Warn("receive failed", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(receiveTimeout):
			}
			continue
		}
		if job == nil {
			continue
		}
		c.exec.Execute(ctx, job.ID, job.Key)
	}
}
