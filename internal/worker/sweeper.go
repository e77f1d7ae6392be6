package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/classifyhub/subject-queue/internal/dispatch"
	"github.com/classifyhub/subject-queue/internal/repository"
)

// Sweeper periodically dispatches refills for every queue below the
// minimum threshold. Selections already dispatch for the queues they touch;
// the sweep catches queues nobody has read since they ran low.
type Sweeper struct {
	queues     *repository.QueueRepository
	dispatcher dispatch.Dispatcher
	interval   time.Duration
	logger     *zap.Logger
}

func NewSweeper(
	queues *repository.QueueRepository,
	dispatcher dispatch.Dispatcher,
	interval time.Duration,
	logger *zap.Logger,
) *Sweeper {
	return &Sweeper{queues: queues, dispatcher: dispatcher, interval: interval, logger: logger}
}

// Run ticks every interval and sweeps. Stops cleanly when ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sweeper started", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopping")
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				s.logger.Error("sweep error", zap.Error(err))
			}
		}
	}
}

// SweepOnce dispatches one refill per low queue and returns how many were
// accepted.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	low, err := s.queues.BelowMinimum(ctx)
	if err != nil {
		return 0, fmt.Errorf("find low queues: %w", err)
	}

	dispatched := 0
	for _, q := range low {
		if err := s.dispatcher.Dispatch(ctx, q.Key()); err != nil {
			s.logger.Warn("could not dispatch refill",
				zap.String("queue", q.Key().String()), zap.Error(err))
			continue
		}
		dispatched++
	}

	if dispatched > 0 {
		s.logger.Info("dispatched refills for low queues",
			zap.Int("count", dispatched), zap.Int("low", len(low)))
	}
	return dispatched, nil
}
