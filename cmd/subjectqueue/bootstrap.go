package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/classifyhub/subject-queue/internal/backoff"
	"github.com/classifyhub/subject-queue/internal/config"
	"github.com/classifyhub/subject-queue/internal/db"
	"github.com/classifyhub/subject-queue/internal/dispatch"
	"github.com/classifyhub/subject-queue/internal/metrics"
	"github.com/classifyhub/subject-queue/internal/queue"
	"github.com/classifyhub/subject-queue/internal/ratelimiter"
	"github.com/classifyhub/subject-queue/internal/repository"
	"github.com/classifyhub/subject-queue/internal/sampler"
	"github.com/classifyhub/subject-queue/internal/service"
	"github.com/classifyhub/subject-queue/internal/worker"
)

// app holds every long-lived dependency. Built once per command and passed
// explicitly; nothing is global.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	db    *pgxpool.Pool
	redis *redis.Client

	reg     *prometheus.Registry
	metrics *metrics.Metrics

	refills    *queue.RefillQueue // nil with the redis dispatcher
	redisQueue *dispatch.Redis    // nil with the local dispatcher
	dispatcher dispatch.Dispatcher
	depths     dispatch.DepthReporter

	workflows  repository.WorkflowRepository
	pool       repository.SubjectPool
	queues     *repository.QueueRepository
	sampler    *sampler.Sampler
	selector   *service.Selector
	maintainer *service.Maintainer
	refiller   *worker.Refiller
	executor   *worker.Executor
}

func buildApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	pgPool, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	a.db = pgPool

	a.reg = prometheus.NewRegistry()
	a.metrics = metrics.New(a.reg)

	switch cfg.Dispatch.Backend {
	case config.DispatcherRedis:
		opts, err := redis.ParseURL(cfg.Dispatch.RedisURL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("parse redis URL: %w", err)
		}
		a.redis = redis.NewClient(opts)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		a.redisQueue = dispatch.NewRedis(a.redis, cfg.Dispatch.RedisList, a.metrics.DispatchHook())
		a.dispatcher = a.redisQueue
		a.depths = a.redisQueue
	default:
		a.refills = queue.NewWithCapacity(cfg.Dispatch.Capacity)
		local := dispatch.NewLocal(a.refills, a.metrics.DispatchHook())
		a.dispatcher = local
		a.depths = local
	}
	a.metrics.WatchDispatchDepth(a.depths)

	a.workflows = repository.NewPgWorkflowRepository(pgPool)
	a.pool = repository.NewPgSubjectPool(pgPool)
	a.queues = repository.NewQueueRepository(
		repository.NewPgQueueStore(pgPool),
		a.dispatcher,
		logger,
		repository.Options{
			MaxAttempts: cfg.Queue.CASMaxAttempts,
			Backoff:     backoff.NewExponentialWithJitter(cfg.Queue.CASBackoffInitial.Std(), cfg.Queue.CASBackoffMax.Std()),
			Hooks:       a.metrics.ConflictHooks(),
		},
	)
	a.sampler = sampler.New(a.pool, cfg.Queue.SamplerMaxRounds, logger)
	a.selector = service.NewSelector(a.workflows, a.queues, a.dispatcher, logger, a.metrics.SelectorHooks())
	a.maintainer = service.NewMaintainer(a.workflows, a.queues, a.pool, a.sampler, logger, service.MaintainerOptions{
		Fanout:     cfg.Queue.FanoutConcurrency,
		ReseedSize: cfg.Refill.Size,
	})
	a.refiller = worker.NewRefiller(a.workflows, a.sampler, a.queues, cfg.Refill.Size, logger)
	a.executor = worker.NewExecutor(a.refiller, ratelimiter.New(cfg.Refill.RateLimit), logger, a.metrics.WorkerHooks())

	return a, nil
}

func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis client", zap.Error(err))
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}

// refillConsumer is the background side of the configured dispatcher.
type refillConsumer interface {
	Start(ctx context.Context)
	Wait()
}

// newConsumer returns the worker set that executes dispatched refills.
func (a *app) newConsumer() refillConsumer {
	if a.redisQueue != nil {
		return worker.NewRedisConsumer(a.redisQueue, a.executor, a.cfg.Refill.Workers, a.logger)
	}
	return worker.NewPool(a.cfg.Refill.Workers, a.refills, a.executor, a.logger)
}
