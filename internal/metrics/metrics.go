package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/classifyhub/subject-queue/internal/dispatch"
	"github.com/classifyhub/subject-queue/internal/domain"
	"github.com/classifyhub/subject-queue/internal/repository"
	"github.com/classifyhub/subject-queue/internal/service"
	"github.com/classifyhub/subject-queue/internal/worker"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	SelectionsServed  *prometheus.CounterVec
	SubjectsServed    *prometheus.CounterVec
	RefillsDispatched *prometheus.CounterVec
	RefillsCompleted  *prometheus.CounterVec
	RefillsFailed     *prometheus.CounterVec
	RefillLatency     *prometheus.HistogramVec
	QueueConflicts    prometheus.Counter
	RetriesExhausted  prometheus.Counter

	reg prometheus.Registerer
}

// New registers all instruments with the given registerer. A custom
// registry keeps tests isolated from global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SelectionsServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "subjectqueue_selections_total",
			Help: "Total number of queued-subject pages served.",
		}, []string{"tier"}),

		SubjectsServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "subjectqueue_subjects_served_total",
			Help: "Total number of set member subject ids handed to clients.",
		}, []string{"tier"}),

		RefillsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "subjectqueue_refills_dispatched_total",
			Help: "Refill jobs accepted by the dispatcher.",
		}, []string{"tier"}),

		RefillsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "subjectqueue_refills_completed_total",
			Help: "Refill jobs that appended sampled subjects to their queue.",
		}, []string{"tier"}),

		RefillsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "subjectqueue_refills_failed_total",
			Help: "Refill jobs that ended in an error.",
		}, []string{"tier"}),

		RefillLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "subjectqueue_refill_seconds",
			Help:    "Time from dequeue to completed refill.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tier"}),

		QueueConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "subjectqueue_lock_conflicts_total",
			Help: "Queue writes rejected because the lock version moved.",
		}),

		RetriesExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "subjectqueue_retries_exhausted_total",
			Help: "Queue mutations abandoned after the maximum number of attempts.",
		}),

		reg: reg,
	}

	reg.MustRegister(
		m.SelectionsServed,
		m.SubjectsServed,
		m.RefillsDispatched,
		m.RefillsCompleted,
		m.RefillsFailed,
		m.RefillLatency,
		m.QueueConflicts,
		m.RetriesExhausted,
	)

	return m
}

// WatchDispatchDepth exposes the dispatcher's backlog as one gauge per tier,
// read at scrape time.
func (m *Metrics) WatchDispatchDepth(src dispatch.DepthReporter) {
	depth := func(tier domain.RefillTier) func() float64 {
		return func() float64 {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			user, shared, err := src.Depths(ctx)
			if err != nil {
				return -1
			}
			if tier == domain.TierUser {
				return float64(user)
			}
			return float64(shared)
		}
	}
	for _, tier := range []domain.RefillTier{domain.TierUser, domain.TierShared} {
		m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "subjectqueue_dispatch_depth",
			Help:        "Refill jobs waiting to be executed.",
			ConstLabels: prometheus.Labels{"tier": string(tier)},
		}, depth(tier)))
	}
}

// DispatchHook counts accepted refill dispatches.
func (m *Metrics) DispatchHook() dispatch.Hook {
	return func(tier domain.RefillTier) {
		m.RefillsDispatched.WithLabelValues(string(tier)).Inc()
	}
}

// ConflictHooks returns the callbacks expected by repository.Options.
func (m *Metrics) ConflictHooks() repository.ConflictHooks {
	return repository.ConflictHooks{
		OnConflict:  m.QueueConflicts.Inc,
		OnExhausted: m.RetriesExhausted.Inc,
	}
}

// SelectorHooks returns the callbacks expected by service.NewSelector.
func (m *Metrics) SelectorHooks() service.SelectorHooks {
	return service.SelectorHooks{
		OnServed: func(tier domain.RefillTier, n int) {
			m.SelectionsServed.WithLabelValues(string(tier)).Inc()
			m.SubjectsServed.WithLabelValues(string(tier)).Add(float64(n))
		},
	}
}

// WorkerHooks returns the callbacks expected by worker.MetricHooks.
func (m *Metrics) WorkerHooks() worker.MetricHooks {
	return worker.MetricHooks{
		OnCompleted: func(tier domain.RefillTier, latency time.Duration) {
			m.RefillsCompleted.WithLabelValues(string(tier)).Inc()
			m.RefillLatency.WithLabelValues(string(tier)).Observe(latency.Seconds())
		},
		OnFailed: func(tier domain.RefillTier) {
			m.RefillsFailed.WithLabelValues(string(tier)).Inc()
		},
	}
}
