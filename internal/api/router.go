package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/classifyhub/subject-queue/internal/api/handler"
	apimw "github.com/classifyhub/subject-queue/internal/api/middleware"
	"github.com/classifyhub/subject-queue/internal/dispatch"
	"github.com/classifyhub/subject-queue/internal/repository"
	"github.com/classifyhub/subject-queue/internal/service"
)

// Services bundles what the HTTP layer calls into.
type Services struct {
	Selector   *service.Selector
	Maintainer *service.Maintainer
	Queues     *repository.QueueRepository
	Depths     dispatch.DepthReporter
	Ping       handler.Pinger // optional
}

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(svc Services, reg prometheus.Gatherer, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)          // recover panics, return 500
	r.Use(chimw.RealIP)             // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1<<20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)      // X-Correlation-ID inject / echo
	r.Use(apimw.UserID)             // X-User-ID from the auth layer
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	sh := handler.NewSelectionHandler(svc.Selector, logger)
	qh := handler.NewQueueHandler(svc.Maintainer, svc.Queues, logger)
	mh := handler.NewMetricsHandler(svc.Depths, logger)
	hh := handler.NewHealthHandler(svc.Ping)

	// --- routes ---
	r.Get("/health", hh.Health)

	// Raw Prometheus scrape endpoint
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/workflows/{workflowID}", func(r chi.Router) {
			r.Get("/queued_subjects", sh.QueuedSubjects)
			r.Post("/queue_ops", qh.Apply)
		})

		r.Get("/queues/below_minimum", qh.BelowMinimum)

		// JSON metrics snapshot
		r.Get("/metrics", mh.GetMetrics)
	})

	return r
}
