package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ricirt/chatpulse/internal/api/handler"
	apimw "github.com/ricirt/chatpulse/internal/api/middleware"
	"github.com/ricirt/chatpulse/internal/queue"
	"github.com/ricirt/chatpulse/internal/service"
	"github.com/ricirt/chatpulse/internal/sweeper"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	Service    *service.NotificationService
	Dispatcher service.Dispatcher
	Sweeper    *sweeper.Sweeper
	Queue      *queue.PriorityQueue
	Gatherer   prometheus.Gatherer
	// Store is pinged by /ready. Nil in memory mode.
	Store  handler.Pinger
	Logger *zap.Logger
}

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestSize(1 << 20)) // event documents are small
	r.Use(apimw.CorrelationID)
	r.Use(apimw.RequestLogger(d.Logger))

	// --- handler instances ---
	eh := handler.NewEventHandler(d.Service, d.Dispatcher, d.Logger)
	ah := handler.NewAccountHandler(d.Sweeper, d.Logger)
	sh := handler.NewSweepHandler(d.Sweeper, d.Logger)
	jh := handler.NewJobHandler(d.Service, d.Logger)
	mh := handler.NewMetricsHandler(d.Queue)
	hh := handler.NewHealthHandler(d.Store)

	// --- routes ---
	r.Get("/health", hh.Health)
	r.Get("/ready", hh.Ready)
	r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/events/messages", eh.Message)
		r.Post("/events/calls", eh.Call)

		r.Post("/hooks/account-deleted", ah.Deleted)

		r.Post("/sweeps/messages", sh.Messages)
		r.Post("/sweeps/notifications", sh.Notifications)

		r.Get("/jobs/{id}", jh.Get)
		r.Get("/metrics", mh.GetMetrics)
	})

	return r
}
