package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ricirt/chatpulse/internal/domain"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	JobsEnqueued      *prometheus.CounterVec
	JobsSent          *prometheus.CounterVec
	JobsFailed        *prometheus.CounterVec
	JobsRetried       prometheus.Counter
	TokensInvalidated prometheus.Counter
	DispatchLatency   *prometheus.HistogramVec
	SweepDeleted      *prometheus.CounterVec
	SweepCommits      *prometheus.CounterVec
	SweepFailures     *prometheus.CounterVec
}

// New registers all instruments with the given registerer.
// A private registry keeps tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_jobs_enqueued_total",
			Help: "Notification jobs persisted by fan-out.",
		}, []string{"priority"}),

		JobsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_jobs_sent_total",
			Help: "Notification jobs accepted by the push transport.",
		}, []string{"priority"}),

		JobsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_jobs_failed_total",
			Help: "Notification jobs that reached the failed state, by error code.",
		}, []string{"priority", "code"}),

		JobsRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notification_jobs_retried_total",
			Help: "Dispatch attempts rescheduled because the transport was unavailable.",
		}),

		TokensInvalidated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "delivery_tokens_invalidated_total",
			Help: "Delivery tokens cleared after a permanent transport rejection.",
		}),

		DispatchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notification_dispatch_seconds",
			Help:    "Latency from claim to transport acknowledgement.",
			Buckets: prometheus.DefBuckets,
		}, []string{"priority"}),

		SweepDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "retention_sweep_deleted_total",
			Help: "Records deleted by retention sweeps.",
		}, []string{"sweep"}),

		SweepCommits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "retention_sweep_commits_total",
			Help: "Batched delete commits issued by retention sweeps.",
		}, []string{"sweep"}),

		SweepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "retention_sweep_failures_total",
			Help: "Per-entity failures isolated during retention sweeps.",
		}, []string{"sweep"}),
	}

	reg.MustRegister(
		m.JobsEnqueued,
		m.JobsSent,
		m.JobsFailed,
		m.JobsRetried,
		m.TokensInvalidated,
		m.DispatchLatency,
		m.SweepDeleted,
		m.SweepCommits,
		m.SweepFailures,
	)

	return m
}

// RegisterQueueDepth exposes the in-memory lane depths as gauges that are
// sampled at scrape time.
func RegisterQueueDepth(reg prometheus.Registerer, depths func() (high, normal int)) {
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "queue_depth_high",
			Help: "Current number of items in the high-priority lane.",
		}, func() float64 {
			h, _ := depths()
			return float64(h)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "queue_depth_normal",
			Help: "Current number of items in the normal-priority lane.",
		}, func() float64 {
			_, n := depths()
			return float64(n)
		}),
	)
}

// WorkerHooks returns the callbacks expected by worker.MetricHooks so the
// worker package stays free of prometheus imports.
func (m *Metrics) WorkerHooks() (
	onSent func(domain.Priority, time.Duration),
	onFailed func(domain.Priority, string),
	onRetry func(domain.Priority),
	onTokenCleared func(),
) {
	onSent = func(p domain.Priority, latency time.Duration) {
		m.JobsSent.WithLabelValues(string(p)).Inc()
		m.DispatchLatency.WithLabelValues(string(p)).Observe(latency.Seconds())
	}
	onFailed = func(p domain.Priority, code string) {
		m.JobsFailed.WithLabelValues(string(p), code).Inc()
	}
	onRetry = func(domain.Priority) {
		m.JobsRetried.Inc()
	}
	onTokenCleared = func() {
		m.TokensInvalidated.Inc()
	}
	return
}

// OnEnqueued counts persisted jobs for the fan-out service.
func (m *Metrics) OnEnqueued(p domain.Priority, n int) {
	m.JobsEnqueued.WithLabelValues(string(p)).Add(float64(n))
}

// OnSweep records one sweep run.
func (m *Metrics) OnSweep(sweep string, deleted, commits, failures int) {
	m.SweepDeleted.WithLabelValues(sweep).Add(float64(deleted))
	m.SweepCommits.WithLabelValues(sweep).Add(float64(commits))
	m.SweepFailures.WithLabelValues(sweep).Add(float64(failures))
}
