package infra

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics groups the Prometheus collectors of the server.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	SessionsOpened  prometheus.Counter
	SessionsClosed  *prometheus.CounterVec // by classification
	Movements       *prometheus.CounterVec // by type and payment method
	Transfers       prometheus.Counter
	ReportJobs      *prometheus.CounterVec // by outcome
	DeadLettered    *prometheus.CounterVec // by queue and job type
	IdempotentHits  prometheus.Counter
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "labcaja", Name: "http_requests_total", Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "labcaja", Name: "http_request_duration_seconds", Help: "HTTP latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		SessionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "labcaja", Name: "sessions_opened_total", Help: "Cash sessions opened.",
		}),
		SessionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "labcaja", Name: "sessions_closed_total", Help: "Cash sessions closed by difference classification.",
		}, []string{"classification"}),
		Movements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "labcaja", Name: "movements_total", Help: "Recorded movements.",
		}, []string{"type", "payment_method"}),
		Transfers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "labcaja", Name: "register_transfers_total", Help: "Transfers to the main register.",
		}),
		ReportJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "labcaja", Name: "closing_report_jobs_total", Help: "Closing report jobs by outcome.",
		}, []string{"outcome"}),
		DeadLettered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "labcaja", Name: "dead_lettered_jobs_total", Help: "Jobs moved to a dead letter queue.",
		}, []string{"queue", "type"}),
		IdempotentHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "labcaja", Name: "idempotency_replays_total", Help: "Mutating requests rejected as replays.",
		}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		m.HTTPRequests, m.HTTPDuration,
		m.SessionsOpened, m.SessionsClosed, m.Movements, m.Transfers,
		m.ReportJobs, m.DeadLettered, m.IdempotentHits,
	)
	return m
}
