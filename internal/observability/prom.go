package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Prom holds the tracker's Prometheus metrics, in the same registered-
// struct shape the teacher's observability.Prom uses: HTTP metrics for
// the admin API, DB metrics for the dead-letter store, and a
// tracker-specific set (component 4.I) for the registry itself.
type Prom struct {
	RequestsTotal    *prometheus.CounterVec
	RequestsDuration *prometheus.HistogramVec
	InFlight         *prometheus.GaugeVec
	// DB (dead-letter store)
	DbQueryDuration *prometheus.HistogramVec
	DbErrorsTotal   *prometheus.CounterVec

	// Tracker registry (component 4.I)

	ErrorsRegisteredTotal *prometheus.CounterVec
	DeadLetteredTotal     prometheus.Counter
	CleanupEvictedTotal   prometheus.Counter
	RegistrySize          prometheus.Gauge
}

func NewProm(reg prometheus.Registerer) *Prom {
	p := &Prom{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "errortracker",
				Name:      "http_requests_total",
				Help:      "Total HTTP requests processed by the admin API.",
			},
			[]string{"method", "route", "status"},
		),
		RequestsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "errortracker",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency distributions.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route", "status"},
		),
		InFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "errortracker",
				Name:      "http_in_flight_requests",
				Help:      "Current number of in-flight HTTP requests.",
			},
			[]string{"method", "route"},
		),
		DbQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "errortracker",
				Subsystem: "db",
				Name:      "query_duration_seconds",
				Help:      "Dead-letter store query latency (logical op, not raw SQL).",
				Buckets:   []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.35, 0.5, 1, 2, 5},
			},
			[]string{"op", "status"},
		),
		DbErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "errortracker",
				Subsystem: "db",
				Name:      "errors_total",
				Help:      "Dead-letter store errors by logical op and class.",
			},
			[]string{"op", "class"},
		),

		ErrorsRegisteredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "errortracker",
				Subsystem: "registry",
				Name:      "errors_registered_total",
				Help:      "Delivery failures registered with the tracker, by finality.",
			},
			[]string{"final"},
		),
		DeadLetteredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "errortracker",
				Subsystem: "registry",
				Name:      "dead_lettered_total",
				Help:      "Messages the tracker has declared has_failed_too_many_times.",
			},
		),
		CleanupEvictedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "errortracker",
				Subsystem: "registry",
				Name:      "cleanup_evicted_total",
				Help:      "Entries evicted by the background cleanup sweep for sitting idle past reclaim_idle_after.",
			},
		),
		RegistrySize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "errortracker",
				Subsystem: "registry",
				Name:      "size",
				Help:      "Current number of tracked message ids, sampled periodically by the process's metrics loop.",
			},
		),
	}
	reg.MustRegister(
		p.RequestsTotal, p.RequestsDuration, p.InFlight,
		p.DbQueryDuration, p.DbErrorsTotal,
		p.ErrorsRegisteredTotal, p.DeadLetteredTotal, p.CleanupEvictedTotal, p.RegistrySize,
	)

	return p
}

func (p *Prom) GinHandleMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		// route template is only available after routing; best effort:
		route := ctx.FullPath()

		if route == "" {
			route = "unmatched"
		}

		method := ctx.Request.Method
		p.InFlight.WithLabelValues(method, route).Inc()
		defer p.InFlight.WithLabelValues(method, route).Dec()
		ctx.Next()

		status := strconv.Itoa(ctx.Writer.Status())
		secs := time.Since(start).Seconds()

		p.RequestsTotal.WithLabelValues(method, route, status).Inc()
		p.RequestsDuration.WithLabelValues(method, route, status).Observe(secs)
	}
}
