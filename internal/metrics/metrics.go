package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors groups the service's prometheus metrics. A nil *Collectors is
// valid and records nothing.
type Collectors struct {
	HttpRequestsTotal       *prometheus.CounterVec
	HttpRequestDuration     *prometheus.HistogramVec
	SagaRunsTotal           *prometheus.CounterVec
	SagaCompensationsTotal  *prometheus.CounterVec
	SagaCompensationFailure *prometheus.CounterVec
	SagaDuration            *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(prefix string, reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		HttpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HttpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		SagaRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_saga_runs_total",
				Help: "Saga executions by name and terminal state",
			},
			[]string{"saga", "state"},
		),
		SagaCompensationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_saga_compensations_total",
				Help: "Compensating actions executed",
			},
			[]string{"saga", "step"},
		),
		SagaCompensationFailure: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_saga_compensation_failures_total",
				Help: "Compensating actions that returned an error",
			},
			[]string{"saga", "step"},
		),
		SagaDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_saga_duration_seconds",
				Help:    "Saga execution time in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"saga"},
		),
	}
	reg.MustRegister(
		c.HttpRequestsTotal,
		c.HttpRequestDuration,
		c.SagaRunsTotal,
		c.SagaCompensationsTotal,
		c.SagaCompensationFailure,
		c.SagaDuration,
	)
	return c
}

// SagaFinished records a terminal saga state.
func (c *Collectors) SagaFinished(saga, state string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.SagaRunsTotal.WithLabelValues(saga, state).Inc()
	c.SagaDuration.WithLabelValues(saga).Observe(elapsed.Seconds())
}

// Compensated records one compensating action and whether it failed.
func (c *Collectors) Compensated(saga, step string, failed bool) {
	if c == nil {
		return
	}
	c.SagaCompensationsTotal.WithLabelValues(saga, step).Inc()
	if failed {
		c.SagaCompensationFailure.WithLabelValues(saga, step).Inc()
	}
}

// Middleware records request counts and latency keyed by the chi route pattern.
func (c *Collectors) Middleware(next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		c.HttpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(ww.Status())).Inc()
		c.HttpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
