// Package metrics exposes Prometheus instruments for the backtest service
// plus a /healthz probe over its storage dependencies.
package metrics

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"

	"trading-backtestv1/internal/jobs"
)

// Metrics holds all Prometheus metrics for the backtest service.
type Metrics struct {
	JobsSubmitted *prometheus.CounterVec // labels: kind
	JobsCompleted *prometheus.CounterVec // labels: kind
	JobsFailed    *prometheus.CounterVec // labels: kind
	JobsRunning   prometheus.Gauge
	JobDuration   *prometheus.HistogramVec // labels: kind

	BarsProcessed   prometheus.Counter
	TradesSimulated prometheus.Counter

	HTTPRequests *prometheus.CounterVec // labels: route, code
	RateLimited  prometheus.Counter

	// Circuit breaker in front of Redis
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=half-open, 2=open
	RedisCircuitBreakerTrips prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates the instruments on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		JobsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_jobs_submitted_total",
			Help: "Jobs accepted by the manager",
		}, []string{"kind"}),
		JobsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_jobs_completed_total",
			Help: "Jobs that finished successfully",
		}, []string{"kind"}),
		JobsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_jobs_failed_total",
			Help: "Jobs that ended in the failed state",
		}, []string{"kind"}),
		JobsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "backtest_jobs_running",
			Help: "Jobs currently running",
		}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "backtest_job_duration_seconds",
			Help:    "Wall time from job start to terminal state",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"kind"}),

		BarsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_bars_processed_total",
			Help: "Bars run through the simulator",
		}),
		TradesSimulated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_trades_simulated_total",
			Help: "Trades opened by the simulator",
		}),

		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_http_requests_total",
			Help: "API requests by route template and status code",
		}, []string{"route", "code"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_http_rate_limited_total",
			Help: "Submissions rejected by the rate limiter",
		}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "backtest_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=half-open, 2=open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),

		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.JobsSubmitted,
		m.JobsCompleted,
		m.JobsFailed,
		m.JobsRunning,
		m.JobDuration,
		m.BarsProcessed,
		m.TradesSimulated,
		m.HTTPRequests,
		m.RateLimited,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the registry the instruments live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveJob is a jobs.Listener that keeps the job instruments current.
func (m *Metrics) ObserveJob(ev jobs.Event) {
	s := ev.Snapshot
	switch s.Status {
	case jobs.StatusPending:
		m.JobsSubmitted.WithLabelValues(s.Kind).Inc()
	case jobs.StatusRunning:
		m.JobsRunning.Inc()
	case jobs.StatusCompleted, jobs.StatusFailed:
		if s.Status == jobs.StatusCompleted {
			m.JobsCompleted.WithLabelValues(s.Kind).Inc()
		} else {
			m.JobsFailed.WithLabelValues(s.Kind).Inc()
		}
		// jobs cancelled before starting never counted as running
		if s.StartedAt != nil && s.FinishedAt != nil {
			m.JobsRunning.Dec()
			m.JobDuration.WithLabelValues(s.Kind).Observe(s.FinishedAt.Sub(*s.StartedAt).Seconds())
		}
	}
}

// ObserveBreaker records a Redis breaker transition.
func (m *Metrics) ObserveBreaker(_, to gobreaker.State) {
	m.RedisCircuitBreakerState.Set(float64(to))
	if to == gobreaker.StateOpen {
		m.RedisCircuitBreakerTrips.Inc()
	}
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a standalone metrics and health server.
func NewServer(addr string, m *Metrics, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.Handle("/healthz", health)

	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
