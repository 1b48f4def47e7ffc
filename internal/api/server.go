// Package api exposes the backtest job service over HTTP and websockets.
package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"trading-backtestv1/internal/backtest"
	"trading-backtestv1/internal/jobs"
	"trading-backtestv1/internal/metrics"
	"trading-backtestv1/internal/store/sqlite"
)

// Backtester runs one backtest.
type Backtester interface {
	Run(ctx context.Context, cfg backtest.Config, progress backtest.ProgressFunc) (*backtest.Result, error)
}

// ResultCache looks up job state published by other processes.
type ResultCache interface {
	LoadStatus(ctx context.Context, id string) ([]byte, error)
	LoadResult(ctx context.Context, id string) ([]byte, error)
}

// StrategyLister lists saved strategies, newest first.
type StrategyLister interface {
	ListStrategies(ctx context.Context, limit int) ([]sqlite.StrategyRecord, error)
}

// Options wires the router to the rest of the service. Jobs, Runner and
// Defaults are required; everything else is optional.
type Options struct {
	Jobs     *jobs.Manager
	Runner   Backtester
	Defaults backtest.Config

	Cache      ResultCache
	Strategies StrategyLister
	Metrics    *metrics.Metrics
	Health     http.Handler

	TOTPSecret  string  // empty disables the TOTP guard
	SubmitRate  float64 // submissions per second, 0 = unlimited
	SubmitBurst int
}

type handler struct {
	opts    Options
	limiter *rate.Limiter
}

// NewRouter builds the HTTP handler of the job API.
func NewRouter(opts Options) http.Handler {
	h := &handler{opts: opts}
	if opts.SubmitRate > 0 {
		burst := opts.SubmitBurst
		if burst < 1 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(opts.SubmitRate), burst)
	}

	r := mux.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(h.loggingMiddleware)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/health", h.health).Methods(http.MethodGet)
	v1.HandleFunc("/config", h.getConfig).Methods(http.MethodGet)
	v1.HandleFunc("/jobs", h.listJobs).Methods(http.MethodGet)
	v1.HandleFunc("/strategies", h.listStrategies).Methods(http.MethodGet)

	v1.Handle("/backtest", h.totpGuard(h.rateLimit(http.HandlerFunc(h.submit)))).Methods(http.MethodPost)
	v1.HandleFunc("/backtest/status/{id}", h.status).Methods(http.MethodGet)
	v1.HandleFunc("/backtest/results/{id}", h.results).Methods(http.MethodGet)
	v1.HandleFunc("/backtest/results/{id}/trades.csv", h.tradesCSV).Methods(http.MethodGet)
	v1.HandleFunc("/backtest/ws/{id}", h.stream).Methods(http.MethodGet)

	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler()).Methods(http.MethodGet)
	}
	if opts.Health != nil {
		r.Handle("/healthz", opts.Health).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})

	return corsMiddleware(r)
}

// Server is the HTTP server of the job API.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a server for handler on addr.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[api] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[api] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
