package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// Pinger is a storage dependency that can be probed.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthStatus tracks the liveness of the service's dependencies.
// A nil dependency is reported as disabled and does not degrade health.
type HealthStatus struct {
	mu sync.RWMutex

	redisEnabled    bool
	RedisConnected  bool      `json:"redis_connected"`
	SQLiteOK        bool      `json:"sqlite_ok"`
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	RunningJobs     int       `json:"running_jobs"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`

	rdb    *goredis.Client
	sqlite Pinger
}

// NewHealthStatus returns a health status probing rdb and sqlite. Either may
// be nil.
func NewHealthStatus(rdb *goredis.Client, sqlite Pinger) *HealthStatus {
	return &HealthStatus{
		StartedAt:    time.Now(),
		redisEnabled: rdb != nil,
		rdb:          rdb,
		sqlite:       sqlite,
	}
}

// SetRunningJobs records the number of running jobs.
func (h *HealthStatus) SetRunningJobs(n int) {
	h.mu.Lock()
	h.RunningJobs = n
	h.mu.Unlock()
}

// Check probes every configured dependency once.
func (h *HealthStatus) Check(ctx context.Context) {
	if h.rdb != nil {
		h.checkRedis(ctx)
	}
	if h.sqlite != nil {
		h.checkSQLite(ctx)
	}
}

// checkRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) checkRedis(ctx context.Context) {
	start := time.Now()
	err := h.rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// checkSQLite pings the database and records latency + health.
func (h *HealthStatus) checkSQLite(ctx context.Context) {
	start := time.Now()
	err := h.sqlite.Ping(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks until ctx is done.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, interval time.Duration) {
	probe := func() {
		probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		h.Check(probeCtx)
		cancel()
	}
	probe()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probe()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	redisOK := !h.redisEnabled || h.RedisConnected
	sqliteOK := h.sqlite == nil || h.SQLiteOK

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !redisOK || !sqliteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !redisOK && !sqliteOK {
		overallStatus = "unhealthy"
	}

	lastCheck := ""
	if !h.LastCheckAt.IsZero() {
		lastCheck = h.LastCheckAt.Format(time.RFC3339)
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		RedisEnabled    bool    `json:"redis_enabled"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		RunningJobs     int     `json:"running_jobs"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		RedisEnabled:    h.redisEnabled,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		RunningJobs:     h.RunningJobs,
		LastCheckAt:     lastCheck,
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}
