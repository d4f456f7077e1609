// Package metrics exposes Prometheus metrics for the swing analysis
// backend and a /healthz dependency probe.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the swing backend.
type Metrics struct {
	// Pivot generation jobs
	JobsStarted prometheus.Counter
	JobsDone    prometheus.Counter
	JobsFailed  prometheus.Counter
	JobDuration prometheus.Histogram
	PivotsTotal *prometheus.CounterVec // labels: symbol, timeframe

	// Pivot list hygiene
	MalformedPivotsDropped prometheus.Counter

	// Measurement tool
	Measurements       prometheus.Counter
	ResolutionFailures prometheus.Counter

	// Gateway
	WSClients     prometheus.Gauge
	CandlesServed prometheus.Counter
}

// New registers and returns all metrics.
func New() *Metrics {
	m := &Metrics{
		JobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swing_jobs_started_total",
			Help: "Pivot generation jobs started",
		}),
		JobsDone: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swing_jobs_done_total",
			Help: "Pivot generation jobs completed successfully",
		}),
		JobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swing_jobs_failed_total",
			Help: "Pivot generation jobs that ended in failure",
		}),
		JobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "swing_job_duration_seconds",
			Help:    "Wall-clock duration of pivot generation jobs",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		PivotsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swing_pivots_generated_total",
			Help: "Swing points produced by generation jobs",
		}, []string{"symbol", "timeframe"}),
		MalformedPivotsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swing_malformed_pivots_dropped_total",
			Help: "Pivot records dropped during load for bad timestamps or prices",
		}),
		Measurements: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swing_measurements_total",
			Help: "Two-point measurements computed",
		}),
		ResolutionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swing_click_resolution_failures_total",
			Help: "Chart clicks whose price could not be resolved",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swing_ws_clients",
			Help: "Connected progress WebSocket clients",
		}),
		CandlesServed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swing_candles_served_total",
			Help: "Candles returned by the REST API",
		}),
	}

	prometheus.MustRegister(
		m.JobsStarted,
		m.JobsDone,
		m.JobsFailed,
		m.JobDuration,
		m.PivotsTotal,
		m.MalformedPivotsDropped,
		m.Measurements,
		m.ResolutionFailures,
		m.WSClients,
		m.CandlesServed,
	)

	return m
}

// Serve exposes /metrics (and /healthz when health is non-nil) on addr.
// Blocks; run in a goroutine.
func Serve(addr string, health http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if health != nil {
		mux.Handle("/healthz", health)
	}
	log.Printf("[metrics] serving /metrics on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("[metrics] server error: %v", err)
	}
}

// HealthStatus tracks dependency health for /healthz.
type HealthStatus struct {
	mu sync.RWMutex

	RedisConnected  bool      `json:"redis_connected"`
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteOK        bool      `json:"sqlite_ok"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
}

// NewHealthStatus starts optimistic; the first probe corrects it.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{RedisConnected: true, SQLiteOK: true}
}

// CheckRedis pings Redis and records latency + health.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	code := http.StatusOK
	if !h.RedisConnected || !h.SQLiteOK {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	if !h.RedisConnected && !h.SQLiteOK {
		status = "unhealthy"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(struct {
		Status string `json:"status"`
		*HealthStatus
	}{status, h})
}
