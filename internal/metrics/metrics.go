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

// Metrics holds all Prometheus metrics for the zone engine.
type Metrics struct {
	TicksTotal   prometheus.Counter
	WSReconnects prometheus.Counter
	DroppedTicks prometheus.Counter

	// Calculation pipeline
	JobsDispatched prometheus.Counter
	JobsSucceeded  prometheus.Counter
	JobsFailed     prometheus.Counter
	JobsCanceled   prometheus.Counter
	JobsDiscarded  prometheus.Counter // stale results (param mismatch / old epoch)
	CalcDuration   prometheus.Histogram
	CandlesScanned prometheus.Counter

	// Trigger state
	StalePairs    prometheus.Gauge
	InFlightJobs  prometheus.Gauge
	TriggerFires  prometheus.Counter
	ModelSwaps    prometheus.Counter
	DebounceHolds prometheus.Counter

	// Zone monitor
	ZoneEvents *prometheus.CounterVec // labels: type=entered|exited

	// Publishing
	RedisPublishDur prometheus.Histogram
	PublishDrops    prometheus.Counter

	// Ring buffer overflow
	RingBufOverflow prometheus.Counter
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zoneengine_ticks_total",
			Help: "Total price ticks received from WebSocket",
		}),
		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zoneengine_ws_reconnects_total",
			Help: "Total WebSocket reconnection attempts",
		}),
		DroppedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zoneengine_dropped_ticks_total",
			Help: "Ticks dropped (ring buffer full)",
		}),

		JobsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zoneengine_jobs_dispatched_total",
			Help: "Calculation jobs handed to the worker pool",
		}),
		JobsSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zoneengine_jobs_succeeded_total",
			Help: "Calculation jobs whose result was accepted and swapped in",
		}),
		JobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zoneengine_jobs_failed_total",
			Help: "Calculation jobs that returned an error",
		}),
		JobsCanceled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zoneengine_jobs_canceled_total",
			Help: "Calculation jobs canceled before completion",
		}),
		JobsDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zoneengine_jobs_discarded_total",
			Help: "Completed jobs discarded because params or epoch went stale",
		}),
		CalcDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "zoneengine_calc_duration_seconds",
			Help:    "Full model calculation latency",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		CandlesScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zoneengine_candles_scanned_total",
			Help: "Candles accumulated across all calculations",
		}),

		StalePairs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zoneengine_stale_pairs",
			Help: "Pairs currently marked stale and awaiting recalculation",
		}),
		InFlightJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zoneengine_inflight_jobs",
			Help: "Calculation jobs currently running",
		}),
		TriggerFires: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zoneengine_trigger_fires_total",
			Help: "Qualifying price moves that marked a pair stale",
		}),
		ModelSwaps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zoneengine_model_swaps_total",
			Help: "Trading model pointer swaps",
		}),
		DebounceHolds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zoneengine_debounce_holds_total",
			Help: "Scheduler passes where a stale pair was held back by debounce",
		}),

		ZoneEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zoneengine_zone_events_total",
			Help: "Zone boundary crossings (by type)",
		}, []string{"type"}),

		RedisPublishDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "zoneengine_redis_publish_duration_seconds",
			Help:    "Redis event publish latency",
			Buckets: prometheus.DefBuckets,
		}),
		PublishDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zoneengine_publish_drops_total",
			Help: "Zone events dropped because the publish channel was full",
		}),

		RingBufOverflow: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zoneengine_ringbuf_overflow_total",
			Help: "Ring buffer push overflows (dropped ticks)",
		}),
	}

	prometheus.MustRegister(
		m.TicksTotal,
		m.WSReconnects,
		m.DroppedTicks,
		m.JobsDispatched,
		m.JobsSucceeded,
		m.JobsFailed,
		m.JobsCanceled,
		m.JobsDiscarded,
		m.CalcDuration,
		m.CandlesScanned,
		m.StalePairs,
		m.InFlightJobs,
		m.TriggerFires,
		m.ModelSwaps,
		m.DebounceHolds,
		m.ZoneEvents,
		m.RedisPublishDur,
		m.PublishDrops,
		m.RingBufOverflow,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	WSConnected    bool      `json:"ws_connected"`
	LastTickTime   time.Time `json:"last_tick_time"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	PairsTracked   int       `json:"pairs_tracked"`
	PairsModeled   int       `json:"pairs_modeled"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetWSConnected(v bool) {
	h.mu.Lock()
	h.WSConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastTickTime(t time.Time) {
	h.mu.Lock()
	h.LastTickTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetPairCounts(tracked, modeled int) {
	h.mu.Lock()
	h.PairsTracked = tracked
	h.PairsModeled = modeled
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
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

	// Determine overall status
	overallStatus := "healthy"
	httpCode := http.StatusOK

	if !h.WSConnected || !h.RedisConnected {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.WSConnected && !h.RedisConnected {
		overallStatus = "unhealthy"
	}

	// Tick age
	tickAge := ""
	if !h.LastTickTime.IsZero() {
		tickAge = time.Since(h.LastTickTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		WSConnected     bool    `json:"ws_connected"`
		LastTickTime    string  `json:"last_tick_time"`
		TickAge         string  `json:"tick_age"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		PairsTracked    int     `json:"pairs_tracked"`
		PairsModeled    int     `json:"pairs_modeled"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		WSConnected:     h.WSConnected,
		LastTickTime:    h.LastTickTime.Format(time.RFC3339),
		TickAge:         tickAge,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		PairsTracked:    h.PairsTracked,
		PairsModeled:    h.PairsModeled,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
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
