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

// Metrics holds all Prometheus metrics for the trading engine.
type Metrics struct {
	TicksTotal   prometheus.Counter
	BarsTotal    prometheus.Counter
	WSReconnects prometheus.Counter
	DroppedTicks prometheus.Counter

	// Signal pipeline
	SignalsEmitted  *prometheus.CounterVec // labels: direction
	SignalsRejected *prometheus.CounterVec // labels: reason

	// Position lifecycle
	PositionsOpened *prometheus.CounterVec // labels: direction
	PositionsClosed *prometheus.CounterVec // labels: reason
	OpenPositions   prometheus.Gauge
	DailyPnL        prometheus.Gauge // paise

	// DeadlineMissed counts square-off attempts that left a position open
	// past the deadline. Any non-zero value is an invariant violation.
	DeadlineMissed prometheus.Counter

	ExecutionRejected prometheus.Counter

	IndicatorComputeDur prometheus.Histogram
	SQLiteCommitDur     prometheus.Histogram
	RedisWriteDur       prometheus.Histogram

	RingBufOverflow  prometheus.Counter
	FanoutDropsTotal *prometheus.CounterVec // labels: subscriber

	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter

	MarketState prometheus.Gauge // 0=closed, 1=open
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_ticks_total",
			Help: "Total ticks received from the feed",
		}),
		BarsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_bars_total",
			Help: "Total finalized bars processed",
		}),
		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_ws_reconnects_total",
			Help: "Total WebSocket reconnection attempts",
		}),
		DroppedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_dropped_ticks_total",
			Help: "Ticks dropped (late or channel full)",
		}),

		SignalsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_signals_emitted_total",
			Help: "Qualified signals emitted (by direction)",
		}, []string{"direction"}),
		SignalsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_signals_rejected_total",
			Help: "Crossover candidates rejected (by filter reason)",
		}, []string{"reason"}),

		PositionsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_positions_opened_total",
			Help: "Positions opened (by direction)",
		}, []string{"direction"}),
		PositionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_positions_closed_total",
			Help: "Positions closed (by exit reason)",
		}, []string{"reason"}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "engine_open_positions",
			Help: "Currently open positions",
		}),
		DailyPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "engine_daily_pnl_paise",
			Help: "Realized session P&L in paise",
		}),

		DeadlineMissed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_deadline_missed_total",
			Help: "Positions observed open past the square-off deadline",
		}),
		ExecutionRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_execution_rejected_total",
			Help: "Orders declined by the execution venue",
		}),

		IndicatorComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "engine_indicator_compute_duration_seconds",
			Help:    "DI/ADX compute latency per bar",
			Buckets: []float64{0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001},
		}),
		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "engine_sqlite_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),
		RedisWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "engine_redis_write_duration_seconds",
			Help:    "Redis publish latency",
			Buckets: prometheus.DefBuckets,
		}),

		RingBufOverflow: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_ringbuf_overflow_total",
			Help: "Ring buffer push overflows (dropped ticks)",
		}),
		FanoutDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_fanout_drops_total",
			Help: "Bars dropped by FanOut bus per subscriber",
		}, []string{"subscriber"}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "engine_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),

		MarketState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "engine_market_state",
			Help: "Market session state (0=closed, 1=open)",
		}),
	}

	prometheus.MustRegister(
		m.TicksTotal,
		m.BarsTotal,
		m.WSReconnects,
		m.DroppedTicks,
		m.SignalsEmitted,
		m.SignalsRejected,
		m.PositionsOpened,
		m.PositionsClosed,
		m.OpenPositions,
		m.DailyPnL,
		m.DeadlineMissed,
		m.ExecutionRejected,
		m.IndicatorComputeDur,
		m.SQLiteCommitDur,
		m.RedisWriteDur,
		m.RingBufOverflow,
		m.FanoutDropsTotal,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.MarketState,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	WSConnected    bool      `json:"ws_connected"`
	LastTickTime   time.Time `json:"last_tick_time"`
	LastBarTime    time.Time `json:"last_bar_time"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	OpenPositions  int       `json:"open_positions"`

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

func (h *HealthStatus) SetLastBarTime(t time.Time) {
	h.mu.Lock()
	h.LastBarTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetOpenPositions(n int) {
	h.mu.Lock()
	h.OpenPositions = n
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

	overallStatus := "healthy"
	httpCode := http.StatusOK

	if !h.WSConnected || !h.RedisConnected || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.RedisConnected && !h.SQLiteOK {
		overallStatus = "unhealthy"
	}

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
		LastBarTime     string  `json:"last_bar_time"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		OpenPositions   int     `json:"open_positions"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		WSConnected:     h.WSConnected,
		LastTickTime:    h.LastTickTime.Format(time.RFC3339),
		TickAge:         tickAge,
		LastBarTime:     h.LastBarTime.Format(time.RFC3339),
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		OpenPositions:   h.OpenPositions,
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
