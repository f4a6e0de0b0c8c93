package api

import (
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"strings"
	"time"

	"arena-combat/internal/ability"
	"arena-combat/internal/config"
	"arena-combat/internal/effect"
	"arena-combat/internal/game"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics with bounded cardinality (no per-pawn labels to prevent DoS)
var (
	// Game engine metrics
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "game_tick_duration_seconds",
		Help:    "Time spent in game tick",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05},
	})

	pawnCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_pawn_count",
		Help: "Current number of pawns",
	})

	projectileCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_projectile_count",
		Help: "Current number of live projectiles",
	})

	// Ability protocol metrics, labeled by ability name (bounded by the catalog)
	abilityEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ability_events_total",
		Help: "Ability protocol events by kind",
	}, []string{"kind", "ability"})

	targetDataDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "target_data_dropped_total",
		Help: "Target data dropped before reaching an activation",
	}, []string{"reason"})

	effectsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "effects_applied_total",
		Help: "Effect executions by template",
	}, []string{"template"})

	kills = promauto.NewCounter(prometheus.CounterOpts{
		Name: "game_kills_total",
		Help: "Pawns killed",
	})

	areaTriggers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "area_triggers_total",
		Help: "Area effects triggered",
	}, []string{"area", "kind"})

	areaTargets = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "area_targets_total",
		Help: "Targets an area effect was applied to",
	}, []string{"area", "kind"})

	// Event log metrics
	eventLogTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "event_log_total",
		Help: "Total events logged",
	})

	eventLogDropped = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "event_log_dropped",
		Help: "Events dropped due to rate limiting or buffer full",
	})

	// DoS detection metrics - use ONLY bounded label values
	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter or origin check",
	}, []string{"reason"}) // Bounded: "rate_limit", "origin", "ws_total_limit", "ws_ip_limit", "arena_full"

	frameRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "websocket_frames_rejected_total",
		Help: "Inbound websocket frames rejected",
	}, []string{"code"})

	// HTTP metrics with bounded labels
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"}) // endpoint is path pattern, not full URL

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	// WebSocket metrics
	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Total WebSocket messages sent",
	})
)

// StartDebugServer starts the internal observability server and returns it so
// the caller can shut it down.
// CRITICAL: This MUST bind to localhost only to prevent pprof-based DoS
func StartDebugServer(cfg config.ObservabilityConfig, logger zerolog.Logger) *http.Server {
	logger = logger.With().Str("component", "debug").Logger()
	if !cfg.Enabled {
		logger.Info().Msg("debug server disabled")
		return nil
	}

	host := "127.0.0.1"
	if os.Getenv("ALLOW_DEBUG_EXTERNAL") == "true" {
		host = ""
	}
	addr := fmt.Sprintf("%s:%d", host, cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           DebugHandler(cfg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("debug server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn().Err(err).Msg("debug server error")
		}
	}()

	return srv
}

// DebugHandler serves pprof, metrics and health behind optional basic auth.
func DebugHandler(cfg config.ObservabilityConfig) http.Handler {
	mux := http.NewServeMux()

	// pprof endpoints for profiling
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	var handler http.Handler = mux
	if cfg.User != "" {
		handler = basicAuthMiddleware(cfg.User, cfg.Password, mux)
	}
	return handler
}

// basicAuthMiddleware adds basic authentication to the handler
func basicAuthMiddleware(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// MetricsHooks returns engine hooks feeding the simulation metrics.
func MetricsHooks() game.Hooks {
	return game.Hooks{
		OnAbilityEvent: RecordAbilityEvent,
		OnApplied:      RecordApplied,
		OnArea:         RecordArea,
		OnTick: func(took time.Duration, pawns, projectiles int) {
			RecordTick(took)
			UpdatePawnCount(pawns)
			projectileCount.Set(float64(projectiles))
		},
	}
}

// RecordAbilityEvent counts one ability protocol event.
func RecordAbilityEvent(ev ability.Event) {
	if ev.Kind == ability.EventDropped {
		targetDataDropped.WithLabelValues(dropReason(ev.Reason)).Inc()
	}
	abilityEvents.WithLabelValues(ev.Kind.String(), ev.Ability).Inc()
}

// dropReason keeps the label set bounded.
func dropReason(reason string) string {
	switch {
	case reason == "":
		return "unknown"
	case strings.ContainsAny(reason, " :"):
		return "other"
	default:
		return reason
	}
}

// RecordApplied counts one effect execution.
func RecordApplied(a effect.Applied) {
	effectsApplied.WithLabelValues(a.Template).Inc()
	if a.Killed {
		kills.Inc()
	}
}

// RecordArea counts one area trigger and the targets it reached.
func RecordArea(area string, field bool, applied int) {
	kind := "explosion"
	if field {
		kind = "field"
	}
	areaTriggers.WithLabelValues(area, kind).Inc()
	if applied > 0 {
		areaTargets.WithLabelValues(area, kind).Add(float64(applied))
	}
}

// RecordTick records tick timing for metrics
func RecordTick(duration time.Duration) {
	tickDuration.Observe(duration.Seconds())
}

// UpdatePawnCount updates the pawn gauge
func UpdatePawnCount(count int) {
	pawnCount.Set(float64(count))
}

// UpdateEventLogStats mirrors the journal counters
func UpdateEventLogStats(s game.EventLogStats) {
	eventLogTotal.Set(float64(s.Total))
	eventLogDropped.Set(float64(s.Dropped))
}

// RecordConnectionRejected increments the rejection counter
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordFrameRejected counts a rejected websocket frame by protocol error code.
func RecordFrameRejected(code string) {
	frameRejected.WithLabelValues(code).Inc()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
}

// UpdateWSConnections updates WebSocket connection count
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages increments WebSocket message counter
func IncrementWSMessages() {
	wsMessagesTotal.Inc()
}
