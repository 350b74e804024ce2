package api

import (
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics with bounded cardinality (no per-entity labels to prevent DoS)
var (
	// Simulation metrics
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arena_tick_duration_seconds",
		Help:    "Time spent in one simulation tick",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025},
	})

	projectileCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_projectiles_live",
		Help: "Currently live projectiles",
	})

	shotsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_shots_total",
		Help: "Trigger pulls resolved",
	})

	// Snapshot pipeline metrics
	snapshotsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_snapshots_sent_total",
		Help: "Authoritative snapshots broadcast",
	})

	staleDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_stale_messages_dropped_total",
		Help: "Out-of-order or duplicate messages discarded",
	})

	// Reconciliation metrics
	reconcileError = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arena_reconcile_error_meters",
		Help:    "Predicted-vs-authoritative position error at snapshot arrival",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	reconcileSnaps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_reconcile_snaps_total",
		Help: "Corrections that exceeded the snap threshold",
	})

	// Journal metrics
	journalDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_journal_dropped_total",
		Help: "Journal events dropped by rate limiting or buffer overflow",
	})

	// DoS detection metrics - use ONLY bounded label values
	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_connection_rejected_total",
		Help: "Connections rejected by rate limiter or peer check",
	}, []string{"reason"}) // Bounded: "rate_limit", "peer_taken", "invalid"
)

// ObservabilityConfig configures the debug server
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string // MUST be "127.0.0.1:6060" in production
	BasicAuthUser string // Optional basic auth
	BasicAuthPass string
}

// DefaultObservabilityConfig returns safe defaults
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060", // Localhost only - NEVER expose externally
	}
}

// StartDebugServer starts the internal observability server.
// CRITICAL: This MUST bind to localhost only to prevent pprof-based DoS
func StartDebugServer(cfg ObservabilityConfig) error {
	if !cfg.Enabled {
		log.Println("📊 Debug server disabled")
		return nil
	}

	// SECURITY: Validate address is localhost
	if cfg.ListenAddr != "127.0.0.1:6060" && cfg.ListenAddr != "localhost:6060" {
		if os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
			log.Println("⚠️ Debug server forced to localhost for security")
			cfg.ListenAddr = "127.0.0.1:6060"
		}
	}

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
	if cfg.BasicAuthUser != "" {
		handler = basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass, mux)
	}

	go func() {
		log.Printf("📊 Debug server starting on %s", cfg.ListenAddr)
		log.Printf("   - pprof:   http://%s/debug/pprof/", cfg.ListenAddr)
		log.Printf("   - metrics: http://%s/metrics", cfg.ListenAddr)

		if err := http.ListenAndServe(cfg.ListenAddr, handler); err != nil {
			log.Printf("⚠️ Debug server error: %v", err)
		}
	}()

	return nil
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

// RecordTick records one tick's wall time
func RecordTick(duration time.Duration) {
	tickDuration.Observe(duration.Seconds())
}

// RecordShots adds resolved trigger pulls
func RecordShots(n int) {
	shotsTotal.Add(float64(n))
}

// UpdateProjectileCount updates the live projectile gauge
func UpdateProjectileCount(count int) {
	projectileCount.Set(float64(count))
}

// RecordSnapshotSent increments the snapshot broadcast counter
func RecordSnapshotSent() {
	snapshotsSent.Inc()
}

// RecordStaleDropped adds silently discarded stale messages
func RecordStaleDropped(n uint64) {
	staleDropped.Add(float64(n))
}

// RecordReconcile records one snapshot correction
func RecordReconcile(errorMeters float64, snapped bool) {
	reconcileError.Observe(errorMeters)
	if snapped {
		reconcileSnaps.Inc()
	}
}

// RecordJournalDropped adds dropped journal events
func RecordJournalDropped(n uint64) {
	journalDropped.Add(float64(n))
}

// RecordConnectionRejected increments the rejection counter.
// reason must be one of: "rate_limit", "peer_taken", "invalid"
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}
