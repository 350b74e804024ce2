package api

import (
	"encoding/json"
	"net/http"

	"arena-core/internal/combat"
	"arena-core/internal/sim"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// MatchInterface defines the match methods used by the API.
// This interface enables mocking for tests without spinning up the full
// tick loop. Keep this minimal - only include methods the API layer
// actually calls.
type MatchInterface interface {
	// Status returns the latest published match status (lock-free)
	Status() sim.Status
}

// JournalInterface exposes journal counters for the stats endpoint.
type JournalInterface interface {
	Stats() map[string]interface{}
}

// RouterConfig contains all dependencies needed to construct the HTTP
// router. This struct is designed for dependency injection and
// testability.
type RouterConfig struct {
	// Match is the running simulation context (required)
	Match MatchInterface

	// Registry lists the weapon arsenal for /api/weapons. Optional.
	Registry *combat.WeaponRegistry

	// Journal is optional; nil hides the journal stats endpoint fields.
	Journal JournalInterface

	// PeerHandler handles the WebSocket upgrade on the peer-link path.
	// Host peers set this; nil leaves the path unmounted.
	PeerHandler http.HandlerFunc

	// PeerPath is the peer-link endpoint path. Defaults to "/peer".
	PeerPath string

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is optional configuration for the rate limiter.
	// Only used if RateLimiter is nil. If both are nil, uses
	// DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, only localhost origins are allowed.
	CORSOrigins []string

	// DisableLogging disables the request logger middleware (useful for
	// benchmarks).
	DisableLogging bool
}

type routerHandlers struct {
	match    MatchInterface
	registry *combat.WeaponRegistry
	journal  JournalInterface
	limiter  *IPRateLimiter
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// IMPORTANT: This function is PURE - it has no side effects beyond the
// rate limiter's cleanup goroutine when one is created here:
//   - No network listeners are opened
//   - No background workers are launched
//
// This makes it safe to use in tests with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	// Rate limiting (BEFORE CORS to reject early and save CPU). The
	// peer-link path is exempt: the snapshot stream would trip any
	// sensible request limit.
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		}
	}

	h := &routerHandlers{
		match:    cfg.Match,
		registry: cfg.Registry,
		journal:  cfg.Journal,
		limiter:  rateLimiter,
	}

	// API routes
	r.Group(func(r chi.Router) {
		r.Use(rateLimiter.Middleware)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   corsOrigins,
			AllowedMethods:   []string{"GET", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
		}))

		r.Route("/api", func(r chi.Router) {
			r.Get("/status", h.handleGetStatus)
			r.Get("/weapons", h.handleGetWeapons)
			r.Get("/stats", h.handleGetStats)
		})

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
	})

	// Peer link endpoint - a plain WebSocket upgrade, no CORS or limits
	if cfg.PeerHandler != nil {
		path := cfg.PeerPath
		if path == "" {
			path = "/peer"
		}
		r.Get(path, cfg.PeerHandler)
	}

	return r
}

// handleGetStatus returns the latest published match status.
func (h *routerHandlers) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.match.Status())
}

// handleGetWeapons lists the registered weapon specs.
func (h *routerHandlers) handleGetWeapons(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil {
		writeJSON(w, http.StatusOK, []combat.WeaponSpec{})
		return
	}
	writeJSON(w, http.StatusOK, h.registry.All())
}

// handleGetStats returns match, journal, and API counters.
func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	status := h.match.Status()
	stats := map[string]interface{}{
		"tick":         status.Tick,
		"projectiles":  status.Projectiles,
		"staleDropped": status.StaleDropped,
		"roundOver":    status.RoundOver,
	}
	if h.journal != nil {
		stats["journal"] = h.journal.Stats()
	}
	if h.limiter != nil {
		stats["api"] = h.limiter.Stats()
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
