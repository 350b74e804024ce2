package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig tunes the per-IP limiter guarding the status API.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	CleanupInterval   time.Duration // how often stale visitor entries are dropped
}

// DefaultRateLimitConfig is sized for spectator dashboards polling
// /api/status a few times per second, with headroom for page loads.
var DefaultRateLimitConfig = RateLimitConfig{
	RequestsPerSecond: 10,
	Burst:             20,
	CleanupInterval:   5 * time.Minute,
}

// visitor is one polling client's limiter state.
type visitor struct {
	limiter *rate.Limiter
	seen    time.Time
}

// IPRateLimiter guards the status and stats endpoints against runaway
// pollers. The peer link is never rate limited: a match has exactly one
// peer and its snapshot stream would trip any sensible request limit.
type IPRateLimiter struct {
	visitors sync.Map // map[string]*visitor
	config   RateLimitConfig
	stopChan chan struct{}
	stopOnce sync.Once

	rejectedCount uint64 // atomic
	allowedCount  uint64 // atomic
}

// NewIPRateLimiter creates a limiter and starts its cleanup goroutine.
func NewIPRateLimiter(cfg RateLimitConfig) *IPRateLimiter {
	rl := &IPRateLimiter{
		config:   cfg,
		stopChan: make(chan struct{}),
	}

	// Visitor entries for one-off pollers would otherwise accumulate for
	// the lifetime of the match.
	go rl.cleanupLoop()

	return rl
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (rl *IPRateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopChan)
	})
}

func (rl *IPRateLimiter) limiterFor(ip string) *rate.Limiter {
	now := time.Now()

	if v, ok := rl.visitors.Load(ip); ok {
		entry := v.(*visitor)
		entry.seen = now
		return entry.limiter
	}

	entry := &visitor{
		limiter: rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.Burst),
		seen:    now,
	}
	actual, _ := rl.visitors.LoadOrStore(ip, entry)
	return actual.(*visitor).limiter
}

func (rl *IPRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopChan:
			return
		case <-ticker.C:
			rl.dropStale()
		}
	}
}

func (rl *IPRateLimiter) dropStale() {
	cutoff := time.Now().Add(-rl.config.CleanupInterval * 2)

	rl.visitors.Range(func(key, value interface{}) bool {
		if value.(*visitor).seen.Before(cutoff) {
			rl.visitors.Delete(key)
		}
		return true
	})
}

// Allow reports whether a request from ip is within its budget.
func (rl *IPRateLimiter) Allow(ip string) bool {
	if rl.limiterFor(ip).Allow() {
		atomic.AddUint64(&rl.allowedCount, 1)
		return true
	}
	atomic.AddUint64(&rl.rejectedCount, 1)
	return false
}

// Middleware rejects over-budget requests with 429.
func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(GetClientIP(r)) {
			RecordConnectionRejected("rate_limit")
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Stats returns the allowed/rejected counters, surfaced by /api/stats.
func (rl *IPRateLimiter) Stats() map[string]uint64 {
	return map[string]uint64{
		"allowed":  atomic.LoadUint64(&rl.allowedCount),
		"rejected": atomic.LoadUint64(&rl.rejectedCount),
	}
}

// GetClientIP extracts the client IP, honoring X-Forwarded-For and
// X-Real-IP from a fronting proxy. Spoofable without a trusted proxy.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
