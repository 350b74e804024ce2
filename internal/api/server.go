package api

import (
	"log"
	"net/http"
	"sync/atomic"

	"arena-core/internal/combat"
	"arena-core/internal/network"

	"github.com/go-chi/chi/v5"
)

// Server is the host peer's HTTP front: the status/stats API plus the
// single peer-link WebSocket endpoint.
type Server struct {
	router      *chi.Mux
	rateLimiter *IPRateLimiter

	// A match has exactly one remote peer; later upgrades are rejected.
	peerTaken atomic.Bool
	onPeer    func(link *network.WSLink)
}

// NewServer creates the host API server.
//
// IMPORTANT: No network listener is opened until Start() is called, so
// tests can construct the server and drive Router() with httptest.
// onPeer receives the accepted peer link exactly once.
func NewServer(match MatchInterface, registry *combat.WeaponRegistry, journal JournalInterface, peerPath string, onPeer func(*network.WSLink)) *Server {
	s := &Server{
		rateLimiter: NewIPRateLimiter(DefaultRateLimitConfig),
		onPeer:      onPeer,
	}

	s.router = NewRouter(RouterConfig{
		Match:       match,
		Registry:    registry,
		Journal:     journal,
		RateLimiter: s.rateLimiter,
		PeerHandler: s.handlePeer,
		PeerPath:    peerPath,
	})

	return s
}

// handlePeer upgrades the one allowed remote peer.
func (s *Server) handlePeer(w http.ResponseWriter, r *http.Request) {
	if !s.peerTaken.CompareAndSwap(false, true) {
		RecordConnectionRejected("peer_taken")
		http.Error(w, "match already has a peer", http.StatusConflict)
		return
	}

	link, err := network.AcceptWS(w, r)
	if err != nil {
		log.Printf("⚠️ Peer upgrade failed: %v", err)
		s.peerTaken.Store(false)
		return
	}

	log.Printf("🔗 Peer connected from %s", GetClientIP(r))
	if s.onPeer != nil {
		s.onPeer(link)
	}
}

// Start begins serving. Blocks like http.ListenAndServe.
func (s *Server) Start(addr string) error {
	log.Printf("🌐 Host API serving on %s", addr)
	return http.ListenAndServe(addr, s.router)
}

// Router returns the HTTP handler for use with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// Stop shuts down background workers.
func (s *Server) Stop() {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
}
