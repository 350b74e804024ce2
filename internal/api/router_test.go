package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"arena-core/internal/combat"
	"arena-core/internal/network"
	"arena-core/internal/sim"

	"github.com/gorilla/websocket"
)

type fakeMatch struct {
	status sim.Status
}

func (f *fakeMatch) Status() sim.Status { return f.status }

func testRouterConfig() RouterConfig {
	return RouterConfig{
		Match:    &fakeMatch{status: sim.Status{Host: true, Tick: 42, Projectiles: 2}},
		Registry: combat.NewWeaponRegistry(),
		RateLimitConfig: &RateLimitConfig{
			RequestsPerSecond: 1000,
			Burst:             1000,
			CleanupInterval:   time.Minute,
		},
		DisableLogging: true,
	}
}

func TestStatusEndpoint(t *testing.T) {
	ts := httptest.NewServer(NewRouter(testRouterConfig()))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}

	var status sim.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.Tick != 42 || !status.Host {
		t.Errorf("unexpected status payload: %+v", status)
	}
}

func TestWeaponsEndpoint(t *testing.T) {
	ts := httptest.NewServer(NewRouter(testRouterConfig()))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/weapons")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var specs []combat.WeaponSpec
	if err := json.NewDecoder(resp.Body).Decode(&specs); err != nil {
		t.Fatal(err)
	}
	if len(specs) == 0 {
		t.Error("default arsenal should not be empty")
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := httptest.NewServer(NewRouter(testRouterConfig()))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health returned %d", resp.StatusCode)
	}
}

// TestStatsEndpoint verifies /api/stats carries the match counters plus
// the limiter's own allowed/rejected tallies.
func TestStatsEndpoint(t *testing.T) {
	ts := httptest.NewServer(NewRouter(testRouterConfig()))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/stats")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var stats map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats["tick"].(float64) != 42 {
		t.Errorf("unexpected tick in stats: %v", stats["tick"])
	}
	api, ok := stats["api"].(map[string]interface{})
	if !ok {
		t.Fatalf("stats should include api counters, got %v", stats)
	}
	if api["allowed"].(float64) < 1 {
		t.Errorf("this request itself should count as allowed: %v", api)
	}
}

func TestRateLimitRejects(t *testing.T) {
	cfg := testRouterConfig()
	cfg.RateLimitConfig = &RateLimitConfig{
		RequestsPerSecond: 1,
		Burst:             2,
		CleanupInterval:   time.Minute,
	}
	ts := httptest.NewServer(NewRouter(cfg))
	defer ts.Close()

	var limited bool
	for i := 0; i < 10; i++ {
		resp, err := http.Get(ts.URL + "/api/status")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Error("burst of requests should have been rate limited")
	}
}

// TestSinglePeerOnly verifies the peer endpoint accepts exactly one
// WebSocket peer and rejects the rest.
func TestSinglePeerOnly(t *testing.T) {
	accepted := make(chan *network.WSLink, 1)
	srv := NewServer(&fakeMatch{}, nil, nil, "/peer", func(l *network.WSLink) {
		accepted <- l
	})
	defer srv.Stop()

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/peer"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("first peer dial: %v", err)
	}
	defer conn.Close()

	select {
	case link := <-accepted:
		defer link.Close()
	case <-time.After(time.Second):
		t.Fatal("peer link never handed off")
	}

	if _, _, err := websocket.DefaultDialer.Dial(wsURL, nil); err == nil {
		t.Error("second peer should have been rejected")
	}
}
