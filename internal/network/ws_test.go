package network

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func wsPair(t *testing.T) (host, client *WSLink, cleanup func()) {
	t.Helper()

	accepted := make(chan *WSLink, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		link, err := AcceptWS(w, r)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		accepted <- link
	}))

	client, err := DialWS("ws" + strings.TrimPrefix(ts.URL, "http"))
	if err != nil {
		ts.Close()
		t.Fatalf("dial: %v", err)
	}

	select {
	case host = <-accepted:
	case <-time.After(time.Second):
		ts.Close()
		t.Fatal("upgrade never completed")
	}

	return host, client, func() {
		client.Close()
		host.Close()
		ts.Close()
	}
}

func TestWSLinkRoundTrip(t *testing.T) {
	host, client, cleanup := wsPair(t)
	defer cleanup()

	got := make(chan []byte, 1)
	client.OnReceive(ChannelSnapshot, func(payload []byte) {
		got <- payload
	})

	if err := host.Send(ChannelSnapshot, []byte(`{"sendTimestamp":7}`)); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case payload := <-got:
		if string(payload) != `{"sendTimestamp":7}` {
			t.Errorf("payload mangled: %s", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("snapshot never arrived")
	}
}

func TestWSLinkChannelRouting(t *testing.T) {
	host, client, cleanup := wsPair(t)
	defer cleanup()

	inputs := make(chan struct{}, 1)
	snapshots := make(chan struct{}, 1)
	host.OnReceive(ChannelInput, func([]byte) { inputs <- struct{}{} })
	host.OnReceive(ChannelSnapshot, func([]byte) { snapshots <- struct{}{} })

	if err := client.Send(ChannelInput, []byte(`{}`)); err != nil {
		t.Fatal(err)
	}

	select {
	case <-inputs:
	case <-snapshots:
		t.Fatal("input routed to snapshot handler")
	case <-time.After(time.Second):
		t.Fatal("message never arrived")
	}
}

func TestWSLinkDisconnectOnPeerClose(t *testing.T) {
	host, client, cleanup := wsPair(t)
	defer cleanup()

	lost := make(chan string, 1)
	client.OnDisconnect(func(reason string) { lost <- reason })

	// Abrupt close from the host side surfaces as a disconnect.
	host.conn.Close()

	select {
	case <-lost:
	case <-time.After(2 * time.Second):
		t.Fatal("peer close never surfaced")
	}
}
