package network

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingEvery    = 30 * time.Second
)

// wsEnvelope frames every message on the socket with its channel name.
type wsEnvelope struct {
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload"`
}

var peerUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The peer link is point-to-point between trusted match peers, not a
	// browser-facing endpoint.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSLink is a Transport over a single WebSocket connection. The host
// side accepts it from an HTTP upgrade, the client side dials; after the
// handshake both sides are symmetric.
type WSLink struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	handlerMu    sync.RWMutex
	handlers     map[string]func([]byte)
	onDisconnect func(string)

	closeOnce sync.Once
	done      chan struct{}
}

// AcceptWS upgrades an incoming HTTP request into a peer link and starts
// its read loop. Mounted by the host's router.
func AcceptWS(w http.ResponseWriter, r *http.Request) (*WSLink, error) {
	conn, err := peerUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, errors.Wrap(err, "upgrade peer link")
	}
	return newWSLink(conn), nil
}

// DialWS connects to a host's peer-link endpoint and starts the read
// loop.
func DialWS(url string) (*WSLink, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial peer link %s", url)
	}
	return newWSLink(conn), nil
}

func newWSLink(conn *websocket.Conn) *WSLink {
	l := &WSLink{
		conn:     conn,
		handlers: make(map[string]func([]byte)),
		done:     make(chan struct{}),
	}

	conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		return nil
	})

	go l.readLoop()
	go l.pingLoop()
	return l
}

// Send transmits payload on the named channel. Concurrent sends are
// serialized; gorilla allows one writer at a time.
func (l *WSLink) Send(channel string, payload []byte) error {
	env := wsEnvelope{Channel: channel, Payload: payload}
	data, err := json.Marshal(env)
	if err != nil {
		return errors.Wrapf(err, "encode %s envelope", channel)
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	l.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := l.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.Wrapf(err, "send %s", channel)
	}
	return nil
}

// OnReceive registers the handler for one channel, replacing any
// previous one. Handlers run on the read goroutine.
func (l *WSLink) OnReceive(channel string, handler func([]byte)) {
	l.handlerMu.Lock()
	l.handlers[channel] = handler
	l.handlerMu.Unlock()
}

// OnDisconnect registers the link-loss handler, invoked at most once.
func (l *WSLink) OnDisconnect(handler func(reason string)) {
	l.handlerMu.Lock()
	l.onDisconnect = handler
	l.handlerMu.Unlock()
}

func (l *WSLink) readLoop() {
	for {
		_, data, err := l.conn.ReadMessage()
		if err != nil {
			select {
			case <-l.done:
				// Deliberate close, not a link failure.
			default:
				log.Printf("⚠️ Peer link read failed: %v", err)
				l.fireDisconnect(err.Error())
			}
			return
		}

		var env wsEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Printf("⚠️ Dropping malformed peer frame: %v", err)
			continue
		}

		l.handlerMu.RLock()
		handler := l.handlers[env.Channel]
		l.handlerMu.RUnlock()
		if handler != nil {
			handler(env.Payload)
		}
	}
}

func (l *WSLink) pingLoop() {
	ticker := time.NewTicker(wsPingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.writeMu.Lock()
			err := l.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
			l.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-l.done:
			return
		}
	}
}

func (l *WSLink) fireDisconnect(reason string) {
	l.handlerMu.RLock()
	handler := l.onDisconnect
	l.handlerMu.RUnlock()
	if handler != nil {
		handler(reason)
	}
}

// Close tears the link down. Safe to call more than once.
func (l *WSLink) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
		l.writeMu.Lock()
		l.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(wsWriteTimeout))
		l.writeMu.Unlock()
		l.conn.Close()
	})
	return nil
}
