package network

import (
	"sync"

	"github.com/pkg/errors"
)

const localQueueSize = 100

type localFrame struct {
	channel string
	payload []byte
}

// LocalEndpoint is one side of an in-memory transport pair. It is used
// by tests and by same-process matches; both ends share nothing but the
// two channels connecting them.
type LocalEndpoint struct {
	peerInbox chan localFrame // messages we send land here
	inbox     chan localFrame // messages we receive arrive here

	handlerMu    sync.RWMutex
	handlers     map[string]func([]byte)
	onDisconnect func(string)

	stateMu sync.RWMutex
	closed  bool
	done    chan struct{}
}

// NewLocalPair wires two endpoints back to back. Each endpoint starts
// its dispatch goroutine immediately; handlers registered later simply
// miss earlier messages, which latest-value consumers tolerate.
func NewLocalPair() (*LocalEndpoint, *LocalEndpoint) {
	ab := make(chan localFrame, localQueueSize)
	ba := make(chan localFrame, localQueueSize)

	a := &LocalEndpoint{peerInbox: ab, inbox: ba, handlers: make(map[string]func([]byte)), done: make(chan struct{})}
	b := &LocalEndpoint{peerInbox: ba, inbox: ab, handlers: make(map[string]func([]byte)), done: make(chan struct{})}

	go a.dispatchLoop()
	go b.dispatchLoop()
	return a, b
}

func (e *LocalEndpoint) dispatchLoop() {
	for {
		select {
		case frame, ok := <-e.inbox:
			if !ok {
				e.fireDisconnect("peer closed")
				return
			}
			e.handlerMu.RLock()
			handler := e.handlers[frame.channel]
			e.handlerMu.RUnlock()
			if handler != nil {
				handler(frame.payload)
			}
		case <-e.done:
			return
		}
	}
}

// Send queues payload for the peer. A full queue drops the message, the
// same way a saturated socket would.
func (e *LocalEndpoint) Send(channel string, payload []byte) error {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	if e.closed {
		return errors.New("transport closed")
	}

	// Copy so the caller can reuse its buffer.
	buf := make([]byte, len(payload))
	copy(buf, payload)

	select {
	case e.peerInbox <- localFrame{channel: channel, payload: buf}:
		return nil
	default:
		return errors.Errorf("channel %s queue full", channel)
	}
}

// OnReceive registers the handler for one channel, replacing any
// previous one.
func (e *LocalEndpoint) OnReceive(channel string, handler func([]byte)) {
	e.handlerMu.Lock()
	e.handlers[channel] = handler
	e.handlerMu.Unlock()
}

// OnDisconnect registers the link-loss handler.
func (e *LocalEndpoint) OnDisconnect(handler func(reason string)) {
	e.handlerMu.Lock()
	e.onDisconnect = handler
	e.handlerMu.Unlock()
}

func (e *LocalEndpoint) fireDisconnect(reason string) {
	e.handlerMu.RLock()
	handler := e.onDisconnect
	e.handlerMu.RUnlock()
	if handler != nil {
		handler(reason)
	}
}

// Close shuts this endpoint down and signals the peer through its
// drained inbox. Safe to call more than once.
func (e *LocalEndpoint) Close() error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	close(e.done)
	close(e.peerInbox)
	return nil
}
