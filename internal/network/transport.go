package network

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Channel names for the peer link. Each message travels on exactly one
// channel and carries a single JSON payload.
const (
	ChannelInput    = "input"
	ChannelSnapshot = "snapshot"
	ChannelShot     = "shot"
)

// Transport is the bidirectional message link between the two peers of a
// match. Sends are fire-and-forget: no acknowledgement, no retry. State
// is republished on every snapshot so a dropped message self-heals on
// the next one. A read failure is fatal to the match and is reported
// exactly once through the disconnect handler.
type Transport interface {
	// Send transmits payload on the named channel.
	Send(channel string, payload []byte) error

	// OnReceive registers the handler for one channel, replacing any
	// previous handler. Handlers run on the transport's read goroutine.
	OnReceive(channel string, handler func(payload []byte))

	// OnDisconnect registers the handler invoked once when the link dies.
	OnDisconnect(handler func(reason string))

	// Close shuts the link down. Safe to call more than once.
	Close() error
}

// SendJSON marshals v and sends it on the named channel.
func SendJSON(t Transport, channel string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode %s message", channel)
	}
	return t.Send(channel, data)
}
