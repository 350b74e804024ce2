package combat

import (
	"encoding/json"
	"time"
)

// EventType classifies journal entries.
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeTick
	EventTypeShot
	EventTypeDamage
	EventTypeKill
	EventTypeRoundEnd
	EventTypeDisconnect
)

// EventVersion for backwards compatibility when replaying journals.
const EventVersion uint8 = 1

// Event is one journal entry. Payload is a JSON-encoded typed payload.
type Event struct {
	Version   uint8     `json:"version"`
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"` // Unix nano
	Sequence  uint64    `json:"sequence"`
	TickNum   uint64    `json:"tickNum"`
	SourceID  string    `json:"sourceId"` // entity the event originates from
	Payload   []byte    `json:"payload"`
}

func (t EventType) String() string {
	switch t {
	case EventTypeTick:
		return "tick"
	case EventTypeShot:
		return "shot"
	case EventTypeDamage:
		return "damage"
	case EventTypeKill:
		return "kill"
	case EventTypeRoundEnd:
		return "round_end"
	case EventTypeDisconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// TickPayload marks a tick boundary for replay alignment.
type TickPayload struct {
	DeltaTimeNs int64 `json:"deltaTimeNs"`
	Projectiles int   `json:"projectiles"`
}

// ShotPayload records one trigger pull.
type ShotPayload struct {
	ShooterID string `json:"shooterId"`
	WeaponID  string `json:"weaponId"`
	Pellets   int    `json:"pellets"`
	Hits      int    `json:"hits"`
	AmmoLeft  int    `json:"ammoLeft"`
}

// DamagePayload records one hit connecting.
type DamagePayload struct {
	SourceID   string  `json:"sourceId"`
	TargetID   string  `json:"targetId"`
	Segment    string  `json:"segment"`
	Multiplier float64 `json:"multiplier"`
	Damage     int     `json:"damage"`
	TargetHP   int     `json:"targetHp"`
}

// RoundEndPayload records an elimination ending the round.
type RoundEndPayload struct {
	WinnerID string `json:"winnerId"`
	LoserID  string `json:"loserId"`
}

// DisconnectPayload records the fatal connection-loss teardown.
type DisconnectPayload struct {
	Reason string `json:"reason"`
}

// EncodePayload marshals a payload to JSON bytes, nil on failure.
func EncodePayload(payload interface{}) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates an event stamped with the current time.
func NewEvent(eventType EventType, tickNum uint64, sourceID string, payload interface{}) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		TickNum:   tickNum,
		SourceID:  sourceID,
		Payload:   EncodePayload(payload),
	}
}
