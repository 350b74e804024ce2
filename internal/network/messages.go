package network

import (
	"time"

	"arena-core/internal/geom"
)

// InputMessage is one raw input sample sent from the client peer to the
// host. Fields absent on the wire decode to their zero values, which are
// exactly the neutral inputs — partial messages are expected under
// packet loss and must not error.
type InputMessage struct {
	MoveAxisX        float64    `json:"moveAxisX"`
	MoveAxisZ        float64    `json:"moveAxisZ"`
	Sprint           bool       `json:"sprint"`
	Jump             bool       `json:"jump"`
	FirePressed      bool       `json:"firePressed"`
	SecondaryPressed bool       `json:"secondaryPressed"`
	ReloadPressed    bool       `json:"reloadPressed"`
	Facing           [3]float64 `json:"facing"`
	SendTimestamp    int64      `json:"sendTimestamp"` // Unix millis
}

// FacingVec returns the facing as a normalized direction. A zero facing
// (missing on the wire) falls back to the default forward axis.
func (m InputMessage) FacingVec() geom.Vec3 {
	return geom.Vec3{X: m.Facing[0], Y: m.Facing[1], Z: m.Facing[2]}.Normalized()
}

// EntitySnapshot is the authoritative per-entity state inside a snapshot.
type EntitySnapshot struct {
	EntityID      string     `json:"entityId"`
	Position      [3]float64 `json:"position"`
	GroundHeight  float64    `json:"groundHeight"`
	Grounded      bool       `json:"grounded"`
	Health        int        `json:"health"`
	Ammo          int        `json:"ammo"`
	MagazineSize  int        `json:"magazineSize"`
	Reloading     bool       `json:"reloading"`
	ReloadEndTime int64      `json:"reloadEndTime"` // Unix millis, zero when not reloading
}

// PositionVec returns the entity position as a vector.
func (s EntitySnapshot) PositionVec() geom.Vec3 {
	return geom.Vec3{X: s.Position[0], Y: s.Position[1], Z: s.Position[2]}
}

// SnapshotMessage is one authoritative state broadcast from the host.
// Snapshots are value objects: the client consumes them and never
// mutates one. SendTimestamp orders snapshots; the client discards any
// snapshot older than the last one it applied.
type SnapshotMessage struct {
	Entities      []EntitySnapshot `json:"entities"`
	SendTimestamp int64            `json:"sendTimestamp"` // Unix millis
}

// ShotMessage mirrors one resolved trigger pull to the non-firing peer
// so it can play effects without waiting for the next snapshot.
type ShotMessage struct {
	ShooterID     string     `json:"shooterId"`
	WeaponID      string     `json:"weaponId"`
	Origin        [3]float64 `json:"origin"`
	Direction     [3]float64 `json:"direction"`
	Hits          int        `json:"hits"`
	SendTimestamp int64      `json:"sendTimestamp"`
}

// NowMillis is the wire clock: Unix milliseconds.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// VecArray converts a vector to its wire representation.
func VecArray(v geom.Vec3) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}
