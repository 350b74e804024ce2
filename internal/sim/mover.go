// Package sim runs the per-peer match simulation: the host's
// authoritative tick over both entities, and the client's prediction,
// reconciliation, and remote interpolation. Host and client are the same
// code path distinguished by a role flag, never separate processes
// sharing memory.
package sim

import (
	"math"

	"arena-core/internal/combat"
	"arena-core/internal/config"
	"arena-core/internal/geom"
	"arena-core/internal/network"
)

// Input is one sampled frame of player intent. The zero value is the
// neutral input; a stalled connection freezes the remote entity rather
// than extrapolating.
type Input struct {
	MoveX, MoveZ float64
	Sprint       bool
	Jump         bool
	Fire         bool
	Secondary    bool
	Reload       bool

	Facing        geom.Vec3
	SendTimestamp int64 // Unix millis
}

// InputFromMessage converts a wire input message. Missing wire fields
// have already decoded to their neutral zero values.
func InputFromMessage(m network.InputMessage) Input {
	return Input{
		MoveX:         m.MoveAxisX,
		MoveZ:         m.MoveAxisZ,
		Sprint:        m.Sprint,
		Jump:          m.Jump,
		Fire:          m.FirePressed,
		Secondary:     m.SecondaryPressed,
		Reload:        m.ReloadPressed,
		Facing:        m.FacingVec(),
		SendTimestamp: m.SendTimestamp,
	}
}

// Message converts the input to its wire form.
func (in Input) Message() network.InputMessage {
	return network.InputMessage{
		MoveAxisX:        in.MoveX,
		MoveAxisZ:        in.MoveZ,
		Sprint:           in.Sprint,
		Jump:             in.Jump,
		FirePressed:      in.Fire,
		SecondaryPressed: in.Secondary,
		ReloadPressed:    in.Reload,
		Facing:           network.VecArray(in.Facing),
		SendTimestamp:    in.SendTimestamp,
	}
}

// AimDir returns the aim direction, falling back to the entity's current
// yaw when the input carried no facing.
func (in Input) AimDir(e *combat.Entity) geom.Vec3 {
	if in.Facing.LengthSq() > 0 {
		return in.Facing.Normalized()
	}
	return geom.Vec3{X: math.Sin(e.Yaw), Z: math.Cos(e.Yaw)}
}

// Mover advances one entity by one tick. Host and client must run the
// identical integrator or prediction diverges every tick.
type Mover interface {
	Step(e *combat.Entity, in Input, dt float64)
}

// KinematicMover is the reference integrator: flat-ground walk/sprint
// movement in the facing frame, a single jump impulse, and constant
// gravity with a hard ground clamp. It carries no per-entity state, so
// one instance serves both entities.
type KinematicMover struct {
	Cfg config.MovementConfig
}

// NewKinematicMover creates an integrator with the given tunables.
func NewKinematicMover(cfg config.MovementConfig) *KinematicMover {
	return &KinematicMover{Cfg: cfg}
}

// Step advances the entity. Movement axes are expressed in the entity's
// facing frame and clamped to unit magnitude so diagonals are not
// faster.
func (m *KinematicMover) Step(e *combat.Entity, in Input, dt float64) {
	if !e.Alive {
		return
	}

	if in.Facing.LengthSq() > 0 {
		f := in.Facing
		e.Yaw = math.Atan2(f.X, f.Z)
	}

	wish := geom.Vec3{X: in.MoveX, Z: in.MoveZ}
	if l := wish.Length(); l > 1 {
		wish = wish.Scale(1 / l)
	}
	wish = wish.RotateY(e.Yaw)

	speed := m.Cfg.WalkSpeed
	if in.Sprint {
		speed = m.Cfg.SprintSpeed
	}
	e.Pos.X += wish.X * speed * dt
	e.Pos.Z += wish.Z * speed * dt

	if in.Jump && e.Grounded {
		e.VelY = m.Cfg.JumpSpeed
		e.Grounded = false
	}

	if !e.Grounded {
		e.VelY -= m.Cfg.Gravity * dt
		e.Pos.Y += e.VelY * dt

		if e.Pos.Y <= e.GroundY+combat.EyeHeight {
			e.Pos.Y = e.GroundY + combat.EyeHeight
			e.VelY = 0
			e.Grounded = true
		}
	} else {
		e.Pos.Y = e.GroundY + combat.EyeHeight
	}
}
