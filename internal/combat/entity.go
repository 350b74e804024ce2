// Package combat implements hit resolution for the arena core: per-entity
// multi-shape hitboxes, the pellet fire resolver, and the projectile
// simulator. Everything here is invoked identically on the authoritative
// host and in tests; there is no hidden global state - callers thread a
// WeaponRegistry and target lists through explicitly.
package combat

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"arena-core/internal/geom"
)

// EyeHeight is the vertical offset of the eye position above ground height.
const EyeHeight = 1.6

// Entity is one combatant. Position is eye-space; GroundY is the height of
// the ground under the entity. Exactly one entity per peer is locally
// controlled, the other is remote-mirrored.
type Entity struct {
	ID    string
	Name  string
	Class string // hitbox profile key

	Pos      geom.Vec3 // eye position
	GroundY  float64
	VelY     float64
	Grounded bool
	Yaw      float64 // facing, radians about vertical

	Health    int
	MaxHealth int
	Alive     bool

	Weapon *Weapon
}

// NewEntity creates a combatant at the world origin with full health.
func NewEntity(name, class string, w *Weapon) *Entity {
	return &Entity{
		ID:        uuid.NewString(),
		Name:      name,
		Class:     class,
		Pos:       geom.Vec3{Y: EyeHeight},
		Grounded:  true,
		Health:    100,
		MaxHealth: 100,
		Alive:     true,
		Weapon:    w,
	}
}

// TakeDamage reduces health, clamping at zero. Returns true if this damage
// eliminated the entity. Further damage on a dead entity is a no-op so a
// projectile cannot re-kill something already eliminated mid-flight.
func (e *Entity) TakeDamage(amount int) bool {
	if !e.Alive {
		return false
	}
	e.Health -= amount
	if e.Health <= 0 {
		e.Health = 0
		e.Alive = false
		return true
	}
	return false
}

// Respawn restores the entity to full health at the given position.
func (e *Entity) Respawn(pos geom.Vec3, groundY float64, now time.Time) {
	e.Pos = pos
	e.GroundY = groundY
	e.VelY = 0
	e.Grounded = true
	e.Health = e.MaxHealth
	e.Alive = true
	if e.Weapon != nil {
		e.Weapon.Refill(now)
	}
}

func (e *Entity) String() string {
	return fmt.Sprintf("%s(%s hp=%d)", e.Name, e.ID[:8], e.Health)
}
