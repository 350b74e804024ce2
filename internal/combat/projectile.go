package combat

import (
	"arena-core/internal/geom"
)

// ProjectileState is the lifecycle of a simulated moving body. Flying is
// the only live state; the rest are terminal and a projectile never
// returns to Flying.
type ProjectileState int

const (
	ProjectileFlying  ProjectileState = iota
	ProjectileHit                     // struck a live target
	ProjectileBlocked                 // struck world geometry, removed without damage
	ProjectileExpired                 // exceeded max range, removed without effect
)

func (s ProjectileState) String() string {
	switch s {
	case ProjectileFlying:
		return "flying"
	case ProjectileHit:
		return "hit"
	case ProjectileBlocked:
		return "blocked"
	case ProjectileExpired:
		return "expired"
	}
	return "unknown"
}

// Projectile is one simulated moving body spawned by the fire resolver.
// No two projectiles share mutable state.
type Projectile struct {
	ID       string
	SourceID string

	Pos     geom.Vec3
	Vel     geom.Vec3
	Gravity float64

	Damage   int
	MaxRange float64
	Traveled float64

	State ProjectileState
}

// Step advances the projectile by dt and resolves collisions along the
// per-frame displacement. Wall occlusion is tested first (any hit blocks
// without damage), then live targets' freshly rebuilt segments. Returns
// the hit event when the projectile connects.
func (p *Projectile) Step(dt float64, targets []Target, solids []geom.Shape) (HitEvent, bool) {
	if p.State != ProjectileFlying {
		return HitEvent{}, false
	}

	p.Vel.Y -= p.Gravity * dt
	disp := p.Vel.Scale(dt)
	dist := disp.Length()
	if dist < 1e-12 {
		return HitEvent{}, false
	}
	dir := disp.Scale(1 / dist)

	// A short ray spanning exactly this frame's displacement.
	if wall := geom.IntersectAny(p.Pos, dir, solids, dist); wall.Hit {
		p.State = ProjectileBlocked
		return HitEvent{}, false
	}

	// A projectile never strikes its own shooter; it spawns at the muzzle,
	// inside the shooter's hitbox.
	eligible := targets
	if p.SourceID != "" {
		eligible = nil
		for _, t := range targets {
			if t.Entity != nil && t.Entity.ID == p.SourceID {
				continue
			}
			eligible = append(eligible, t)
		}
	}

	if ev, ok := resolvePellet(p.Pos, dir, dist, p.Damage, eligible, nil, 0); ok {
		p.State = ProjectileHit
		return ev, true
	}

	p.Pos = p.Pos.Add(disp)
	p.Traveled += dist
	if p.Traveled > p.MaxRange {
		p.State = ProjectileExpired
	}
	return HitEvent{}, false
}

// ProjectileSet owns the live projectiles of one simulation context.
type ProjectileSet struct {
	items []*Projectile
}

// Spawn adds projectiles to the set.
func (s *ProjectileSet) Spawn(ps ...*Projectile) {
	s.items = append(s.items, ps...)
}

// Len returns the number of live projectiles.
func (s *ProjectileSet) Len() int {
	return len(s.items)
}

// Clear drops every projectile unconditionally (match teardown, round end).
func (s *ProjectileSet) Clear() {
	s.items = s.items[:0]
}

// Update steps every projectile and removes the ones that reached a
// terminal state, returning the hit events produced this tick. Iteration
// works over a snapshot of the slice and the surviving set is rebuilt from
// current membership afterwards, so a Clear invoked from an event consumer
// mid-update is tolerated: already-removed entries simply stay removed.
func (s *ProjectileSet) Update(dt float64, targets []Target, solids []geom.Shape) []HitEvent {
	var events []HitEvent

	snapshot := s.items
	for _, p := range snapshot {
		if ev, ok := p.Step(dt, targets, solids); ok {
			events = append(events, ev)
		}
	}

	// In-place filter of the current slice; a mid-update Clear leaves it
	// empty and there is nothing left to remove twice.
	n := 0
	for _, p := range s.items {
		if p.State == ProjectileFlying {
			s.items[n] = p
			n++
		}
	}
	s.items = s.items[:n]

	return events
}
