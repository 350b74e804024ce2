package combat

import (
	"math"
	"testing"

	"arena-core/internal/geom"
)

// TestProjectileStraightLineExpiry verifies a zero-gravity projectile with
// no obstacles travels straight and expires at maxRange within one frame.
func TestProjectileStraightLineExpiry(t *testing.T) {
	p := &Projectile{
		Pos:      geom.Vec3{Y: 1.5},
		Vel:      geom.Vec3{Z: 10},
		MaxRange: 50,
	}
	dt := 1.0 / 60.0

	ticks := 0
	for p.State == ProjectileFlying {
		p.Step(dt, nil, nil)
		ticks++
		if ticks > 10000 {
			t.Fatal("projectile never expired")
		}
	}

	if p.State != ProjectileExpired {
		t.Fatalf("expected Expired, got %s", p.State)
	}
	// Straight line: no lateral or vertical drift without gravity.
	if p.Pos.X != 0 || math.Abs(p.Pos.Y-1.5) > 1e-9 {
		t.Errorf("zero-gravity projectile drifted to %v", p.Pos)
	}
	frameStep := 10 * dt
	if p.Traveled < 50 || p.Traveled > 50+frameStep+1e-9 {
		t.Errorf("expected expiry at 50 within one frame (%f), traveled %f", frameStep, p.Traveled)
	}
}

// TestProjectileBlockedByWall verifies wall occlusion along the per-frame
// displacement removes the projectile without damage.
func TestProjectileBlockedByWall(t *testing.T) {
	victim := standingTarget(0, 10)
	wall := []geom.Shape{{
		Kind: geom.KindBox, Center: geom.Vec3{X: 0, Y: 1.25, Z: 5},
		HalfW: 5, HalfH: 5, HalfD: 0.25,
	}}

	p := &Projectile{
		Pos:      geom.Vec3{Y: 1.25},
		Vel:      geom.Vec3{Z: 20},
		Damage:   50,
		MaxRange: 100,
	}

	set := &ProjectileSet{}
	set.Spawn(p)

	dt := 1.0 / 60.0
	for i := 0; i < 600 && set.Len() > 0; i++ {
		events := set.Update(dt, []Target{SegmentedTarget(victim)}, wall)
		if len(events) != 0 {
			t.Fatal("blocked projectile must not produce hit events")
		}
	}

	if p.State != ProjectileBlocked {
		t.Errorf("expected Blocked, got %s", p.State)
	}
	if victim.Health != victim.MaxHealth {
		t.Error("blocked projectile must not damage the target behind the wall")
	}
}

// TestProjectileHitsTarget verifies the hit path scales damage by the
// struck segment's multiplier and removes the projectile.
func TestProjectileHitsTarget(t *testing.T) {
	victim := standingTarget(0, 10)

	p := &Projectile{
		Pos:      geom.Vec3{Y: 1.25}, // torso height
		Vel:      geom.Vec3{Z: 20},
		Damage:   30,
		MaxRange: 100,
	}
	set := &ProjectileSet{}
	set.Spawn(p)

	dt := 1.0 / 60.0
	var events []HitEvent
	for i := 0; i < 600 && set.Len() > 0; i++ {
		// Fresh segments each tick, same as the host loop.
		events = append(events, set.Update(dt, []Target{SegmentedTarget(victim)}, nil)...)
	}

	if p.State != ProjectileHit {
		t.Fatalf("expected Hit, got %s", p.State)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 hit event, got %d", len(events))
	}
	ev := events[0]
	if ev.Segment != "torso" {
		t.Errorf("expected a torso strike, got %q", ev.Segment)
	}
	if ev.Damage != 30 {
		t.Errorf("torso multiplier 1.0 should leave damage at 30, got %d", ev.Damage)
	}
	if victim.Health != victim.MaxHealth-30 {
		t.Errorf("expected %d health, got %d", victim.MaxHealth-30, victim.Health)
	}
	if set.Len() != 0 {
		t.Error("hit projectile should be removed from the set")
	}
}

// TestProjectileSkipsDeadTargets verifies a projectile cannot damage an
// entity eliminated mid-flight.
func TestProjectileSkipsDeadTargets(t *testing.T) {
	victim := standingTarget(0, 3)
	victim.Alive = false
	victim.Health = 0

	p := &Projectile{
		Pos:      geom.Vec3{Y: 1.25},
		Vel:      geom.Vec3{Z: 20},
		Damage:   30,
		MaxRange: 10,
	}
	set := &ProjectileSet{}
	set.Spawn(p)

	dt := 1.0 / 60.0
	for i := 0; i < 200 && set.Len() > 0; i++ {
		if events := set.Update(dt, []Target{SegmentedTarget(victim)}, nil); len(events) != 0 {
			t.Fatal("dead targets must be skipped")
		}
	}

	if p.State != ProjectileExpired {
		t.Errorf("projectile should fly through and expire, got %s", p.State)
	}
}

// TestProjectileGravity verifies vertical velocity integrates gravity.
func TestProjectileGravity(t *testing.T) {
	p := &Projectile{
		Pos:      geom.Vec3{Y: 10},
		Vel:      geom.Vec3{Z: 10},
		Gravity:  9.8,
		MaxRange: 1000,
	}

	dt := 1.0 / 60.0
	for i := 0; i < 60; i++ {
		p.Step(dt, nil, nil)
	}

	if p.Vel.Y >= 0 {
		t.Error("gravity should pull velocity downward")
	}
	if p.Pos.Y >= 10 {
		t.Error("projectile should have dropped")
	}
}

// TestProjectileSetClear verifies a full clear empties the set and a
// subsequent update tolerates the removal.
func TestProjectileSetClear(t *testing.T) {
	set := &ProjectileSet{}
	for i := 0; i < 5; i++ {
		set.Spawn(&Projectile{Vel: geom.Vec3{Z: 10}, MaxRange: 100})
	}

	set.Clear()
	if set.Len() != 0 {
		t.Fatal("clear should drop every projectile")
	}

	// Update after a clear must be a no-op, not a panic.
	if events := set.Update(1.0/60.0, nil, nil); len(events) != 0 {
		t.Error("cleared set should produce no events")
	}
}

// TestProjectileTerminalStatesStick verifies no terminal state returns to
// Flying on further steps.
func TestProjectileTerminalStatesStick(t *testing.T) {
	p := &Projectile{Vel: geom.Vec3{Z: 10}, MaxRange: 0.01}
	dt := 1.0 / 60.0

	p.Step(dt, nil, nil)
	if p.State != ProjectileExpired {
		t.Fatalf("expected immediate expiry, got %s", p.State)
	}

	before := p.Pos
	p.Step(dt, nil, nil)
	if p.State != ProjectileExpired || p.Pos != before {
		t.Error("terminal projectiles must not advance")
	}
}
