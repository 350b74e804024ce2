package combat

import (
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"arena-core/internal/geom"
)

// HitEvent records one pellet or projectile connecting with a target.
// Resolution returns event lists the caller drains; rendering and round
// flow consume them without any side-effecting callback plumbing.
type HitEvent struct {
	Target     *Entity
	Segment    string
	Multiplier float64
	Damage     int
	Point      geom.Vec3
	Distance   float64
	Pellet     int
	Killed     bool
}

// FireResult reports the outcome of one trigger pull.
type FireResult struct {
	PelletsFired  int
	Hits          int
	Events        []HitEvent
	Spawned       []*Projectile // projectile-mode weapons spawn instead of resolving
	MagazineEmpty bool
}

// FireOpts carries the per-call context for a trigger pull.
type FireOpts struct {
	Now       time.Time
	SourceID  string // shooter entity ID, stamped onto spawned projectiles
	Sprinting bool
	Rand      *rand.Rand // deterministic spread sampling; must be non-nil when spread > 0
}

// Fire resolves one trigger pull of a weapon from origin along aimDir.
// Ammo decrements by one per trigger pull regardless of pellet count, and
// MagazineEmpty is reported so the caller can start a reload. Pulling the
// trigger on an empty magazine enters reload instead of firing.
func Fire(w *Weapon, origin, aimDir geom.Vec3, targets []Target, solids []geom.Shape, opts FireOpts) FireResult {
	w.Update(opts.Now)

	if !w.CanFire(opts.Now) {
		return FireResult{MagazineEmpty: w.Ammo <= 0}
	}
	if w.Ammo <= 0 {
		w.BeginReload(opts.Now)
		return FireResult{MagazineEmpty: true}
	}

	res := FireResult{}
	dir := aimDir.Normalized()
	spread := w.SpreadFor(opts.Sprinting)
	pellets := w.Spec.Pellets
	if pellets < 1 {
		pellets = 1
	}

	for i := 0; i < pellets; i++ {
		pelletDir := sampleCone(dir, spread, opts.Rand)

		if w.Spec.ProjectileSpeed > 0 {
			res.Spawned = append(res.Spawned, &Projectile{
				ID:       uuid.NewString(),
				SourceID: opts.SourceID,
				Pos:      origin,
				Vel:      pelletDir.Scale(w.Spec.ProjectileSpeed),
				Gravity:  w.Spec.ProjectileGravity,
				Damage:   w.Spec.Damage,
				MaxRange: w.Spec.MaxRange,
			})
			continue
		}

		if ev, ok := resolvePellet(origin, pelletDir, w.Spec.MaxRange, w.Spec.Damage, targets, solids, i); ok {
			res.Events = append(res.Events, ev)
			res.Hits++
		}
	}
	res.PelletsFired = pellets

	w.Ammo--
	w.LastShot = opts.Now
	res.MagazineEmpty = w.Ammo <= 0
	return res
}

// Melee resolves a melee swing: the degenerate single-pellet, zero-spread,
// short-range variant of Fire with its own damage and cooldown and no ammo
// interaction.
func Melee(w *Weapon, origin, aimDir geom.Vec3, targets []Target, solids []geom.Shape, opts FireOpts) FireResult {
	if !w.CanMelee(opts.Now) {
		return FireResult{}
	}

	res := FireResult{PelletsFired: 1}
	dir := aimDir.Normalized()
	if ev, ok := resolvePellet(origin, dir, w.Spec.MeleeRange, w.Spec.MeleeDamage, targets, solids, 0); ok {
		res.Events = append(res.Events, ev)
		res.Hits++
	}
	w.LastMelee = opts.Now
	return res
}

// resolvePellet traces one pellet ray: world geometry upper-bounds travel,
// then the globally closest live-target segment strictly in front of the
// wall wins. Damage is applied to the struck entity here so a killing
// pellet leaves the target dead (and skipped) for the remaining pellets.
func resolvePellet(origin, dir geom.Vec3, maxRange float64, damage int, targets []Target, solids []geom.Shape, pellet int) (HitEvent, bool) {
	wallDist := maxRange
	if wall := geom.IntersectAny(origin, dir, solids, maxRange); wall.Hit {
		wallDist = wall.Distance
	}

	var (
		best     geom.Hit
		bestT    Target
		bestName string
		bestMult float64
	)
	limit := wallDist
	for _, t := range targets {
		if t.Entity != nil && !t.Entity.Alive {
			continue
		}
		h, name, mult := t.intersect(origin, dir, limit)
		// Geometry always occludes targets behind it: the hit must be
		// strictly closer than the current wall distance.
		if h.Hit && h.Distance < limit {
			best = h
			bestT = t
			bestName = name
			bestMult = mult
			limit = h.Distance
		}
	}

	if !best.Hit {
		return HitEvent{}, false
	}

	scaled := int(math.Round(float64(damage) * bestMult))
	killed := false
	if bestT.Entity != nil {
		killed = bestT.Entity.TakeDamage(scaled)
	}

	return HitEvent{
		Target:     bestT.Entity,
		Segment:    bestName,
		Multiplier: bestMult,
		Damage:     scaled,
		Point:      best.Point,
		Distance:   best.Distance,
		Pellet:     pellet,
		Killed:     killed,
	}, true
}

// sampleCone picks a direction inside a cone of the given half-angle
// around dir. Sampling is uniform in the disc perpendicular at unit
// distance (projected onto the cone), not uniform in angle, which would
// bias pellets toward the center.
func sampleCone(dir geom.Vec3, halfAngle float64, rng *rand.Rand) geom.Vec3 {
	if halfAngle <= 0 || rng == nil {
		return dir
	}

	t1, t2 := dir.Basis()
	discR := math.Tan(halfAngle)
	r := discR * math.Sqrt(rng.Float64())
	theta := 2 * math.Pi * rng.Float64()
	sin, cos := math.Sincos(theta)

	offset := t1.Scale(r * cos).Add(t2.Scale(r * sin))
	return dir.Add(offset).Normalized()
}
