package combat

import "arena-core/internal/geom"

// TargetKind tags the two hit-testable target layouts.
type TargetKind int

const (
	// TargetSegmented tests every hitbox segment and reports the struck
	// segment's damage multiplier.
	TargetSegmented TargetKind = iota
	// TargetLegacySphere tests a single bounding sphere at multiplier 1.
	// Compatibility path for callers without a segment profile.
	TargetLegacySphere
)

// Target is one entity resolved for hit testing. The variant is resolved
// once at the call boundary, not re-derived inside pellet loops.
type Target struct {
	Kind     TargetKind
	Entity   *Entity
	Segments []Segment

	// Legacy sphere variant
	Center geom.Vec3
	Radius float64
}

// SegmentedTarget resolves an entity into a segmented target using its
// hitbox profile, rebuilt fresh from the entity's current transform.
func SegmentedTarget(e *Entity) Target {
	return Target{
		Kind:     TargetSegmented,
		Entity:   e,
		Segments: BuildSegments(e),
	}
}

// SphereTarget wraps an entity in a legacy single-sphere target.
func SphereTarget(e *Entity, center geom.Vec3, radius float64) Target {
	return Target{
		Kind:   TargetLegacySphere,
		Entity: e,
		Center: center,
		Radius: radius,
	}
}

// intersect tests a ray against the target and returns the closest segment
// hit within maxDist, along with the struck segment's name and multiplier.
func (t Target) intersect(origin, dir geom.Vec3, maxDist float64) (geom.Hit, string, float64) {
	switch t.Kind {
	case TargetSegmented:
		best := geom.Hit{}
		bestName := ""
		bestMult := 0.0
		limit := maxDist
		for _, seg := range t.Segments {
			if h := geom.Intersect(origin, dir, seg.Shape, limit); h.Hit {
				best = h
				bestName = seg.Name
				bestMult = seg.Multiplier
				limit = h.Distance
			}
		}
		return best, bestName, bestMult

	case TargetLegacySphere:
		sphere := geom.Shape{Kind: geom.KindSphere, Center: t.Center, Radius: t.Radius}
		if h := geom.Intersect(origin, dir, sphere, maxDist); h.Hit {
			return h, "body", 1.0
		}
	}
	return geom.Hit{}, "", 0
}
