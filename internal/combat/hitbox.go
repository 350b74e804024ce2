package combat

import (
	"math"

	"arena-core/internal/geom"
)

// SegmentDef is the configured definition of one hitbox volume: its shape,
// extents, damage multiplier, and offset from the entity's ground-level
// origin. Offsets are in entity-local space; X/Z rotate with facing yaw,
// Y is measured up from ground height so segments stay put regardless of
// camera pitch or eye position.
type SegmentDef struct {
	Name       string
	Kind       geom.ShapeKind
	Multiplier float64
	Offset     geom.Vec3

	// Sphere, cylinder, capsule
	Radius     float64
	HalfHeight float64

	// Box
	HalfW, HalfH, HalfD float64
}

// Segment is one resolved world-space hitbox volume for the current tick.
type Segment struct {
	Name       string
	Multiplier float64
	Shape      geom.Shape
}

// defaultProfiles maps an entity class to its ordered segment definitions.
// Multipliers: headshots double, limbs reduced.
var defaultProfiles = map[string][]SegmentDef{
	"soldier": {
		{
			Name: "head", Kind: geom.KindSphere, Multiplier: 2.0,
			Offset: geom.Vec3{Y: 1.72}, Radius: 0.14,
		},
		{
			Name: "torso", Kind: geom.KindBox, Multiplier: 1.0,
			Offset: geom.Vec3{Y: 1.25},
			HalfW:  0.22, HalfH: 0.32, HalfD: 0.14,
		},
		{
			Name: "legs", Kind: geom.KindCapsule, Multiplier: 0.8,
			Offset: geom.Vec3{Y: 0.48}, Radius: 0.16, HalfHeight: 0.48,
		},
		{
			Name: "arms", Kind: geom.KindCylinder, Multiplier: 0.75,
			Offset: geom.Vec3{X: 0.3, Y: 1.2}, Radius: 0.08, HalfHeight: 0.3,
		},
	},
}

// Profile returns the segment definitions for an entity class, falling back
// to the soldier profile for unknown classes.
func Profile(class string) []SegmentDef {
	if p, ok := defaultProfiles[class]; ok {
		return p
	}
	return defaultProfiles["soldier"]
}

// BuildSegments resolves an entity's segment definitions into world-space
// shapes for the current tick. Pure: it reads the entity and allocates a
// fresh slice, never caching across a position change. Callers must invoke
// it again after any movement before hit testing.
func BuildSegments(e *Entity) []Segment {
	defs := Profile(e.Class)
	segs := make([]Segment, 0, len(defs))
	for _, def := range defs {
		lateral := geom.Vec3{X: def.Offset.X, Z: def.Offset.Z}.RotateY(e.Yaw)
		center := geom.Vec3{
			X: e.Pos.X + lateral.X,
			Y: e.GroundY + def.Offset.Y,
			Z: e.Pos.Z + lateral.Z,
		}

		shape := geom.Shape{
			Kind:       def.Kind,
			Center:     center,
			Radius:     def.Radius,
			HalfHeight: def.HalfHeight,
			HalfW:      def.HalfW,
			HalfH:      def.HalfH,
			HalfD:      def.HalfD,
		}
		if def.Kind == geom.KindBox {
			// Oriented extents rotate with the entity.
			shape.Yaw = e.Yaw
		}

		segs = append(segs, Segment{
			Name:       def.Name,
			Multiplier: def.Multiplier,
			Shape:      shape,
		})
	}
	return segs
}

// BoundingSphere returns the sphere enclosing the union of all segment
// bounds. Legacy compatibility path for callers that only need a cheap
// broad-phase check.
func BoundingSphere(segs []Segment) geom.Shape {
	if len(segs) == 0 {
		return geom.Shape{Kind: geom.KindSphere}
	}

	centroid := geom.Vec3{}
	for _, s := range segs {
		centroid = centroid.Add(s.Shape.Center)
	}
	centroid = centroid.Scale(1 / float64(len(segs)))

	radius := 0.0
	for _, s := range segs {
		r := centroid.Sub(s.Shape.Center).Length() + segmentBoundRadius(s.Shape)
		if r > radius {
			radius = r
		}
	}

	return geom.Shape{Kind: geom.KindSphere, Center: centroid, Radius: radius}
}

// segmentBoundRadius returns the radius of the smallest sphere enclosing a
// shape around its own center.
func segmentBoundRadius(s geom.Shape) float64 {
	switch s.Kind {
	case geom.KindSphere:
		return s.Radius
	case geom.KindBox:
		return math.Sqrt(s.HalfW*s.HalfW + s.HalfH*s.HalfH + s.HalfD*s.HalfD)
	case geom.KindCylinder:
		return math.Sqrt(s.Radius*s.Radius + s.HalfHeight*s.HalfHeight)
	case geom.KindCapsule:
		return s.HalfHeight
	}
	return 0
}
