package geom

import "math"

// ShapeKind selects the intersection routine for a Shape.
type ShapeKind int

const (
	KindSphere   ShapeKind = iota // Radius
	KindBox                       // HalfW/HalfH/HalfD, oriented by Yaw
	KindCylinder                  // Radius + HalfHeight, Y-axis aligned, capped
	KindCapsule                   // Radius + HalfHeight (total, includes the caps)
)

// Shape is one testable volume. Only the fields relevant to Kind are used.
type Shape struct {
	Kind   ShapeKind
	Center Vec3

	// Sphere, cylinder, capsule
	Radius     float64
	HalfHeight float64

	// Oriented box
	HalfW, HalfH, HalfD float64
	Yaw                 float64 // rotation about the vertical axis, radians
}

// Hit is the result of a ray/shape test.
type Hit struct {
	Hit      bool
	Distance float64
	Point    Vec3
}

const noHitEps = 1e-9

// Intersect tests a ray against a shape. dir is expected to be unit
// length; a degenerate direction is replaced by a deterministic fallback
// rather than rejected. Hits beyond maxDist are discarded.
func Intersect(origin, dir Vec3, s Shape, maxDist float64) Hit {
	if dir.LengthSq() < 1e-12 {
		dir = Vec3{0, 0, 1}
	}

	switch s.Kind {
	case KindSphere:
		return intersectSphere(origin, dir, s.Center, s.Radius, maxDist)
	case KindBox:
		return intersectBox(origin, dir, s, maxDist)
	case KindCylinder:
		return intersectCylinder(origin, dir, s.Center, s.Radius, s.HalfHeight, maxDist)
	case KindCapsule:
		return intersectCapsule(origin, dir, s.Center, s.Radius, s.HalfHeight, maxDist)
	}
	return Hit{}
}

// intersectSphere solves the ray-sphere quadratic in center-local
// coordinates and keeps the smallest non-negative root.
func intersectSphere(origin, dir, center Vec3, radius, maxDist float64) Hit {
	oc := origin.Sub(center)
	b := oc.Dot(dir)
	c := oc.LengthSq() - radius*radius

	disc := b*b - c
	if disc < 0 {
		return Hit{}
	}

	sq := math.Sqrt(disc)
	t := -b - sq
	if t < 0 {
		t = -b + sq // origin inside the sphere, exit point
	}
	if t < 0 || t > maxDist {
		return Hit{}
	}

	return Hit{Hit: true, Distance: t, Point: origin.Add(dir.Scale(t))}
}

// cylinderLateral tests only the infinite lateral surface of a Y-aligned
// cylinder, restricted to the axial band |y| <= halfHeight. Used directly
// by the capsule body, which has no flat caps.
func cylinderLateral(origin, dir, center Vec3, radius, halfHeight, maxDist float64) (float64, bool) {
	o := origin.Sub(center)

	a := dir.X*dir.X + dir.Z*dir.Z
	if a < 1e-12 {
		return 0, false // ray parallel to the axis never crosses the side wall
	}

	b := o.X*dir.X + o.Z*dir.Z
	c := o.X*o.X + o.Z*o.Z - radius*radius

	disc := b*b - a*c
	if disc < 0 {
		return 0, false
	}

	sq := math.Sqrt(disc)
	for _, t := range [2]float64{(-b - sq) / a, (-b + sq) / a} {
		if t < 0 || t > maxDist {
			continue
		}
		y := o.Y + t*dir.Y
		if y >= -halfHeight-noHitEps && y <= halfHeight+noHitEps {
			return t, true
		}
	}
	return 0, false
}

// intersectCylinder tests a finite capped cylinder: the lateral quadratic
// plus the two disc caps, keeping the globally smallest valid root.
func intersectCylinder(origin, dir, center Vec3, radius, halfHeight, maxDist float64) Hit {
	best := math.Inf(1)

	if t, ok := cylinderLateral(origin, dir, center, radius, halfHeight, maxDist); ok {
		best = t
	}

	// Disc caps at y = center.Y +/- halfHeight.
	if math.Abs(dir.Y) > 1e-12 {
		o := origin.Sub(center)
		for _, capY := range [2]float64{halfHeight, -halfHeight} {
			t := (capY - o.Y) / dir.Y
			if t < 0 || t > maxDist || t >= best {
				continue
			}
			x := o.X + t*dir.X
			z := o.Z + t*dir.Z
			if x*x+z*z <= radius*radius {
				best = t
			}
		}
	}

	if math.IsInf(best, 1) {
		return Hit{}
	}
	return Hit{Hit: true, Distance: best, Point: origin.Add(dir.Scale(best))}
}

// intersectCapsule unions a cylinder body with two hemisphere caps. The
// body half-height excludes the cap radius; each sphere test is restricted
// to its own side of the equator so the body is not counted twice.
func intersectCapsule(origin, dir, center Vec3, radius, halfHeight, maxDist float64) Hit {
	bodyHalf := halfHeight - radius
	if bodyHalf <= 0 {
		// Degenerate capsule collapses to a plain sphere. Must be special
		// cased: a negative body half-height inverts the band test.
		return intersectSphere(origin, dir, center, radius, maxDist)
	}

	best := math.Inf(1)

	if t, ok := cylinderLateral(origin, dir, center, radius, bodyHalf, maxDist); ok {
		best = t
	}

	for _, side := range [2]float64{1, -1} {
		capCenter := center.Add(Vec3{0, side * bodyHalf, 0})
		h := intersectSphere(origin, dir, capCenter, radius, maxDist)
		if !h.Hit || h.Distance >= best {
			continue
		}
		// Reject points on the wrong side of the equator.
		if side*(h.Point.Y-capCenter.Y) < -noHitEps {
			continue
		}
		best = h.Distance
	}

	if math.IsInf(best, 1) {
		return Hit{}
	}
	return Hit{Hit: true, Distance: best, Point: origin.Add(dir.Scale(best))}
}

// intersectBox transforms the ray into box-local space (translate to the
// center, rotate by -yaw about vertical) and runs the axis-aligned slab
// test. The world-space point comes from the un-rotated ray at the same t.
func intersectBox(origin, dir Vec3, s Shape, maxDist float64) Hit {
	lo := origin.Sub(s.Center).RotateY(-s.Yaw)
	ld := dir.RotateY(-s.Yaw)

	tEnter := math.Inf(-1)
	tExit := math.Inf(1)

	axes := [3][3]float64{
		{lo.X, ld.X, s.HalfW},
		{lo.Y, ld.Y, s.HalfH},
		{lo.Z, ld.Z, s.HalfD},
	}
	for _, ax := range axes {
		o, d, half := ax[0], ax[1], ax[2]
		if math.Abs(d) < 1e-12 {
			if o < -half || o > half {
				return Hit{} // parallel ray outside the slab
			}
			continue
		}
		t0 := (-half - o) / d
		t1 := (half - o) / d
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tEnter {
			tEnter = t0
		}
		if t1 < tExit {
			tExit = t1
		}
	}

	if tEnter > tExit || tExit < 0 {
		return Hit{}
	}

	t := tEnter
	if t < 0 {
		t = tExit // origin inside the box
	}
	if t > maxDist {
		return Hit{}
	}

	return Hit{Hit: true, Distance: t, Point: origin.Add(dir.Scale(t))}
}

// IntersectAny returns the nearest hit among solids, or a miss. Used for
// wall occlusion where only the closest blocker matters.
func IntersectAny(origin, dir Vec3, solids []Shape, maxDist float64) Hit {
	best := Hit{}
	limit := maxDist
	for _, s := range solids {
		if h := Intersect(origin, dir, s, limit); h.Hit {
			best = h
			limit = h.Distance
		}
	}
	return best
}
