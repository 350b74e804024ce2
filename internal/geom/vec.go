// Package geom provides the vector math and closed-form ray/shape
// intersection tests used by combat resolution. All shapes are tested
// analytically - no iterative refinement, no epsilon creep across calls.
package geom

import "math"

// Vec3 is a 3D vector. Y is up.
type Vec3 struct {
	X, Y, Z float64
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v scaled by s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Dot returns the dot product of v and o.
func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Cross returns the cross product of v and o.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

// Length returns the magnitude of v.
func (v Vec3) Length() float64 {
	return math.Sqrt(v.Dot(v))
}

// LengthSq returns the squared magnitude of v (cheaper than Length).
func (v Vec3) LengthSq() float64 {
	return v.Dot(v)
}

// DistanceSq returns the squared distance between v and o.
func (v Vec3) DistanceSq(o Vec3) float64 {
	return v.Sub(o).LengthSq()
}

// Normalized returns v scaled to unit length. A zero-length vector
// normalizes to +Z instead of NaN so degenerate aim directions degrade
// to a deterministic fallback rather than poisoning downstream math.
func (v Vec3) Normalized() Vec3 {
	l := v.Length()
	if l < 1e-12 {
		return Vec3{0, 0, 1}
	}
	return v.Scale(1 / l)
}

// Lerp returns the linear interpolation from v to o by t (unclamped).
func (v Vec3) Lerp(o Vec3, t float64) Vec3 {
	return Vec3{
		v.X + (o.X-v.X)*t,
		v.Y + (o.Y-v.Y)*t,
		v.Z + (o.Z-v.Z)*t,
	}
}

// RotateY rotates v about the vertical axis by yaw radians.
func (v Vec3) RotateY(yaw float64) Vec3 {
	sin, cos := math.Sincos(yaw)
	return Vec3{
		X: v.X*cos + v.Z*sin,
		Y: v.Y,
		Z: -v.X*sin + v.Z*cos,
	}
}

// Basis returns two unit vectors perpendicular to v and to each other.
// v must be non-zero; it does not need to be unit length.
func (v Vec3) Basis() (Vec3, Vec3) {
	up := Vec3{0, 1, 0}
	if math.Abs(v.Y) > 0.99*v.Length() {
		up = Vec3{1, 0, 0} // v is near vertical, pick a different helper axis
	}
	t1 := v.Cross(up).Normalized()
	t2 := v.Cross(t1).Normalized()
	return t1, t2
}
