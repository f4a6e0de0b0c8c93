// Package vmath provides the small amount of 3D vector math the combat core needs:
// vectors, transforms, scalar helpers and keyed curves.
//
// Everything here is value-typed and allocation free so it can be used inside
// the tick loop without GC pressure.
package vmath

import "math"

// Vec3 is a float64 3D vector in world units.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Common axes.
var (
	Zero    = Vec3{}
	Forward = Vec3{X: 1}
	Right   = Vec3{Y: 1}
	Up      = Vec3{Z: 1}
)

// V is shorthand for constructing a Vec3.
func V(x, y, z float64) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

func (v Vec3) LenSq() float64 {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z
}

func (v Vec3) Len() float64 {
	return math.Sqrt(v.LenSq())
}

// Normalize returns the unit vector, or Zero for a (nearly) zero vector.
func (v Vec3) Normalize() Vec3 {
	lenSq := v.LenSq()
	if lenSq < 1e-16 {
		return Zero
	}
	inv := 1.0 / math.Sqrt(lenSq)
	return Vec3{v.X * inv, v.Y * inv, v.Z * inv}
}

func (v Vec3) IsZero() bool {
	return v.LenSq() < 1e-16
}

// Dist returns the euclidean distance between two points.
func Dist(a, b Vec3) float64 {
	return a.Sub(b).Len()
}

// DistSq avoids the sqrt when only comparisons are needed.
func DistSq(a, b Vec3) float64 {
	return a.Sub(b).LenSq()
}

// NearlyEqualVec compares component-wise within tol.
func NearlyEqualVec(a, b Vec3, tol float64) bool {
	return NearlyEqual(a.X, b.X, tol) && NearlyEqual(a.Y, b.Y, tol) && NearlyEqual(a.Z, b.Z, tol)
}

// Perpendicular returns a unit vector orthogonal to v.
// The axis least aligned with v is used as the cross partner so the result is stable.
func Perpendicular(v Vec3) Vec3 {
	n := v.Normalize()
	axis := Up
	if math.Abs(n.Z) > 0.9 {
		axis = Forward
	}
	return n.Cross(axis).Normalize()
}

// RotateAroundAxis rotates v by angle radians around axis (Rodrigues' formula).
func RotateAroundAxis(v, axis Vec3, angle float64) Vec3 {
	k := axis.Normalize()
	if k.IsZero() {
		return v
	}
	cos, sin := math.Cos(angle), math.Sin(angle)
	return v.Scale(cos).
		Add(k.Cross(v).Scale(sin)).
		Add(k.Scale(k.Dot(v) * (1 - cos)))
}

// AngleBetween returns the angle in radians between two directions.
func AngleBetween(a, b Vec3) float64 {
	d := a.Normalize().Dot(b.Normalize())
	return math.Acos(Clamp(d, -1, 1))
}

// ClosestPointOnSegment projects p onto the segment [a, b].
// Returns the point and the normalized parameter t in [0, 1].
func ClosestPointOnSegment(p, a, b Vec3) (Vec3, float64) {
	ab := b.Sub(a)
	lenSq := ab.LenSq()
	if lenSq == 0 {
		return a, 0
	}
	t := Clamp(p.Sub(a).Dot(ab)/lenSq, 0, 1)
	return a.Add(ab.Scale(t)), t
}
