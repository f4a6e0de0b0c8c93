package vmath

import "math"

// Tolerances used across the combat code.
const (
	SmallNumber      = 1e-8
	KindaSmallNumber = 1e-4
)

// Transform is a location plus a facing direction and a uniform scale.
// Roll is irrelevant for everything in the combat core, so a forward vector is enough.
type Transform struct {
	Location Vec3    `json:"location"`
	Forward  Vec3    `json:"forward"`
	Scale    float64 `json:"scale,omitempty"`
}

// NewTransform builds a transform with a normalized forward and unit scale.
func NewTransform(location, forward Vec3) Transform {
	return Transform{Location: location, Forward: forward.Normalize(), Scale: 1}
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func NearlyEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func DegToRad(deg float64) float64 {
	return deg * (math.Pi / 180)
}

func RadToDeg(rad float64) float64 {
	return rad * (180 / math.Pi)
}

// MapRangeClamped maps v from [inLo, inHi] onto [outLo, outHi], clamping to the output range.
func MapRangeClamped(v, inLo, inHi, outLo, outHi float64) float64 {
	if inLo == inHi {
		if v < inLo {
			return outLo
		}
		return outHi
	}
	alpha := Clamp((v-inLo)/(inHi-inLo), 0, 1)
	return outLo + (outHi-outLo)*alpha
}

// InterpTo moves current toward target with an exponential approach.
// A non-positive speed snaps straight to target.
func InterpTo(current, target, dt, speed float64) float64 {
	if speed <= 0 {
		return target
	}
	dist := target - current
	if dist*dist < SmallNumber {
		return target
	}
	return current + dist*Clamp(dt*speed, 0, 1)
}
