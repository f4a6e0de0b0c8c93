// Package targeting computes aim transforms and randomized spread directions.
// It holds no state; every function is a pure function of its inputs plus,
// for spread, an injected random source.
package targeting

import (
	"math"

	"arena-combat/internal/vmath"

	"github.com/pkg/errors"
)

// DefaultFocalDistance is how far in front of the camera the focus point sits.
const DefaultFocalDistance = 1024.0

// MinSpreadExponent keeps the cone distribution well defined.
const MinSpreadExponent = 0.1

// ErrCustomSource is returned for Source Custom; callers must build the transform themselves.
var ErrCustomSource = errors.New("targeting: custom source must be resolved by the caller")

// Source selects where a trace starts and which way it points.
type Source uint8

const (
	// CameraTowardsFocus: from the player's camera towards the focus point.
	CameraTowardsFocus Source = iota
	// PawnForward: from the pawn's center, in the pawn's facing.
	PawnForward
	// PawnTowardsFocus: from the pawn's center towards the camera focus point.
	PawnTowardsFocus
	// WeaponForward: from the weapon's muzzle, in the pawn's facing.
	WeaponForward
	// WeaponTowardsFocus: from the weapon's muzzle towards the camera focus point.
	WeaponTowardsFocus
	// Custom: supplied by the caller.
	Custom
)

func (s Source) String() string {
	switch s {
	case CameraTowardsFocus:
		return "camera_towards_focus"
	case PawnForward:
		return "pawn_forward"
	case PawnTowardsFocus:
		return "pawn_towards_focus"
	case WeaponForward:
		return "weapon_forward"
	case WeaponTowardsFocus:
		return "weapon_towards_focus"
	case Custom:
		return "custom"
	default:
		return "unknown"
	}
}

// ParseSource converts a catalog string into a Source. Unknown values fall back to
// CameraTowardsFocus.
func ParseSource(s string) Source {
	for src := CameraTowardsFocus; src <= Custom; src++ {
		if src.String() == s {
			return src
		}
	}
	return CameraTowardsFocus
}

// Controller identifies who is driving the pawn.
type Controller uint8

const (
	ControllerNone Controller = iota
	ControllerPlayer
	ControllerAI
)

// Viewpoint is everything targeting needs to know about the firing pawn.
type Viewpoint struct {
	Controller Controller

	PawnLocation vmath.Vec3
	PawnForward  vmath.Vec3
	EyeHeight    float64

	// ViewLocation/ViewForward are the camera for players and the control rotation for AI.
	ViewLocation vmath.Vec3
	ViewForward  vmath.Vec3

	// WeaponLocation is the weapon's targeting source (muzzle).
	WeaponLocation vmath.Vec3
}

func (s Source) towardsFocus() bool {
	return s == CameraTowardsFocus || s == PawnTowardsFocus || s == WeaponTowardsFocus
}

// Aim returns the transform a trace or projectile should use.
func Aim(view Viewpoint, source Source, focalDistance float64) (vmath.Transform, error) {
	if source == Custom {
		return vmath.Transform{}, ErrCustomSource
	}
	if focalDistance <= 0 {
		focalDistance = DefaultFocalDistance
	}

	var (
		focalLoc   vmath.Vec3
		foundFocus bool
	)

	if view.Controller != ControllerNone && source.towardsFocus() {
		foundFocus = true

		camLoc := view.ViewLocation
		if view.Controller != ControllerPlayer {
			camLoc = view.WeaponLocation
		}
		aimDir := view.ViewForward.Normalize()
		focalLoc = camLoc.Add(aimDir.Scale(focalDistance))

		switch view.Controller {
		case ControllerPlayer:
			// Slide the camera along the aim line until it is level with the weapon so
			// nothing between the camera and the pawn can be hit.
			camLoc = focalLoc.Add(aimDir.Scale(view.WeaponLocation.Sub(focalLoc).Dot(aimDir)))
			focalLoc = camLoc.Add(aimDir.Scale(focalDistance))
		case ControllerAI:
			camLoc = view.PawnLocation.Add(vmath.V(0, 0, view.EyeHeight))
		}

		if source == CameraTowardsFocus {
			return vmath.NewTransform(camLoc, aimDir), nil
		}
	}

	sourceLoc := view.PawnLocation
	if source == WeaponForward || source == WeaponTowardsFocus {
		sourceLoc = view.WeaponLocation
	}

	if foundFocus && (source == PawnTowardsFocus || source == WeaponTowardsFocus) {
		return vmath.NewTransform(sourceLoc, focalLoc.Sub(sourceLoc)), nil
	}

	return vmath.NewTransform(sourceLoc, view.PawnForward), nil
}

// Rand is the random source used for spread. *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// RandCone returns a direction inside a cone around dir.
//
// The angle from the center is halfAngle*u^exponent: exponent 1 spreads evenly over
// the angle, larger exponents pull samples towards the center line.
func RandCone(rng Rand, dir vmath.Vec3, halfAngleRad, exponent float64) vmath.Vec3 {
	center := dir.Normalize()
	if halfAngleRad <= 0 || center.IsZero() {
		return center
	}
	if exponent < MinSpreadExponent {
		exponent = MinSpreadExponent
	}

	fromCenter := math.Pow(rng.Float64(), exponent)
	angleFromCenter := fromCenter * halfAngleRad
	angleAround := rng.Float64() * 2 * math.Pi

	tilted := vmath.RotateAroundAxis(center, vmath.Perpendicular(center), angleFromCenter)
	return vmath.RotateAroundAxis(tilted, center, angleAround).Normalize()
}

// SpreadHalfAngle converts a full spread angle in degrees into the half angle in radians
// expected by RandCone.
func SpreadHalfAngle(spreadDegrees, multiplier float64) float64 {
	return vmath.DegToRad(spreadDegrees * multiplier * 0.5)
}
