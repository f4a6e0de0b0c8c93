// Package projectile validates client launch transforms and simulates the
// projectiles the server spawns from them.
package projectile

import (
	"arena-combat/internal/vmath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	DefaultMaxLaunchDistance = 300.0
	DefaultMinFacingDot      = -0.7
)

var (
	ErrLaunchTooFar = errors.New("projectile: launch point too far from firer")
	ErrLaunchBehind = errors.New("projectile: launch direction deviates from facing")
)

// Pose is where the server believes the firing entity is and which way it faces.
type Pose struct {
	Location vmath.Vec3
	Facing   vmath.Vec3
}

// Validator is the server-side gate for client-supplied launch transforms.
type Validator struct {
	maxDistance  float64
	minFacingDot float64
	logger       zerolog.Logger
}

// ValidatorOption overrides one validator threshold.
type ValidatorOption func(*Validator)

// WithMaxLaunchDistance sets the furthest a launch point may be from the firer.
// Non-positive values keep the default.
func WithMaxLaunchDistance(d float64) ValidatorOption {
	return func(v *Validator) {
		if d > 0 {
			v.maxDistance = d
		}
	}
}

// WithMinFacingDot sets the lowest accepted dot between firer facing and launch
// direction. Any value in [-1, 1] is honored, zero included.
func WithMinFacingDot(dot float64) ValidatorOption {
	return func(v *Validator) {
		v.minFacingDot = vmath.Clamp(dot, -1, 1)
	}
}

// NewValidator creates a validator with the default thresholds and applies opts.
func NewValidator(logger zerolog.Logger, opts ...ValidatorOption) *Validator {
	v := &Validator{
		maxDistance:  DefaultMaxLaunchDistance,
		minFacingDot: DefaultMinFacingDot,
		logger:       logger.With().Str("component", "launch_validator").Logger(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate rejects implausible launches. Rejections are logged at warn level and
// are expected input, not failures of the server.
func (v *Validator) Validate(firer Pose, launch vmath.Transform) error {
	if d := vmath.Dist(firer.Location, launch.Location); d > v.maxDistance {
		v.logger.Warn().Float64("distance", d).Float64("max", v.maxDistance).Msg("launch rejected")
		return ErrLaunchTooFar
	}
	if dot := firer.Facing.Normalize().Dot(launch.Forward.Normalize()); dot < v.minFacingDot {
		v.logger.Warn().Float64("dot", dot).Float64("min", v.minFacingDot).Msg("launch rejected")
		return ErrLaunchBehind
	}
	return nil
}
