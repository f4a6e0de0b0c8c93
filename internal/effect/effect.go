// Package effect is the contract with the effect-magnitude engine.
//
// The combat core decides when and against whom an effect applies. It hands the
// engine a Spec (template, level, instigator, hit context, named overrides) and
// keeps the returned Handle when it may need to revoke the effect later.
package effect

//go:generate go tool mockgen -destination=./mocks/effect_mock.go -package=mocks . Engine

import (
	"arena-combat/internal/vmath"
	"arena-combat/internal/world"

	"github.com/pkg/errors"
)

var (
	ErrNoTemplate    = errors.New("effect: spec has no template")
	ErrUnknownTarget = errors.New("effect: target has no effect state")
)

// Named overrides understood by MemoryEngine. Each is multiplied into the magnitude.
const (
	SetByCallerCharge   = "damage.charge"
	SetByCallerFalloff  = "damage.falloff"
	SetByCallerMaterial = "damage.material"
)

// DurationPolicy decides how long an applied effect lives.
type DurationPolicy uint8

const (
	Instant DurationPolicy = iota
	HasDuration
	Infinite
)

func (p DurationPolicy) String() string {
	switch p {
	case Instant:
		return "instant"
	case HasDuration:
		return "duration"
	case Infinite:
		return "infinite"
	default:
		return "unknown"
	}
}

// ParseDurationPolicy converts a catalog string. Unknown values are Instant.
func ParseDurationPolicy(s string) DurationPolicy {
	switch s {
	case "duration":
		return HasDuration
	case "infinite":
		return Infinite
	default:
		return Instant
	}
}

// Template is an effect definition from the catalog.
type Template struct {
	ID       string         `json:"id" mapstructure:"id"`
	Policy   DurationPolicy `json:"policy" mapstructure:"-"`
	Duration float64        `json:"duration,omitempty" mapstructure:"duration"` // seconds, HasDuration only
	Period   float64        `json:"period,omitempty" mapstructure:"period"`     // seconds between periodic executions, 0 = none

	// Magnitude is the health delta per execution. Negative values are damage.
	Magnitude float64 `json:"magnitude" mapstructure:"magnitude"`
	// LevelScale maps the spec level to a magnitude factor. Empty means factor 1.
	LevelScale vmath.Curve `json:"levelScale" mapstructure:"level_scale"`
}

// Handle identifies an applied duration or infinite effect.
type Handle uint64

// NoHandle is returned for instant effects, which cannot be revoked.
const NoHandle Handle = 0

// Valid reports whether the handle refers to an active effect slot.
func (h Handle) Valid() bool { return h != NoHandle }

// Spec is a template plus everything needed to apply it once.
type Spec struct {
	Template   *Template
	Level      float64
	Instigator world.EntityID // pawn responsible
	Causer     world.EntityID // actor that delivered it (projectile, area), or NoEntity
	Hit        *world.Hit

	SetByCaller map[string]float64
}

// NewSpec creates a level 1 spec.
func NewSpec(t *Template, instigator world.EntityID) Spec {
	return Spec{Template: t, Level: 1, Instigator: instigator}
}

// WithSetByCaller returns a copy of the spec with one named override set.
func (s Spec) WithSetByCaller(key string, value float64) Spec {
	m := make(map[string]float64, len(s.SetByCaller)+1)
	for k, v := range s.SetByCaller {
		m[k] = v
	}
	m[key] = value
	s.SetByCaller = m
	return s
}

// WithHit returns a copy of the spec carrying a hit record.
func (s Spec) WithHit(h world.Hit) Spec {
	s.Hit = &h
	return s
}

// WithLevel returns a copy of the spec at another level.
func (s Spec) WithLevel(level float64) Spec {
	s.Level = level
	return s
}

// Engine applies and revokes effects.
type Engine interface {
	Apply(spec Spec, target world.EntityID) (Handle, error)
	// Remove drops stacks of an active effect; stacks <= 0 removes all of them.
	Remove(h Handle, stacks int) bool
}
