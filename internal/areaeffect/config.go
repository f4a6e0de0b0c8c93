package areaeffect

import (
	"arena-combat/internal/effect"
)

// DefaultMinDistanceFraction is the distance level floor: the center of an explosion
// still scales by this level, never by zero.
const DefaultMinDistanceFraction = 0.1

// Config describes an area effect spawned at an impact point.
type Config struct {
	ID     string  `json:"id" mapstructure:"id"`
	Radius float64 `json:"radius" mapstructure:"radius"`

	// DistanceScaling applies the distance ratio as the spec level.
	DistanceScaling     bool    `json:"distanceScaling" mapstructure:"distance_scaling"`
	MinDistanceFraction float64 `json:"minDistanceFraction" mapstructure:"min_distance_fraction"`
	RequireLineOfSight  bool    `json:"requireLineOfSight" mapstructure:"require_line_of_sight"`

	// Lifespan of a lingering field in seconds. Zero makes a one-shot explosion.
	Lifespan float64 `json:"lifespan,omitempty" mapstructure:"lifespan"`

	Effect *effect.Template `json:"effect" mapstructure:"-"`
}

// IsField reports whether the config spawns a lingering damage-over-time field.
func (c *Config) IsField() bool {
	return c.Lifespan > 0
}

func (c *Config) minFraction() float64 {
	if c.MinDistanceFraction <= 0 {
		return DefaultMinDistanceFraction
	}
	return c.MinDistanceFraction
}
