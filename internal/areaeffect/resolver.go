// Package areaeffect resolves damage against every valid target inside a radius,
// gated by line of sight and scaled by distance.
package areaeffect

import (
	"arena-combat/internal/effect"
	"arena-combat/internal/vmath"
	"arena-combat/internal/world"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var (
	ErrNoEffect          = errors.New("areaeffect: config has no effect template")
	ErrNoRadius          = errors.New("areaeffect: radius must be positive")
	ErrInfiniteExplosion = errors.New("areaeffect: one-shot explosion cannot apply an infinite effect")
	ErrNotField          = errors.New("areaeffect: config has no lifespan")
)

// Validate checks the config before it is spawned.
func (c *Config) Validate() error {
	if c.Effect == nil {
		return errors.Wrapf(ErrNoEffect, "area %q", c.ID)
	}
	if c.Radius <= 0 {
		return errors.Wrapf(ErrNoRadius, "area %q", c.ID)
	}
	if !c.IsField() && c.Effect.Policy == effect.Infinite {
		return errors.Wrapf(ErrInfiniteExplosion, "area %q", c.ID)
	}
	return nil
}

// DistanceLevel maps a distance to the level handed to the effect engine.
// Targets at or beyond radius get 0; everything inside gets d/radius clamped
// to [floor, 1], so the center still scales by floor.
func DistanceLevel(d, radius, floor float64) float64 {
	if radius <= 0 || d >= radius {
		return 0
	}
	return vmath.Clamp(d/radius, floor, 1)
}

// LineOfSight traces from origin to the target's location. The view is clear when
// nothing blocks or when the first blocking hit is the target itself.
func LineOfSight(tracer world.Tracer, origin vmath.Vec3, target world.Actor, ignore []world.EntityID) bool {
	for _, h := range tracer.Trace(origin, target.Location, 0, ignore) {
		if !h.Blocking {
			continue
		}
		return h.Entity == target.ID || h.AttachedToPawn == target.ID
	}
	return true
}

// Trigger is one area effect spawn request.
type Trigger struct {
	Config     *Config
	Origin     vmath.Vec3
	Instigator world.EntityID // pawn responsible for the damage
	Causer     world.EntityID // projectile or area entity itself
	// SetByCaller overrides carried into every applied spec, e.g. charge.
	SetByCaller map[string]float64
}

func (t Trigger) spec() effect.Spec {
	s := effect.NewSpec(t.Config.Effect, t.Instigator)
	s.Causer = t.Causer
	for k, v := range t.SetByCaller {
		s = s.WithSetByCaller(k, v)
	}
	return s
}

// Result is the outcome for one candidate of an explosion.
type Result struct {
	Target   world.EntityID `json:"target"`
	Distance float64        `json:"distance"`
	Level    float64        `json:"level"`
	Blocked  bool           `json:"blocked,omitempty"`
	Applied  bool           `json:"applied"`
	Handle   effect.Handle  `json:"handle,omitempty"`
}

// Resolver applies area effects through the effect engine.
type Resolver struct {
	query  world.Query
	engine effect.Engine
	logger zerolog.Logger
}

// NewResolver creates a resolver.
func NewResolver(query world.Query, engine effect.Engine, logger zerolog.Logger) *Resolver {
	return &Resolver{
		query:  query,
		engine: engine,
		logger: logger.With().Str("component", "area_effect").Logger(),
	}
}

type candidate struct {
	actor    world.Actor
	distance float64
}

// candidates returns the valid targets around the trigger in overlap order.
func (r *Resolver) candidates(t Trigger) []candidate {
	ignore := []world.EntityID{t.Instigator, t.Causer}
	ids := r.query.Overlap(t.Origin, t.Config.Radius, ignore)

	out := make([]candidate, 0, len(ids))
	for _, id := range ids {
		if id == t.Instigator || id == t.Causer {
			continue
		}
		a, ok := r.query.Locate(id)
		if !ok || !a.Combatant {
			continue
		}
		if t.Instigator != world.NoEntity && a.Owner == t.Instigator {
			continue
		}
		out = append(out, candidate{actor: a, distance: vmath.Dist(t.Origin, a.Location)})
	}
	return out
}

// visible runs the line of sight check for c, ignoring every other candidate and the trigger's sources.
func (r *Resolver) visible(t Trigger, c candidate, all []candidate) bool {
	ignore := make([]world.EntityID, 0, len(all)+1)
	ignore = append(ignore, t.Instigator, t.Causer)
	for _, o := range all {
		if o.actor.ID != c.actor.ID {
			ignore = append(ignore, o.actor.ID)
		}
	}
	return LineOfSight(r.query, t.Origin, c.actor, ignore)
}

func (r *Resolver) level(cfg *Config, d float64) float64 {
	if !cfg.DistanceScaling {
		if d >= cfg.Radius {
			return 0
		}
		return 1
	}
	return DistanceLevel(d, cfg.Radius, cfg.minFraction())
}

// Explode resolves a one-shot explosion and applies the effect to every valid target.
func (r *Resolver) Explode(t Trigger) ([]Result, error) {
	if err := t.Config.Validate(); err != nil {
		r.logger.Error().Err(err).Msg("explosion blocked")
		return nil, err
	}

	cands := r.candidates(t)
	base := t.spec()
	results := make([]Result, 0, len(cands))
	for _, c := range cands {
		res := Result{Target: c.actor.ID, Distance: c.distance, Level: r.level(t.Config, c.distance)}
		if res.Level <= 0 {
			results = append(results, res)
			continue
		}
		if t.Config.RequireLineOfSight && !r.visible(t, c, cands) {
			res.Blocked = true
			results = append(results, res)
			continue
		}
		h, err := r.engine.Apply(base.WithLevel(res.Level), c.actor.ID)
		if err != nil {
			r.logger.Debug().Err(err).Uint32("target", uint32(c.actor.ID)).Msg("area effect not applied")
			results = append(results, res)
			continue
		}
		res.Applied = true
		res.Handle = h
		results = append(results, res)
	}

	r.logger.Debug().
		Str("area", t.Config.ID).
		Int("candidates", len(cands)).
		Msg("explosion resolved")
	return results, nil
}
