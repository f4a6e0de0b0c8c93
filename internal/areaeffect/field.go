package areaeffect

import (
	"arena-combat/internal/effect"
	"arena-combat/internal/vmath"
	"arena-combat/internal/world"

	"github.com/pkg/errors"
)

// Field is a lingering area, e.g. a fire patch left by an incendiary round. Targets
// are re-evaluated every Update; those entering get the effect and those leaving
// lose any infinite effect the field applied to them.
type Field struct {
	trigger   Trigger
	resolver  *Resolver
	zone      *Zone
	remaining float64
}

// SpawnField creates a field for a config with a lifespan.
func (r *Resolver) SpawnField(t Trigger) (*Field, error) {
	if err := t.Config.Validate(); err != nil {
		r.logger.Error().Err(err).Msg("field blocked")
		return nil, err
	}
	if !t.Config.IsField() {
		return nil, errors.Wrapf(ErrNotField, "area %q", t.Config.ID)
	}

	var zc ZoneConfig
	zc.InstantPolicy, zc.DurationPolicy, zc.InfinitePolicy = ApplyOnEnter, ApplyOnEnter, ApplyOnEnter
	zc.InfiniteRemoval = RemoveOnExit
	switch t.Config.Effect.Policy {
	case effect.Instant:
		zc.Instant = []*effect.Template{t.Config.Effect}
	case effect.HasDuration:
		zc.Duration = []*effect.Template{t.Config.Effect}
	default:
		zc.Infinite = []*effect.Template{t.Config.Effect}
	}

	return &Field{
		trigger:   t,
		resolver:  r,
		zone:      NewZone(zc, r.engine, t.Instigator, t.Causer, r.logger),
		remaining: t.Config.Lifespan,
	}, nil
}

// Origin returns the field's center.
func (f *Field) Origin() vmath.Vec3 { return f.trigger.Origin }

// Config returns the field's area config.
func (f *Field) Config() *Config { return f.trigger.Config }

// Zone exposes the enter/exit tracker.
func (f *Field) Zone() *Zone { return f.zone }

// Remaining returns the seconds left before the field is destroyed.
func (f *Field) Remaining() float64 { return f.remaining }

// Update re-evaluates occupants and ages the field. It returns false once the
// field has been destroyed.
func (f *Field) Update(dt float64) bool {
	if f.zone.Destroyed() {
		return false
	}

	cands := f.resolver.candidates(f.trigger)
	present := make(map[world.EntityID]struct{}, len(cands))
	for _, c := range cands {
		level := f.resolver.level(f.trigger.Config, c.distance)
		if level <= 0 {
			continue
		}
		if f.trigger.Config.RequireLineOfSight && !f.resolver.visible(f.trigger, c, cands) {
			continue
		}
		present[c.actor.ID] = struct{}{}
		f.zone.enter(c.actor.ID, level)
	}
	for _, id := range f.zone.Occupants() {
		if _, ok := present[id]; !ok {
			f.zone.Exit(id)
		}
	}

	f.remaining -= dt
	if f.remaining <= 0 {
		f.zone.Destroy()
		return false
	}
	return true
}

// Destroy ends the field early and revokes everything it still tracks.
func (f *Field) Destroy() {
	f.zone.Destroy()
}
