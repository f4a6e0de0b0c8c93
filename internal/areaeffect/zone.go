package areaeffect

import (
	"sort"

	"arena-combat/internal/effect"
	"arena-combat/internal/world"

	"github.com/rs/zerolog"
)

// ApplicationPolicy decides when a zone applies a group of templates.
type ApplicationPolicy uint8

const (
	ApplyOnEnter ApplicationPolicy = iota
	ApplyOnExit
	DoNotApply
)

// RemovalPolicy decides what happens to infinite effects when their target leaves.
type RemovalPolicy uint8

const (
	RemoveOnExit RemovalPolicy = iota
	DoNotRemove
)

// ZoneConfig groups templates by duration policy, each group with its own
// application policy.
type ZoneConfig struct {
	Instant  []*effect.Template
	Duration []*effect.Template
	Infinite []*effect.Template

	InstantPolicy  ApplicationPolicy
	DurationPolicy ApplicationPolicy
	InfinitePolicy ApplicationPolicy

	InfiniteRemoval RemovalPolicy
}

// Zone applies effects to actors entering or leaving it. Infinite effects applied
// under RemoveOnExit are tracked per handle and revoked on exit and on Destroy.
type Zone struct {
	cfg        ZoneConfig
	engine     effect.Engine
	instigator world.EntityID
	causer     world.EntityID
	logger     zerolog.Logger

	inside    map[world.EntityID]struct{}
	tracked   map[effect.Handle]world.EntityID
	destroyed bool
}

// NewZone creates a zone.
func NewZone(cfg ZoneConfig, engine effect.Engine, instigator, causer world.EntityID, logger zerolog.Logger) *Zone {
	return &Zone{
		cfg:        cfg,
		engine:     engine,
		instigator: instigator,
		causer:     causer,
		logger:     logger.With().Str("component", "zone").Logger(),
		inside:     make(map[world.EntityID]struct{}),
		tracked:    make(map[effect.Handle]world.EntityID),
	}
}

// Enter applies the on-enter groups to target. Entering twice is a no-op.
func (z *Zone) Enter(target world.EntityID) {
	z.enter(target, 1)
}

func (z *Zone) enter(target world.EntityID, level float64) {
	if z.destroyed {
		return
	}
	if _, ok := z.inside[target]; ok {
		return
	}
	z.inside[target] = struct{}{}
	z.applyGroups(target, level, ApplyOnEnter)
}

// Exit applies the on-exit groups and revokes tracked infinite effects on target.
func (z *Zone) Exit(target world.EntityID) {
	if z.destroyed {
		return
	}
	if _, ok := z.inside[target]; !ok {
		return
	}
	delete(z.inside, target)
	z.applyGroups(target, 1, ApplyOnExit)
	if z.cfg.InfiniteRemoval == RemoveOnExit {
		z.revoke(target)
	}
}

// Destroy revokes every tracked effect. Further calls do nothing.
func (z *Zone) Destroy() {
	if z.destroyed {
		return
	}
	for _, h := range z.sortedHandles() {
		z.engine.Remove(h, -1)
	}
	z.tracked = make(map[effect.Handle]world.EntityID)
	z.inside = make(map[world.EntityID]struct{})
	z.destroyed = true
}

// Inside reports whether target is currently in the zone.
func (z *Zone) Inside(target world.EntityID) bool {
	_, ok := z.inside[target]
	return ok
}

// Occupants returns the targets inside the zone in id order.
func (z *Zone) Occupants() []world.EntityID {
	out := make([]world.EntityID, 0, len(z.inside))
	for id := range z.inside {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Tracked returns the number of infinite effects the zone must still revoke.
func (z *Zone) Tracked() int { return len(z.tracked) }

// Destroyed reports whether Destroy ran.
func (z *Zone) Destroyed() bool { return z.destroyed }

func (z *Zone) applyGroups(target world.EntityID, level float64, when ApplicationPolicy) {
	if z.cfg.InstantPolicy == when {
		z.applyAll(z.cfg.Instant, target, level, false)
	}
	if z.cfg.DurationPolicy == when {
		z.applyAll(z.cfg.Duration, target, level, false)
	}
	if z.cfg.InfinitePolicy == when {
		z.applyAll(z.cfg.Infinite, target, level, z.cfg.InfiniteRemoval == RemoveOnExit)
	}
}

func (z *Zone) applyAll(templates []*effect.Template, target world.EntityID, level float64, track bool) {
	for _, t := range templates {
		spec := effect.NewSpec(t, z.instigator).WithLevel(level)
		spec.Causer = z.causer
		h, err := z.engine.Apply(spec, target)
		if err != nil {
			z.logger.Debug().Err(err).Str("template", t.ID).Uint32("target", uint32(target)).Msg("zone effect not applied")
			continue
		}
		if track && h.Valid() {
			z.tracked[h] = target
		}
	}
}

func (z *Zone) revoke(target world.EntityID) {
	for _, h := range z.sortedHandles() {
		if z.tracked[h] != target {
			continue
		}
		z.engine.Remove(h, -1)
		delete(z.tracked, h)
	}
}

func (z *Zone) sortedHandles() []effect.Handle {
	out := make([]effect.Handle, 0, len(z.tracked))
	for h := range z.tracked {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
