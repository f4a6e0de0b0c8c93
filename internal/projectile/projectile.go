package projectile

import (
	"arena-combat/internal/areaeffect"
	"arena-combat/internal/effect"
	"arena-combat/internal/vmath"
	"arena-combat/internal/weapon"
	"arena-combat/internal/world"
)

// DefaultGravity is the world gravity in units/s^2, scaled per projectile.
const DefaultGravity = 980.0

const trailLen = 4

// Projectile is a moving attack entity swept through the world every tick.
type Projectile struct {
	Entity world.EntityID
	Owner  world.EntityID

	Origin   vmath.Vec3
	Location vmath.Vec3
	Velocity vmath.Vec3
	Radius   float64

	GravityScale float64
	Lifespan     float64 // remaining seconds

	Damage      effect.Spec
	HasDamage   bool
	Attenuation weapon.Attenuation
	AreaEffect  *areaeffect.Config
	Overlap     bool

	hitTargets map[world.EntityID]struct{}
	active     bool

	// Trail positions (ring buffer)
	trail    [trailLen]vmath.Vec3
	trailIdx int
}

// Active reports whether the projectile is still flying.
func (p *Projectile) Active() bool { return p.active }

// Update moves the projectile by dt, sweeping its path. It returns the hits that
// count as impacts and whether the projectile should be kept.
func (p *Projectile) Update(dt, gravity float64, tracer world.Tracer) (impacts []world.Hit, alive bool) {
	if !p.active {
		return nil, false
	}

	p.trail[p.trailIdx] = p.Location
	p.trailIdx = (p.trailIdx + 1) % trailLen

	next := p.Location.Add(p.Velocity.Scale(dt))
	p.Velocity.Z -= gravity * p.GravityScale * dt

	ignore := []world.EntityID{p.Owner, p.Entity}
	for _, h := range tracer.Trace(p.Location, next, p.Radius, ignore) {
		if p.Overlap && h.IsPawn() {
			target := h.PawnEntity()
			if _, done := p.hitTargets[target]; done {
				continue
			}
			p.hitTargets[target] = struct{}{}
			impacts = append(impacts, h)
			continue
		}
		if !h.Blocking && !h.IsPawn() {
			continue
		}
		impacts = append(impacts, h)
		p.Location = h.Location
		p.active = false
		return impacts, false
	}

	p.Location = next
	p.Lifespan -= dt
	if p.Lifespan <= 0 {
		p.active = false
		return impacts, false
	}
	return impacts, true
}

// DamageAt returns the damage spec for a hit, attenuated by travel distance and
// the hit material.
func (p *Projectile) DamageAt(h world.Hit) effect.Spec {
	travelled := vmath.Dist(p.Origin, h.Location)
	return p.Damage.
		WithHit(h).
		WithSetByCaller(effect.SetByCallerFalloff, p.Attenuation.Distance(travelled)).
		WithSetByCaller(effect.SetByCallerMaterial, p.Attenuation.Material(h.Material))
}

// TrailPoints returns the trail oldest to newest.
func (p *Projectile) TrailPoints() [trailLen]vmath.Vec3 {
	var out [trailLen]vmath.Vec3
	for i := 0; i < trailLen; i++ {
		out[i] = p.trail[(p.trailIdx+i)%trailLen]
	}
	return out
}

// Snapshot is an immutable copy of projectile state for clients.
type Snapshot struct {
	Entity   world.EntityID       `json:"entity"`
	Owner    world.EntityID       `json:"owner"`
	Location vmath.Vec3           `json:"location"`
	Velocity vmath.Vec3           `json:"velocity"`
	Radius   float64              `json:"radius"`
	Trail    [trailLen]vmath.Vec3 `json:"trail"`
}

func (p *Projectile) ToSnapshot() Snapshot {
	return Snapshot{
		Entity:   p.Entity,
		Owner:    p.Owner,
		Location: p.Location,
		Velocity: p.Velocity,
		Radius:   p.Radius,
		Trail:    p.TrailPoints(),
	}
}
