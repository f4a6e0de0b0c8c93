package projectile

import (
	"arena-combat/internal/areaeffect"
	"arena-combat/internal/effect"
	"arena-combat/internal/vmath"
	"arena-combat/internal/weapon"
	"arena-combat/internal/world"
)

// Spawner builds projectiles in two phases: Begin returns a Deferred whose
// properties can be set freely, and Finish makes the projectile live. Nothing
// collides or ticks before Finish.
type Spawner struct {
	newEntity func() world.EntityID
}

// NewSpawner creates a spawner that allocates entity ids with newEntity.
func NewSpawner(newEntity func() world.EntityID) *Spawner {
	return &Spawner{newEntity: newEntity}
}

// Deferred is a projectile under construction.
type Deferred struct {
	p        *Projectile
	speed    float64
	scale    float64
	finished bool
}

// Begin starts building a projectile at the launch transform.
func (s *Spawner) Begin(launch vmath.Transform, owner world.EntityID) *Deferred {
	var id world.EntityID
	if s.newEntity != nil {
		id = s.newEntity()
	}
	return &Deferred{
		p: &Projectile{
			Entity:       id,
			Owner:        owner,
			Origin:       launch.Location,
			Location:     launch.Location,
			Velocity:     launch.Forward.Normalize(),
			Radius:       5,
			GravityScale: 1,
			Lifespan:     weapon.DefaultLifespan,
			hitTargets:   make(map[world.EntityID]struct{}),
		},
		speed: weapon.DefaultProjectileSpeed,
		scale: 1,
	}
}

func (d *Deferred) SetSpeed(v float64) *Deferred        { d.speed = v; return d }
func (d *Deferred) SetScale(v float64) *Deferred        { d.scale = v; return d }
func (d *Deferred) SetRadius(v float64) *Deferred       { d.p.Radius = v; return d }
func (d *Deferred) SetLifespan(v float64) *Deferred     { d.p.Lifespan = v; return d }
func (d *Deferred) SetGravityScale(v float64) *Deferred { d.p.GravityScale = v; return d }
func (d *Deferred) SetOverlap(v bool) *Deferred         { d.p.Overlap = v; return d }

func (d *Deferred) SetDamage(spec effect.Spec) *Deferred {
	d.p.Damage = spec
	d.p.HasDamage = spec.Template != nil
	return d
}

func (d *Deferred) SetAttenuation(a weapon.Attenuation) *Deferred {
	d.p.Attenuation = a
	return d
}

func (d *Deferred) SetAreaEffect(cfg *areaeffect.Config) *Deferred {
	d.p.AreaEffect = cfg
	return d
}

// Projectile exposes the projectile under construction for inspection.
func (d *Deferred) Projectile() *Projectile { return d.p }

// Finish applies speed and scale and makes the projectile live. Finishing twice returns nil.
func (d *Deferred) Finish() *Projectile {
	if d.finished {
		return nil
	}
	d.finished = true
	d.p.Velocity = d.p.Velocity.Scale(d.speed)
	d.p.Radius *= d.scale
	d.p.active = true
	return d.p
}
