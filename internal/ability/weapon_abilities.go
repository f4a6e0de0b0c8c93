package ability

import (
	"arena-combat/internal/effect"
	"arena-combat/internal/hitscan"
	"arena-combat/internal/targeting"
	"arena-combat/internal/vmath"
	"arena-combat/internal/weapon"
	"arena-combat/internal/world"

	"github.com/pkg/errors"
)

// rayTolerance absorbs float error when checking submitted ray lengths.
const rayTolerance = 1.0

func aim(a *Activation) (vmath.Transform, error) {
	env := a.sys.env
	if env.Viewpoint == nil {
		return vmath.Transform{}, errors.New("ability: no viewpoint source")
	}
	return targeting.Aim(env.Viewpoint(), a.weapon.Config().Source, env.FocalDistance)
}

func spreadCone(w *weapon.Instance) (halfAngle, exponent float64) {
	acc := w.Accuracy()
	return targeting.SpreadHalfAngle(acc.Spread(), acc.SpreadMultiplier()), acc.SpreadExponent()
}

func damageSpec(a *Activation, t *effect.Template) effect.Spec {
	spec := effect.NewSpec(t, a.sys.owner).WithLevel(a.spec.Level)
	if actors := a.spec.Source.SpawnedActors(); len(actors) > 0 {
		spec.Causer = actors[0]
	}
	return spec
}

// HitscanAbility fires instant rays. Target data is produced in the same tick.
type HitscanAbility struct {
	ID string
}

func (h *HitscanAbility) Name() string { return h.ID }

func (*HitscanAbility) Supports(w *weapon.Instance) bool {
	_, ok := w.Hitscan()
	return ok
}

func (*HitscanAbility) Target(a *Activation) (TargetData, bool, error) {
	s := a.sys
	if s.hits == nil {
		return TargetData{}, false, errors.New("ability: no tracer")
	}
	mode, _ := a.weapon.Hitscan()
	t, err := aim(a)
	if err != nil {
		return TargetData{}, false, err
	}
	half, exp := spreadCone(a.weapon)
	bullets := s.hits.TraceCartridge(hitscan.Cartridge{
		Origin:      t.Location,
		Direction:   t.Forward,
		Bullets:     mode.BulletsPerCartridge,
		MaxRange:    mode.MaxDamageRange,
		SweepRadius: mode.SweepRadius,
		HalfAngle:   half,
		Exponent:    exp,
		Ignore:      []world.EntityID{s.owner},
	}, s.env.Rand)
	return TargetData{ID: NewCorrelationID(), Payload: HitList{Hits: hitscan.Flatten(bullets)}}, true, nil
}

func (*HitscanAbility) Release(*Activation, float64) (TargetData, error) {
	return TargetData{}, ErrNotCharging
}

// Authorize re-traces every submitted ray. Client hits are never trusted: the
// result is whatever the authority's own world reports along the same rays.
func (*HitscanAbility) Authorize(a *Activation, data TargetData) (TargetData, error) {
	s := a.sys
	list, ok := data.Hits()
	if !ok {
		return TargetData{}, ErrWrongPayload
	}
	if s.hits == nil {
		return TargetData{}, errors.New("ability: no tracer")
	}
	mode, _ := a.weapon.Hitscan()
	rays := list.Rays()
	if len(rays) > mode.BulletsPerCartridge {
		return TargetData{}, errors.Wrapf(ErrTooManyRays, "%d rays", len(rays))
	}

	var out []world.Hit
	for _, r := range rays {
		if vmath.Dist(r.Start, r.End) > mode.MaxDamageRange+rayTolerance {
			return TargetData{}, ErrRayTooLong
		}
		if s.env.Validator != nil && s.env.Pose != nil {
			origin := vmath.NewTransform(r.Start, r.End.Sub(r.Start))
			if err := s.env.Validator.Validate(s.env.Pose(), origin); err != nil {
				return TargetData{}, err
			}
		}
		hits := s.hits.Trace(r.Start, r.End, mode.SweepRadius, []world.EntityID{s.owner})
		if len(hits) == 0 {
			hits = []world.Hit{hitscan.Miss(r.Start, r.End)}
		}
		out = append(out, hits...)
	}
	return TargetData{ID: data.ID, Payload: HitList{Hits: out}}, nil
}

// Execute applies damage to the first pawn along each ray on the authority, and
// records predicted hit markers on the owning client.
func (*HitscanAbility) Execute(a *Activation, data TargetData) {
	list, ok := data.Hits()
	if !ok {
		return
	}
	mode, _ := a.weapon.Hitscan()

	var victims []world.EntityID
	for _, r := range list.Rays() {
		i := hitscan.FirstPawnIndex(r.Hits)
		if i < 0 {
			continue
		}
		h := r.Hits[i]
		victims = append(victims, h.PawnEntity())
		if !a.Authoritative() || mode.Damage == nil || a.sys.env.Effects == nil {
			continue
		}
		spec := damageSpec(a, mode.Damage).
			WithHit(h).
			WithSetByCaller(effect.SetByCallerFalloff, a.weapon.DistanceAttenuation(h.Distance)).
			WithSetByCaller(effect.SetByCallerMaterial, a.weapon.MaterialAttenuation(h.Material))
		if _, err := a.sys.env.Effects.Apply(spec, h.PawnEntity()); err != nil {
			a.sys.logger.Debug().Err(err).Uint32("target", uint32(h.PawnEntity())).Msg("damage not applied")
		}
	}
	if !a.Authoritative() {
		a.sys.markers.Add(data.ID, uniqueEntities(victims))
	}
}

func (*HitscanAbility) OnEnd(*Activation, State) {}

// ProjectileAbility launches projectiles from a client-reported transform.
type ProjectileAbility struct {
	ID string
}

func (p *ProjectileAbility) Name() string { return p.ID }

func (*ProjectileAbility) Supports(w *weapon.Instance) bool {
	_, ok := w.Projectile()
	return ok
}

func (*ProjectileAbility) Target(a *Activation) (TargetData, bool, error) {
	d, err := launchData(a)
	return d, err == nil, err
}

func (*ProjectileAbility) Release(*Activation, float64) (TargetData, error) {
	return TargetData{}, ErrNotCharging
}

func (*ProjectileAbility) Authorize(a *Activation, data TargetData) (TargetData, error) {
	return authorizeLaunch(a, data)
}

func (*ProjectileAbility) Execute(a *Activation, data TargetData) { launch(a, data) }

func (*ProjectileAbility) OnEnd(*Activation, State) {}

// ChargingProjectileAbility waits for the input release and scales the projectile
// by how long the input was held.
type ChargingProjectileAbility struct {
	ID string
}

func (c *ChargingProjectileAbility) Name() string { return c.ID }

func (*ChargingProjectileAbility) Supports(w *weapon.Instance) bool {
	pm, ok := w.Projectile()
	return ok && pm.Charge != nil
}

// Target fires at once when the input was already released, otherwise waits.
func (c *ChargingProjectileAbility) Target(a *Activation) (TargetData, bool, error) {
	if !a.req.Released {
		return TargetData{}, false, nil
	}
	d, err := c.Release(a, a.req.HeldSeconds)
	return d, err == nil, err
}

func (*ChargingProjectileAbility) Release(a *Activation, held float64) (TargetData, error) {
	a.weapon.SetChargeTime(held)
	d, err := launchData(a)
	if err != nil {
		return TargetData{}, err
	}
	l, _ := d.Launch()
	l.ChargeSeconds = a.weapon.ChargeTime()
	d.Payload = l
	return d, nil
}

// Authorize re-clamps the reported charge before validating the launch.
func (*ChargingProjectileAbility) Authorize(a *Activation, data TargetData) (TargetData, error) {
	out, err := authorizeLaunch(a, data)
	if err != nil {
		return TargetData{}, err
	}
	l, _ := out.Launch()
	a.weapon.SetChargeTime(l.ChargeSeconds)
	l.ChargeSeconds = a.weapon.ChargeTime()
	out.Payload = l
	return out, nil
}

func (*ChargingProjectileAbility) Execute(a *Activation, data TargetData) { launch(a, data) }

func (*ChargingProjectileAbility) OnEnd(a *Activation, _ State) {
	a.weapon.ResetCharge()
}

func launchData(a *Activation) (TargetData, error) {
	t, err := aim(a)
	if err != nil {
		return TargetData{}, err
	}
	return TargetData{ID: NewCorrelationID(), Payload: LaunchTransform{Transform: t}}, nil
}

func authorizeLaunch(a *Activation, data TargetData) (TargetData, error) {
	l, ok := data.Launch()
	if !ok {
		return TargetData{}, ErrWrongPayload
	}
	env := a.sys.env
	if env.Validator != nil && env.Pose != nil {
		if err := env.Validator.Validate(env.Pose(), l.Transform); err != nil {
			return TargetData{}, err
		}
	}
	return data.Clone(), nil
}

// launch spawns the cartridge's projectiles on the authority. Clients wait for
// the replicated projectiles instead of predicting them.
func launch(a *Activation, data TargetData) {
	env := a.sys.env
	if !a.Authoritative() || env.Spawner == nil || env.Launch == nil {
		return
	}
	l, ok := data.Launch()
	if !ok {
		return
	}
	mode, _ := a.weapon.Projectile()
	half, exp := spreadCone(a.weapon)

	var damage effect.Spec
	if mode.Damage != nil {
		damage = damageSpec(a, mode.Damage).
			WithSetByCaller(effect.SetByCallerCharge, a.weapon.DamageMultiplier())
	}

	for i := 0; i < mode.ProjectilesPerCartridge; i++ {
		dir := l.Transform.Forward
		if env.Rand != nil {
			dir = targeting.RandCone(env.Rand, dir, half, exp)
		}
		p := env.Spawner.Begin(vmath.NewTransform(l.Transform.Location, dir), a.sys.owner).
			SetSpeed(a.weapon.ProjectileSpeed()).
			SetScale(a.weapon.ProjectileScale()).
			SetRadius(mode.Radius).
			SetLifespan(mode.Lifespan).
			SetGravityScale(mode.GravityScale).
			SetOverlap(mode.Overlap).
			SetAttenuation(mode.Attenuation).
			SetAreaEffect(mode.AreaEffect).
			SetDamage(damage).
			Finish()
		if !env.Launch(p) {
			a.sys.logger.Warn().Str("ability", a.spec.Ability.Name()).Msg("projectile refused")
		}
	}
}

var (
	_ Ability = (*HitscanAbility)(nil)
	_ Ability = (*ProjectileAbility)(nil)
	_ Ability = (*ChargingProjectileAbility)(nil)
)
