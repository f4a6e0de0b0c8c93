package game

import (
	"math"
	"math/rand"

	"arena-combat/internal/ability"
	"arena-combat/internal/equipment"
	"arena-combat/internal/heat"
	"arena-combat/internal/projectile"
	"arena-combat/internal/targeting"
	"arena-combat/internal/vmath"
	"arena-combat/internal/world"
)

// PawnState represents the pawn's lifecycle state
type PawnState int

const (
	StateAlive PawnState = iota // In arena, alive and fighting
	StateDead                   // Waiting for the respawn timer
)

func (s PawnState) String() string {
	if s == StateDead {
		return "dead"
	}
	return "alive"
}

const (
	PawnRadius    = 40.0
	RespawnDelay  = 3.0    // Seconds between death and respawn
	BotSightRange = 3000.0 // Nearby detection before the global fallback
	BotMaxSpeed   = 420.0  // units/s
	BotAccel      = 1800.0 // units/s^2
	BotFriction   = 0.85   // Velocity kept per 1/30 s
	boundsMargin  = PawnRadius
)

// attachedActor is a body spawned for an equipment instance and carried by the pawn.
type attachedActor struct {
	id   world.EntityID
	spec equipment.ActorSpec
}

// Pawn is one combatant, driven by a websocket client or by the bot AI.
type Pawn struct {
	ID       world.EntityID
	Name     string
	Location vmath.Vec3
	Facing   vmath.Vec3
	View     vmath.Vec3
	Velocity vmath.Vec3
	Movement heat.Movement

	Bot          bool
	State        PawnState
	Kills        int
	Deaths       int
	RespawnTimer float64

	// Aggression (bot personality)
	Aggression float64

	Ledger    *equipment.Ledger
	QuickBar  *equipment.QuickBar
	Abilities *ability.System
	Skills    *ability.SkillBook

	actors []attachedActor

	// Bot combat state
	target     world.EntityID
	charging   bool
	chargeHeld float64
	chargeGoal float64
}

// Alive reports whether the pawn can act.
func (p *Pawn) Alive() bool { return p.State == StateAlive }

// viewpoint is the aim input of the pawn's abilities.
func (p *Pawn) viewpoint() targeting.Viewpoint {
	controller := targeting.ControllerPlayer
	if p.Bot {
		controller = targeting.ControllerAI
	}
	view := p.View
	if view.IsZero() {
		view = p.Facing
	}
	return targeting.Viewpoint{
		Controller:     controller,
		PawnLocation:   p.Location,
		PawnForward:    p.Facing,
		ViewLocation:   p.Location,
		ViewForward:    view,
		WeaponLocation: p.Location,
	}
}

// pose is where the authority believes the pawn is, for launch validation.
func (p *Pawn) pose() projectile.Pose {
	return projectile.Pose{Location: p.Location, Facing: p.Facing}
}

// activeWeapon returns the equipment instance in the active quick bar slot.
func (p *Pawn) activeWeapon() (*equipment.Instance, bool) {
	return p.Ledger.ActiveWeapon()
}

// face turns the pawn toward dir on the ground plane.
func (p *Pawn) face(dir vmath.Vec3) {
	dir.Z = 0
	if dir.IsZero() {
		return
	}
	p.Facing = dir.Normalize()
	p.View = p.Facing
}

// findTarget picks the closest living enemy in sight, falling back to a global
// search so bots always find someone to fight.
func (p *Pawn) findTarget(space world.Overlapper, pawns map[world.EntityID]*Pawn, order []world.EntityID) *Pawn {
	var closest *Pawn
	minDist := math.MaxFloat64

	for _, id := range space.Overlap(p.Location, BotSightRange, []world.EntityID{p.ID}) {
		other, ok := pawns[id]
		if !ok || !other.Alive() {
			continue
		}
		if d := vmath.Dist(p.Location, other.Location); d < minDist {
			minDist = d
			closest = other
		}
	}
	if closest != nil {
		return closest
	}

	for _, id := range order {
		other := pawns[id]
		if other == nil || other.ID == p.ID || !other.Alive() {
			continue
		}
		if d := vmath.Dist(p.Location, other.Location); d < minDist {
			minDist = d
			closest = other
		}
	}
	return closest
}

// weaponRange is how close a bot wants to be before pulling the trigger.
func weaponRange(inst *equipment.Instance) float64 {
	w, ok := inst.Weapon()
	if !ok {
		return 0
	}
	if hm, ok := w.Hitscan(); ok {
		return hm.MaxDamageRange
	}
	if pm, ok := w.Projectile(); ok {
		return pm.Speed * pm.Lifespan * 0.25
	}
	return 0
}

// combatBehavior handles bot combat - approaching, firing, strafing
func (p *Pawn) combatBehavior(target *Pawn, now, dt float64, rng *rand.Rand) {
	delta := target.Location.Sub(p.Location)
	delta.Z = 0
	dist := delta.Len()
	dir := vmath.Zero
	if dist > 0 {
		dir = delta.Scale(1 / dist)
	}

	// Always face target first
	p.face(dir)

	inst, ok := p.activeWeapon()
	if !ok {
		return
	}
	attackRange := weaponRange(inst)

	if dist <= attackRange {
		p.fire(inst, now, dt)
	}

	accel := BotAccel * p.Aggression * dt
	switch {
	case dist > attackRange*0.8:
		p.Velocity = p.Velocity.Add(dir.Scale(accel))
	default:
		// In range: 70% strafe, 30% approach keeps pressure on
		perp := vmath.V(-dir.Y, dir.X, 0)
		if rng.Float64() < 0.5 {
			perp = perp.Scale(-1)
		}
		p.Velocity = p.Velocity.Add(dir.Scale(0.3 * accel)).Add(perp.Scale(0.7 * accel))
	}
}

// fire drives the primary ability the way a player holding the trigger would.
func (p *Pawn) fire(inst *equipment.Instance, now, dt float64) {
	w, _ := inst.Weapon()
	h, ok := p.Abilities.SpecForInput(ability.InputPrimary)
	if !ok {
		return
	}

	if p.charging {
		p.chargeHeld += dt
		if p.chargeHeld >= p.chargeGoal {
			p.charging = false
			_ = p.Abilities.ReleaseInput(h, p.chargeHeld)
		}
		return
	}

	if mag, reserve := w.Ammo(); mag == 0 && w.Config().MagazineSize > 0 {
		if reserve > 0 {
			w.Reload()
		} else {
			_ = p.QuickBar.CycleForward()
		}
		return
	}
	if w.CanCommit(now) != nil {
		return
	}

	a, err := p.Abilities.TryActivate(h, ability.ActivationRequest{Input: ability.InputPrimary})
	if err != nil || a.Ended() {
		return
	}
	if pm, ok := w.Projectile(); ok && pm.Charge != nil {
		p.charging = true
		p.chargeHeld = 0
		p.chargeGoal = pm.Charge.MaxChargeTime * p.Aggression
	}
}

// wander drifts around with a slight pull towards the arena center
func (p *Pawn) wander(center vmath.Vec3, dt float64, rng *rand.Rand) {
	delta := center.Sub(p.Location)
	delta.Z = 0
	if dist := delta.Len(); dist > 400 {
		p.Velocity = p.Velocity.Add(delta.Scale(0.3 * BotAccel * dt / dist))
	}

	if rng.Float64() < 0.05 {
		angle := rng.Float64() * math.Pi * 2
		p.Velocity = p.Velocity.Add(vmath.V(math.Cos(angle), math.Sin(angle), 0).Scale(BotAccel * dt))
	}
	if !p.Velocity.IsZero() {
		p.face(p.Velocity)
	}
}

// integrate applies velocity with a speed limit, friction and world bounds.
func (p *Pawn) integrate(dt float64, b world.Bounds) {
	if speed := p.Velocity.Len(); speed > BotMaxSpeed {
		p.Velocity = p.Velocity.Scale(BotMaxSpeed / speed)
	}
	p.Location = p.Location.Add(p.Velocity.Scale(dt))
	p.Movement.Speed = p.Velocity.Len()
	p.Velocity = p.Velocity.Scale(math.Pow(BotFriction, dt*30))
	p.Location = clampToBounds(p.Location, b)
}

func clampToBounds(v vmath.Vec3, b world.Bounds) vmath.Vec3 {
	v.X = vmath.Clamp(v.X, b.MinX+boundsMargin, b.MaxX-boundsMargin)
	v.Y = vmath.Clamp(v.Y, b.MinY+boundsMargin, b.MaxY-boundsMargin)
	return v
}

// die clears combat state; the engine handles bodies and effects.
func (p *Pawn) die() {
	p.State = StateDead
	p.Deaths++
	p.RespawnTimer = RespawnDelay
	p.Velocity = vmath.Zero
	p.target = world.NoEntity
	p.charging = false
}

// respawn puts the pawn back at loc.
func (p *Pawn) respawn(loc vmath.Vec3) {
	p.State = StateAlive
	p.Location = loc
	p.Velocity = vmath.Zero
	p.RespawnTimer = 0
}
