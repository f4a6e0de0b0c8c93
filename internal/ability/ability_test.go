package ability

import (
	"math/rand"
	"testing"

	"arena-combat/internal/effect"
	"arena-combat/internal/equipment"
	"arena-combat/internal/heat"
	"arena-combat/internal/projectile"
	"arena-combat/internal/targeting"
	"arena-combat/internal/vmath"
	"arena-combat/internal/weapon"
	"arena-combat/internal/world"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	shooter world.EntityID = 1
	target  world.EntityID = 2
)

type setTable map[string]*Set

func (t setTable) AbilitySet(name string) (*Set, bool) {
	s, ok := t[name]
	return s, ok
}

func steadyHeat() heat.Config {
	cfg := heat.DefaultConfig()
	cfg.HeatToSpread = vmath.Flat(0)
	return cfg
}

func rifleDef(magazine int) *equipment.Definition {
	return &equipment.Definition{
		ID:          "rifle",
		AbilitySets: []string{"rifle"},
		Weapon: &weapon.Config{
			ID:           "rifle",
			MagazineSize: magazine,
			Source:       targeting.PawnForward,
			Heat:         steadyHeat(),
			Mode: &weapon.HitscanMode{
				BulletsPerCartridge: 1,
				MaxDamageRange:      1000,
				Damage:              &effect.Template{ID: "bullet", Magnitude: -20},
			},
		},
	}
}

func bowDef() *equipment.Definition {
	return &equipment.Definition{
		ID:          "bow",
		AbilitySets: []string{"bow"},
		Weapon: &weapon.Config{
			ID:     "bow",
			Source: targeting.PawnForward,
			Heat:   steadyHeat(),
			Mode: &weapon.ProjectileMode{
				ProjectilesPerCartridge: 1,
				Speed:                   1000,
				Lifespan:                5,
				Radius:                  5,
				DamageMultiplier:        1,
				SizeMultiplier:          1,
				Charge:                  weapon.DefaultChargeConfig(1.5),
				Damage:                  &effect.Template{ID: "arrow", Magnitude: -30},
			},
		},
	}
}

func catalogSets() setTable {
	return setTable{
		"rifle": {Name: "rifle", Grants: []Grant{{Ability: &HitscanAbility{ID: "rifle.fire"}, Input: InputPrimary}}},
		"bow":   {Name: "bow", Grants: []Grant{{Ability: &ChargingProjectileAbility{ID: "bow.draw"}, Input: InputPrimary}}},
	}
}

// duel places the shooter at the origin facing +X and the target 500 units ahead.
func duel() *world.Space {
	s := world.NewSpace(world.Bounds{MinX: -2000, MinY: -2000, MaxX: 2000, MaxY: 2000}, 200, 8)
	s.AddBody(world.Body{Entity: shooter, Kind: world.KindPawn, Center: vmath.Zero, Radius: 30, Combatant: true})
	s.AddBody(world.Body{Entity: target, Kind: world.KindPawn, Center: vmath.V(500, 0, 0), Radius: 30, Combatant: true})
	return s
}

func lookingForward() targeting.Viewpoint {
	return targeting.Viewpoint{
		Controller:     targeting.ControllerPlayer,
		PawnForward:    vmath.V(1, 0, 0),
		ViewForward:    vmath.V(1, 0, 0),
		WeaponLocation: vmath.Zero,
	}
}

func facingForward() projectile.Pose {
	return projectile.Pose{Location: vmath.Zero, Facing: vmath.V(1, 0, 0)}
}

type recorder struct {
	events []Event
}

func (r *recorder) observe(e Event) { r.events = append(r.events, e) }

func (r *recorder) of(kind EventKind) []Event {
	var out []Event
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

type endpoint struct {
	sys     *System
	effects *effect.MemoryEngine
	events  *recorder
	inst    *equipment.Instance
}

func newEndpoint(t *testing.T, role Role, local bool, def *equipment.Definition, tweaks ...func(*Options)) *endpoint {
	t.Helper()
	effects := effect.NewMemoryEngine()
	effects.Register(target, 100)
	rec := &recorder{}

	opts := Options{
		Owner:             shooter,
		Role:              role,
		LocallyControlled: local,
		Sets:              catalogSets(),
		Env: Env{
			Tracer:    duel(),
			Effects:   effects,
			Viewpoint: lookingForward,
			Pose:      facingForward,
		},
		Observer: rec.observe,
		Logger:   zerolog.Nop(),
	}
	for _, tweak := range tweaks {
		tweak(&opts)
	}
	sys := NewSystem(opts)

	ep := &endpoint{sys: sys, effects: effects, events: rec}
	if def != nil {
		ep.inst = equip(t, def)
		_, err := sys.Grant(def.AbilitySets, ep.inst)
		require.NoError(t, err)
	}
	return ep
}

func equip(t *testing.T, def *equipment.Definition) *equipment.Instance {
	t.Helper()
	inst, err := equipment.Factory{}.NewInstance(def, shooter)
	require.NoError(t, err)
	w, ok := inst.Weapon()
	require.True(t, ok)
	w.OnEquipped(0)
	return inst
}

func health(t *testing.T, e *effect.MemoryEngine, id world.EntityID) float64 {
	t.Helper()
	h, ok := e.Health(id)
	require.True(t, ok)
	return h
}

// chattyLink delivers every submission twice, like a client retransmitting.
type chattyLink struct {
	Loopback
	submitted int
}

func (c *chattyLink) SubmitTargetData(s Submission) {
	c.submitted++
	c.Loopback.SubmitTargetData(s)
	c.Loopback.SubmitTargetData(s)
}

func TestPredictedHitConfirmedOnce(t *testing.T) {
	client := newEndpoint(t, RoleAutonomous, true, rifleDef(30))
	server := newEndpoint(t, RoleAuthority, false, rifleDef(30))

	up := &chattyLink{Loopback: Loopback{Server: server.sys}}
	client.sys.SetLinks(up, nil)
	server.sys.SetLinks(nil, &Loopback{Client: client.sys})

	h, ok := client.sys.SpecForInput(InputPrimary)
	require.True(t, ok)

	a, err := client.sys.TryActivate(h, ActivationRequest{Input: InputPrimary})
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, a.State())
	assert.Equal(t, 1, up.submitted)

	id := a.TargetData().ID
	require.False(t, id.IsZero())

	confirmed := client.events.of(EventConfirmed)
	require.Len(t, confirmed, 1)
	assert.Equal(t, id, confirmed[0].Correlation)
	assert.Equal(t, []world.EntityID{target}, confirmed[0].Targets)
	assert.Zero(t, client.sys.Markers().Pending())

	dropped := server.events.of(EventDropped)
	require.Len(t, dropped, 1)
	assert.Equal(t, "duplicate", dropped[0].Reason)
	assert.Equal(t, id, dropped[0].Correlation)

	assert.Equal(t, 80.0, health(t, server.effects, target), "server applies damage once")
	assert.Equal(t, 100.0, health(t, client.effects, target), "client never applies damage")

	mag, _ := client.inst.Behavior().(*weapon.Instance).Ammo()
	assert.Equal(t, 29, mag)
	mag, _ = server.inst.Behavior().(*weapon.Instance).Ammo()
	assert.Equal(t, 29, mag)
}

func TestServerRejectsForgedRay(t *testing.T) {
	client := newEndpoint(t, RoleAutonomous, true, rifleDef(30))
	server := newEndpoint(t, RoleAuthority, false, rifleDef(30))
	client.sys.SetLinks(&Loopback{Server: server.sys}, nil)
	server.sys.SetLinks(nil, &Loopback{Client: client.sys})

	server.sys.ReceiveActivation(ActivationRequest{Spec: 1, Key: 1})

	// A ray from behind the shooter, longer than the weapon reaches.
	start, end := vmath.V(-400, 0, 0), vmath.V(1500, 0, 0)
	forged := TargetData{ID: NewCorrelationID(), Payload: HitList{Hits: []world.Hit{{
		Entity: target, Kind: world.KindPawn, Blocking: true, TraceStart: start, TraceEnd: end,
	}}}}
	client.sys.Markers().Add(forged.ID, []world.EntityID{target})
	server.sys.ReceiveTargetData(Submission{Owner: shooter, Spec: 1, Key: 1, Data: forged})

	rejected := server.events.of(EventRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, 100.0, health(t, server.effects, target))

	confirmed := client.events.of(EventConfirmed)
	require.Len(t, confirmed, 1)
	assert.Empty(t, confirmed[0].Targets)

	spec, _ := server.sys.Spec(1)
	_, active := spec.Active()
	assert.False(t, active)
}

func TestServerReplacesClientHits(t *testing.T) {
	client := newEndpoint(t, RoleAutonomous, true, rifleDef(30))
	server := newEndpoint(t, RoleAuthority, false, rifleDef(30))
	server.sys.SetLinks(nil, &Loopback{Client: client.sys})

	server.sys.ReceiveActivation(ActivationRequest{Spec: 1, Key: 1})

	// The client claims a pawn the server does not see on that ray.
	start, end := vmath.Zero, vmath.V(1000, 0, 0)
	claimed := TargetData{ID: NewCorrelationID(), Payload: HitList{Hits: []world.Hit{{
		Entity: 9, Kind: world.KindPawn, Blocking: true, Distance: 200, TraceStart: start, TraceEnd: end,
	}}}}
	client.sys.Markers().Add(claimed.ID, []world.EntityID{9})
	server.sys.ReceiveTargetData(Submission{Owner: shooter, Spec: 1, Key: 1, Data: claimed})

	confirmed := client.events.of(EventConfirmed)
	require.Len(t, confirmed, 1)
	assert.Equal(t, []world.EntityID{target}, confirmed[0].Targets)
	assert.Equal(t, 80.0, health(t, server.effects, target))
}

func TestEarlyTargetDataIsBuffered(t *testing.T) {
	server := newEndpoint(t, RoleAuthority, false, rifleDef(30))

	start, end := vmath.Zero, vmath.V(1000, 0, 0)
	data := TargetData{ID: NewCorrelationID(), Payload: HitList{Hits: []world.Hit{{TraceStart: start, TraceEnd: end, Location: end}}}}
	server.sys.ReceiveTargetData(Submission{Owner: shooter, Spec: 1, Key: 1, Data: data})
	assert.Equal(t, 1, server.sys.Bus().Buffered())

	server.sys.ReceiveActivation(ActivationRequest{Spec: 1, Key: 1})
	assert.Zero(t, server.sys.Bus().Buffered())
	assert.Zero(t, server.sys.Bus().Subscribers())
	assert.Equal(t, 80.0, health(t, server.effects, target))

	ended := server.events.of(EventEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, StateCompleted, ended[0].State)
	assert.Equal(t, data.ID, ended[0].Correlation)
}

func TestRetransmitAcceptedAfterBufferFull(t *testing.T) {
	server := newEndpoint(t, RoleAuthority, false, rifleDef(30), func(o *Options) { o.MaxBuffered = 1 })
	start, end := vmath.Zero, vmath.V(1000, 0, 0)
	shot := func() TargetData {
		return TargetData{ID: NewCorrelationID(), Payload: HitList{Hits: []world.Hit{{TraceStart: start, TraceEnd: end, Location: end}}}}
	}
	first, second := shot(), shot()

	server.sys.ReceiveTargetData(Submission{Owner: shooter, Spec: 1, Key: 1, Data: first})
	server.sys.ReceiveTargetData(Submission{Owner: shooter, Spec: 1, Key: 2, Data: second})
	assert.Equal(t, 1, server.sys.Bus().Buffered())

	// key 1 starts and drains the buffer
	server.sys.ReceiveActivation(ActivationRequest{Spec: 1, Key: 1})
	assert.Zero(t, server.sys.Bus().Buffered())

	server.sys.ReceiveTargetData(Submission{Owner: shooter, Spec: 1, Key: 2, Data: second})
	assert.Equal(t, 1, server.sys.Bus().Buffered(), "retransmit is buffered, not a duplicate")

	var reasons []string
	for _, e := range server.events.of(EventDropped) {
		reasons = append(reasons, e.Reason)
	}
	assert.Equal(t, []string{"buffer_full"}, reasons)

	server.sys.ReceiveTargetData(Submission{Owner: shooter, Spec: 1, Key: 2, Data: second})
	dropped := server.events.of(EventDropped)
	require.Len(t, dropped, 2)
	assert.Equal(t, "duplicate", dropped[1].Reason)
}

func TestStaleKeysDropped(t *testing.T) {
	server := newEndpoint(t, RoleAuthority, false, rifleDef(30))
	start, end := vmath.Zero, vmath.V(1000, 0, 0)
	shot := func() TargetData {
		return TargetData{ID: NewCorrelationID(), Payload: HitList{Hits: []world.Hit{{TraceStart: start, TraceEnd: end}}}}
	}

	server.sys.ReceiveActivation(ActivationRequest{Spec: 1, Key: 2})
	server.sys.ReceiveTargetData(Submission{Spec: 1, Key: 2, Data: shot()})

	server.sys.ReceiveTargetData(Submission{Spec: 1, Key: 1, Data: shot()})
	_, err := server.sys.TryActivate(1, ActivationRequest{Key: 2})
	assert.ErrorIs(t, err, ErrStaleKey)

	var reasons []string
	for _, e := range server.events.of(EventDropped) {
		reasons = append(reasons, e.Reason)
	}
	assert.Equal(t, []string{"stale_key", "stale_key"}, reasons)
	assert.Zero(t, server.sys.Bus().Buffered())
}

func TestMalformedAndMisroutedData(t *testing.T) {
	server := newEndpoint(t, RoleAuthority, false, rifleDef(30))
	client := newEndpoint(t, RoleAutonomous, true, rifleDef(30))

	server.sys.ReceiveTargetData(Submission{Spec: 1, Key: 1, Data: TargetData{}})
	server.sys.ReceiveTargetData(Submission{Spec: 7, Key: 1, Data: TargetData{ID: NewCorrelationID(), Payload: HitList{}}})
	client.sys.ReceiveTargetData(Submission{Spec: 1, Key: 1, Data: TargetData{ID: NewCorrelationID(), Payload: HitList{}}})

	var reasons []string
	for _, e := range server.events.of(EventDropped) {
		reasons = append(reasons, e.Reason)
	}
	assert.Equal(t, []string{"malformed", "unknown_spec"}, reasons)
	require.Len(t, client.events.of(EventDropped), 1)
	assert.Equal(t, "not_authority", client.events.of(EventDropped)[0].Reason)
}

func TestRemoteAwaitTimesOut(t *testing.T) {
	now := 0.0
	server := newEndpoint(t, RoleAuthority, false, rifleDef(30))
	server.sys.clock = func() float64 { return now }

	server.sys.ReceiveActivation(ActivationRequest{Spec: 1, Key: 1})
	spec, _ := server.sys.Spec(1)
	a, ok := spec.Active()
	require.True(t, ok)
	assert.Equal(t, StateAwaitingTargetData, a.State())

	now = 1
	server.sys.Tick()
	assert.False(t, a.Ended())

	now = DefaultAwaitTimeout + 0.5
	server.sys.Tick()
	assert.Equal(t, StateCancelled, a.State())
	assert.True(t, a.Subscription().Released())
}

func TestNewerRemoteKeySupersedes(t *testing.T) {
	server := newEndpoint(t, RoleAuthority, false, rifleDef(30))

	first, err := server.sys.TryActivate(1, ActivationRequest{Key: 1})
	require.NoError(t, err)
	_, err = server.sys.TryActivate(1, ActivationRequest{Key: 1})
	assert.ErrorIs(t, err, ErrAlreadyActive)

	second, err := server.sys.TryActivate(1, ActivationRequest{Key: 3})
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, first.State())
	assert.Equal(t, PredictionKey(3), second.Key())
}

// probe is a scripted ability.
type probe struct {
	ready     bool
	endInExec State
	executed  int
	ended     []State
}

func (*probe) Name() string                    { return "probe" }
func (*probe) Supports(*weapon.Instance) bool { return true }

func (p *probe) Target(*Activation) (TargetData, bool, error) {
	if !p.ready {
		return TargetData{}, false, nil
	}
	return TargetData{ID: NewCorrelationID(), Payload: LaunchTransform{}}, true, nil
}

func (*probe) Release(*Activation, float64) (TargetData, error) {
	return TargetData{ID: NewCorrelationID(), Payload: LaunchTransform{}}, nil
}

func (*probe) Authorize(_ *Activation, d TargetData) (TargetData, error) { return d, nil }

func (p *probe) Execute(a *Activation, _ TargetData) {
	p.executed++
	if p.endInExec != StateIdle {
		a.End(p.endInExec)
		a.End(StateFailed)
	}
}

func (p *probe) OnEnd(_ *Activation, s State) { p.ended = append(p.ended, s) }

func probeSystem(t *testing.T, p *probe) (*System, SpecHandle) {
	t.Helper()
	sys := NewSystem(Options{
		Owner:             shooter,
		Role:              RoleAuthority,
		LocallyControlled: true,
		Sets:              setTable{"probe": {Name: "probe", Grants: []Grant{{Ability: p}}}},
		Logger:            zerolog.Nop(),
	})
	_, err := sys.Grant([]string{"probe"}, equip(t, rifleDef(0)))
	require.NoError(t, err)
	return sys, 1
}

func TestEndDuringCommitIsQueued(t *testing.T) {
	p := &probe{ready: true, endInExec: StateCancelled}
	sys, h := probeSystem(t, p)

	a, err := sys.TryActivate(h, ActivationRequest{})
	require.NoError(t, err)

	assert.Equal(t, 1, p.executed)
	assert.Equal(t, StateCancelled, a.State(), "first queued end wins")
	assert.Equal(t, []State{StateCancelled}, p.ended)

	a.End(StateCompleted)
	a.Cancel()
	assert.Equal(t, []State{StateCancelled}, p.ended, "ending twice is a no-op")
}

func TestActivationReentry(t *testing.T) {
	p := &probe{}
	sys, h := probeSystem(t, p)

	a, err := sys.TryActivate(h, ActivationRequest{})
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingTargetData, a.State())

	_, err = sys.TryActivate(h, ActivationRequest{})
	assert.ErrorIs(t, err, ErrAlreadyActive)

	require.NoError(t, sys.ReleaseInput(h, 0.2))
	assert.Equal(t, StateCompleted, a.State())
	assert.Equal(t, 1, p.executed)

	b, err := sys.TryActivate(h, ActivationRequest{})
	require.NoError(t, err)
	assert.Greater(t, b.Key(), a.Key())
}

func TestEndNonTerminalBecomesCancelled(t *testing.T) {
	p := &probe{}
	sys, h := probeSystem(t, p)
	a, err := sys.TryActivate(h, ActivationRequest{})
	require.NoError(t, err)

	a.End(StateCommitting)
	assert.Equal(t, StateCancelled, a.State())
	assert.True(t, a.Subscription().Released())
	assert.Zero(t, sys.Bus().Subscribers())
}

func TestActivationGuards(t *testing.T) {
	t.Run("blocked input", func(t *testing.T) {
		p := &probe{}
		sys, h := probeSystem(t, p)
		a, err := sys.TryActivate(h, ActivationRequest{})
		require.NoError(t, err)

		sys.SetInputBlocked(equipment.GrantSet{Handles: []uint32{uint32(h)}}, true)
		assert.Equal(t, StateCancelled, a.State())

		_, err = sys.TryActivate(h, ActivationRequest{})
		assert.ErrorIs(t, err, ErrInputBlocked)
		_, ok := sys.SpecForInput(InputPrimary)
		assert.False(t, ok)
	})

	t.Run("no weapon", func(t *testing.T) {
		sys := NewSystem(Options{Role: RoleAuthority, LocallyControlled: true, Sets: catalogSets(), Logger: zerolog.Nop()})
		g, err := sys.Grant([]string{"rifle"}, nil)
		require.NoError(t, err)
		_, err = sys.TryActivate(SpecHandle(g.Handles[0]), ActivationRequest{})
		assert.ErrorIs(t, err, ErrNoWeapon)
	})

	t.Run("wrong weapon kind", func(t *testing.T) {
		sys := NewSystem(Options{Role: RoleAuthority, LocallyControlled: true, Sets: catalogSets(), Logger: zerolog.Nop()})
		g, err := sys.Grant([]string{"bow"}, equip(t, rifleDef(0)))
		require.NoError(t, err)
		_, err = sys.TryActivate(SpecHandle(g.Handles[0]), ActivationRequest{})
		assert.ErrorIs(t, err, ErrNoWeapon)
	})

	t.Run("simulated proxy", func(t *testing.T) {
		sys := NewSystem(Options{Role: RoleSimulated, Sets: catalogSets(), Logger: zerolog.Nop()})
		_, err := sys.Grant([]string{"rifle"}, equip(t, rifleDef(0)))
		require.NoError(t, err)
		_, err = sys.TryActivate(1, ActivationRequest{})
		assert.ErrorIs(t, err, ErrNotLocallyControlled)
	})

	t.Run("unknown spec and set", func(t *testing.T) {
		sys := NewSystem(Options{Role: RoleAuthority, Sets: catalogSets(), Logger: zerolog.Nop()})
		_, err := sys.TryActivate(42, ActivationRequest{})
		assert.ErrorIs(t, err, ErrUnknownSpec)
		_, err = sys.Grant([]string{"rifle", "wand"}, nil)
		assert.ErrorIs(t, err, ErrUnknownSet)
		assert.Empty(t, sys.Specs(), "nothing granted when one set is unknown")
	})
}

func TestCommitFailureAppliesNothing(t *testing.T) {
	server := newEndpoint(t, RoleAuthority, true, rifleDef(1))
	h, _ := server.sys.SpecForInput(InputPrimary)

	a, err := server.sys.TryActivate(h, ActivationRequest{})
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, a.State())
	assert.Equal(t, 80.0, health(t, server.effects, target))

	b, err := server.sys.TryActivate(h, ActivationRequest{})
	require.NoError(t, err)
	assert.Equal(t, StateFailed, b.State())
	assert.ErrorIs(t, b.Err(), weapon.ErrNoAmmo)
	assert.Equal(t, 80.0, health(t, server.effects, target))
	assert.Len(t, server.events.of(EventCommitted), 1)
}

func TestRevokeCancelsActivation(t *testing.T) {
	p := &probe{}
	sys, h := probeSystem(t, p)
	a, err := sys.TryActivate(h, ActivationRequest{})
	require.NoError(t, err)

	sys.Revoke(equipment.GrantSet{Handles: []uint32{uint32(h)}})
	assert.Equal(t, StateCancelled, a.State())
	_, ok := sys.Spec(h)
	assert.False(t, ok)
}

func TestChargedLaunch(t *testing.T) {
	var launched []*projectile.Projectile
	next := world.EntityID(100)
	sys := NewSystem(Options{
		Owner:             shooter,
		Role:              RoleAuthority,
		LocallyControlled: true,
		Sets:              catalogSets(),
		Env: Env{
			Viewpoint: lookingForward,
			Spawner:   projectile.NewSpawner(func() world.EntityID { next++; return next }),
			Launch: func(p *projectile.Projectile) bool {
				launched = append(launched, p)
				return true
			},
		},
		Logger: zerolog.Nop(),
	})
	inst := equip(t, bowDef())
	_, err := sys.Grant([]string{"bow"}, inst)
	require.NoError(t, err)
	w, _ := inst.Weapon()

	a, err := sys.TryActivate(1, ActivationRequest{})
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingTargetData, a.State())
	assert.Empty(t, launched)

	require.NoError(t, sys.ReleaseInput(1, 10))
	assert.Equal(t, StateCompleted, a.State())

	l, ok := a.TargetData().Launch()
	require.True(t, ok)
	assert.Equal(t, 1.5, l.ChargeSeconds, "held time clamps to the max charge")

	require.Len(t, launched, 1)
	p := launched[0]
	assert.InDelta(t, 2000, p.Velocity.Len(), 1e-6)
	assert.InDelta(t, 52.5, p.Radius, 1e-6)
	assert.Equal(t, 3.0, p.Damage.SetByCaller[effect.SetByCallerCharge])
	assert.Equal(t, shooter, p.Owner)
	assert.Zero(t, w.ChargeTime(), "charge resets when the activation ends")
}

func TestReleasedBeforeActivationFiresAtOnce(t *testing.T) {
	var launched int
	sys := NewSystem(Options{
		Owner:             shooter,
		Role:              RoleAuthority,
		LocallyControlled: true,
		Sets:              catalogSets(),
		Env: Env{
			Viewpoint: lookingForward,
			Spawner:   projectile.NewSpawner(nil),
			Launch:    func(*projectile.Projectile) bool { launched++; return true },
		},
		Logger: zerolog.Nop(),
	})
	_, err := sys.Grant([]string{"bow"}, equip(t, bowDef()))
	require.NoError(t, err)

	a, err := sys.TryActivate(1, ActivationRequest{Released: true, HeldSeconds: 0.75})
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, a.State())
	l, _ := a.TargetData().Launch()
	assert.Equal(t, 0.75, l.ChargeSeconds)
	assert.Equal(t, 1, launched)
}

func TestRemoteChargeIsClamped(t *testing.T) {
	var launched []*projectile.Projectile
	sys := NewSystem(Options{
		Owner: shooter,
		Role:  RoleAuthority,
		Sets:  catalogSets(),
		Env: Env{
			Validator: projectile.NewValidator(zerolog.Nop()),
			Pose:      facingForward,
			Spawner:   projectile.NewSpawner(nil),
			Launch: func(p *projectile.Projectile) bool {
				launched = append(launched, p)
				return true
			},
		},
		Logger: zerolog.Nop(),
	})
	_, err := sys.Grant([]string{"bow"}, equip(t, bowDef()))
	require.NoError(t, err)

	sys.ReceiveActivation(ActivationRequest{Spec: 1, Key: 1})
	sys.ReceiveTargetData(Submission{Spec: 1, Key: 1, Data: TargetData{
		ID:      NewCorrelationID(),
		Payload: LaunchTransform{Transform: vmath.NewTransform(vmath.V(20, 0, 0), vmath.V(1, 0, 0)), ChargeSeconds: 99},
	}})
	require.Len(t, launched, 1)
	assert.InDelta(t, 2000, launched[0].Velocity.Len(), 1e-6)

	// Launching from across the map is refused.
	sys.ReceiveActivation(ActivationRequest{Spec: 1, Key: 2})
	sys.ReceiveTargetData(Submission{Spec: 1, Key: 2, Data: TargetData{
		ID:      NewCorrelationID(),
		Payload: LaunchTransform{Transform: vmath.NewTransform(vmath.V(900, 0, 0), vmath.V(1, 0, 0))},
	}})
	assert.Len(t, launched, 1)
}

func TestHitMarkers(t *testing.T) {
	m := NewHitMarkers(2)
	a, b, c := NewCorrelationID(), NewCorrelationID(), NewCorrelationID()
	m.Add(a, []world.EntityID{2})
	m.Add(b, []world.EntityID{3})
	m.Add(c, []world.EntityID{4})

	_, ok := m.Predicted(a)
	assert.False(t, ok, "oldest batch evicted")
	assert.Equal(t, 2, m.Pending())

	targets, ok := m.Confirm(Confirmation{ID: b, Valid: true, Targets: []world.EntityID{3, 3, 5}})
	require.True(t, ok)
	assert.Equal(t, []world.EntityID{3, 5}, targets)

	_, ok = m.Confirm(Confirmation{ID: b, Valid: true, Targets: []world.EntityID{3}})
	assert.False(t, ok, "a batch resolves once")

	targets, ok = m.Confirm(Confirmation{ID: c, Valid: false})
	assert.True(t, ok)
	assert.Nil(t, targets)
	assert.Zero(t, m.Pending())
}

func TestCompareHits(t *testing.T) {
	s0, e0 := vmath.Zero, vmath.V(1000, 0, 0)
	s1, e1 := vmath.Zero, vmath.V(0, 1000, 0)
	client := HitList{Hits: []world.Hit{
		{Entity: 2, Kind: world.KindPawn, TraceStart: s0, TraceEnd: e0},
		{Entity: 3, Kind: world.KindPawn, TraceStart: s1, TraceEnd: e1},
	}}
	server := HitList{Hits: []world.Hit{
		{Entity: 2, Kind: world.KindPawn, TraceStart: s0, TraceEnd: e0},
		{Entity: 8, Kind: world.KindStatic, Blocking: true, TraceStart: s1, TraceEnd: e1},
	}}

	targets, replaced := compareHits(client, server)
	assert.Equal(t, []world.EntityID{2}, targets)
	assert.Equal(t, []int{1}, replaced)
}

func TestHitListRays(t *testing.T) {
	s, e0, e1 := vmath.Zero, vmath.V(10, 0, 0), vmath.V(0, 10, 0)
	list := HitList{Hits: []world.Hit{
		{Entity: 4, TraceStart: s, TraceEnd: e0},
		{Entity: 5, TraceStart: s, TraceEnd: e1},
		{Entity: 6, TraceStart: s, TraceEnd: e0},
	}}
	rays := list.Rays()
	require.Len(t, rays, 2)
	assert.Equal(t, []int{0, 2}, rays[0].Index)
	assert.Equal(t, []int{1}, rays[1].Index)
}

func TestTargetDataBus(t *testing.T) {
	bus := NewTargetDataBus(1)
	d := TargetData{ID: NewCorrelationID(), Payload: HitList{}}

	delivered, err := bus.Publish(1, 1, d)
	require.NoError(t, err)
	assert.False(t, delivered)
	_, err = bus.Publish(1, 2, d)
	assert.ErrorIs(t, err, ErrBufferFull)

	var got []TargetData
	sub := bus.Subscribe(1, 1, func(td TargetData) { got = append(got, td) })
	assert.True(t, sub.Flush())
	assert.False(t, sub.Flush())
	require.Len(t, got, 1)

	delivered, err = bus.Publish(1, 1, d)
	require.NoError(t, err)
	assert.True(t, delivered)

	sub.Release()
	sub.Release()
	assert.True(t, sub.Released())
	assert.Zero(t, bus.Subscribers())

	_, _ = bus.Publish(1, 1, d)
	assert.Equal(t, 1, bus.Buffered())
	late := bus.Subscribe(1, 1, func(TargetData) {})
	late.Release()
	assert.Zero(t, bus.Buffered(), "release drops data buffered for the scope")
}

func TestTargetDataJSON(t *testing.T) {
	in := TargetData{ID: NewCorrelationID(), Payload: LaunchTransform{
		Transform:     vmath.NewTransform(vmath.V(1, 2, 3), vmath.V(0, 1, 0)),
		ChargeSeconds: 0.5,
	}}
	b, err := in.MarshalJSON()
	require.NoError(t, err)

	var out TargetData
	require.NoError(t, out.UnmarshalJSON(b))
	assert.Equal(t, in, out)

	assert.ErrorIs(t, out.UnmarshalJSON([]byte(`{"id":"`+in.ID.String()+`","kind":"beam"}`)), ErrWrongPayload)
}

func TestUpgradesSurviveSlotSwitches(t *testing.T) {
	sys := NewSystem(Options{Owner: shooter, Role: RoleAuthority, LocallyControlled: true, Sets: catalogSets(), Logger: zerolog.Nop()})
	ledger := equipment.NewLedger(equipment.LedgerOptions{Owner: shooter, Authority: true, Granter: sys, Logger: zerolog.Nop()})

	_, err := ledger.AddEntry(rifleDef(0), 0)
	require.NoError(t, err)
	_, err = ledger.AddEntry(bowDef(), 1)
	require.NoError(t, err)
	require.NoError(t, ledger.ActivateEntry(0))

	h, ok := sys.SpecForInput(InputPrimary)
	require.True(t, ok)
	assert.Equal(t, 1, sys.UpgradeAbility("rifle.fire", 1))

	require.NoError(t, ledger.DeactivateEntry(0))
	_, err = sys.TryActivate(h, ActivationRequest{})
	assert.ErrorIs(t, err, ErrInputBlocked)

	require.NoError(t, ledger.ActivateEntry(1))
	bowHandle, ok := sys.SpecForInput(InputPrimary)
	require.True(t, ok)
	assert.NotEqual(t, h, bowHandle)
	require.NoError(t, ledger.DeactivateEntry(1))
	require.NoError(t, ledger.ActivateEntry(0))

	spec, ok := sys.Spec(h)
	require.True(t, ok)
	assert.Equal(t, 2.0, spec.Level)
	assert.False(t, spec.Blocked())
}

func TestSkillBook(t *testing.T) {
	sys := NewSystem(Options{Owner: shooter, Role: RoleAuthority, LocallyControlled: true, Sets: catalogSets(), Logger: zerolog.Nop()})
	rifle := equip(t, rifleDef(0))
	_, err := sys.Grant([]string{"rifle"}, rifle)
	require.NoError(t, err)

	book := NewSkillBook(sys, []*Skill{
		{ID: "marksman", Upgrades: map[string]float64{"rifle.fire": 0.5}},
		{ID: "brawler", Conflicts: []string{"marksman"}},
		{ID: "sniper", Requires: []string{"marksman"}},
		{ID: "archer", Grants: []string{"bow"}},
	})

	offer := book.Offer(10, rand.New(rand.NewSource(1)))
	var ids []string
	for _, s := range offer {
		ids = append(ids, s.ID)
	}
	assert.ElementsMatch(t, []string{"marksman", "brawler", "archer"}, ids)
	assert.Len(t, book.Offer(2, rand.New(rand.NewSource(1))), 2)

	require.NoError(t, book.Choose("marksman", rifle))
	spec, _ := sys.Spec(1)
	assert.Equal(t, 1.5, spec.Level)

	assert.False(t, book.Selectable("brawler"))
	assert.True(t, book.Selectable("sniper"))
	assert.ErrorIs(t, book.Choose("brawler", rifle), ErrSkillNotOffered)
	assert.ErrorIs(t, book.Choose("marksman", rifle), ErrSkillNotOffered)
	assert.ErrorIs(t, book.Choose("ghost", rifle), ErrUnknownSkill)

	require.NoError(t, book.Choose("archer", equip(t, bowDef())))
	assert.Len(t, sys.Specs(), 2)
	assert.Equal(t, []string{"archer", "marksman"}, book.Owned())

	book.Reset()
	assert.Len(t, sys.Specs(), 1)
	assert.Empty(t, book.Owned())
	assert.Equal(t, 1.5, spec.Level)
}
