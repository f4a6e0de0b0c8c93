package game

import (
	"math/rand"
	"sync"
	"time"

	"arena-combat/internal/ability"
	"arena-combat/internal/areaeffect"
	"arena-combat/internal/catalog"
	"arena-combat/internal/config"
	"arena-combat/internal/effect"
	"arena-combat/internal/equipment"
	"arena-combat/internal/projectile"
	"arena-combat/internal/protocol"
	"arena-combat/internal/vmath"
	"arena-combat/internal/world"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var (
	ErrArenaFull      = errors.New("game: arena is full")
	ErrUnknownPawn    = errors.New("game: unknown pawn")
	ErrPawnDead       = errors.New("game: pawn is dead")
	ErrNoActiveWeapon = errors.New("game: no active weapon")
)

// Hooks observe the simulation. They run on the simulation goroutine with the
// engine lock held and must not call back into the Engine.
type Hooks struct {
	OnAbilityEvent func(ev ability.Event)
	OnApplied      func(a effect.Applied)
	OnArea         func(area string, field bool, applied int)
	OnTick         func(took time.Duration, pawns, projectiles int)
}

// JoinOptions configures a new pawn.
type JoinOptions struct {
	Location *vmath.Vec3 // nil picks a random spawn point
	Facing   vmath.Vec3
	Loadout  []string // nil uses the catalog loadout
	Bot      bool
	// Client receives hit confirmations for a remotely controlled pawn.
	Client ability.ClientLink
}

// Engine is the authoritative arena: it owns the world, the pawns and their
// ability systems, and advances them on a fixed tick.
type Engine struct {
	mu      sync.RWMutex
	cfg     config.AppConfig
	catalog *catalog.Catalog
	logger  zerolog.Logger
	bounds  world.Bounds

	space       *world.Space
	effects     *effect.MemoryEngine
	validator   *projectile.Validator
	spawner     *projectile.Spawner
	projectiles *projectile.Manager
	areas       *areaeffect.Resolver
	fields      []*areaeffect.Field

	pawns    map[world.EntityID]*Pawn
	order    []world.EntityID // join order, for deterministic iteration
	attached map[world.EntityID]world.EntityID

	// Effect executions are queued by the listener and settled under e.mu
	appliedMu sync.Mutex
	applied   []effect.Applied

	scoreboard *Scoreboard
	snapshots  snapshotStore
	hooks      Hooks

	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}

	// Stats
	tickCount  uint64
	now        float64
	totalKills int

	// Event sourcing for replay and debugging
	eventLog *EventLog

	// Deterministic RNG for replay consistency
	rng     *rand.Rand
	rngSeed int64
}

// NewEngine creates an arena from configuration and catalog.
func NewEngine(cfg config.AppConfig, cat *catalog.Catalog, logger zerolog.Logger) *Engine {
	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	bounds := world.Bounds{MinX: cfg.World.MinX, MinY: cfg.World.MinY, MaxX: cfg.World.MaxX, MaxY: cfg.World.MaxY}
	logger = logger.With().Str("component", "engine").Logger()

	e := &Engine{
		cfg:        cfg,
		catalog:    cat,
		logger:     logger,
		bounds:     bounds,
		space:      world.NewSpace(bounds, cfg.World.CellSize, cfg.World.MaxBodies),
		effects:    effect.NewMemoryEngine(),
		pawns:      make(map[world.EntityID]*Pawn),
		attached:   make(map[world.EntityID]world.EntityID),
		scoreboard: NewScoreboard(),
		stopChan:   make(chan struct{}),
		eventLog:   NewEventLog(logger),
		rng:        rand.New(rand.NewSource(seed)),
		rngSeed:    seed,
	}
	e.validator = projectile.NewValidator(logger,
		projectile.WithMaxLaunchDistance(cfg.Combat.MaxLaunchDistance),
		projectile.WithMinFacingDot(cfg.Combat.MinLaunchFacingDot),
	)
	e.spawner = projectile.NewSpawner(e.space.NewEntity)
	e.projectiles = projectile.NewManager(e.space, bounds, cfg.Combat.MaxProjectiles, e.onImpact)
	e.projectiles.OnExpire(e.onProjectileExpired)
	e.areas = areaeffect.NewResolver(e.space, e.effects, logger)
	e.effects.SetListener(e.queueApplied)
	return e
}

// Start begins the game loop
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.mu.Unlock()

	e.ticker = time.NewTicker(e.cfg.Simulation.TickInterval())
	dt := e.cfg.Simulation.TickInterval().Seconds()

	go func() {
		for {
			select {
			case <-e.ticker.C:
				e.Step(dt)
			case <-e.stopChan:
				return
			}
		}
	}()

	e.logger.Info().Int("tickRate", e.cfg.Simulation.TickRate).Msg("game engine started")
}

// Stop stops the game loop
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}

	e.running = false
	if e.ticker != nil {
		e.ticker.Stop()
	}
	close(e.stopChan)
	e.logger.Info().Uint64("ticks", e.tickCount).Msg("game engine stopped")
}

// Step advances the simulation by dt seconds. The loop calls it every tick;
// tests drive it directly.
func (e *Engine) Step(dt float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.step(dt)
}

func (e *Engine) step(dt float64) {
	start := time.Now()
	e.tickCount++
	e.now += dt

	// Log tick event with RNG seed for deterministic replay
	e.eventLog.EmitSimple(EventTypeTick, e.tickCount, world.NoEntity,
		TickPayload{
			RNGSeed:     e.rngSeed,
			PawnCount:   len(e.order),
			Projectiles: e.projectiles.Len(),
			DeltaTimeNs: int64(dt * 1e9),
		})

	// Advance RNG seed deterministically for next tick
	e.rngSeed = e.rng.Int63()
	e.rng.Seed(e.rngSeed)

	for _, id := range e.order {
		p := e.pawns[id]
		if !p.Alive() {
			e.tickRespawn(p, dt)
			continue
		}
		if p.Bot {
			e.updateBot(p, dt)
		}
		if inst, ok := p.activeWeapon(); ok {
			if w, ok := inst.Weapon(); ok {
				w.Tick(e.now, dt, p.Movement)
			}
		}
		p.Abilities.Tick()
	}

	e.projectiles.Tick(dt)
	e.updateFields(dt)
	e.effects.Tick(dt)
	e.settle()

	e.produceSnapshot()

	if e.hooks.OnTick != nil {
		e.hooks.OnTick(time.Since(start), len(e.order), e.projectiles.Len())
	}
}

func (e *Engine) clock() float64 { return e.now }

// spawnPoint picks a deterministic spawn within 80% of the world bounds.
func (e *Engine) spawnPoint() vmath.Vec3 {
	w := e.bounds.MaxX - e.bounds.MinX
	h := e.bounds.MaxY - e.bounds.MinY
	return vmath.V(
		e.bounds.MinX+w*(0.1+0.8*e.rng.Float64()),
		e.bounds.MinY+h*(0.1+0.8*e.rng.Float64()),
		0,
	)
}

func (e *Engine) center() vmath.Vec3 {
	return vmath.V((e.bounds.MinX+e.bounds.MaxX)/2, (e.bounds.MinY+e.bounds.MaxY)/2, 0)
}

// =============================================================================
// PAWN LIFECYCLE
// =============================================================================

// Join adds a pawn, equips its loadout and returns its id.
func (e *Engine) Join(name string, opts JoinOptions) (world.EntityID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// HARD CAP: Prevent DoS via pawn flooding
	if len(e.pawns) >= e.cfg.Server.MaxPawns {
		e.logger.Warn().Int("max", e.cfg.Server.MaxPawns).Str("name", name).Msg("pawn limit reached, rejecting")
		return world.NoEntity, ErrArenaFull
	}

	loadout := opts.Loadout
	if loadout == nil {
		loadout = e.catalog.Loadout()
	}
	defs := make([]*equipment.Definition, 0, len(loadout))
	for _, id := range loadout {
		def, ok := e.catalog.Definition(id)
		if !ok {
			return world.NoEntity, errors.Wrapf(catalog.ErrUnknownEquipment, "%q", id)
		}
		defs = append(defs, def)
	}

	loc := e.spawnPoint()
	if opts.Location != nil {
		loc = clampToBounds(*opts.Location, e.bounds)
	}
	facing := opts.Facing.Normalize()
	if facing.IsZero() {
		facing = vmath.V(1, 0, 0)
	}

	p := &Pawn{
		ID:         e.space.NewEntity(),
		Name:       name,
		Location:   loc,
		Facing:     facing,
		View:       facing,
		Bot:        opts.Bot,
		State:      StateAlive,
		Aggression: 0.5 + e.rng.Float64()*0.5, // 0.5 to 1.0
	}
	p.Abilities = ability.NewSystem(ability.Options{
		Owner:             p.ID,
		Role:              ability.RoleAuthority,
		LocallyControlled: opts.Bot,
		Sets:              e.catalog,
		Env: ability.Env{
			Tracer:        e.space,
			Effects:       e.effects,
			Validator:     e.validator,
			Spawner:       e.spawner,
			Launch:        e.projectiles.Add,
			Viewpoint:     p.viewpoint,
			Pose:          p.pose,
			Rand:          e.rng,
			FocalDistance: e.cfg.Combat.FocalDistance,
		},
		Client:            opts.Client,
		Clock:             e.clock,
		CorrelationWindow: e.cfg.Combat.CorrelationWindow,
		Observer:          e.onAbilityEvent,
		Logger:            e.logger,
	})

	e.pawns[p.ID] = p
	e.order = append(e.order, p.ID)
	e.space.AddBody(pawnBody(p))
	e.effects.Register(p.ID, e.cfg.Combat.MaxHealth)

	p.Ledger = equipment.NewLedger(equipment.LedgerOptions{
		Owner:        p.ID,
		Authority:    true,
		Factory:      equipment.Factory{Spawner: actorSpawner{e}},
		Granter:      p.Abilities,
		Clock:        e.clock,
		LogRetention: e.cfg.Combat.LedgerLogRetention,
		Logger:       e.logger,
	})
	size := e.cfg.Combat.QuickBarSize
	if len(defs) > size {
		size = len(defs)
	}
	p.QuickBar = equipment.NewQuickBar(p.Ledger, size)
	for _, def := range defs {
		if _, err := p.QuickBar.AddItem(def); err != nil {
			e.removePawn(p)
			return world.NoEntity, errors.Wrapf(err, "equip %s", def.ID)
		}
	}
	if len(defs) > 0 {
		if err := p.QuickBar.SetActiveSlot(0); err != nil {
			e.removePawn(p)
			return world.NoEntity, err
		}
	}
	p.QuickBar.OnActiveChanged = func(_, next int) { e.onSlotChanged(p, next) }
	p.Skills = ability.NewSkillBook(p.Abilities, e.catalog.Skills())
	e.scoreboard.Update(p.ID, p.Name, 0, 0)

	// Log join event for audit trail
	e.eventLog.EmitSimple(EventTypePawnJoin, e.tickCount, p.ID,
		PawnJoinPayload{
			Name:    p.Name,
			SpawnX:  p.Location.X,
			SpawnY:  p.Location.Y,
			Loadout: loadout,
			Bot:     p.Bot,
		})

	e.logger.Info().Uint32("pawn", uint32(p.ID)).Str("name", name).Bool("bot", p.Bot).Msg("pawn joined")
	return p.ID, nil
}

// Leave removes a pawn and everything it owns.
func (e *Engine) Leave(id world.EntityID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.pawns[id]
	if !ok {
		return errors.Wrapf(ErrUnknownPawn, "%d", id)
	}
	e.removePawn(p)
	e.eventLog.EmitSimple(EventTypePawnLeave, e.tickCount, id, nil)
	e.logger.Info().Uint32("pawn", uint32(id)).Str("name", p.Name).Msg("pawn left")
	return nil
}

func (e *Engine) removePawn(p *Pawn) {
	for _, spec := range p.Abilities.Specs() {
		p.Abilities.CancelActivation(spec.Handle)
	}
	if p.Ledger != nil {
		p.Ledger.Uninitialize()
	}
	e.space.RemoveEntity(p.ID)
	e.effects.Unregister(p.ID)
	e.scoreboard.Remove(p.ID)
	delete(e.pawns, p.ID)
	for i, id := range e.order {
		if id == p.ID {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

func pawnBody(p *Pawn) world.Body {
	return world.Body{
		Entity:    p.ID,
		Kind:      world.KindPawn,
		Response:  world.Block,
		Center:    p.Location,
		Radius:    PawnRadius,
		Material:  "flesh",
		Combatant: true,
	}
}

func actorBody(p *Pawn, a attachedActor) world.Body {
	return world.Body{
		Entity:     a.id,
		Kind:       world.KindStatic,
		Response:   world.Block,
		Center:     p.Location.Add(a.spec.Offset),
		Radius:     a.spec.Radius,
		Material:   a.spec.Material,
		Owner:      p.ID,
		AttachedTo: p.ID,
	}
}

// actorSpawner places equipment actors as bodies attached to their pawn. It runs
// inside ledger calls, so e.mu is already held.
type actorSpawner struct{ e *Engine }

func (s actorSpawner) SpawnAttached(owner world.EntityID, spec equipment.ActorSpec) world.EntityID {
	e := s.e
	id := e.space.NewEntity()
	e.attached[id] = owner
	if p, ok := e.pawns[owner]; ok {
		a := attachedActor{id: id, spec: spec}
		p.actors = append(p.actors, a)
		if p.Alive() {
			e.space.AddBody(actorBody(p, a))
		}
	}
	return id
}

func (s actorSpawner) Despawn(id world.EntityID) {
	e := s.e
	e.space.RemoveEntity(id)
	owner := e.attached[id]
	delete(e.attached, id)
	if p, ok := e.pawns[owner]; ok {
		for i, a := range p.actors {
			if a.id == id {
				p.actors = append(p.actors[:i], p.actors[i+1:]...)
				break
			}
		}
	}
}

// place moves the pawn's bodies to its location.
func (e *Engine) place(p *Pawn) {
	e.space.MoveEntity(p.ID, p.Location)
	for _, a := range p.actors {
		e.space.MoveEntity(a.id, p.Location.Add(a.spec.Offset))
	}
}

// kill handles a pawn whose health reached zero.
func (e *Engine) kill(victim *Pawn, killerID world.EntityID) {
	for _, spec := range victim.Abilities.Specs() {
		victim.Abilities.CancelActivation(spec.Handle)
	}
	victim.die()
	e.space.RemoveEntity(victim.ID)
	for _, a := range victim.actors {
		e.space.RemoveEntity(a.id)
	}
	e.effects.Unregister(victim.ID)
	e.totalKills++

	killerKills := 0
	if killer, ok := e.pawns[killerID]; ok && killer != victim {
		killer.Kills++
		killerKills = killer.Kills
		e.scoreboard.Update(killer.ID, killer.Name, killer.Kills, killer.Deaths)
	}
	e.scoreboard.Update(victim.ID, victim.Name, victim.Kills, victim.Deaths)

	// Log kill event for audit trail
	e.eventLog.EmitSimple(EventTypeKill, e.tickCount, killerID,
		KillPayload{
			KillerID:     killerID,
			VictimID:     victim.ID,
			KillerKills:  killerKills,
			VictimDeaths: victim.Deaths,
		})
	e.logger.Info().Uint32("victim", uint32(victim.ID)).Uint32("killer", uint32(killerID)).Msg("pawn killed")
}

func (e *Engine) tickRespawn(p *Pawn, dt float64) {
	p.RespawnTimer -= dt
	if p.RespawnTimer > 0 {
		return
	}
	p.respawn(e.spawnPoint())
	e.effects.Register(p.ID, e.cfg.Combat.MaxHealth)
	e.space.AddBody(pawnBody(p))
	for _, a := range p.actors {
		e.space.AddBody(actorBody(p, a))
	}
	for _, slot := range p.Ledger.Slots() {
		if entry, ok := p.Ledger.Entry(slot); ok {
			if w, ok := entry.Instance.Weapon(); ok {
				w.Restock()
			}
		}
	}
}

func (e *Engine) updateBot(p *Pawn, dt float64) {
	target := p.findTarget(e.space, e.pawns, e.order)
	if target != nil {
		p.target = target.ID
		p.combatBehavior(target, e.now, dt, e.rng)
	} else {
		p.target = world.NoEntity
		p.wander(e.center(), dt, e.rng)
	}
	p.integrate(dt, e.bounds)
	e.place(p)
}

// =============================================================================
// COMBAT RESOLUTION
// =============================================================================

func (e *Engine) onImpact(p *projectile.Projectile, hit world.Hit) {
	if !p.HasDamage || !hit.IsPawn() {
		return
	}
	target := hit.PawnEntity()
	if target == p.Owner {
		return
	}
	if _, err := e.effects.Apply(p.DamageAt(hit), target); err != nil {
		e.logger.Debug().Err(err).Uint32("target", uint32(target)).Msg("projectile damage not applied")
	}
}

func (e *Engine) onProjectileExpired(p *projectile.Projectile) {
	if p.AreaEffect == nil {
		return
	}
	t := areaeffect.Trigger{
		Config:     p.AreaEffect,
		Origin:     p.Location,
		Instigator: p.Owner,
		Causer:     p.Entity,
	}
	if v, ok := p.Damage.SetByCaller[effect.SetByCallerCharge]; ok {
		t.SetByCaller = map[string]float64{effect.SetByCallerCharge: v}
	}
	e.triggerArea(t)
}

// triggerArea explodes or spawns a field for t.
func (e *Engine) triggerArea(t areaeffect.Trigger) {
	payload := AreaPayload{Area: t.Config.ID, X: t.Origin.X, Y: t.Origin.Y, Z: t.Origin.Z, Field: t.Config.IsField()}

	if payload.Field {
		f, err := e.areas.SpawnField(t)
		if err != nil {
			e.logger.Warn().Err(err).Str("area", t.Config.ID).Msg("field not spawned")
			return
		}
		e.fields = append(e.fields, f)
	} else {
		results, err := e.areas.Explode(t)
		if err != nil {
			e.logger.Warn().Err(err).Str("area", t.Config.ID).Msg("explosion not resolved")
			return
		}
		for _, r := range results {
			if r.Applied {
				payload.Applied++
			}
		}
	}

	e.eventLog.EmitSimple(EventTypeArea, e.tickCount, t.Instigator, payload)
	if e.hooks.OnArea != nil {
		e.hooks.OnArea(payload.Area, payload.Field, payload.Applied)
	}
}

// updateFields ages lingering areas (zero-allocation in-place filtering)
func (e *Engine) updateFields(dt float64) {
	n := 0
	for _, f := range e.fields {
		if f.Update(dt) {
			e.fields[n] = f
			n++
		}
	}
	for i := n; i < len(e.fields); i++ {
		e.fields[i] = nil
	}
	e.fields = e.fields[:n]
}

// queueApplied is the effect listener. It may run with or without e.mu held,
// so it only queues.
func (e *Engine) queueApplied(a effect.Applied) {
	e.appliedMu.Lock()
	e.applied = append(e.applied, a)
	e.appliedMu.Unlock()
}

// settle journals queued effect executions and resolves kills. Caller holds e.mu.
func (e *Engine) settle() {
	for {
		e.appliedMu.Lock()
		batch := e.applied
		e.applied = nil
		e.appliedMu.Unlock()
		if len(batch) == 0 {
			return
		}

		for _, a := range batch {
			e.eventLog.EmitSimple(EventTypeDamage, e.tickCount, a.Instigator,
				DamagePayload{
					Instigator: a.Instigator,
					Victim:     a.Target,
					Causer:     a.Causer,
					Template:   a.Template,
					Magnitude:  a.Magnitude,
					VictimHP:   a.Health,
				})
			if e.hooks.OnApplied != nil {
				e.hooks.OnApplied(a)
			}
			if !a.Killed {
				continue
			}
			if victim, ok := e.pawns[a.Target]; ok && victim.Alive() {
				e.kill(victim, a.Instigator)
			}
		}
	}
}

// onAbilityEvent journals ability protocol progress. Caller holds e.mu.
func (e *Engine) onAbilityEvent(ev ability.Event) {
	var t EventType
	switch ev.Kind {
	case ability.EventActivated:
		t = EventTypeActivation
	case ability.EventCommitted:
		t = EventTypeCommit
	case ability.EventConfirmed:
		t = EventTypeConfirm
	case ability.EventRejected:
		t = EventTypeReject
	case ability.EventDropped:
		t = EventTypeDrop
	}
	if t != EventTypeUnknown {
		payload := AbilityPayload{
			Spec:    uint32(ev.Spec),
			Ability: ev.Ability,
			Key:     uint32(ev.Key),
			State:   ev.State.String(),
			Reason:  ev.Reason,
			Targets: ev.Targets,
		}
		if !ev.Correlation.IsZero() {
			payload.Correlation = ev.Correlation.String()
		}
		e.eventLog.EmitSimple(t, e.tickCount, ev.Owner, payload)
	}
	if e.hooks.OnAbilityEvent != nil {
		e.hooks.OnAbilityEvent(ev)
	}
}

func (e *Engine) onSlotChanged(p *Pawn, slot int) {
	payload := SlotPayload{Slot: slot}
	if entry, ok := p.Ledger.Entry(slot); ok {
		payload.Definition = entry.Definition.ID
	}
	p.charging = false
	e.eventLog.EmitSimple(EventTypeSlot, e.tickCount, p.ID, payload)
}

// =============================================================================
// CLIENT OPERATIONS
// =============================================================================

// pawn returns a pawn by id. Caller holds e.mu.
func (e *Engine) pawn(id world.EntityID) (*Pawn, error) {
	p, ok := e.pawns[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownPawn, "%d", id)
	}
	return p, nil
}

// livePawn returns a pawn that can act. Caller holds e.mu.
func (e *Engine) livePawn(id world.EntityID) (*Pawn, error) {
	p, err := e.pawn(id)
	if err != nil {
		return nil, err
	}
	if !p.Alive() {
		return nil, errors.Wrapf(ErrPawnDead, "%d", id)
	}
	return p, nil
}

// Move applies a client's reported pose and movement state.
func (e *Engine) Move(id world.EntityID, m protocol.Move) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.livePawn(id)
	if err != nil {
		return err
	}
	p.Location = clampToBounds(m.Location, e.bounds)
	p.face(m.Facing)
	if v := m.View.Normalize(); !v.IsZero() {
		p.View = v
	}
	p.Movement.Speed = m.Speed
	p.Movement.Crouching = m.Crouching
	p.Movement.Airborne = m.Airborne
	p.Movement.AimAlpha = vmath.Clamp(m.AimAlpha, 0, 1)
	e.place(p)
	return nil
}

// Activate forwards a client activation request to the pawn's ability system.
func (e *Engine) Activate(id world.EntityID, req ability.ActivationRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.livePawn(id)
	if err != nil {
		return err
	}
	p.Abilities.ReceiveActivation(req)
	e.settle()
	return nil
}

// SubmitTargetData forwards client target data. The owner is always the session's pawn.
func (e *Engine) SubmitTargetData(id world.EntityID, sub ability.Submission) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.livePawn(id)
	if err != nil {
		return err
	}
	sub.Owner = id
	p.Abilities.ReceiveTargetData(sub)
	e.settle()
	return nil
}

// Cancel ends the running activation of a spec.
func (e *Engine) Cancel(id world.EntityID, spec ability.SpecHandle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.pawn(id)
	if err != nil {
		return err
	}
	p.Abilities.CancelActivation(spec)
	return nil
}

// SelectSlot makes a quick bar slot active.
func (e *Engine) SelectSlot(id world.EntityID, slot int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.livePawn(id)
	if err != nil {
		return err
	}
	return p.QuickBar.SetActiveSlot(slot)
}

// Reload refills the active weapon's magazine and returns the rounds moved.
func (e *Engine) Reload(id world.EntityID) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.livePawn(id)
	if err != nil {
		return 0, err
	}
	inst, ok := p.activeWeapon()
	if !ok {
		return 0, ErrNoActiveWeapon
	}
	w, ok := inst.Weapon()
	if !ok {
		return 0, ErrNoActiveWeapon
	}
	return w.Reload(), nil
}

// OfferSkills draws up to n selectable skills for the pawn.
func (e *Engine) OfferSkills(id world.EntityID, n int) ([]ability.Skill, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.livePawn(id)
	if err != nil {
		return nil, err
	}
	offered := p.Skills.Offer(n, e.rng)
	out := make([]ability.Skill, 0, len(offered))
	for _, s := range offered {
		out = append(out, *s)
	}
	return out, nil
}

// ChooseSkill takes a skill; granted abilities bind to the active weapon.
func (e *Engine) ChooseSkill(id world.EntityID, skill string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.livePawn(id)
	if err != nil {
		return err
	}
	inst, ok := p.activeWeapon()
	if !ok {
		return ErrNoActiveWeapon
	}
	if err := p.Skills.Choose(skill, inst); err != nil {
		return err
	}
	e.eventLog.EmitSimple(EventTypeSkill, e.tickCount, id, SkillPayload{Skill: skill})
	return nil
}

// Specs lists the pawn's granted abilities.
func (e *Engine) Specs(id world.EntityID) ([]protocol.SpecInfo, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	p, err := e.pawn(id)
	if err != nil {
		return nil, err
	}
	return protocol.SpecsOf(p.Abilities), nil
}

// LedgerDelta returns the equipment changes since version.
func (e *Engine) LedgerDelta(id world.EntityID, since uint64) (equipment.Delta, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	p, err := e.pawn(id)
	if err != nil {
		return equipment.Delta{}, err
	}
	return p.Ledger.DeltaSince(since), nil
}

// Pawn returns a copy of one pawn's state.
func (e *Engine) Pawn(id world.EntityID) (PawnSnapshot, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	p, ok := e.pawns[id]
	if !ok {
		return PawnSnapshot{}, false
	}
	return e.pawnSnapshot(p), true
}

// =============================================================================
// ACCESSORS
// =============================================================================

// SetHooks replaces the simulation observers.
func (e *Engine) SetHooks(h Hooks) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hooks = h
}

// Snapshot returns the latest published arena state (lock-free).
func (e *Engine) Snapshot() *GameSnapshot {
	return e.snapshots.load()
}

// Scoreboard returns the live scoreboard.
func (e *Engine) Scoreboard() *Scoreboard {
	return e.scoreboard
}

// EventLog returns the combat journal.
func (e *Engine) EventLog() *EventLog {
	return e.eventLog
}

// StartEventLog attaches an optional sink and starts the journal writer.
func (e *Engine) StartEventLog(filePath string, sink Sink) error {
	if sink != nil {
		e.eventLog.SetSink(sink)
	}
	return e.eventLog.Start(filePath)
}

// StopEventLog gracefully stops the event logging system
func (e *Engine) StopEventLog() {
	e.eventLog.Stop()
}

// EngineStats is a point-in-time view for monitoring
type EngineStats struct {
	Tick        uint64          `json:"tick"`
	SimTime     float64         `json:"simTime"`
	Pawns       int             `json:"pawns"`
	Alive       int             `json:"alive"`
	Projectiles int             `json:"projectiles"`
	Fields      int             `json:"fields"`
	TotalKills  int             `json:"totalKills"`
	Grid        world.GridStats `json:"grid"`
	EventLog    EventLogStats   `json:"eventLog"`
}

// Stats returns engine counters.
func (e *Engine) Stats() EngineStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	alive := 0
	for _, p := range e.pawns {
		if p.Alive() {
			alive++
		}
	}
	return EngineStats{
		Tick:        e.tickCount,
		SimTime:     e.now,
		Pawns:       len(e.pawns),
		Alive:       alive,
		Projectiles: e.projectiles.Len(),
		Fields:      len(e.fields),
		TotalKills:  e.totalKills,
		Grid:        e.space.Stats(),
		EventLog:    e.eventLog.GetStats(),
	}
}
