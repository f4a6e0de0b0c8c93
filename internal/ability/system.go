package ability

import (
	"sort"

	"arena-combat/internal/equipment"
	"arena-combat/internal/hitscan"
	"arena-combat/internal/world"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	DefaultCorrelationWindow = 128
	// DefaultAwaitTimeout is how long the authority waits for a remote client's
	// target data, on top of the weapon's max charge time.
	DefaultAwaitTimeout = 2.0
)

// Options configures a System.
type Options struct {
	Owner world.EntityID
	Role  Role
	// LocallyControlled is true for the endpoint that produces target data: the
	// owning client, or the authority for server-driven pawns.
	LocallyControlled bool

	Sets   SetProvider
	Env    Env
	Server ServerLink
	Client ClientLink
	Clock  func() float64

	CorrelationWindow int
	MaxBuffered       int
	MaxMarkers        int
	AwaitTimeout      float64

	Observer func(Event)
	Logger   zerolog.Logger
}

// System owns the granted abilities of one pawn and runs their activations.
// Not safe for concurrent use; the simulation owns it.
type System struct {
	owner             world.EntityID
	role              Role
	locallyControlled bool

	sets   SetProvider
	env    Env
	server ServerLink
	client ClientLink
	clock  func() float64

	specs      map[SpecHandle]*Spec
	nextHandle SpecHandle
	nextKey    PredictionKey

	bus          *TargetDataBus
	seen         *correlationWindow
	markers      *HitMarkers
	hits         *hitscan.Resolver
	awaitTimeout float64

	observer func(Event)
	logger   zerolog.Logger
}

// NewSystem creates a System.
func NewSystem(opts Options) *System {
	if opts.Clock == nil {
		opts.Clock = func() float64 { return 0 }
	}
	if opts.CorrelationWindow <= 0 {
		opts.CorrelationWindow = DefaultCorrelationWindow
	}
	if opts.AwaitTimeout <= 0 {
		opts.AwaitTimeout = DefaultAwaitTimeout
	}
	s := &System{
		owner:             opts.Owner,
		role:              opts.Role,
		locallyControlled: opts.LocallyControlled,
		sets:              opts.Sets,
		env:               opts.Env,
		server:            opts.Server,
		client:            opts.Client,
		clock:             opts.Clock,
		specs:             make(map[SpecHandle]*Spec),
		bus:               NewTargetDataBus(opts.MaxBuffered),
		seen:              newCorrelationWindow(opts.CorrelationWindow),
		markers:           NewHitMarkers(opts.MaxMarkers),
		awaitTimeout:      opts.AwaitTimeout,
		observer:          opts.Observer,
		logger: opts.Logger.With().
			Str("component", "ability").
			Uint32("owner", uint32(opts.Owner)).
			Str("role", opts.Role.String()).
			Logger(),
	}
	if opts.Env.Tracer != nil {
		s.hits = hitscan.NewResolver(opts.Env.Tracer)
	}
	return s
}

func (s *System) Owner() world.EntityID     { return s.owner }
func (s *System) Role() Role                { return s.role }
func (s *System) Env() *Env                 { return &s.env }
func (s *System) Bus() *TargetDataBus       { return s.bus }
func (s *System) Markers() *HitMarkers      { return s.markers }
func (s *System) IsAuthoritative() bool     { return s.role == RoleAuthority }
func (s *System) IsLocallyControlled() bool { return s.locallyControlled }

// SetLinks attaches the transport after construction.
func (s *System) SetLinks(server ServerLink, client ClientLink) {
	s.server = server
	s.client = client
}

// SetObserver replaces the event observer.
func (s *System) SetObserver(fn func(Event)) { s.observer = fn }

func (s *System) emit(e Event) {
	if s.observer == nil {
		return
	}
	e.Owner = s.owner
	s.observer(e)
}

// Grant implements equipment.Granter. Handles are allocated sequentially, so two
// systems granting the same sets in the same order agree on them.
func (s *System) Grant(sets []string, source *equipment.Instance) (equipment.GrantSet, error) {
	if s.sets == nil {
		return equipment.GrantSet{}, errors.Wrap(ErrUnknownSet, "no ability set provider")
	}
	resolved := make([]*Set, 0, len(sets))
	for _, name := range sets {
		set, ok := s.sets.AbilitySet(name)
		if !ok {
			return equipment.GrantSet{}, errors.Wrapf(ErrUnknownSet, "set %q", name)
		}
		resolved = append(resolved, set)
	}

	var g equipment.GrantSet
	for _, set := range resolved {
		for _, gr := range set.Grants {
			s.nextHandle++
			level := gr.Level
			if level <= 0 {
				level = 1
			}
			spec := &Spec{
				Handle:  s.nextHandle,
				Ability: gr.Ability,
				Input:   gr.Input,
				Level:   level,
				Source:  source,
				Set:     set.Name,
			}
			s.specs[spec.Handle] = spec
			g.Handles = append(g.Handles, uint32(spec.Handle))
		}
	}
	s.logger.Debug().Strs("sets", sets).Int("granted", len(g.Handles)).Msg("abilities granted")
	return g, nil
}

// Revoke implements equipment.Granter. Running activations are cancelled.
func (s *System) Revoke(g equipment.GrantSet) {
	for _, h := range g.Handles {
		spec, ok := s.specs[SpecHandle(h)]
		if !ok {
			continue
		}
		if spec.active != nil {
			spec.active.Cancel()
		}
		delete(s.specs, spec.Handle)
	}
}

// SetInputBlocked implements equipment.Granter. Blocking cancels running activations.
func (s *System) SetInputBlocked(g equipment.GrantSet, blocked bool) {
	for _, h := range g.Handles {
		spec, ok := s.specs[SpecHandle(h)]
		if !ok {
			continue
		}
		spec.blocked = blocked
		if blocked && spec.active != nil {
			spec.active.Cancel()
		}
	}
}

// Spec returns a granted spec.
func (s *System) Spec(h SpecHandle) (*Spec, bool) {
	spec, ok := s.specs[h]
	return spec, ok
}

// Specs returns all granted specs in handle order.
func (s *System) Specs() []*Spec {
	out := make([]*Spec, 0, len(s.specs))
	for _, spec := range s.specs {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}

// SpecForInput returns the first unblocked spec bound to input.
func (s *System) SpecForInput(input InputType) (SpecHandle, bool) {
	for _, spec := range s.Specs() {
		if !spec.blocked && spec.Input == input {
			return spec.Handle, true
		}
	}
	return 0, false
}

// UpgradeAbility raises the level of every spec running the named ability.
func (s *System) UpgradeAbility(name string, delta float64) int {
	n := 0
	for _, spec := range s.specs {
		if spec.Ability.Name() == name {
			spec.Level += delta
			n++
		}
	}
	return n
}

// TryActivate starts an activation of the spec. The locally controlled endpoint
// passes a zero key and gets a fresh one; the authority uses the client's key.
func (s *System) TryActivate(h SpecHandle, req ActivationRequest) (*Activation, error) {
	spec, ok := s.specs[h]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownSpec, "handle %d", h)
	}
	if s.role == RoleSimulated {
		return nil, ErrNotLocallyControlled
	}
	if spec.blocked {
		return nil, ErrInputBlocked
	}
	if spec.active != nil {
		if s.locallyControlled || req.Key <= spec.active.key {
			return nil, ErrAlreadyActive
		}
		// A newer remote key supersedes an activation whose data never arrived.
		spec.active.Cancel()
	}

	w, ok := spec.Weapon()
	if !ok || !spec.Ability.Supports(w) {
		s.logger.Error().
			Str("ability", spec.Ability.Name()).
			Uint32("spec", uint32(h)).
			Msg("activation blocked: no suitable weapon instance")
		return nil, ErrNoWeapon
	}

	req.Spec = h
	if s.locallyControlled {
		s.nextKey++
		req.Key = s.nextKey
	} else if req.Key == 0 || req.Key <= spec.lastEnded {
		s.emit(Event{Kind: EventDropped, Spec: h, Key: req.Key, Reason: "stale_key"})
		return nil, errors.Wrapf(ErrStaleKey, "key %d", req.Key)
	}

	now := s.clock()
	a := &Activation{
		sys:     s,
		spec:    spec,
		key:     req.Key,
		req:     req,
		weapon:  w,
		state:   StateActivating,
		started: now,
	}
	spec.active = a
	a.sub = s.bus.Subscribe(h, a.key, a.onTargetData)
	w.UpdateFiringTime(now)
	s.emit(Event{Kind: EventActivated, Spec: h, Ability: spec.Ability.Name(), Key: a.key, State: a.state})
	s.logger.Debug().Str("ability", spec.Ability.Name()).Uint32("key", uint32(a.key)).Msg("activating")

	if !s.locallyControlled {
		a.state = StateAwaitingTargetData
		a.sub.Flush()
		return a, nil
	}

	if s.role == RoleAutonomous && s.server != nil {
		s.server.RequestActivation(s.owner, req)
	}

	data, ready, err := spec.Ability.Target(a)
	if err != nil {
		s.logger.Error().Err(err).Str("ability", spec.Ability.Name()).Msg("targeting failed")
		a.fail(err)
		return a, nil
	}
	if !ready {
		a.state = StateAwaitingTargetData
		return a, nil
	}
	a.onTargetData(data)
	return a, nil
}

// ReleaseInput delivers the held duration to a charging activation of spec.
func (s *System) ReleaseInput(h SpecHandle, held float64) error {
	spec, ok := s.specs[h]
	if !ok {
		return errors.Wrapf(ErrUnknownSpec, "handle %d", h)
	}
	a := spec.active
	if a == nil || a.state != StateAwaitingTargetData || !s.locallyControlled {
		return nil
	}
	data, err := spec.Ability.Release(a, held)
	if err != nil {
		a.fail(err)
		return err
	}
	a.onTargetData(data)
	return nil
}

// CancelActivation cancels the running activation of spec, if any.
func (s *System) CancelActivation(h SpecHandle) {
	if spec, ok := s.specs[h]; ok && spec.active != nil {
		spec.active.Cancel()
	}
}

// ReceiveActivation is the authority's ingress for client activation requests.
func (s *System) ReceiveActivation(req ActivationRequest) {
	if s.role != RoleAuthority || s.locallyControlled {
		s.emit(Event{Kind: EventDropped, Spec: req.Spec, Key: req.Key, Reason: "not_remote_authority"})
		return
	}
	if _, err := s.TryActivate(req.Spec, req); err != nil {
		s.logger.Debug().Err(err).Uint32("spec", uint32(req.Spec)).Msg("remote activation refused")
	}
}

// ReceiveTargetData is the authority's ingress for client target data. Duplicates
// by correlation id and stale prediction keys are dropped; data that arrives
// before its activation is buffered.
func (s *System) ReceiveTargetData(sub Submission) {
	drop := func(reason string) {
		s.emit(Event{Kind: EventDropped, Spec: sub.Spec, Key: sub.Key, Correlation: sub.Data.ID, Reason: reason})
		s.logger.Debug().Str("reason", reason).Uint32("key", uint32(sub.Key)).Msg("target data dropped")
	}

	if s.role != RoleAuthority {
		drop("not_authority")
		return
	}
	if sub.Data.ID.IsZero() || sub.Data.Payload == nil {
		drop("malformed")
		return
	}
	if s.seen.seen(sub.Data.ID) {
		drop("duplicate")
		return
	}
	spec, ok := s.specs[sub.Spec]
	if !ok {
		drop("unknown_spec")
		return
	}
	if sub.Key == 0 || sub.Key <= spec.lastEnded {
		drop("stale_key")
		return
	}
	if _, err := s.bus.Publish(sub.Spec, sub.Key, sub.Data); err != nil {
		// not recorded, so a retransmit can still land once the buffer drains
		drop("buffer_full")
		return
	}
	s.seen.add(sub.Data.ID)
}

// ReceiveConfirmation is the client's ingress for hit confirmations.
func (s *System) ReceiveConfirmation(c Confirmation) {
	targets, ok := s.markers.Confirm(c)
	if !ok {
		return
	}
	s.emit(Event{Kind: EventConfirmed, Correlation: c.ID, Targets: targets})
}

// Tick cancels remote activations whose target data never arrived.
func (s *System) Tick() {
	if s.locallyControlled || s.role != RoleAuthority {
		return
	}
	now := s.clock()
	for _, spec := range s.Specs() {
		a := spec.active
		if a == nil || a.state != StateAwaitingTargetData {
			continue
		}
		limit := s.awaitTimeout
		if pm, ok := a.weapon.Projectile(); ok && pm.Charge != nil {
			limit += pm.Charge.MaxChargeTime
		}
		if now-a.started > limit {
			s.logger.Debug().Uint32("key", uint32(a.key)).Msg("target data timed out")
			a.Cancel()
		}
	}
}

// onTargetData is the target-data-ready handler of an activation. It holds the
// scope lock until it returns; End requests made meanwhile are replayed after.
func (a *Activation) onTargetData(data TargetData) {
	s := a.sys
	if a.Ended() || a.state == StateCommitting {
		return
	}
	a.lock()
	defer a.unlock()

	local := data.Clone()
	a.data = local
	a.state = StateCommitting
	s.bus.Consume(a.spec.Handle, a.key)

	ability := a.spec.Ability
	if s.role == RoleAuthority && !s.locallyControlled {
		s.commitRemote(a, local)
		return
	}

	now := s.clock()
	if err := a.weapon.Commit(now); err != nil {
		s.logger.Warn().Err(err).Str("ability", ability.Name()).Msg("commit failed")
		a.fail(err)
		return
	}
	a.weapon.AddSpread()
	s.emit(Event{Kind: EventCommitted, Spec: a.spec.Handle, Ability: ability.Name(), Key: a.key, Correlation: local.ID})
	ability.Execute(a, local)

	if s.role == RoleAutonomous && s.server != nil {
		s.server.SubmitTargetData(Submission{Owner: s.owner, Spec: a.spec.Handle, Key: a.key, Data: local})
	}
	a.End(StateCompleted)
}

// commitRemote validates, confirms and commits data submitted by the owning client.
func (s *System) commitRemote(a *Activation, submitted TargetData) {
	ability := a.spec.Ability
	validated, err := ability.Authorize(a, submitted)
	if err != nil {
		s.emit(Event{Kind: EventRejected, Spec: a.spec.Handle, Ability: ability.Name(), Key: a.key, Correlation: submitted.ID, Reason: err.Error()})
		s.confirm(submitted, TargetData{}, false)
		a.fail(err)
		return
	}

	if err := a.weapon.Commit(s.clock()); err != nil {
		s.logger.Warn().Err(err).Str("ability", ability.Name()).Msg("commit failed")
		s.confirm(submitted, TargetData{}, false)
		a.fail(err)
		return
	}
	s.confirm(submitted, validated, true)
	a.weapon.AddSpread()
	a.data = validated
	s.emit(Event{Kind: EventCommitted, Spec: a.spec.Handle, Ability: ability.Name(), Key: a.key, Correlation: submitted.ID})
	ability.Execute(a, validated)
	a.End(StateCompleted)
}

// confirm sends the hit confirmation for hit list submissions.
func (s *System) confirm(submitted, validated TargetData, valid bool) {
	client, ok := submitted.Hits()
	if !ok || s.client == nil {
		return
	}
	c := Confirmation{Owner: s.owner, ID: submitted.ID, Valid: valid}
	if valid {
		server, _ := validated.Hits()
		c.Targets, c.Replaced = compareHits(client, server)
	}
	s.client.ConfirmTargetData(c)
}

// compareHits returns the pawns the authority hit (first pawn per ray, each once)
// and the indices of client pawn hits the authority did not reproduce on the same ray.
func compareHits(client, server HitList) (targets []world.EntityID, replaced []int) {
	serverRays := server.Rays()
	for _, r := range serverRays {
		if i := hitscan.FirstPawnIndex(r.Hits); i >= 0 {
			if id := r.Hits[i].PawnEntity(); !world.Contains(targets, id) {
				targets = append(targets, id)
			}
		}
	}
	for _, cr := range client.Rays() {
		var confirmed []world.EntityID
		for _, sr := range serverRays {
			if sr.Start == cr.Start && sr.End == cr.End {
				for _, h := range sr.Hits {
					if h.IsPawn() {
						confirmed = append(confirmed, h.PawnEntity())
					}
				}
			}
		}
		for k, h := range cr.Hits {
			if h.IsPawn() && !world.Contains(confirmed, h.PawnEntity()) {
				replaced = append(replaced, cr.Index[k])
			}
		}
	}
	return targets, replaced
}

func (s *System) ended(a *Activation) {
	if a.spec.active == a {
		a.spec.active = nil
	}
	if a.key > a.spec.lastEnded {
		a.spec.lastEnded = a.key
	}
	ev := s.logger.Debug()
	if a.state == StateFailed {
		ev = s.logger.Info()
	}
	ev.Str("ability", a.spec.Ability.Name()).
		Uint32("key", uint32(a.key)).
		Str("state", a.state.String()).
		Msg("activation ended")
	reason := ""
	if a.err != nil {
		reason = a.err.Error()
	}
	s.emit(Event{Kind: EventEnded, Spec: a.spec.Handle, Ability: a.spec.Ability.Name(), Key: a.key, Correlation: a.data.ID, State: a.state, Reason: reason})
}
