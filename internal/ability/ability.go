package ability

import (
	"arena-combat/internal/effect"
	"arena-combat/internal/equipment"
	"arena-combat/internal/projectile"
	"arena-combat/internal/targeting"
	"arena-combat/internal/weapon"
	"arena-combat/internal/world"
)

// Ability is one kind of weapon action. Implementations are stateless; per-activation
// state lives on the Activation and per-weapon state on the weapon instance.
type Ability interface {
	Name() string
	// Supports reports whether w can drive the ability.
	Supports(w *weapon.Instance) bool
	// Target runs the local targeting pass. ready is false while the ability waits
	// for the input to be released.
	Target(a *Activation) (data TargetData, ready bool, err error)
	// Release turns an input release into target data.
	Release(a *Activation, held float64) (TargetData, error)
	// Authorize re-checks submitted data on the authority and returns the data to act on.
	Authorize(a *Activation, data TargetData) (TargetData, error)
	// Execute performs the committed side effects.
	Execute(a *Activation, data TargetData)
	// OnEnd runs once when the activation ends.
	OnEnd(a *Activation, state State)
}

// Env is what abilities need from the simulation around them.
type Env struct {
	Tracer    world.Tracer
	Effects   effect.Engine
	Validator *projectile.Validator
	Spawner   *projectile.Spawner
	// Launch hands a finished projectile to the simulation. False means it was refused.
	Launch func(p *projectile.Projectile) bool
	// Viewpoint returns the current aim inputs of the owning pawn.
	Viewpoint func() targeting.Viewpoint
	// Pose returns where the authority believes the owning pawn is.
	Pose          func() projectile.Pose
	Rand          targeting.Rand
	FocalDistance float64
}

// Grant is one ability of a set.
type Grant struct {
	Ability Ability
	Input   InputType
	Level   float64
}

// Set is a named group of abilities granted together.
type Set struct {
	Name   string
	Grants []Grant
}

// SetProvider resolves ability set names. The catalog implements it.
type SetProvider interface {
	AbilitySet(name string) (*Set, bool)
}

// Spec is a granted ability.
type Spec struct {
	Handle  SpecHandle
	Ability Ability
	Input   InputType
	// Level feeds the level of the damage effects the ability applies. Upgrades
	// raise it and survive slot switches because specs are never recreated.
	Level  float64
	Source *equipment.Instance
	Set    string

	blocked   bool
	active    *Activation
	lastEnded PredictionKey
}

// Blocked reports whether input is blocked.
func (s *Spec) Blocked() bool { return s.blocked }

// Active returns the unfinished activation, if any.
func (s *Spec) Active() (*Activation, bool) {
	if s.active == nil {
		return nil, false
	}
	return s.active, true
}

// Weapon returns the weapon of the source instance.
func (s *Spec) Weapon() (*weapon.Instance, bool) {
	if s.Source == nil {
		return nil, false
	}
	return s.Source.Weapon()
}

// EventKind classifies System events.
type EventKind uint8

const (
	EventActivated EventKind = iota
	EventCommitted
	EventEnded
	EventConfirmed
	EventRejected
	EventDropped
)

func (k EventKind) String() string {
	switch k {
	case EventActivated:
		return "activated"
	case EventCommitted:
		return "committed"
	case EventEnded:
		return "ended"
	case EventConfirmed:
		return "confirmed"
	case EventRejected:
		return "rejected"
	case EventDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Event reports protocol progress to observers (journal, metrics).
type Event struct {
	Kind        EventKind
	Owner       world.EntityID
	Spec        SpecHandle
	Ability     string
	Key         PredictionKey
	Correlation CorrelationID
	State       State
	Reason      string
	Targets     []world.EntityID
}
