// Package ability is the activation protocol for weapon abilities.
//
// An activation moves Idle -> Activating -> AwaitingTargetData -> Committing and
// ends Completed, Cancelled or Failed. The locally controlled endpoint produces
// target data and commits predictively; the authority receives the same data
// through the TargetDataBus, validates it on its own and is the only side whose
// effects count.
package ability

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrUnknownSpec          = errors.New("ability: unknown spec handle")
	ErrUnknownSet           = errors.New("ability: unknown ability set")
	ErrInputBlocked         = errors.New("ability: input is blocked")
	ErrAlreadyActive        = errors.New("ability: activation already in progress")
	ErrNoWeapon             = errors.New("ability: no suitable weapon instance")
	ErrNotLocallyControlled = errors.New("ability: endpoint cannot start activations")
	ErrWrongPayload         = errors.New("ability: target data payload does not match ability")
	ErrTooManyRays          = errors.New("ability: more rays than bullets per cartridge")
	ErrRayTooLong           = errors.New("ability: ray longer than max damage range")
	ErrNotCharging          = errors.New("ability: ability does not charge")
	ErrBufferFull           = errors.New("ability: target data buffer full")
	ErrStaleKey             = errors.New("ability: stale prediction key")
)

// Role is the network role of the endpoint running a System.
type Role uint8

const (
	RoleAuthority Role = iota
	RoleAutonomous
	RoleSimulated
)

func (r Role) String() string {
	switch r {
	case RoleAuthority:
		return "authority"
	case RoleAutonomous:
		return "autonomous"
	case RoleSimulated:
		return "simulated"
	default:
		return "unknown"
	}
}

// PredictionKey pairs a predicted activation with its authoritative twin. Zero is no key.
type PredictionKey uint32

// SpecHandle identifies a granted ability on one System.
type SpecHandle uint32

// InputType is the fire input an activation is bound to.
type InputType uint8

const (
	InputPrimary InputType = iota
	InputSecondary
)

func (i InputType) String() string {
	if i == InputSecondary {
		return "secondary"
	}
	return "primary"
}

// ParseInputType converts a catalog string. Unknown values are primary.
func ParseInputType(s string) InputType {
	if s == "secondary" {
		return InputSecondary
	}
	return InputPrimary
}

// CorrelationID tags one piece of target data for dedup and hit confirmation.
type CorrelationID uuid.UUID

// NewCorrelationID returns a random id.
func NewCorrelationID() CorrelationID { return CorrelationID(uuid.New()) }

// ParseCorrelationID parses the canonical string form.
func ParseCorrelationID(s string) (CorrelationID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return CorrelationID{}, errors.Wrap(err, "parse correlation id")
	}
	return CorrelationID(u), nil
}

func (c CorrelationID) String() string { return uuid.UUID(c).String() }

// IsZero reports whether the id was never set.
func (c CorrelationID) IsZero() bool { return uuid.UUID(c) == uuid.Nil }

func (c CorrelationID) MarshalText() ([]byte, error) { return uuid.UUID(c).MarshalText() }

func (c *CorrelationID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(c).UnmarshalText(b)
}

// State is the activation state.
type State uint8

const (
	StateIdle State = iota
	StateActivating
	StateAwaitingTargetData
	StateCommitting
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActivating:
		return "activating"
	case StateAwaitingTargetData:
		return "awaiting_target_data"
	case StateCommitting:
		return "committing"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state ends an activation.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}
