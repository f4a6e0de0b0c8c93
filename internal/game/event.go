package game

import (
	"encoding/json"
	"time"

	"arena-combat/internal/world"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeTick              // Tick boundary with RNG seed
	EventTypePawnJoin
	EventTypePawnLeave
	EventTypeActivation
	EventTypeCommit
	EventTypeConfirm
	EventTypeReject
	EventTypeDrop
	EventTypeDamage
	EventTypeKill
	EventTypeArea
	EventTypeSlot
	EventTypeSkill
)

// EventVersion for backwards compatibility in replay
const EventVersion uint8 = 1

// Event is the core event structure for the combat journal
type Event struct {
	Version   uint8          `json:"version"`   // Schema version
	Type      EventType      `json:"type"`      // Event type
	Timestamp int64          `json:"timestamp"` // Unix nano
	Sequence  uint64         `json:"sequence"`  // Monotonic sequence
	TickNum   uint64         `json:"tickNum"`   // Simulation tick this occurred in
	Pawn      world.EntityID `json:"pawn"`      // Source pawn (for rate limiting)
	Payload   []byte         `json:"payload"`   // JSON-encoded payload
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeTick:
		return "tick"
	case EventTypePawnJoin:
		return "pawn_join"
	case EventTypePawnLeave:
		return "pawn_leave"
	case EventTypeActivation:
		return "activation"
	case EventTypeCommit:
		return "commit"
	case EventTypeConfirm:
		return "confirm"
	case EventTypeReject:
		return "reject"
	case EventTypeDrop:
		return "drop"
	case EventTypeDamage:
		return "damage"
	case EventTypeKill:
		return "kill"
	case EventTypeArea:
		return "area"
	case EventTypeSlot:
		return "slot"
	case EventTypeSkill:
		return "skill"
	default:
		return "unknown"
	}
}

// Typed payloads for different event types

// TickPayload contains tick boundary information for replay
type TickPayload struct {
	RNGSeed     int64 `json:"rngSeed"`
	PawnCount   int   `json:"pawnCount"`
	Projectiles int   `json:"projectiles"`
	DeltaTimeNs int64 `json:"deltaTimeNs"`
}

// PawnJoinPayload contains pawn join details
type PawnJoinPayload struct {
	Name    string   `json:"name"`
	SpawnX  float64  `json:"spawnX"`
	SpawnY  float64  `json:"spawnY"`
	Loadout []string `json:"loadout"`
	Bot     bool     `json:"bot,omitempty"`
}

// AbilityPayload describes one step of an activation
type AbilityPayload struct {
	Spec        uint32           `json:"spec"`
	Ability     string           `json:"ability"`
	Key         uint32           `json:"key,omitempty"`
	Correlation string           `json:"correlation,omitempty"`
	State       string           `json:"state,omitempty"`
	Reason      string           `json:"reason,omitempty"`
	Targets     []world.EntityID `json:"targets,omitempty"`
}

// DamagePayload contains damage event details
type DamagePayload struct {
	Instigator world.EntityID `json:"instigator"`
	Victim     world.EntityID `json:"victim"`
	Causer     world.EntityID `json:"causer,omitempty"`
	Template   string         `json:"template"`
	Magnitude  float64        `json:"magnitude"`
	VictimHP   float64        `json:"victimHp"`
}

// KillPayload contains kill event details
type KillPayload struct {
	KillerID     world.EntityID `json:"killerId"`
	VictimID     world.EntityID `json:"victimId"`
	KillerKills  int            `json:"killerKills"`
	VictimDeaths int            `json:"victimDeaths"`
}

// AreaPayload describes a triggered area effect
type AreaPayload struct {
	Area    string  `json:"area"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Z       float64 `json:"z"`
	Field   bool    `json:"field,omitempty"`
	Applied int     `json:"applied"`
}

// SlotPayload contains a quick bar change
type SlotPayload struct {
	Slot       int    `json:"slot"`
	Definition string `json:"definition,omitempty"`
}

// SkillPayload contains a chosen skill
type SkillPayload struct {
	Skill string `json:"skill"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload interface{}) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, tickNum uint64, pawn world.EntityID, payload interface{}) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		TickNum:   tickNum,
		Pawn:      pawn,
		Payload:   EncodePayload(payload),
	}
}
