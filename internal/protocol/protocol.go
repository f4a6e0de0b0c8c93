// Package protocol defines the websocket messages exchanged between a client and
// the combat server.
//
// Every frame is a JSON Envelope: a version, an event name, a sequence number and
// the event's payload. Clients number their frames from 1 upward; a frame whose
// sequence does not advance is a replay and is dropped.
package protocol

import (
	"bytes"
	"encoding/json"

	"arena-combat/internal/ability"
	"arena-combat/internal/equipment"
	"arena-combat/internal/vmath"
	"arena-combat/internal/world"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Version is the envelope version this server speaks.
const Version uint8 = 1

// MaxFrameSize bounds an inbound frame in bytes.
const MaxFrameSize = 64 * 1024

var (
	ErrMalformed    = errors.New("protocol: malformed frame")
	ErrVersion      = errors.New("protocol: unsupported version")
	ErrNoEvent      = errors.New("protocol: missing event")
	ErrUnknownEvent = errors.New("protocol: unknown event")
	ErrTooLarge     = errors.New("protocol: frame too large")
	ErrReplay       = errors.New("protocol: sequence did not advance")
)

// Client to server events.
const (
	EventMove        = "pawn:move"
	EventActivate    = "ability:activate"
	EventTargetData  = "ability:target_data"
	EventCancel      = "ability:cancel"
	EventSelectSlot  = "equipment:select"
	EventChooseSkill = "skill:choose"
	EventReload      = "equipment:reload"
)

// Server to client events.
const (
	EventWelcome     = "session:welcome"
	EventError       = "session:error"
	EventConfirm     = "ability:confirm"
	EventLedgerDelta = "equipment:delta"
	EventSpecs       = "ability:specs"
	EventSkillOffer  = "skill:offer"
	EventState       = "game:state"
	EventReloaded    = "equipment:reloaded"
)

var inbound = map[string]struct{}{
	EventMove:        {},
	EventActivate:    {},
	EventTargetData:  {},
	EventCancel:      {},
	EventSelectSlot:  {},
	EventChooseSkill: {},
	EventReload:      {},
}

// Envelope wraps every frame.
type Envelope struct {
	Version uint8           `json:"v"`
	Event   string          `json:"event"`
	Seq     uint32          `json:"seq,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Encode builds a frame.
func Encode(event string, seq uint32, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s", event)
	}
	return json.Marshal(Envelope{Version: Version, Event: event, Seq: seq, Data: raw})
}

// Decode parses an inbound frame and checks its header.
func Decode(b []byte) (Envelope, error) {
	if len(b) > MaxFrameSize {
		return Envelope{}, ErrTooLarge
	}
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, errors.Wrap(ErrMalformed, err.Error())
	}
	if env.Version != Version {
		return Envelope{}, errors.Wrapf(ErrVersion, "v%d", env.Version)
	}
	if env.Event == "" {
		return Envelope{}, ErrNoEvent
	}
	if _, ok := inbound[env.Event]; !ok {
		return Envelope{}, errors.Wrapf(ErrUnknownEvent, "%q", env.Event)
	}
	return env, nil
}

// Bind decodes the payload into v, rejecting unknown fields.
func (e Envelope) Bind(v any) error {
	if len(e.Data) == 0 {
		return errors.Wrapf(ErrMalformed, "%s: empty payload", e.Event)
	}
	dec := json.NewDecoder(bytes.NewReader(e.Data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrapf(ErrMalformed, "%s: %v", e.Event, err)
	}
	return nil
}

// Sequencer rejects inbound frames whose sequence does not advance.
type Sequencer struct {
	last uint32
}

// Accept records seq if it is newer than the last accepted one.
func (s *Sequencer) Accept(seq uint32) error {
	if seq <= s.last {
		return errors.Wrapf(ErrReplay, "seq %d after %d", seq, s.last)
	}
	s.last = seq
	return nil
}

// Move reports the pawn's pose and movement state.
type Move struct {
	Location  vmath.Vec3 `json:"location"`
	Facing    vmath.Vec3 `json:"facing"`
	View      vmath.Vec3 `json:"view,omitempty"`
	Speed     float64    `json:"speed"`
	Crouching bool       `json:"crouching,omitempty"`
	Airborne  bool       `json:"airborne,omitempty"`
	AimAlpha  float64    `json:"aimAlpha,omitempty"`
}

// Cancel ends the activation of one spec.
type Cancel struct {
	Spec ability.SpecHandle `json:"spec"`
}

// SelectSlot makes a quick bar slot active.
type SelectSlot struct {
	Slot int `json:"slot"`
}

// ChooseSkill takes an offered skill.
type ChooseSkill struct {
	Skill string `json:"skill"`
}

// SpecInfo describes one granted ability to its owner.
type SpecInfo struct {
	Handle  ability.SpecHandle `json:"handle"`
	Ability string             `json:"ability"`
	Input   string             `json:"input"`
	Level   float64            `json:"level"`
	Blocked bool               `json:"blocked,omitempty"`
}

// SpecsOf lists the specs of a system in handle order.
func SpecsOf(sys *ability.System) []SpecInfo {
	specs := sys.Specs()
	out := make([]SpecInfo, 0, len(specs))
	for _, s := range specs {
		out = append(out, SpecInfo{
			Handle:  s.Handle,
			Ability: s.Ability.Name(),
			Input:   s.Input.String(),
			Level:   s.Level,
			Blocked: s.Blocked(),
		})
	}
	return out
}

// Welcome is the first frame of a session.
type Welcome struct {
	Session  uuid.UUID       `json:"session"`
	Pawn     world.EntityID  `json:"pawn"`
	TickRate int             `json:"tickRate"`
	Specs    []SpecInfo      `json:"specs"`
	Ledger   equipment.Delta `json:"ledger"`
}

// LedgerUpdate carries one pawn's equipment changes since the version the
// session last received for that pawn.
type LedgerUpdate struct {
	Pawn  world.EntityID  `json:"pawn"`
	Delta equipment.Delta `json:"delta"`
}

// Reloaded reports how many rounds a reload moved into the magazine.
type Reloaded struct {
	Rounds int `json:"rounds"`
}

// SkillOffer lists the skills the pawn may choose from.
type SkillOffer struct {
	Skills []ability.Skill `json:"skills"`
}

// Error reports a rejected frame.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// ErrorCode maps a decode or handling error to a short code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrTooLarge):
		return "too_large"
	case errors.Is(err, ErrVersion):
		return "version"
	case errors.Is(err, ErrReplay):
		return "replay"
	case errors.Is(err, ErrUnknownEvent), errors.Is(err, ErrNoEvent):
		return "unknown_event"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	default:
		return "rejected"
	}
}
