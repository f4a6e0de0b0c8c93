// Package world is the spatial query primitive the combat core traces against.
//
// The combat packages only see the Tracer, Overlapper and Locator interfaces.
// Space is an in-memory implementation (uniform grid broad phase, sphere/box
// narrow phase) used by the server and by tests.
package world

//go:generate go tool mockgen -destination=./mocks/world_mock.go -package=mocks . Tracer,Overlapper,Locator

import (
	"arena-combat/internal/vmath"
)

// EntityID identifies an actor. Several bodies may share one EntityID
// (a pawn's head and torso, or a weapon attached to a pawn).
type EntityID uint32

// NoEntity is the zero EntityID.
const NoEntity EntityID = 0

// Kind classifies what a body belongs to.
type Kind uint8

const (
	KindStatic Kind = iota
	KindPawn
	KindProjectile
	KindArea
)

func (k Kind) String() string {
	switch k {
	case KindStatic:
		return "static"
	case KindPawn:
		return "pawn"
	case KindProjectile:
		return "projectile"
	case KindArea:
		return "area"
	default:
		return "unknown"
	}
}

// Response decides whether a trace stops at a body or passes through it.
type Response uint8

const (
	Block Response = iota
	Overlap
)

// Hit is one record of an ordered trace result.
type Hit struct {
	Entity      EntityID   `json:"entity"`
	Kind        Kind       `json:"kind"`
	Blocking    bool       `json:"blocking"`
	Location    vmath.Vec3 `json:"location"`    // center of the swept shape at impact
	ImpactPoint vmath.Vec3 `json:"impactPoint"` // point on the hit surface
	Normal      vmath.Vec3 `json:"normal"`
	Distance    float64    `json:"distance"`
	Material    string     `json:"material,omitempty"`
	TraceStart  vmath.Vec3 `json:"traceStart"`
	TraceEnd    vmath.Vec3 `json:"traceEnd"`

	// AttachedToPawn is set when the hit body is attached to a pawn (e.g. its weapon).
	AttachedToPawn EntityID `json:"attachedToPawn,omitempty"`

	// Replaced is set by the hitscan resolver when a sweep result replaced the line trace.
	Replaced bool `json:"replaced,omitempty"`
}

// HasEntity reports whether the hit references an actor.
func (h Hit) HasEntity() bool {
	return h.Entity != NoEntity
}

// IsPawn reports whether the hit is a pawn or something attached to one.
func (h Hit) IsPawn() bool {
	return h.Kind == KindPawn || h.AttachedToPawn != NoEntity
}

// PawnEntity returns the pawn the hit belongs to, or NoEntity.
func (h Hit) PawnEntity() EntityID {
	if h.Kind == KindPawn {
		return h.Entity
	}
	return h.AttachedToPawn
}

// Tracer runs line (radius 0) or sphere sweep traces.
// Results are ordered by distance and end at the first blocking hit.
type Tracer interface {
	Trace(start, end vmath.Vec3, radius float64, ignore []EntityID) []Hit
}

// Overlapper finds actors whose bodies intersect a sphere.
type Overlapper interface {
	Overlap(center vmath.Vec3, radius float64, ignore []EntityID) []EntityID
}

// Locator resolves an actor's current location and classification.
type Locator interface {
	Locate(id EntityID) (Actor, bool)
}

// Actor is the summary of an entity returned by Locator.
type Actor struct {
	ID        EntityID   `json:"id"`
	Kind      Kind       `json:"kind"`
	Location  vmath.Vec3 `json:"location"`
	Owner     EntityID   `json:"owner,omitempty"`
	Combatant bool       `json:"combatant"`
}

// Query bundles the three capabilities most callers need.
type Query interface {
	Tracer
	Overlapper
	Locator
}

// Contains reports whether id is in ids.
func Contains(ids []EntityID, id EntityID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
