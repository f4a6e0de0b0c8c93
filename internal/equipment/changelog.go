package equipment

import (
	"arena-combat/internal/world"

	"github.com/google/uuid"
)

// ChangeKind is the kind of a ledger mutation.
type ChangeKind uint8

const (
	Added ChangeKind = iota
	Changed
	Removed
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Changed:
		return "changed"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Change is one change log record.
type Change struct {
	Version uint64     `json:"version"`
	Kind    ChangeKind `json:"kind"`
	Slot    int        `json:"slot"`
}

// ChangeLog is the versioned list of slot mutations. It keeps at most retention
// records; observers older than the retained window get a reset.
type ChangeLog struct {
	base      uint64 // oldest version an observer may hold and still get an incremental delta
	version   uint64
	changes   []Change
	retention int
}

// NewChangeLog creates a log keeping up to retention records.
func NewChangeLog(retention int) *ChangeLog {
	if retention < 1 {
		retention = 1
	}
	return &ChangeLog{retention: retention, changes: make([]Change, 0, retention)}
}

// Version is the latest version. It starts at 0 and increases by one per record.
func (l *ChangeLog) Version() uint64 { return l.version }

// Record appends a change and returns its version.
func (l *ChangeLog) Record(kind ChangeKind, slot int) uint64 {
	l.version++
	l.changes = append(l.changes, Change{Version: l.version, Kind: kind, Slot: slot})
	if over := len(l.changes) - l.retention; over > 0 {
		l.base = l.changes[over-1].Version
		l.changes = append(l.changes[:0], l.changes[over:]...)
	}
	return l.version
}

// Since returns the changes after version v. ok is false when v fell out of the window.
func (l *ChangeLog) Since(v uint64) (changes []Change, ok bool) {
	if v < l.base || v > l.version {
		return nil, false
	}
	for i, c := range l.changes {
		if c.Version > v {
			return l.changes[i:], true
		}
	}
	return nil, true
}

// EntryState is the replicated view of a ledger entry.
type EntryState struct {
	Slot         int              `json:"slot"`
	DefinitionID string           `json:"definition"`
	InstanceID   uuid.UUID        `json:"instance"`
	Active       bool             `json:"active"`
	Actors       []world.EntityID `json:"actors,omitempty"`
}

// Delta is an incremental ledger update from version From to version To.
// A Reset delta carries every live entry in Added and replaces the observer's state.
type Delta struct {
	From    uint64       `json:"from"`
	To      uint64       `json:"to"`
	Reset   bool         `json:"reset,omitempty"`
	Added   []EntryState `json:"added,omitempty"`
	Changed []EntryState `json:"changed,omitempty"`
	Removed []int        `json:"removed,omitempty"`
}

// Empty reports whether the delta carries nothing.
func (d Delta) Empty() bool {
	return !d.Reset && len(d.Added) == 0 && len(d.Changed) == 0 && len(d.Removed) == 0
}
