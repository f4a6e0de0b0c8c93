package equipment

import (
	"sort"

	"github.com/pkg/errors"
)

// Hooks are the observer callbacks. Any of them may be nil.
type Hooks struct {
	OnAdded      func(EntryState)
	OnRemoved    func(EntryState)
	OnEquipped   func(EntryState)
	OnUnequipped func(EntryState)
}

// Replica is an observer's read-only copy of a ledger.
type Replica struct {
	version uint64
	entries map[int]EntryState
	hooks   Hooks
}

// NewReplica creates an empty replica at version 0.
func NewReplica(h Hooks) *Replica {
	return &Replica{entries: make(map[int]EntryState), hooks: h}
}

// Version is the last applied ledger version.
func (r *Replica) Version() uint64 { return r.version }

// Entry returns the replicated entry in slot.
func (r *Replica) Entry(slot int) (EntryState, bool) {
	e, ok := r.entries[slot]
	return e, ok
}

// Entries returns the replicated entries ordered by slot.
func (r *Replica) Entries() []EntryState {
	out := make([]EntryState, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out
}

// Apply folds a delta into the replica. Stale deltas are ignored; a delta that does
// not start at the replica's version is rejected with ErrVersionGap.
func (r *Replica) Apply(d Delta) error {
	if d.Reset {
		r.applyReset(d)
		return nil
	}
	if d.To <= r.version {
		return nil
	}
	if d.From != r.version {
		return errors.Wrapf(ErrVersionGap, "replica at %d, delta from %d", r.version, d.From)
	}

	for _, slot := range d.Removed {
		r.remove(slot)
	}
	for _, e := range d.Added {
		if _, ok := r.entries[e.Slot]; ok {
			r.remove(e.Slot)
		}
		r.add(e)
	}
	for _, e := range d.Changed {
		r.change(e)
	}
	r.version = d.To
	return nil
}

func (r *Replica) applyReset(d Delta) {
	next := make(map[int]EntryState, len(d.Added))
	for _, e := range d.Added {
		next[e.Slot] = e
	}

	var slots []int
	for slot := range r.entries {
		slots = append(slots, slot)
	}
	sort.Ints(slots)
	for _, slot := range slots {
		if n, ok := next[slot]; !ok || n.InstanceID != r.entries[slot].InstanceID {
			r.remove(slot)
		}
	}

	for _, e := range d.Added {
		if _, ok := r.entries[e.Slot]; ok {
			r.change(e)
		} else {
			r.add(e)
		}
	}
	r.version = d.To
}

func (r *Replica) add(e EntryState) {
	r.entries[e.Slot] = e
	if r.hooks.OnAdded != nil {
		r.hooks.OnAdded(e)
	}
	if e.Active && r.hooks.OnEquipped != nil {
		r.hooks.OnEquipped(e)
	}
}

func (r *Replica) remove(slot int) {
	prev, ok := r.entries[slot]
	if !ok {
		return
	}
	delete(r.entries, slot)
	if prev.Active && r.hooks.OnUnequipped != nil {
		r.hooks.OnUnequipped(prev)
	}
	if r.hooks.OnRemoved != nil {
		r.hooks.OnRemoved(prev)
	}
}

func (r *Replica) change(e EntryState) {
	prev, ok := r.entries[e.Slot]
	if !ok {
		r.add(e)
		return
	}
	r.entries[e.Slot] = e
	switch {
	case !prev.Active && e.Active && r.hooks.OnEquipped != nil:
		r.hooks.OnEquipped(e)
	case prev.Active && !e.Active && r.hooks.OnUnequipped != nil:
		r.hooks.OnUnequipped(e)
	}
}
