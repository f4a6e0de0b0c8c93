// Package equipment is the equipment slot ledger.
//
// The authoritative Ledger owns one Entry per slot index. Adding an entry creates
// the instance and grants its ability sets; removing it revokes them and destroys
// the instance. Activating or deactivating an entry only unblocks/blocks the
// granted abilities and runs the equip hooks, so whatever the granted abilities
// accumulated survives slot switches.
//
// Every mutation is recorded in a ChangeLog. Observers pull a Delta since the
// version they hold and apply it to a Replica.
package equipment

import (
	"sort"

	"arena-combat/internal/weapon"
	"arena-combat/internal/world"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var (
	ErrNotAuthoritative = errors.New("equipment: ledger is not authoritative")
	ErrSlotOccupied     = errors.New("equipment: slot already occupied")
	ErrSlotEmpty        = errors.New("equipment: slot is empty")
	ErrNoDefinition     = errors.New("equipment: missing definition")
	ErrVersionGap       = errors.New("equipment: delta does not start at replica version")
)

// DefaultLogRetention is the number of change records kept for incremental deltas.
const DefaultLogRetention = 64

// GrantSet is the opaque set of ability handles granted for one entry.
type GrantSet struct {
	Handles []uint32
}

// Empty reports whether nothing was granted.
func (g GrantSet) Empty() bool { return len(g.Handles) == 0 }

// Granter is the capability-grant system.
type Granter interface {
	Grant(sets []string, source *Instance) (GrantSet, error)
	Revoke(g GrantSet)
	SetInputBlocked(g GrantSet, blocked bool)
}

// Entry is one slot record.
type Entry struct {
	Slot       int
	Definition *Definition
	Instance   *Instance

	granted GrantSet // authoritative side only
}

// Active mirrors the instance's active flag.
func (e *Entry) Active() bool { return e.Instance.Active() }

func (e *Entry) state() EntryState {
	return EntryState{
		Slot:         e.Slot,
		DefinitionID: e.Definition.ID,
		InstanceID:   e.Instance.ID(),
		Active:       e.Instance.Active(),
		Actors:       append([]world.EntityID(nil), e.Instance.SpawnedActors()...),
	}
}

// LedgerOptions configures a Ledger.
type LedgerOptions struct {
	Owner        world.EntityID
	Authority    bool
	Factory      InstanceFactory
	Granter      Granter // may be nil; grants are skipped with a warning
	Clock        func() float64
	LogRetention int
	Logger       zerolog.Logger
}

// Ledger is the ordered collection of equipped items for one pawn.
// Not safe for concurrent use; the simulation owns it.
type Ledger struct {
	owner     world.EntityID
	authority bool
	factory   InstanceFactory
	granter   Granter
	clock     func() float64
	entries   map[int]*Entry
	log       *ChangeLog
	logger    zerolog.Logger
}

// NewLedger creates an empty ledger.
func NewLedger(opts LedgerOptions) *Ledger {
	if opts.Factory == nil {
		opts.Factory = Factory{}
	}
	if opts.Clock == nil {
		opts.Clock = func() float64 { return 0 }
	}
	if opts.LogRetention <= 0 {
		opts.LogRetention = DefaultLogRetention
	}
	return &Ledger{
		owner:     opts.Owner,
		authority: opts.Authority,
		factory:   opts.Factory,
		granter:   opts.Granter,
		clock:     opts.Clock,
		entries:   make(map[int]*Entry),
		log:       NewChangeLog(opts.LogRetention),
		logger:    opts.Logger.With().Str("component", "ledger").Uint32("owner", uint32(opts.Owner)).Logger(),
	}
}

// SetGranter attaches the capability-grant system after construction.
func (l *Ledger) SetGranter(g Granter) { l.granter = g }

// IsAuthoritative reports whether the ledger may be mutated.
func (l *Ledger) IsAuthoritative() bool { return l.authority }

// Version returns the latest change log version.
func (l *Ledger) Version() uint64 { return l.log.Version() }

// AddEntry equips def into slot, grants its ability sets (input blocked until
// activation) and returns the new instance.
func (l *Ledger) AddEntry(def *Definition, slot int) (*Instance, error) {
	if !l.authority {
		return nil, ErrNotAuthoritative
	}
	if def == nil {
		l.logger.Error().Int("slot", slot).Msg("AddEntry without definition")
		return nil, ErrNoDefinition
	}
	if _, ok := l.entries[slot]; ok {
		return nil, errors.Wrapf(ErrSlotOccupied, "slot %d", slot)
	}

	inst, err := l.factory.NewInstance(def, l.owner)
	if err != nil {
		l.logger.Error().Err(err).Str("definition", def.ID).Msg("failed to create equipment instance")
		return nil, err
	}

	e := &Entry{Slot: slot, Definition: def, Instance: inst}
	if l.granter != nil && len(def.AbilitySets) > 0 {
		g, err := l.granter.Grant(def.AbilitySets, inst)
		if err != nil {
			l.factory.DestroyInstance(inst)
			return nil, errors.Wrapf(err, "grant %s", def.ID)
		}
		e.granted = g
		l.granter.SetInputBlocked(g, true)
	} else if l.granter == nil && len(def.AbilitySets) > 0 {
		l.logger.Warn().Str("definition", def.ID).Msg("no capability granter, abilities not granted")
	}

	l.entries[slot] = e
	l.log.Record(Added, slot)
	l.logger.Debug().Int("slot", slot).Str("definition", def.ID).Msg("entry added")
	return inst, nil
}

// RemoveEntry unequips (if active), revokes the grants and destroys the instance.
func (l *Ledger) RemoveEntry(slot int) error {
	if !l.authority {
		return ErrNotAuthoritative
	}
	e, ok := l.entries[slot]
	if !ok {
		return errors.Wrapf(ErrSlotEmpty, "slot %d", slot)
	}

	e.Instance.unequip(l.clock())
	if l.granter != nil && !e.granted.Empty() {
		l.granter.Revoke(e.granted)
	}
	e.granted = GrantSet{}
	l.factory.DestroyInstance(e.Instance)

	delete(l.entries, slot)
	l.log.Record(Removed, slot)
	l.logger.Debug().Int("slot", slot).Str("definition", e.Definition.ID).Msg("entry removed")
	return nil
}

// ActivateEntry unblocks the entry's abilities and runs the equip hook.
// The instance is never recreated. Activating an active entry is a no-op.
func (l *Ledger) ActivateEntry(slot int) error {
	return l.setActive(slot, true)
}

// DeactivateEntry blocks the entry's abilities and runs the unequip hook.
func (l *Ledger) DeactivateEntry(slot int) error {
	return l.setActive(slot, false)
}

func (l *Ledger) setActive(slot int, active bool) error {
	if !l.authority {
		return ErrNotAuthoritative
	}
	e, ok := l.entries[slot]
	if !ok {
		l.logger.Warn().Int("slot", slot).Bool("activate", active).Msg("no entry in slot")
		return errors.Wrapf(ErrSlotEmpty, "slot %d", slot)
	}
	if e.Instance.Active() == active {
		return nil
	}

	now := l.clock()
	if active {
		e.Instance.equip(now)
	} else {
		e.Instance.unequip(now)
	}
	if l.granter != nil {
		if !e.granted.Empty() {
			l.granter.SetInputBlocked(e.granted, !active)
		}
	} else {
		l.logger.Debug().Int("slot", slot).Msg("no capability granter, input state unchanged")
	}

	l.log.Record(Changed, slot)
	return nil
}

// Entry returns the entry in slot.
func (l *Ledger) Entry(slot int) (*Entry, bool) {
	e, ok := l.entries[slot]
	return e, ok
}

// Slots returns the occupied slot indices in ascending order.
func (l *Ledger) Slots() []int {
	slots := make([]int, 0, len(l.entries))
	for s := range l.entries {
		slots = append(slots, s)
	}
	sort.Ints(slots)
	return slots
}

// Len returns the number of entries.
func (l *Ledger) Len() int { return len(l.entries) }

// FirstInstance returns the lowest-slot instance matching pred.
func (l *Ledger) FirstInstance(pred func(*Instance) bool) (*Instance, bool) {
	for _, s := range l.Slots() {
		if inst := l.entries[s].Instance; pred(inst) {
			return inst, true
		}
	}
	return nil, false
}

// FirstWeaponOfKind returns the lowest-slot weapon using the given fire mode.
func (l *Ledger) FirstWeaponOfKind(kind weapon.ModeKind) (*Instance, bool) {
	return l.FirstInstance(func(i *Instance) bool {
		w, ok := i.Weapon()
		return ok && w.Mode().Kind() == kind
	})
}

// ActiveWeapon returns the live weapon instance.
func (l *Ledger) ActiveWeapon() (*Instance, bool) {
	return l.FirstInstance(func(i *Instance) bool {
		_, ok := i.Weapon()
		return ok && i.Active()
	})
}

// Uninitialize removes every entry.
func (l *Ledger) Uninitialize() {
	for _, s := range l.Slots() {
		if err := l.RemoveEntry(s); err != nil {
			l.logger.Error().Err(err).Int("slot", s).Msg("uninitialize")
		}
	}
}

// DeltaSince builds the update for an observer holding version v.
// Within the retained window each touched slot collapses to one record; older
// observers get a Reset delta with every live entry.
func (l *Ledger) DeltaSince(v uint64) Delta {
	to := l.log.Version()
	changes, ok := l.log.Since(v)
	if !ok {
		d := Delta{From: v, To: to, Reset: true}
		for _, s := range l.Slots() {
			d.Added = append(d.Added, l.entries[s].state())
		}
		return d
	}

	d := Delta{From: v, To: to}
	type touch struct {
		first   ChangeKind
		removed bool
	}
	touched := make(map[int]*touch)
	var order []int
	for _, c := range changes {
		t, seen := touched[c.Slot]
		if !seen {
			t = &touch{first: c.Kind}
			touched[c.Slot] = t
			order = append(order, c.Slot)
		}
		if c.Kind == Removed {
			t.removed = true
		}
	}
	sort.Ints(order)

	for _, slot := range order {
		t := touched[slot]
		existedBefore := t.first != Added
		e, existsNow := l.entries[slot]
		switch {
		case existedBefore && existsNow && t.removed:
			d.Removed = append(d.Removed, slot)
			d.Added = append(d.Added, e.state())
		case existedBefore && existsNow:
			d.Changed = append(d.Changed, e.state())
		case existedBefore:
			d.Removed = append(d.Removed, slot)
		case existsNow:
			d.Added = append(d.Added, e.state())
		}
	}
	return d
}
