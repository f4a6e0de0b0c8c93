package equipment

import (
	"github.com/pkg/errors"
)

// ErrQuickBarFull is returned when every quick bar slot is taken and none is active.
var ErrQuickBarFull = errors.New("equipment: quick bar is full")

// NoActiveSlot marks a quick bar without an active slot.
const NoActiveSlot = -1

// QuickBar maps a fixed number of hotkey slots onto ledger slots with the same index
// and switches the active one. Switching only activates/deactivates ledger entries.
type QuickBar struct {
	ledger   *Ledger
	occupied []bool
	active   int

	// OnActiveChanged is invoked after the active slot moved.
	OnActiveChanged func(prev, next int)
}

// NewQuickBar creates a bar with size slots on top of ledger.
func NewQuickBar(ledger *Ledger, size int) *QuickBar {
	return &QuickBar{ledger: ledger, occupied: make([]bool, size), active: NoActiveSlot}
}

// Size returns the number of slots.
func (q *QuickBar) Size() int { return len(q.occupied) }

// ActiveSlot returns the active slot index or NoActiveSlot.
func (q *QuickBar) ActiveSlot() int { return q.active }

// Occupied reports whether slot holds an item.
func (q *QuickBar) Occupied(slot int) bool {
	return slot >= 0 && slot < len(q.occupied) && q.occupied[slot]
}

// AddItem places def in the first free slot. When the bar is full it replaces the
// item in the active slot and re-activates it.
func (q *QuickBar) AddItem(def *Definition) (int, error) {
	for slot, used := range q.occupied {
		if used {
			continue
		}
		if _, err := q.ledger.AddEntry(def, slot); err != nil {
			return NoActiveSlot, err
		}
		q.occupied[slot] = true
		return slot, nil
	}

	if q.active == NoActiveSlot {
		return NoActiveSlot, ErrQuickBarFull
	}
	slot := q.active
	if err := q.RemoveItem(slot); err != nil {
		return NoActiveSlot, err
	}
	if _, err := q.ledger.AddEntry(def, slot); err != nil {
		return NoActiveSlot, err
	}
	q.occupied[slot] = true
	return slot, q.SetActiveSlot(slot)
}

// RemoveItem removes the item in slot, clearing the active slot if it was that one.
func (q *QuickBar) RemoveItem(slot int) error {
	if !q.Occupied(slot) {
		return errors.Wrapf(ErrSlotEmpty, "quick bar slot %d", slot)
	}
	if err := q.ledger.RemoveEntry(slot); err != nil {
		return err
	}
	q.occupied[slot] = false
	if q.active == slot {
		q.active = NoActiveSlot
		if q.OnActiveChanged != nil {
			q.OnActiveChanged(slot, NoActiveSlot)
		}
	}
	return nil
}

// SetActiveSlot deactivates the current slot and activates slot.
func (q *QuickBar) SetActiveSlot(slot int) error {
	if !q.Occupied(slot) {
		return errors.Wrapf(ErrSlotEmpty, "quick bar slot %d", slot)
	}
	if slot == q.active {
		return nil
	}
	prev := q.active
	if prev != NoActiveSlot {
		if err := q.ledger.DeactivateEntry(prev); err != nil {
			return err
		}
	}
	if err := q.ledger.ActivateEntry(slot); err != nil {
		return err
	}
	q.active = slot
	if q.OnActiveChanged != nil {
		q.OnActiveChanged(prev, slot)
	}
	return nil
}

// CycleForward activates the next occupied slot, wrapping around.
func (q *QuickBar) CycleForward() error {
	return q.cycle(1)
}

// CycleBackward activates the previous occupied slot, wrapping around.
func (q *QuickBar) CycleBackward() error {
	return q.cycle(-1)
}

func (q *QuickBar) cycle(step int) error {
	n := len(q.occupied)
	if n == 0 {
		return nil
	}
	start := q.active
	if start == NoActiveSlot {
		start = n - 1
		if step < 0 {
			start = 0
		}
	}
	for i := 1; i <= n; i++ {
		slot := ((start+step*i)%n + n) % n
		if q.occupied[slot] {
			return q.SetActiveSlot(slot)
		}
	}
	return nil
}
