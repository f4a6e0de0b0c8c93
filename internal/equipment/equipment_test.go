package equipment

import (
	"testing"

	"arena-combat/internal/heat"
	"arena-combat/internal/weapon"
	"arena-combat/internal/world"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type fakeGranter struct {
	next    uint32
	live    map[uint32]bool
	blocked map[uint32]bool
	grants  int
}

func newFakeGranter() *fakeGranter {
	return &fakeGranter{live: map[uint32]bool{}, blocked: map[uint32]bool{}}
}

func (g *fakeGranter) Grant(sets []string, source *Instance) (GrantSet, error) {
	g.grants++
	var out GrantSet
	for range sets {
		g.next++
		g.live[g.next] = true
		out.Handles = append(out.Handles, g.next)
	}
	return out, nil
}

func (g *fakeGranter) Revoke(gs GrantSet) {
	for _, h := range gs.Handles {
		delete(g.live, h)
		delete(g.blocked, h)
	}
}

func (g *fakeGranter) SetInputBlocked(gs GrantSet, blocked bool) {
	for _, h := range gs.Handles {
		g.blocked[h] = blocked
	}
}

type countingBehavior struct {
	equips, unequips int
}

func (b *countingBehavior) OnEquipped(float64)   { b.equips++ }
func (b *countingBehavior) OnUnequipped(float64) { b.unequips++ }

type countingFactory struct {
	created, destroyed int
}

func (f *countingFactory) NewInstance(def *Definition, instigator world.EntityID) (*Instance, error) {
	f.created++
	return &Instance{id: uuid.New(), def: def, instigator: instigator, behavior: &countingBehavior{}}, nil
}

func (f *countingFactory) DestroyInstance(*Instance) { f.destroyed++ }

var (
	rifleDef  = &Definition{ID: "rifle", AbilitySets: []string{"rifle.fire", "rifle.reload"}}
	rocketDef = &Definition{ID: "rocket", AbilitySets: []string{"rocket.fire"}}
)

func newTestLedger(g Granter, f InstanceFactory) *Ledger {
	return NewLedger(LedgerOptions{Owner: 1, Authority: true, Granter: g, Factory: f, Logger: zerolog.Nop()})
}

func TestAddThenRemoveRevokesEverything(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := newFakeGranter()
		f := &countingFactory{}
		l := newTestLedger(g, f)

		slots := rapid.SliceOfDistinct(rapid.IntRange(-50, 50), rapid.ID[int]).Draw(t, "slots")
		for _, s := range slots {
			if _, err := l.AddEntry(rifleDef, s); err != nil {
				t.Fatalf("add %d: %v", s, err)
			}
		}
		victim := rapid.IntRange(-50, 50).Draw(t, "victim")
		_ = l.RemoveEntry(victim)
		if _, err := l.AddEntry(rocketDef, victim); err != nil {
			t.Fatalf("add victim %d: %v", victim, err)
		}
		if err := l.RemoveEntry(victim); err != nil {
			t.Fatalf("remove victim %d: %v", victim, err)
		}

		if _, ok := l.Entry(victim); ok {
			t.Fatalf("slot %d still occupied", victim)
		}
		want := 0
		for _, s := range slots {
			if s != victim {
				want += len(rifleDef.AbilitySets)
			}
		}
		if len(g.live) != want {
			t.Fatalf("expected %d live grants, got %d", want, len(g.live))
		}
		if f.created-f.destroyed != l.Len() {
			t.Fatalf("instances leaked: created %d destroyed %d live %d", f.created, f.destroyed, l.Len())
		}
	})
}

func TestSlotSwitchKeepsInstances(t *testing.T) {
	g := newFakeGranter()
	f := &countingFactory{}
	l := newTestLedger(g, f)
	bar := NewQuickBar(l, 3)

	s0, err := bar.AddItem(rifleDef)
	require.NoError(t, err)
	s1, err := bar.AddItem(rocketDef)
	require.NoError(t, err)

	e0, _ := l.Entry(s0)
	e1, _ := l.Entry(s1)
	inst0, inst1 := e0.Instance, e1.Instance
	grants0 := append([]uint32(nil), e0.granted.Handles...)

	for i := 0; i < 5; i++ {
		require.NoError(t, bar.SetActiveSlot(s0))
		require.NoError(t, bar.SetActiveSlot(s1))
	}

	e0, _ = l.Entry(s0)
	e1, _ = l.Entry(s1)
	assert.Same(t, inst0, e0.Instance)
	assert.Same(t, inst1, e1.Instance)
	assert.Equal(t, grants0, e0.granted.Handles)
	assert.Equal(t, 2, f.created)
	assert.Equal(t, 2, g.grants, "no grants beyond the two adds")
	assert.Equal(t, 5, inst0.behavior.(*countingBehavior).equips)
	assert.Equal(t, 5, inst0.behavior.(*countingBehavior).unequips)

	assert.True(t, g.blocked[grants0[0]], "inactive rifle input blocked")
	assert.False(t, g.blocked[e1.granted.Handles[0]], "active rocket input unblocked")
}

func TestLedgerErrors(t *testing.T) {
	l := newTestLedger(newFakeGranter(), &countingFactory{})

	_, err := l.AddEntry(rifleDef, 0)
	require.NoError(t, err)

	_, err = l.AddEntry(rocketDef, 0)
	assert.ErrorIs(t, err, ErrSlotOccupied)
	_, err = l.AddEntry(nil, 1)
	assert.ErrorIs(t, err, ErrNoDefinition)
	assert.ErrorIs(t, l.RemoveEntry(7), ErrSlotEmpty)
	assert.ErrorIs(t, l.ActivateEntry(7), ErrSlotEmpty)

	require.NoError(t, l.ActivateEntry(0))
	v := l.Version()
	require.NoError(t, l.ActivateEntry(0))
	assert.Equal(t, v, l.Version(), "activating an active entry records nothing")

	client := NewLedger(LedgerOptions{Owner: 1, Logger: zerolog.Nop()})
	_, err = client.AddEntry(rifleDef, 0)
	assert.ErrorIs(t, err, ErrNotAuthoritative)
	assert.ErrorIs(t, client.RemoveEntry(0), ErrNotAuthoritative)
	assert.ErrorIs(t, client.ActivateEntry(0), ErrNotAuthoritative)
}

func TestMissingGranterIsTolerated(t *testing.T) {
	l := newTestLedger(nil, &countingFactory{})
	_, err := l.AddEntry(rifleDef, 0)
	require.NoError(t, err)
	require.NoError(t, l.ActivateEntry(0))
	require.NoError(t, l.RemoveEntry(0))
}

func TestWeaponLookups(t *testing.T) {
	hitscan := &weapon.HitscanMode{}
	hitscan.Normalize()
	projectile := &weapon.ProjectileMode{}
	projectile.Normalize()
	rifle := &Definition{ID: "rifle", Weapon: &weapon.Config{ID: "rifle", Heat: heat.DefaultConfig(), Mode: hitscan}}
	launcher := &Definition{ID: "launcher", Weapon: &weapon.Config{ID: "launcher", Heat: heat.DefaultConfig(), Mode: projectile}}

	l := newTestLedger(newFakeGranter(), nil)
	_, err := l.AddEntry(launcher, 1)
	require.NoError(t, err)
	_, err = l.AddEntry(rifle, 2)
	require.NoError(t, err)

	inst, ok := l.FirstWeaponOfKind(weapon.ModeHitscan)
	require.True(t, ok)
	assert.Equal(t, "rifle", inst.Definition().ID)

	_, ok = l.ActiveWeapon()
	assert.False(t, ok)

	require.NoError(t, l.ActivateEntry(1))
	inst, ok = l.ActiveWeapon()
	require.True(t, ok)
	w, _ := inst.Weapon()
	assert.True(t, w.Equipped())

	l.Uninitialize()
	assert.Equal(t, 0, l.Len())
	assert.False(t, w.Equipped())
}

type hookLog struct {
	added, removed, equipped, unequipped []int
}

func (h *hookLog) hooks() Hooks {
	return Hooks{
		OnAdded:      func(e EntryState) { h.added = append(h.added, e.Slot) },
		OnRemoved:    func(e EntryState) { h.removed = append(h.removed, e.Slot) },
		OnEquipped:   func(e EntryState) { h.equipped = append(h.equipped, e.Slot) },
		OnUnequipped: func(e EntryState) { h.unequipped = append(h.unequipped, e.Slot) },
	}
}

func TestDeltaReplication(t *testing.T) {
	l := newTestLedger(newFakeGranter(), &countingFactory{})
	var log hookLog
	r := NewReplica(log.hooks())

	_, err := l.AddEntry(rifleDef, 0)
	require.NoError(t, err)
	_, err = l.AddEntry(rocketDef, 1)
	require.NoError(t, err)
	require.NoError(t, l.ActivateEntry(0))

	d := l.DeltaSince(r.Version())
	assert.Len(t, d.Added, 2)
	assert.Empty(t, d.Changed, "changes on entries the observer never saw fold into Added")
	require.NoError(t, r.Apply(d))
	assert.Equal(t, []int{0, 1}, log.added)
	assert.Equal(t, []int{0}, log.equipped)

	// switch weapons and swap the rocket for a new one
	require.NoError(t, l.DeactivateEntry(0))
	require.NoError(t, l.ActivateEntry(1))
	require.NoError(t, l.RemoveEntry(1))
	_, err = l.AddEntry(rocketDef, 1)
	require.NoError(t, err)

	d = l.DeltaSince(r.Version())
	assert.Equal(t, []int{1}, d.Removed)
	require.Len(t, d.Added, 1)
	require.Len(t, d.Changed, 1)
	assert.Equal(t, 0, d.Changed[0].Slot)
	require.NoError(t, r.Apply(d))

	assert.Equal(t, []int{0}, log.unequipped, "the replaced rocket was never seen active")
	assert.Equal(t, []int{1}, log.removed)
	assert.Equal(t, []int{0, 1, 1}, log.added)
	assert.Equal(t, l.Version(), r.Version())

	// an empty delta and a replayed stale delta are no-ops
	require.NoError(t, r.Apply(l.DeltaSince(r.Version())))
	require.NoError(t, r.Apply(d))
	assert.Equal(t, []int{0, 1, 1}, log.added)
}

func TestReplicaRejectsGap(t *testing.T) {
	l := newTestLedger(newFakeGranter(), &countingFactory{})
	r := NewReplica(Hooks{})

	_, err := l.AddEntry(rifleDef, 0)
	require.NoError(t, err)
	v := l.Version()
	_, err = l.AddEntry(rocketDef, 1)
	require.NoError(t, err)

	assert.ErrorIs(t, r.Apply(l.DeltaSince(v)), ErrVersionGap)
	assert.Equal(t, uint64(0), r.Version())
}

func TestDeltaResetWhenObserverFallsBehind(t *testing.T) {
	l := NewLedger(LedgerOptions{Owner: 1, Authority: true, Factory: &countingFactory{}, LogRetention: 2, Logger: zerolog.Nop()})
	var log hookLog
	r := NewReplica(log.hooks())

	_, err := l.AddEntry(rifleDef, 0)
	require.NoError(t, err)
	require.NoError(t, r.Apply(l.DeltaSince(0)))

	for i := 0; i < 3; i++ {
		require.NoError(t, l.ActivateEntry(0))
		require.NoError(t, l.DeactivateEntry(0))
	}
	require.NoError(t, l.ActivateEntry(0))
	_, err = l.AddEntry(rocketDef, 4)
	require.NoError(t, err)

	d := l.DeltaSince(r.Version())
	require.True(t, d.Reset)
	assert.Len(t, d.Added, 2)
	require.NoError(t, r.Apply(d))

	assert.Equal(t, []int{0, 4}, log.added, "rifle kept, rocket added")
	assert.Equal(t, []int{0}, log.equipped)
	assert.Empty(t, log.removed)
	assert.Equal(t, l.Version(), r.Version())
}

func TestChangeLogWindow(t *testing.T) {
	c := NewChangeLog(3)
	for i := 0; i < 5; i++ {
		c.Record(Changed, i)
	}
	assert.Equal(t, uint64(5), c.Version())

	_, ok := c.Since(1)
	assert.False(t, ok)
	changes, ok := c.Since(2)
	require.True(t, ok)
	assert.Len(t, changes, 3)
	changes, ok = c.Since(5)
	require.True(t, ok)
	assert.Empty(t, changes)
	_, ok = c.Since(6)
	assert.False(t, ok)
}

func TestQuickBar(t *testing.T) {
	l := newTestLedger(newFakeGranter(), &countingFactory{})
	bar := NewQuickBar(l, 3)

	var moves [][2]int
	bar.OnActiveChanged = func(prev, next int) { moves = append(moves, [2]int{prev, next}) }

	_, err := bar.AddItem(rifleDef)
	require.NoError(t, err)
	_, err = bar.AddItem(rocketDef)
	require.NoError(t, err)

	require.NoError(t, bar.CycleForward())
	assert.Equal(t, 0, bar.ActiveSlot())
	require.NoError(t, bar.CycleForward())
	assert.Equal(t, 1, bar.ActiveSlot())
	require.NoError(t, bar.CycleForward())
	assert.Equal(t, 0, bar.ActiveSlot(), "empty slot 2 skipped")
	require.NoError(t, bar.CycleBackward())
	assert.Equal(t, 1, bar.ActiveSlot())

	_, err = bar.AddItem(rifleDef)
	require.NoError(t, err)
	slot, err := bar.AddItem(rocketDef)
	require.NoError(t, err)
	assert.Equal(t, 1, slot, "full bar replaces the active slot")
	assert.Equal(t, 1, bar.ActiveSlot())
	e, _ := l.Entry(1)
	assert.True(t, e.Active())

	require.NoError(t, bar.RemoveItem(1))
	assert.Equal(t, NoActiveSlot, bar.ActiveSlot())
	assert.ErrorIs(t, bar.SetActiveSlot(1), ErrSlotEmpty)

	assert.Equal(t, [2]int{NoActiveSlot, 0}, moves[0])
	assert.Equal(t, [2]int{1, NoActiveSlot}, moves[len(moves)-1])
}
