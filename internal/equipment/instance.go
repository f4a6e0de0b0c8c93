package equipment

import (
	"arena-combat/internal/vmath"
	"arena-combat/internal/weapon"
	"arena-combat/internal/world"

	"github.com/google/uuid"
)

// ActorSpec describes a sub-actor spawned while the equipment is held (a weapon mesh,
// a shield collider).
type ActorSpec struct {
	Name     string     `json:"name" mapstructure:"name"`
	Offset   vmath.Vec3 `json:"offset" mapstructure:"-"`
	Radius   float64    `json:"radius" mapstructure:"radius"`
	Material string     `json:"material,omitempty" mapstructure:"material"`
}

// Definition is a read-only equipment description from the catalog.
type Definition struct {
	ID string `json:"id" mapstructure:"id"`

	// AbilitySets are granted while the equipment sits in a ledger slot.
	AbilitySets []string    `json:"abilitySets" mapstructure:"ability_sets"`
	Actors      []ActorSpec `json:"actors,omitempty" mapstructure:"actors"`

	// Weapon is set for weapons and selects the *weapon.Instance behavior.
	Weapon *weapon.Config `json:"weapon,omitempty" mapstructure:"-"`
}

// Behavior is the variant payload of an instance.
type Behavior interface {
	OnEquipped(now float64)
	OnUnequipped(now float64)
}

// Instance is one physical piece of equipped gear.
type Instance struct {
	id         uuid.UUID
	def        *Definition
	instigator world.EntityID
	behavior   Behavior
	actors     []world.EntityID
	active     bool
}

func (i *Instance) ID() uuid.UUID                   { return i.id }
func (i *Instance) Definition() *Definition         { return i.def }
func (i *Instance) Instigator() world.EntityID      { return i.instigator }
func (i *Instance) Behavior() Behavior              { return i.behavior }
func (i *Instance) SpawnedActors() []world.EntityID { return i.actors }

// Active reports whether the instance is the live one. Distinct from being in a slot.
func (i *Instance) Active() bool { return i.active }

// Weapon returns the weapon behavior, if the instance is a weapon.
func (i *Instance) Weapon() (*weapon.Instance, bool) {
	w, ok := i.behavior.(*weapon.Instance)
	return w, ok
}

func (i *Instance) equip(now float64) {
	if i.active {
		return
	}
	i.active = true
	if i.behavior != nil {
		i.behavior.OnEquipped(now)
	}
}

func (i *Instance) unequip(now float64) {
	if !i.active {
		return
	}
	i.active = false
	if i.behavior != nil {
		i.behavior.OnUnequipped(now)
	}
}

// ActorSpawner spawns and removes the sub-actors an instance owns.
type ActorSpawner interface {
	SpawnAttached(owner world.EntityID, spec ActorSpec) world.EntityID
	Despawn(id world.EntityID)
}

// InstanceFactory creates and destroys instances for the ledger.
type InstanceFactory interface {
	NewInstance(def *Definition, instigator world.EntityID) (*Instance, error)
	DestroyInstance(inst *Instance)
}

// Factory is the default InstanceFactory. Spawner may be nil.
type Factory struct {
	Spawner ActorSpawner
}

// NewInstance builds the behavior payload and spawns the definition's actors.
func (f Factory) NewInstance(def *Definition, instigator world.EntityID) (*Instance, error) {
	if def == nil {
		return nil, ErrNoDefinition
	}
	inst := &Instance{
		id:         uuid.New(),
		def:        def,
		instigator: instigator,
	}
	if def.Weapon != nil {
		if err := def.Weapon.Validate(); err != nil {
			return nil, err
		}
		inst.behavior = weapon.NewInstance(def.Weapon)
	}
	if f.Spawner != nil {
		for _, spec := range def.Actors {
			inst.actors = append(inst.actors, f.Spawner.SpawnAttached(instigator, spec))
		}
	}
	return inst, nil
}

// DestroyInstance despawns the instance's actors.
func (f Factory) DestroyInstance(inst *Instance) {
	if f.Spawner != nil {
		for _, id := range inst.actors {
			f.Spawner.Despawn(id)
		}
	}
	inst.actors = nil
}
