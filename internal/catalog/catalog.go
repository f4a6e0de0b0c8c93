// Package catalog holds the static definitions the combat core runs on: effect
// templates, area effects, weapons, equipment, ability sets and skills.
//
// A Catalog is read-only once built. It is injected wherever definitions are
// needed; nothing looks definitions up through package globals.
package catalog

import (
	"sort"

	"arena-combat/internal/ability"
	"arena-combat/internal/areaeffect"
	"arena-combat/internal/effect"
	"arena-combat/internal/equipment"
	"arena-combat/internal/weapon"

	"github.com/pkg/errors"
)

var (
	ErrUnknownEffect    = errors.New("catalog: unknown effect template")
	ErrUnknownArea      = errors.New("catalog: unknown area effect")
	ErrUnknownWeapon    = errors.New("catalog: unknown weapon")
	ErrUnknownSet       = errors.New("catalog: unknown ability set")
	ErrUnknownAbility   = errors.New("catalog: unknown ability kind")
	ErrUnknownEquipment = errors.New("catalog: unknown equipment")
	ErrDuplicateID      = errors.New("catalog: duplicate id")
)

// Ability kinds accepted in ability set grants.
const (
	KindHitscan            = "hitscan"
	KindProjectile         = "projectile"
	KindChargingProjectile = "charging_projectile"
)

// Catalog is the set of definitions one server runs with.
type Catalog struct {
	effects   map[string]*effect.Template
	areas     map[string]*areaeffect.Config
	weapons   map[string]*weapon.Config
	equipment map[string]*equipment.Definition
	sets      map[string]*ability.Set
	skills    []*ability.Skill
	loadout   []string
}

func newCatalog() *Catalog {
	return &Catalog{
		effects:   make(map[string]*effect.Template),
		areas:     make(map[string]*areaeffect.Config),
		weapons:   make(map[string]*weapon.Config),
		equipment: make(map[string]*equipment.Definition),
		sets:      make(map[string]*ability.Set),
	}
}

// NewAbility builds an ability of a catalog kind.
func NewAbility(kind, id string) (ability.Ability, error) {
	switch kind {
	case KindHitscan:
		return &ability.HitscanAbility{ID: id}, nil
	case KindProjectile:
		return &ability.ProjectileAbility{ID: id}, nil
	case KindChargingProjectile:
		return &ability.ChargingProjectileAbility{ID: id}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownAbility, "%q", kind)
	}
}

// AbilitySet implements ability.SetProvider.
func (c *Catalog) AbilitySet(name string) (*ability.Set, bool) {
	s, ok := c.sets[name]
	return s, ok
}

// Effect returns an effect template by id.
func (c *Catalog) Effect(id string) (*effect.Template, bool) {
	t, ok := c.effects[id]
	return t, ok
}

// Area returns an area effect by id.
func (c *Catalog) Area(id string) (*areaeffect.Config, bool) {
	a, ok := c.areas[id]
	return a, ok
}

// Weapon returns a weapon config by id.
func (c *Catalog) Weapon(id string) (*weapon.Config, bool) {
	w, ok := c.weapons[id]
	return w, ok
}

// Definition returns an equipment definition by id.
func (c *Catalog) Definition(id string) (*equipment.Definition, bool) {
	d, ok := c.equipment[id]
	return d, ok
}

// Definitions returns every equipment definition in id order.
func (c *Catalog) Definitions() []*equipment.Definition {
	out := make([]*equipment.Definition, 0, len(c.equipment))
	for _, d := range c.equipment {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Skills returns the selectable skills.
func (c *Catalog) Skills() []*ability.Skill { return c.skills }

// Loadout returns the equipment ids a new pawn starts with, in quick bar order.
func (c *Catalog) Loadout() []string { return append([]string(nil), c.loadout...) }

// Summary is the public description of one equipment definition.
type Summary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Mode        string   `json:"mode,omitempty"`
	Magazine    int      `json:"magazine,omitempty"`
	Charges     bool     `json:"charges,omitempty"`
	AbilitySets []string `json:"abilitySets"`
}

// Summaries describes every equipment definition in id order.
func (c *Catalog) Summaries() []Summary {
	defs := c.Definitions()
	out := make([]Summary, 0, len(defs))
	for _, d := range defs {
		s := Summary{ID: d.ID, Name: d.ID, AbilitySets: d.AbilitySets}
		if w := d.Weapon; w != nil {
			s.Name = w.Name
			s.Mode = w.Mode.Kind().String()
			s.Magazine = w.MagazineSize
			if pm, ok := w.Mode.(*weapon.ProjectileMode); ok {
				s.Charges = pm.Charge != nil
			}
		}
		out = append(out, s)
	}
	return out
}

// Validate checks every cross reference.
func (c *Catalog) Validate() error {
	for id, a := range c.areas {
		if err := a.Validate(); err != nil {
			return errors.Wrapf(err, "area %q", id)
		}
	}
	for id, w := range c.weapons {
		if err := w.Validate(); err != nil {
			return errors.Wrapf(err, "weapon %q", id)
		}
	}
	for id, d := range c.equipment {
		for _, s := range d.AbilitySets {
			if _, ok := c.sets[s]; !ok {
				return errors.Wrapf(ErrUnknownSet, "equipment %q: %q", id, s)
			}
		}
	}
	for _, s := range c.skills {
		for _, g := range s.Grants {
			if _, ok := c.sets[g]; !ok {
				return errors.Wrapf(ErrUnknownSet, "skill %q: %q", s.ID, g)
			}
		}
	}
	for _, id := range c.loadout {
		if _, ok := c.equipment[id]; !ok {
			return errors.Wrapf(ErrUnknownEquipment, "loadout: %q", id)
		}
	}
	return nil
}

var _ ability.SetProvider = (*Catalog)(nil)
