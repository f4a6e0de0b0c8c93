package ability

import (
	"sort"

	"arena-combat/internal/equipment"
	"arena-combat/internal/targeting"

	"github.com/pkg/errors"
)

var (
	ErrUnknownSkill    = errors.New("ability: unknown skill")
	ErrSkillNotOffered = errors.New("ability: skill is not selectable")
)

// Skill is a selectable upgrade.
type Skill struct {
	ID          string   `json:"id" mapstructure:"id"`
	Name        string   `json:"name" mapstructure:"name"`
	Description string   `json:"description,omitempty" mapstructure:"description"`
	Requires    []string `json:"requires,omitempty" mapstructure:"requires"`
	Conflicts   []string `json:"conflicts,omitempty" mapstructure:"conflicts"`
	// Upgrades raise the level of granted abilities, keyed by ability name.
	Upgrades map[string]float64 `json:"upgrades,omitempty" mapstructure:"upgrades"`
	// Grants are extra ability sets bound to the equipment held when the skill is chosen.
	Grants []string `json:"grants,omitempty" mapstructure:"grants"`
}

// SkillBook tracks the skills a pawn owns and offers new ones.
type SkillBook struct {
	sys    *System
	skills map[string]*Skill
	owned  map[string]struct{}
	grants []equipment.GrantSet
}

// NewSkillBook creates a skill book over the given skills.
func NewSkillBook(sys *System, skills []*Skill) *SkillBook {
	b := &SkillBook{
		sys:    sys,
		skills: make(map[string]*Skill, len(skills)),
		owned:  make(map[string]struct{}),
	}
	for _, s := range skills {
		b.skills[s.ID] = s
	}
	return b
}

// Owns reports whether the skill was chosen.
func (b *SkillBook) Owns(id string) bool {
	_, ok := b.owned[id]
	return ok
}

// Owned returns the chosen skills in id order.
func (b *SkillBook) Owned() []string {
	out := make([]string, 0, len(b.owned))
	for id := range b.owned {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Selectable reports whether a skill can be offered: not owned, every required
// skill owned and no conflict with an owned skill in either direction.
func (b *SkillBook) Selectable(id string) bool {
	s, ok := b.skills[id]
	if !ok || b.Owns(id) {
		return false
	}
	for _, req := range s.Requires {
		if !b.Owns(req) {
			return false
		}
	}
	for _, c := range s.Conflicts {
		if b.Owns(c) {
			return false
		}
	}
	for owned := range b.owned {
		for _, c := range b.skills[owned].Conflicts {
			if c == id {
				return false
			}
		}
	}
	return true
}

// Offer returns up to n random selectable skills.
func (b *SkillBook) Offer(n int, rng targeting.Rand) []*Skill {
	ids := make([]string, 0, len(b.skills))
	for id := range b.skills {
		if b.Selectable(id) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for i := len(ids) - 1; i > 0; i-- {
		j := int(rng.Float64() * float64(i+1))
		if j > i {
			j = i
		}
		ids[i], ids[j] = ids[j], ids[i]
	}
	if n < len(ids) {
		ids = ids[:n]
	}
	out := make([]*Skill, 0, len(ids))
	for _, id := range ids {
		out = append(out, b.skills[id])
	}
	return out
}

// Choose takes a skill: upgrades the matching granted abilities and grants its sets
// with source as their equipment.
func (b *SkillBook) Choose(id string, source *equipment.Instance) error {
	s, ok := b.skills[id]
	if !ok {
		return errors.Wrapf(ErrUnknownSkill, "skill %q", id)
	}
	if !b.Selectable(id) {
		return errors.Wrapf(ErrSkillNotOffered, "skill %q", id)
	}
	if len(s.Grants) > 0 {
		g, err := b.sys.Grant(s.Grants, source)
		if err != nil {
			return errors.Wrapf(err, "skill %q", id)
		}
		b.grants = append(b.grants, g)
	}
	names := make([]string, 0, len(s.Upgrades))
	for name := range s.Upgrades {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.sys.UpgradeAbility(name, s.Upgrades[name])
	}
	b.owned[id] = struct{}{}
	b.sys.logger.Info().Str("skill", id).Msg("skill chosen")
	return nil
}

// Reset revokes every granted skill set and forgets owned skills. Level upgrades
// already applied to equipment abilities stay with those abilities.
func (b *SkillBook) Reset() {
	for _, g := range b.grants {
		b.sys.Revoke(g)
	}
	b.grants = nil
	b.owned = make(map[string]struct{})
}
