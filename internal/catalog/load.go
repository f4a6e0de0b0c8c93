package catalog

import (
	"arena-combat/internal/ability"
	"arena-combat/internal/areaeffect"
	"arena-combat/internal/effect"
	"arena-combat/internal/equipment"
	"arena-combat/internal/heat"
	"arena-combat/internal/targeting"
	"arena-combat/internal/vmath"
	"arena-combat/internal/weapon"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// File layout. References between sections are by id.

type effectFile struct {
	ID         string      `mapstructure:"id"`
	Policy     string      `mapstructure:"policy"`
	Duration   float64     `mapstructure:"duration"`
	Period     float64     `mapstructure:"period"`
	Magnitude  float64     `mapstructure:"magnitude"`
	LevelScale vmath.Curve `mapstructure:"level_scale"`
}

type areaFile struct {
	areaeffect.Config `mapstructure:",squash"`
	EffectID          string `mapstructure:"effect"`
}

type hitscanFile struct {
	weapon.HitscanMode `mapstructure:",squash"`
	DamageID           string `mapstructure:"damage"`
}

type projectileFile struct {
	weapon.ProjectileMode `mapstructure:",squash"`
	DamageID              string `mapstructure:"damage"`
	AreaID                string `mapstructure:"area_effect"`
}

type weaponFile struct {
	weapon.Config `mapstructure:",squash"`
	SourceName    string          `mapstructure:"source"`
	Hitscan       *hitscanFile    `mapstructure:"hitscan"`
	Projectile    *projectileFile `mapstructure:"projectile"`
}

type equipmentFile struct {
	equipment.Definition `mapstructure:",squash"`
	WeaponID             string `mapstructure:"weapon"`
}

type grantFile struct {
	Ability string  `mapstructure:"ability"`
	ID      string  `mapstructure:"id"`
	Input   string  `mapstructure:"input"`
	Level   float64 `mapstructure:"level"`
}

type setFile struct {
	Name   string      `mapstructure:"name"`
	Grants []grantFile `mapstructure:"grants"`
}

type catalogFile struct {
	Effects     []effectFile     `mapstructure:"effects"`
	Areas       []areaFile       `mapstructure:"areas"`
	Weapons     []weaponFile     `mapstructure:"weapons"`
	Equipment   []equipmentFile  `mapstructure:"equipment"`
	AbilitySets []setFile        `mapstructure:"ability_sets"`
	Skills      []*ability.Skill `mapstructure:"skills"`
	Loadout     []string         `mapstructure:"loadout"`
}

// Load reads a catalog file. The format follows the file extension (yaml, json, toml).
// An empty path returns Default.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}

	// Ability ids are dotted and appear as map keys under skill upgrades.
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "read catalog %s", path)
	}

	var f catalogFile
	if err := v.Unmarshal(&f); err != nil {
		return nil, errors.Wrapf(err, "decode catalog %s", path)
	}

	c, err := build(f)
	if err != nil {
		return nil, errors.Wrapf(err, "catalog %s", path)
	}
	if err := c.Validate(); err != nil {
		return nil, errors.Wrapf(err, "catalog %s", path)
	}
	return c, nil
}

func sorted(c vmath.Curve) vmath.Curve {
	if !c.HasData() {
		return c
	}
	return vmath.NewCurve(c.Keys...)
}

func build(f catalogFile) (*Catalog, error) {
	c := newCatalog()

	for _, e := range f.Effects {
		if _, dup := c.effects[e.ID]; dup {
			return nil, errors.Wrapf(ErrDuplicateID, "effect %q", e.ID)
		}
		c.effects[e.ID] = &effect.Template{
			ID:         e.ID,
			Policy:     effect.ParseDurationPolicy(e.Policy),
			Duration:   e.Duration,
			Period:     e.Period,
			Magnitude:  e.Magnitude,
			LevelScale: sorted(e.LevelScale),
		}
	}

	for i := range f.Areas {
		a := f.Areas[i].Config
		if _, dup := c.areas[a.ID]; dup {
			return nil, errors.Wrapf(ErrDuplicateID, "area %q", a.ID)
		}
		t, ok := c.effects[f.Areas[i].EffectID]
		if !ok {
			return nil, errors.Wrapf(ErrUnknownEffect, "area %q: %q", a.ID, f.Areas[i].EffectID)
		}
		a.Effect = t
		c.areas[a.ID] = &a
	}

	for i := range f.Weapons {
		w, err := c.buildWeapon(&f.Weapons[i])
		if err != nil {
			return nil, err
		}
		if _, dup := c.weapons[w.ID]; dup {
			return nil, errors.Wrapf(ErrDuplicateID, "weapon %q", w.ID)
		}
		c.weapons[w.ID] = w
	}

	for _, s := range f.AbilitySets {
		set := &ability.Set{Name: s.Name}
		for _, g := range s.Grants {
			a, err := NewAbility(g.Ability, g.ID)
			if err != nil {
				return nil, errors.Wrapf(err, "ability set %q", s.Name)
			}
			level := g.Level
			if level <= 0 {
				level = 1
			}
			set.Grants = append(set.Grants, ability.Grant{Ability: a, Input: ability.ParseInputType(g.Input), Level: level})
		}
		c.sets[s.Name] = set
	}

	for i := range f.Equipment {
		d := f.Equipment[i].Definition
		if _, dup := c.equipment[d.ID]; dup {
			return nil, errors.Wrapf(ErrDuplicateID, "equipment %q", d.ID)
		}
		if id := f.Equipment[i].WeaponID; id != "" {
			w, ok := c.weapons[id]
			if !ok {
				return nil, errors.Wrapf(ErrUnknownWeapon, "equipment %q: %q", d.ID, id)
			}
			d.Weapon = w
		}
		c.equipment[d.ID] = &d
	}

	c.skills = f.Skills
	c.loadout = f.Loadout
	return c, nil
}

func (c *Catalog) buildWeapon(f *weaponFile) (*weapon.Config, error) {
	w := f.Config
	w.Source = targeting.ParseSource(f.SourceName)

	if !w.Heat.HeatToSpread.HasData() {
		w.Heat = heat.DefaultConfig()
	} else {
		w.Heat.HeatToSpread = sorted(w.Heat.HeatToSpread)
		w.Heat.HeatToHeatPerShot = sorted(w.Heat.HeatToHeatPerShot)
		w.Heat.HeatToCooldownPerSecond = sorted(w.Heat.HeatToCooldownPerSecond)
		fillHeat(&w.Heat)
	}

	switch {
	case f.Hitscan != nil:
		m := f.Hitscan.HitscanMode
		m.DistanceFalloff = sorted(m.DistanceFalloff)
		if id := f.Hitscan.DamageID; id != "" {
			t, ok := c.effects[id]
			if !ok {
				return nil, errors.Wrapf(ErrUnknownEffect, "weapon %q: %q", w.ID, id)
			}
			m.Damage = t
		}
		m.Normalize()
		w.Mode = &m
	case f.Projectile != nil:
		m := f.Projectile.ProjectileMode
		m.DistanceFalloff = sorted(m.DistanceFalloff)
		if id := f.Projectile.DamageID; id != "" {
			t, ok := c.effects[id]
			if !ok {
				return nil, errors.Wrapf(ErrUnknownEffect, "weapon %q: %q", w.ID, id)
			}
			m.Damage = t
		}
		if id := f.Projectile.AreaID; id != "" {
			a, ok := c.areas[id]
			if !ok {
				return nil, errors.Wrapf(ErrUnknownArea, "weapon %q: %q", w.ID, id)
			}
			m.AreaEffect = a
		}
		if ch := m.Charge; ch != nil {
			def := weapon.DefaultChargeConfig(ch.MaxChargeTime)
			charge := *ch
			charge.SpeedCurve = curveOr(ch.SpeedCurve, def.SpeedCurve)
			charge.DamageCurve = curveOr(ch.DamageCurve, def.DamageCurve)
			charge.SizeCurve = curveOr(ch.SizeCurve, def.SizeCurve)
			m.Charge = &charge
		}
		m.Normalize()
		w.Mode = &m
	}
	return &w, nil
}

func curveOr(c, fallback vmath.Curve) vmath.Curve {
	if c.HasData() {
		return sorted(c)
	}
	return fallback
}

// fillHeat replaces unset tuning with the neutral defaults.
func fillHeat(h *heat.Config) {
	d := heat.DefaultConfig()
	for _, p := range []struct{ v, def *float64 }{
		{&h.SpreadExponent, &d.SpreadExponent},
		{&h.MultiplierAiming, &d.MultiplierAiming},
		{&h.MultiplierStandingStill, &d.MultiplierStandingStill},
		{&h.MultiplierCrouching, &d.MultiplierCrouching},
		{&h.MultiplierAirborne, &d.MultiplierAirborne},
		{&h.TransitionRateAiming, &d.TransitionRateAiming},
		{&h.TransitionRateStandingStill, &d.TransitionRateStandingStill},
		{&h.TransitionRateCrouching, &d.TransitionRateCrouching},
		{&h.TransitionRateAirborne, &d.TransitionRateAirborne},
		{&h.StandingStillSpeedThreshold, &d.StandingStillSpeedThreshold},
		{&h.StandingStillToMovingSpeedRange, &d.StandingStillToMovingSpeedRange},
	} {
		if *p.v == 0 {
			*p.v = *p.def
		}
	}
	if !h.HeatToHeatPerShot.HasData() {
		h.HeatToHeatPerShot = d.HeatToHeatPerShot
	}
	if !h.HeatToCooldownPerSecond.HasData() {
		h.HeatToCooldownPerSecond = d.HeatToCooldownPerSecond
	}
}
