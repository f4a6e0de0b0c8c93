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
)

// NOTE: ranges are in world units (cm). Falloff curves are keyed by hit distance.

func key(t, v float64) vmath.Key { return vmath.Key{Time: t, Value: v} }

func rifleHeat() heat.Config {
	h := heat.DefaultConfig()
	h.HeatToSpread = vmath.NewCurve(key(0, 0), key(10, 4))
	h.HeatToHeatPerShot = vmath.Flat(1)
	h.HeatToCooldownPerSecond = vmath.Flat(6)
	h.RecoveryDelay = 0.2
	h.AllowFirstShotAccuracy = true
	h.MultiplierAiming = 0.5
	h.MultiplierCrouching = 0.8
	h.MultiplierAirborne = 2
	return h
}

func shotgunHeat() heat.Config {
	h := heat.DefaultConfig()
	h.HeatToSpread = vmath.NewCurve(key(0, 8), key(4, 12))
	h.HeatToHeatPerShot = vmath.Flat(2)
	h.HeatToCooldownPerSecond = vmath.Flat(3)
	h.SpreadExponent = 0.6
	h.RecoveryDelay = 0.4
	return h
}

func launcherHeat() heat.Config {
	h := heat.DefaultConfig()
	h.HeatToSpread = vmath.Flat(0)
	h.HeatToHeatPerShot = vmath.Flat(0)
	return h
}

// Default returns the built-in catalog: a rifle, a shotgun, a charging bow, a
// rocket launcher with a blast and a gas launcher leaving a toxic field.
func Default() *Catalog {
	c := newCatalog()

	for _, t := range []*effect.Template{
		{ID: "damage.rifle", Policy: effect.Instant, Magnitude: -20},
		{ID: "damage.pellet", Policy: effect.Instant, Magnitude: -9},
		{ID: "damage.arrow", Policy: effect.Instant, Magnitude: -30},
		{ID: "damage.rocket", Policy: effect.Instant, Magnitude: -25},
		// Level is the distance level, so the magnitude grows towards the edge of
		// the radius. The curve inverts it into a center-heavy blast.
		{ID: "damage.blast", Policy: effect.Instant, Magnitude: -80,
			LevelScale: vmath.NewCurve(key(0.1, 1), key(1, 0.25))},
		{ID: "damage.toxic", Policy: effect.Infinite, Period: 1, Magnitude: -6},
	} {
		c.effects[t.ID] = t
	}

	c.areas["blast"] = &areaeffect.Config{
		ID:                 "blast",
		Radius:             400,
		DistanceScaling:    true,
		RequireLineOfSight: true,
		Effect:             c.effects["damage.blast"],
	}
	c.areas["toxic_cloud"] = &areaeffect.Config{
		ID:       "toxic_cloud",
		Radius:   300,
		Lifespan: 6,
		Effect:   c.effects["damage.toxic"],
	}

	c.weapons["rifle"] = &weapon.Config{
		ID:           "rifle",
		Name:         "Assault Rifle",
		MagazineSize: 30,
		ReserveAmmo:  120,
		FireInterval: 0.1,
		Source:       targeting.CameraTowardsFocus,
		Heat:         rifleHeat(),
		Mode: &weapon.HitscanMode{
			Attenuation: weapon.Attenuation{
				DistanceFalloff:     vmath.NewCurve(key(0, 1), key(3000, 1), key(8000, 0.5)),
				MaterialMultipliers: map[string]float64{"head": 2, "armor": 0.6},
			},
			BulletsPerCartridge: 1,
			MaxDamageRange:      10000,
			SweepRadius:         10,
			Damage:              c.effects["damage.rifle"],
		},
	}
	c.weapons["shotgun"] = &weapon.Config{
		ID:           "shotgun",
		Name:         "Shotgun",
		MagazineSize: 6,
		ReserveAmmo:  30,
		FireInterval: 0.8,
		Source:       targeting.CameraTowardsFocus,
		Heat:         shotgunHeat(),
		Mode: &weapon.HitscanMode{
			Attenuation: weapon.Attenuation{
				DistanceFalloff: vmath.NewCurve(key(0, 1), key(500, 1), key(1500, 0.2)),
			},
			BulletsPerCartridge: 8,
			MaxDamageRange:      2500,
			SweepRadius:         20,
			Damage:              c.effects["damage.pellet"],
		},
	}
	c.weapons["bow"] = &weapon.Config{
		ID:           "bow",
		Name:         "Bow",
		FireInterval: 0.6,
		Source:       targeting.PawnTowardsFocus,
		Heat:         launcherHeat(),
		Mode: &weapon.ProjectileMode{
			ProjectilesPerCartridge: 1,
			Speed:                   3000,
			GravityScale:            0.5,
			Lifespan:                5,
			Radius:                  5,
			Charge:                  weapon.DefaultChargeConfig(1.5),
			Damage:                  c.effects["damage.arrow"],
		},
	}
	c.weapons["launcher"] = &weapon.Config{
		ID:           "launcher",
		Name:         "Rocket Launcher",
		MagazineSize: 1,
		ReserveAmmo:  8,
		FireInterval: 1.2,
		Source:       targeting.WeaponTowardsFocus,
		Heat:         launcherHeat(),
		Mode: &weapon.ProjectileMode{
			ProjectilesPerCartridge: 1,
			Speed:                   2000,
			Lifespan:                8,
			Radius:                  12,
			Damage:                  c.effects["damage.rocket"],
			AreaEffect:              c.areas["blast"],
		},
	}
	c.weapons["gas_launcher"] = &weapon.Config{
		ID:           "gas_launcher",
		Name:         "Gas Launcher",
		MagazineSize: 3,
		ReserveAmmo:  9,
		FireInterval: 1,
		Source:       targeting.WeaponTowardsFocus,
		Heat:         launcherHeat(),
		Mode: &weapon.ProjectileMode{
			ProjectilesPerCartridge: 1,
			Speed:                   1200,
			GravityScale:            1,
			Lifespan:                4,
			Radius:                  8,
			AreaEffect:              c.areas["toxic_cloud"],
		},
	}
	for _, w := range c.weapons {
		switch m := w.Mode.(type) {
		case *weapon.HitscanMode:
			m.Normalize()
		case *weapon.ProjectileMode:
			m.Normalize()
		}
	}

	for _, s := range []*ability.Set{
		{Name: "rifle", Grants: []ability.Grant{{Ability: &ability.HitscanAbility{ID: "rifle.fire"}, Level: 1}}},
		{Name: "shotgun", Grants: []ability.Grant{{Ability: &ability.HitscanAbility{ID: "shotgun.fire"}, Level: 1}}},
		{Name: "bow", Grants: []ability.Grant{{Ability: &ability.ChargingProjectileAbility{ID: "bow.draw"}, Level: 1}}},
		{Name: "launcher", Grants: []ability.Grant{{Ability: &ability.ProjectileAbility{ID: "launcher.fire"}, Level: 1}}},
		{Name: "gas_launcher", Grants: []ability.Grant{{Ability: &ability.ProjectileAbility{ID: "gas.fire"}, Level: 1}}},
		{Name: "snap_shot", Grants: []ability.Grant{{Ability: &ability.HitscanAbility{ID: "snap_shot"}, Input: ability.InputSecondary, Level: 1}}},
	} {
		c.sets[s.Name] = s
	}

	c.equipment["rifle"] = &equipment.Definition{
		ID:          "rifle",
		AbilitySets: []string{"rifle"},
		Actors:      []equipment.ActorSpec{{Name: "rifle_body", Radius: 6, Material: "metal"}},
		Weapon:      c.weapons["rifle"],
	}
	for _, id := range []string{"shotgun", "bow", "launcher", "gas_launcher"} {
		c.equipment[id] = &equipment.Definition{ID: id, AbilitySets: []string{id}, Weapon: c.weapons[id]}
	}

	c.skills = []*ability.Skill{
		{ID: "steady_aim", Name: "Steady Aim", Description: "Rifle shots hit harder",
			Upgrades: map[string]float64{"rifle.fire": 0.5}},
		{ID: "marksman", Name: "Marksman", Description: "Rifle shots hit even harder",
			Requires: []string{"steady_aim"}, Upgrades: map[string]float64{"rifle.fire": 0.5}},
		{ID: "heavy_draw", Name: "Heavy Draw", Description: "Arrows hit harder",
			Upgrades: map[string]float64{"bow.draw": 1}},
		{ID: "snap_shot", Name: "Snap Shot", Description: "Secondary fire from the held hitscan weapon",
			Conflicts: []string{"heavy_draw"}, Grants: []string{"snap_shot"}},
		{ID: "demolition", Name: "Demolition", Description: "Bigger rocket damage",
			Upgrades: map[string]float64{"launcher.fire": 1}},
	}

	c.loadout = []string{"rifle", "bow", "launcher"}
	return c
}
