package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"arena-combat/internal/ability"
	"arena-combat/internal/effect"
	"arena-combat/internal/targeting"
	"arena-combat/internal/weapon"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalog(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	for _, id := range c.Loadout() {
		def, ok := c.Definition(id)
		require.True(t, ok, id)
		require.NotNil(t, def.Weapon, id)
		for _, s := range def.AbilitySets {
			set, ok := c.AbilitySet(s)
			require.True(t, ok, s)
			for _, g := range set.Grants {
				assert.True(t, g.Ability.Supports(weapon.NewInstance(def.Weapon)), "%s cannot drive %s", g.Ability.Name(), id)
			}
		}
	}
}

func TestDefaultWeapons(t *testing.T) {
	c := Default()

	bow, ok := c.Weapon("bow")
	require.True(t, ok)
	pm, ok := bow.Mode.(*weapon.ProjectileMode)
	require.True(t, ok)
	require.NotNil(t, pm.Charge)
	assert.Equal(t, 1.5, pm.Charge.MaxChargeTime)
	assert.Equal(t, 2.0, pm.Charge.SpeedCurve.Eval(1))

	launcher, _ := c.Weapon("launcher")
	lm := launcher.Mode.(*weapon.ProjectileMode)
	require.NotNil(t, lm.AreaEffect)
	assert.False(t, lm.AreaEffect.IsField())

	gas, _ := c.Weapon("gas_launcher")
	gm := gas.Mode.(*weapon.ProjectileMode)
	require.NotNil(t, gm.AreaEffect)
	assert.True(t, gm.AreaEffect.IsField())
	assert.Equal(t, effect.Infinite, gm.AreaEffect.Effect.Policy)

	shotgun, _ := c.Weapon("shotgun")
	assert.Equal(t, 8, shotgun.Mode.(*weapon.HitscanMode).BulletsPerCartridge)
}

func TestSummaries(t *testing.T) {
	s := Default().Summaries()
	require.Len(t, s, 5)
	assert.Equal(t, "bow", s[0].ID)
	assert.Equal(t, "projectile", s[0].Mode)
	assert.True(t, s[0].Charges)

	var rifle Summary
	for _, x := range s {
		if x.ID == "rifle" {
			rifle = x
		}
	}
	assert.Equal(t, "Assault Rifle", rifle.Name)
	assert.Equal(t, "hitscan", rifle.Mode)
	assert.Equal(t, 30, rifle.Magazine)
}

func TestNewAbility(t *testing.T) {
	a, err := NewAbility(KindChargingProjectile, "bow.draw")
	require.NoError(t, err)
	assert.Equal(t, "bow.draw", a.Name())
	assert.IsType(t, &ability.ChargingProjectileAbility{}, a)

	_, err = NewAbility("melee", "x")
	assert.True(t, errors.Is(err, ErrUnknownAbility))
}

func TestLoadEmptyPathIsDefault(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	_, ok := c.Definition("rifle")
	assert.True(t, ok)
}

const yamlCatalog = `
effects:
  - id: damage.dart
    policy: instant
    magnitude: -15
  - id: damage.burn
    policy: infinite
    period: 0.5
    magnitude: -2
areas:
  - id: fire_patch
    radius: 200
    lifespan: 4
    effect: damage.burn
weapons:
  - id: dart_gun
    name: Dart Gun
    magazine_size: 10
    fire_interval: 0.25
    source: pawn_forward
    heat:
      heat_to_spread:
        keys:
          - {time: 10, value: 3}
          - {time: 0, value: 0}
    hitscan:
      bullets_per_cartridge: 2
      max_damage_range: 4000
      damage: damage.dart
      distance_falloff:
        keys:
          - {time: 2000, value: 0.5}
          - {time: 0, value: 1}
  - id: flare
    name: Flare Gun
    source: weapon_towards_focus
    projectile:
      speed: 1500
      area_effect: fire_patch
      charge:
        max_charge_time: 2
ability_sets:
  - name: darts
    grants:
      - ability: hitscan
        id: dart_fire
  - name: flare
    grants:
      - ability: charging_projectile
        id: flare.fire
        input: secondary
        level: 2
equipment:
  - id: dart_gun
    weapon: dart_gun
    ability_sets: [darts]
  - id: flare
    weapon: flare
    ability_sets: [flare]
skills:
  - id: quick_hands
    name: Quick Hands
    upgrades:
      dart_fire: 1
loadout: [dart_gun, flare]
`

func TestLoadYAML(t *testing.T) {
	c, err := Load(writeCatalog(t, "catalog.yaml", yamlCatalog))
	require.NoError(t, err)

	w, ok := c.Weapon("dart_gun")
	require.True(t, ok)
	assert.Equal(t, "Dart Gun", w.Name)
	assert.Equal(t, targeting.PawnForward, w.Source)
	assert.Equal(t, 1.0, w.Heat.SpreadExponent)
	assert.Equal(t, 0.0, w.Heat.HeatToSpread.Keys[0].Time)

	hm, ok := w.Mode.(*weapon.HitscanMode)
	require.True(t, ok)
	assert.Equal(t, 2, hm.BulletsPerCartridge)
	require.NotNil(t, hm.Damage)
	assert.Equal(t, -15.0, hm.Damage.Magnitude)
	assert.Equal(t, 0.75, hm.Distance(1000))

	flare, _ := c.Weapon("flare")
	fm := flare.Mode.(*weapon.ProjectileMode)
	require.NotNil(t, fm.AreaEffect)
	assert.True(t, fm.AreaEffect.IsField())
	assert.Equal(t, effect.Infinite, fm.AreaEffect.Effect.Policy)
	require.NotNil(t, fm.Charge)
	assert.Equal(t, 3.0, fm.Charge.DamageCurve.Eval(1))
	assert.Equal(t, weapon.DefaultLifespan, fm.Lifespan)

	set, ok := c.AbilitySet("flare")
	require.True(t, ok)
	require.Len(t, set.Grants, 1)
	assert.Equal(t, ability.InputSecondary, set.Grants[0].Input)
	assert.Equal(t, 2.0, set.Grants[0].Level)

	require.Len(t, c.Skills(), 1)
	assert.Equal(t, 1.0, c.Skills()[0].Upgrades["dart_fire"])
	assert.Equal(t, []string{"dart_gun", "flare"}, c.Loadout())
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		want error
	}{
		{
			name: "unknown effect",
			body: "areas:\n  - id: a\n    radius: 10\n    effect: missing\n",
			want: ErrUnknownEffect,
		},
		{
			name: "unknown weapon",
			body: "equipment:\n  - id: e\n    weapon: missing\n",
			want: ErrUnknownWeapon,
		},
		{
			name: "unknown set",
			body: "equipment:\n  - id: e\n    ability_sets: [missing]\n",
			want: ErrUnknownSet,
		},
		{
			name: "unknown ability kind",
			body: "ability_sets:\n  - name: s\n    grants:\n      - ability: melee\n        id: x\n",
			want: ErrUnknownAbility,
		},
		{
			name: "unknown loadout entry",
			body: "loadout: [missing]\n",
			want: ErrUnknownEquipment,
		},
		{
			name: "duplicate effect",
			body: "effects:\n  - id: a\n  - id: a\n",
			want: ErrDuplicateID,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeCatalog(t, "catalog.yaml", tc.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), err.Error())
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
