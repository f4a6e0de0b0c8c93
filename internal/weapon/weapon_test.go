package weapon

import (
	"testing"

	"arena-combat/internal/heat"
	"arena-combat/internal/vmath"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rifleConfig() *Config {
	mode := &HitscanMode{
		Attenuation: Attenuation{
			DistanceFalloff:     vmath.NewCurve(vmath.Key{Time: 1000, Value: 1}, vmath.Key{Time: 5000, Value: 0.5}),
			MaterialMultipliers: map[string]float64{"head": 2},
		},
	}
	mode.Normalize()
	return &Config{ID: "rifle", MagazineSize: 2, ReserveAmmo: 3, FireInterval: 0.1, Heat: heat.DefaultConfig(), Mode: mode}
}

func launcherConfig() *Config {
	mode := &ProjectileMode{Charge: DefaultChargeConfig(2)}
	mode.Normalize()
	return &Config{ID: "launcher", Heat: heat.DefaultConfig(), Mode: mode}
}

func TestCommitConsumesAmmoAndCooldown(t *testing.T) {
	w := NewInstance(rifleConfig())

	require.NoError(t, w.Commit(0))
	assert.ErrorIs(t, w.Commit(0.05), ErrCooldown)
	require.NoError(t, w.Commit(0.2))
	assert.ErrorIs(t, w.Commit(0.4), ErrNoAmmo)

	mag, reserve := w.Ammo()
	assert.Equal(t, 0, mag)
	assert.Equal(t, 3, reserve)

	assert.Equal(t, 2, w.Reload())
	mag, reserve = w.Ammo()
	assert.Equal(t, 2, mag)
	assert.Equal(t, 1, reserve)

	w.Restock()
	mag, reserve = w.Ammo()
	assert.Equal(t, 2, mag)
	assert.Equal(t, 3, reserve)
}

func TestUnlimitedAmmo(t *testing.T) {
	w := NewInstance(launcherConfig())
	for i := 0; i < 50; i++ {
		require.NoError(t, w.Commit(float64(i)))
	}
	assert.Equal(t, 0, w.Reload())
}

func TestChargeScaling(t *testing.T) {
	w := NewInstance(launcherConfig())

	tests := []struct {
		held   float64
		level  float64
		speed  float64
		damage float64
		size   float64
	}{
		{-1, 0, 1000, 1, 1},
		{0, 0, 1000, 1, 1},
		{1, 0.5, 1500, 2, 5.75},
		{2, 1, 2000, 3, 10.5},
		{9, 1, 2000, 3, 10.5},
	}

	for _, tt := range tests {
		w.SetChargeTime(tt.held)
		assert.InDelta(t, tt.level, w.ChargeLevel(), 1e-9, "held %v", tt.held)
		assert.InDelta(t, tt.speed, w.ProjectileSpeed(), 1e-9, "held %v", tt.held)
		assert.InDelta(t, tt.damage, w.DamageMultiplier(), 1e-9, "held %v", tt.held)
		assert.InDelta(t, tt.size, w.ProjectileScale(), 1e-9, "held %v", tt.held)
	}

	w.OnUnequipped(10)
	assert.Equal(t, 0.0, w.ChargeTime())
}

func TestChargeIgnoredWithoutChargeConfig(t *testing.T) {
	w := NewInstance(rifleConfig())
	w.SetChargeTime(1)
	assert.Equal(t, 0.0, w.ChargeTime())
	assert.Equal(t, 1.0, w.DamageMultiplier())
	assert.Equal(t, 0.0, w.ProjectileSpeed())
}

func TestAttenuation(t *testing.T) {
	w := NewInstance(rifleConfig())
	assert.Equal(t, 1.0, w.DistanceAttenuation(500))
	assert.InDelta(t, 0.75, w.DistanceAttenuation(3000), 1e-9)
	assert.Equal(t, 0.5, w.DistanceAttenuation(10000))
	assert.Equal(t, 2.0, w.MaterialAttenuation("head"))
	assert.Equal(t, 1.0, w.MaterialAttenuation("torso"))

	p := NewInstance(launcherConfig())
	assert.Equal(t, 1.0, p.DistanceAttenuation(10000))
}

func TestFireModeUnion(t *testing.T) {
	w := NewInstance(rifleConfig())
	_, ok := w.Hitscan()
	assert.True(t, ok)
	_, ok = w.Projectile()
	assert.False(t, ok)
	assert.Equal(t, ModeHitscan, w.Mode().Kind())

	p := NewInstance(launcherConfig())
	assert.Equal(t, "projectile", p.Mode().Kind().String())
}

func TestValidate(t *testing.T) {
	cfg := rifleConfig()
	assert.NoError(t, cfg.Validate())

	cfg.Mode = nil
	assert.ErrorIs(t, cfg.Validate(), ErrNoFireMode)

	cfg = rifleConfig()
	cfg.Heat.SpreadExponent = 0
	assert.ErrorIs(t, cfg.Validate(), heat.ErrSpreadExponent)
}

func TestEquipResetsHeat(t *testing.T) {
	w := NewInstance(rifleConfig())
	w.AddSpread()
	w.AddSpread()
	require.Greater(t, w.Accuracy().Heat(), 5.0)

	w.OnEquipped(3)
	assert.True(t, w.Equipped())
	assert.Equal(t, 5.0, w.Accuracy().Heat())
}
