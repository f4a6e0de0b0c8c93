package heat

import (
	"testing"

	"arena-combat/internal/vmath"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.HeatToSpread = vmath.NewCurve(vmath.Key{Time: 0, Value: 0}, vmath.Key{Time: 10, Value: 5})
	cfg.HeatToHeatPerShot = vmath.Flat(1)
	cfg.HeatToCooldownPerSecond = vmath.Flat(100)
	cfg.RecoveryDelay = 10
	cfg.AllowFirstShotAccuracy = true
	cfg.MultiplierAiming = 0.5
	cfg.MultiplierStandingStill = 0.6
	cfg.MultiplierCrouching = 0.7
	cfg.MultiplierAirborne = 1.5
	return cfg
}

var bestMovement = Movement{Speed: 0, Crouching: true, Airborne: false, AimAlpha: 1}

// settle ticks long enough for every multiplier to converge.
func settle(s *State, now float64, m Movement) float64 {
	for i := 0; i < 100; i++ {
		now += 0.1
		s.Tick(now, 0.1, m)
	}
	return now
}

func TestNewStateRanges(t *testing.T) {
	s := New(DefaultConfig())

	lo, hi := s.HeatRange()
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 10.0, hi)
	assert.Equal(t, 5.0, s.Heat(), "heat starts mid range")
	assert.InDelta(t, 2.5, s.Spread(), 1e-9)

	lo, hi = s.SpreadRange()
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 5.0, hi)
}

func TestAddSpreadClampsToMax(t *testing.T) {
	s := New(DefaultConfig())
	for i := 0; i < 20; i++ {
		s.AddSpread()
	}
	assert.Equal(t, 10.0, s.Heat())
}

func TestHeatDecaysOnlyAfterRecoveryDelay(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RecoveryDelay = 1
	s := New(cfg)

	s.MarkFired(0)
	s.AddSpread()
	require.Equal(t, 6.0, s.Heat())

	s.Tick(0.5, 0.5, Movement{})
	assert.Equal(t, 6.0, s.Heat(), "inside the delay window")

	s.Tick(1.5, 0.5, Movement{})
	assert.Equal(t, 5.0, s.Heat(), "cooldown of 2/s for half a second")
}

func TestOnEquippedResets(t *testing.T) {
	s := New(testConfig())
	settle(s, 0, Movement{Speed: 500, Airborne: true})
	s.AddSpread()

	s.OnEquipped(20)
	assert.Equal(t, 5.0, s.Heat())
	assert.Equal(t, Multipliers{1, 1, 1, 1}, s.Multipliers())
	assert.False(t, s.FirstShotAccuracy())
}

func TestFirstShotAccuracy(t *testing.T) {
	s := New(testConfig())
	now := settle(s, 0, bestMovement)

	require.True(t, s.FirstShotAccuracy())
	assert.Equal(t, 0.0, s.SpreadMultiplier())

	flips := []struct {
		name string
		m    Movement
	}{
		{"moving", Movement{Speed: 200, Crouching: true, AimAlpha: 1}},
		{"standing up", Movement{Speed: 0, Crouching: false, AimAlpha: 1}},
		{"airborne", Movement{Speed: 0, Crouching: true, Airborne: true, AimAlpha: 1}},
		{"hip fire", Movement{Speed: 0, Crouching: true, AimAlpha: 0}},
	}

	for _, tt := range flips {
		t.Run(tt.name, func(t *testing.T) {
			s := New(testConfig())
			now := settle(s, 0, bestMovement)
			require.True(t, s.FirstShotAccuracy())

			settle(s, now, tt.m)
			assert.False(t, s.FirstShotAccuracy())
			assert.Greater(t, s.SpreadMultiplier(), 0.0)
		})
	}

	t.Run("spread above floor", func(t *testing.T) {
		s.MarkFired(now)
		s.AddSpread()
		s.Tick(now+0.01, 0.01, bestMovement)
		assert.False(t, s.FirstShotAccuracy())
	})

	t.Run("disabled in config", func(t *testing.T) {
		cfg := testConfig()
		cfg.AllowFirstShotAccuracy = false
		s := New(cfg)
		settle(s, 0, bestMovement)
		assert.False(t, s.FirstShotAccuracy())
	})
}

func TestCombinedMultiplier(t *testing.T) {
	s := New(testConfig())
	settle(s, 0, Movement{Speed: 0, Crouching: true, Airborne: true, AimAlpha: 1})

	m := s.Multipliers()
	assert.InDelta(t, 0.5*0.6*0.7*1.5, m.Combined(), 1e-6)
	assert.InDelta(t, m.Combined(), s.SpreadMultiplier(), 1e-12)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"default", func(*Config) {}, nil},
		{"no spread curve", func(c *Config) { c.HeatToSpread = vmath.Curve{} }, ErrNoSpreadCurve},
		{"negative per shot", func(c *Config) { c.HeatToHeatPerShot = vmath.Flat(-1) }, ErrNegativeHeatPerShot},
		{"negative cooldown", func(c *Config) { c.HeatToCooldownPerSecond = vmath.Flat(-1) }, ErrNegativeCooldown},
		{"tiny exponent", func(c *Config) { c.SpreadExponent = 0.01 }, ErrSpreadExponent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// Heat never leaves its bounds, never drops while shots land inside the recovery
// window, and never rises once shooting stops.
func TestHeatMonotonicity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := DefaultConfig()
		cfg.RecoveryDelay = rapid.Float64Range(0.1, 2).Draw(t, "delay")
		cfg.HeatToHeatPerShot = vmath.NewCurve(
			vmath.Key{Time: 0, Value: rapid.Float64Range(0, 3).Draw(t, "perShotLow")},
			vmath.Key{Time: 10, Value: rapid.Float64Range(0, 3).Draw(t, "perShotHigh")},
		)
		s := New(cfg)
		lo, hi := s.HeatRange()

		now := 0.0
		s.MarkFired(now)
		shots := rapid.IntRange(1, 30).Draw(t, "shots")
		prev := s.Heat()
		for i := 0; i < shots; i++ {
			dt := rapid.Float64Range(0, cfg.RecoveryDelay*0.9).Draw(t, "gap")
			now += dt
			s.Tick(now, dt, Movement{})
			s.MarkFired(now)
			s.AddSpread()

			h := s.Heat()
			if h < prev || h < lo || h > hi {
				t.Fatalf("heat %v after %v (bounds %v..%v)", h, prev, lo, hi)
			}
			prev = h
		}

		now += cfg.RecoveryDelay
		ticks := rapid.IntRange(1, 50).Draw(t, "ticks")
		for i := 0; i < ticks; i++ {
			now += 0.05
			s.Tick(now, 0.05, Movement{})
			h := s.Heat()
			if h > prev || h < lo || h > hi {
				t.Fatalf("heat %v after %v while cooling (bounds %v..%v)", h, prev, lo, hi)
			}
			prev = h
		}
	})
}
