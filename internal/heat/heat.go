// Package heat tracks weapon heat and maps it to a spread angle.
//
// Heat rises on every committed shot and decays once the weapon has rested for
// a configured delay. Four environmental multipliers (aiming, standing still,
// crouching, airborne) are smoothed independently and combined into a single
// spread multiplier. A weapon fires perfectly true ("first shot accuracy") only
// when the heat-derived spread sits at its floor and all four multipliers have
// settled on their best values.
package heat

import (
	"math"

	"arena-combat/internal/vmath"

	"github.com/pkg/errors"
)

// Tolerances for "multiplier reached its target".
const (
	standingStillToleranceFraction = 0.1
	multiplierNearlyEqualTolerance = 0.05
)

var (
	ErrNegativeHeatPerShot = errors.New("heat: heat-per-shot curve must not be negative")
	ErrNegativeCooldown    = errors.New("heat: cooldown curve must not be negative")
	ErrSpreadExponent      = errors.New("heat: spread exponent must be >= 0.1")
	ErrNoSpreadCurve       = errors.New("heat: heat-to-spread curve has no keys")
)

// Curves maps heat to spread, to heat gained per shot, and to heat lost per second.
type Curves struct {
	HeatToSpread            vmath.Curve `mapstructure:"heat_to_spread"`
	HeatToHeatPerShot       vmath.Curve `mapstructure:"heat_to_heat_per_shot"`
	HeatToCooldownPerSecond vmath.Curve `mapstructure:"heat_to_cooldown_per_second"`
}

// Config is the static tuning of one weapon's accuracy.
type Config struct {
	Curves `mapstructure:",squash"`

	SpreadExponent         float64 `mapstructure:"spread_exponent"`
	RecoveryDelay          float64 `mapstructure:"recovery_delay"` // seconds after a shot before heat decays
	AllowFirstShotAccuracy bool    `mapstructure:"allow_first_shot_accuracy"`

	MultiplierAiming        float64 `mapstructure:"multiplier_aiming"`
	MultiplierStandingStill float64 `mapstructure:"multiplier_standing_still"`
	MultiplierCrouching     float64 `mapstructure:"multiplier_crouching"`
	MultiplierAirborne      float64 `mapstructure:"multiplier_airborne"`

	TransitionRateAiming        float64 `mapstructure:"transition_rate_aiming"`
	TransitionRateStandingStill float64 `mapstructure:"transition_rate_standing_still"`
	TransitionRateCrouching     float64 `mapstructure:"transition_rate_crouching"`
	TransitionRateAirborne      float64 `mapstructure:"transition_rate_airborne"`

	StandingStillSpeedThreshold     float64 `mapstructure:"standing_still_speed_threshold"`
	StandingStillToMovingSpeedRange float64 `mapstructure:"standing_still_to_moving_speed_range"`
}

// DefaultConfig returns neutral tuning: every multiplier is 1 and heat gain/decay use
// the flat default curves.
func DefaultConfig() Config {
	return Config{
		Curves: Curves{
			HeatToSpread:            vmath.NewCurve(vmath.Key{Time: 0, Value: 0}, vmath.Key{Time: 10, Value: 5}),
			HeatToHeatPerShot:       vmath.Flat(1),
			HeatToCooldownPerSecond: vmath.Flat(2),
		},
		SpreadExponent:                  1,
		AllowFirstShotAccuracy:          false,
		MultiplierAiming:                1,
		MultiplierStandingStill:         1,
		MultiplierCrouching:             1,
		MultiplierAirborne:              1,
		TransitionRateAiming:            5,
		TransitionRateStandingStill:     5,
		TransitionRateCrouching:         5,
		TransitionRateAirborne:          5,
		StandingStillSpeedThreshold:     80,
		StandingStillToMovingSpeedRange: 20,
	}
}

// Validate checks the invariants the model relies on.
func (c Config) Validate() error {
	if !c.HeatToSpread.HasData() {
		return ErrNoSpreadCurve
	}
	if lo, _ := c.HeatToHeatPerShot.ValueRange(); lo < 0 {
		return ErrNegativeHeatPerShot
	}
	if lo, _ := c.HeatToCooldownPerSecond.ValueRange(); lo < 0 {
		return ErrNegativeCooldown
	}
	if c.SpreadExponent < 0.1 {
		return ErrSpreadExponent
	}
	return nil
}

// Movement is the per-tick environmental input for the multipliers.
type Movement struct {
	Speed     float64 // horizontal speed in units/s
	Crouching bool
	Airborne  bool
	AimAlpha  float64 // 0 = hip fire, 1 = fully aimed
}

// Multipliers is a read-only view of the smoothed multipliers.
type Multipliers struct {
	Aiming        float64 `json:"aiming"`
	StandingStill float64 `json:"standingStill"`
	Crouching     float64 `json:"crouching"`
	Airborne      float64 `json:"airborne"`
}

// Combined returns the product of the four multipliers.
func (m Multipliers) Combined() float64 {
	return m.Aiming * m.StandingStill * m.Crouching * m.Airborne
}

// State is the runtime heat of one weapon instance.
type State struct {
	cfg Config

	heat              float64
	minHeat, maxHeat  float64
	minSpread         float64
	maxSpread         float64
	mul               Multipliers
	firstShotAccuracy bool
	lastFired         float64
	hasFired          bool
	lastEquipped      float64
}

// New creates a state for cfg. The heat starts at the middle of its range.
func New(cfg Config) *State {
	cfg.HeatToSpread = cfg.HeatToSpread.Normalized()
	cfg.HeatToHeatPerShot = cfg.HeatToHeatPerShot.Normalized()
	cfg.HeatToCooldownPerSecond = cfg.HeatToCooldownPerSecond.Normalized()
	if cfg.SpreadExponent < 0.1 {
		cfg.SpreadExponent = 0.1
	}

	s := &State{cfg: cfg}
	s.minHeat, s.maxHeat = s.heatRange()
	s.minSpread, s.maxSpread = cfg.HeatToSpread.ValueRange()
	s.reset()
	return s
}

// heatRange is the union of the time ranges of all curves that have data.
func (s *State) heatRange() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, c := range []vmath.Curve{s.cfg.HeatToSpread, s.cfg.HeatToHeatPerShot, s.cfg.HeatToCooldownPerSecond} {
		if !c.HasData() {
			continue
		}
		a, b := c.TimeRange()
		lo = math.Min(lo, a)
		hi = math.Max(hi, b)
	}
	if lo > hi {
		return 0, 0
	}
	return lo, hi
}

func (s *State) reset() {
	s.heat = (s.minHeat + s.maxHeat) * 0.5
	s.mul = Multipliers{Aiming: 1, StandingStill: 1, Crouching: 1, Airborne: 1}
	s.firstShotAccuracy = false
}

func (s *State) clampHeat(h float64) float64 {
	return vmath.Clamp(h, s.minHeat, s.maxHeat)
}

// Config returns the tuning this state was built with.
func (s *State) Config() Config { return s.cfg }

// OnEquipped resets heat and multipliers when the weapon becomes live.
func (s *State) OnEquipped(now float64) {
	s.reset()
	s.lastEquipped = now
}

// MarkFired records the time of the last activation.
func (s *State) MarkFired(now float64) {
	s.lastFired = now
	s.hasFired = true
}

// TimeSinceLastInteraction is the time since the weapon was equipped or last fired,
// whichever is more recent.
func (s *State) TimeSinceLastInteraction(now float64) float64 {
	since := now - s.lastEquipped
	if s.hasFired {
		since = math.Min(since, now-s.lastFired)
	}
	return since
}

// AddSpread applies one shot's worth of heat.
func (s *State) AddSpread() {
	perShot := s.cfg.HeatToHeatPerShot.Eval(s.heat)
	s.heat = s.clampHeat(s.heat + perShot)
}

// Tick decays heat and advances the multipliers. Call once per simulation tick.
func (s *State) Tick(now, dt float64, m Movement) {
	if !s.hasFired || now-s.lastFired > s.cfg.RecoveryDelay {
		cooldown := s.cfg.HeatToCooldownPerSecond.Eval(s.heat)
		s.heat = s.clampHeat(s.heat - cooldown*dt)
	}

	minSpread := vmath.NearlyEqual(s.Spread(), s.minSpread, vmath.KindaSmallNumber)
	minMultipliers := s.updateMultipliers(dt, m)

	s.firstShotAccuracy = s.cfg.AllowFirstShotAccuracy && minSpread && minMultipliers
}

// updateMultipliers smooths each multiplier towards its target and reports whether
// all four sit at their best value.
func (s *State) updateMultipliers(dt float64, m Movement) bool {
	cfg := &s.cfg

	stillTarget := vmath.MapRangeClamped(m.Speed,
		cfg.StandingStillSpeedThreshold,
		cfg.StandingStillSpeedThreshold+cfg.StandingStillToMovingSpeedRange,
		cfg.MultiplierStandingStill, 1)
	s.mul.StandingStill = vmath.InterpTo(s.mul.StandingStill, stillTarget, dt, cfg.TransitionRateStandingStill)
	standingStill := vmath.NearlyEqual(s.mul.StandingStill, cfg.MultiplierStandingStill,
		cfg.MultiplierStandingStill*standingStillToleranceFraction)

	crouchTarget := 1.0
	if m.Crouching {
		crouchTarget = cfg.MultiplierCrouching
	}
	s.mul.Crouching = vmath.InterpTo(s.mul.Crouching, crouchTarget, dt, cfg.TransitionRateCrouching)
	crouching := vmath.NearlyEqual(s.mul.Crouching, cfg.MultiplierCrouching, multiplierNearlyEqualTolerance)

	airTarget := 1.0
	if m.Airborne {
		airTarget = cfg.MultiplierAirborne
	}
	s.mul.Airborne = vmath.InterpTo(s.mul.Airborne, airTarget, dt, cfg.TransitionRateAirborne)
	grounded := vmath.NearlyEqual(s.mul.Airborne, 1, multiplierNearlyEqualTolerance)

	aimTarget := vmath.MapRangeClamped(m.AimAlpha, 0, 1, 1, cfg.MultiplierAiming)
	s.mul.Aiming = vmath.InterpTo(s.mul.Aiming, aimTarget, dt, cfg.TransitionRateAiming)
	aimed := vmath.NearlyEqual(s.mul.Aiming, cfg.MultiplierAiming, vmath.KindaSmallNumber)

	return standingStill && crouching && grounded && aimed
}

// Heat returns the current heat.
func (s *State) Heat() float64 { return s.heat }

// HeatRange returns the bounds heat is clamped to.
func (s *State) HeatRange() (lo, hi float64) { return s.minHeat, s.maxHeat }

// Spread returns the spread angle in degrees for the current heat.
func (s *State) Spread() float64 {
	return s.cfg.HeatToSpread.Eval(s.heat)
}

// SpreadRange returns the smallest and largest spread the curve can produce.
func (s *State) SpreadRange() (lo, hi float64) { return s.minSpread, s.maxSpread }

// SpreadMultiplier returns the combined multiplier, or 0 while first shot accuracy holds.
func (s *State) SpreadMultiplier() float64 {
	if s.firstShotAccuracy {
		return 0
	}
	return s.mul.Combined()
}

// SpreadExponent is forwarded to the cone distribution.
func (s *State) SpreadExponent() float64 { return s.cfg.SpreadExponent }

// FirstShotAccuracy reports the value computed on the last Tick.
func (s *State) FirstShotAccuracy() bool { return s.firstShotAccuracy }

// Multipliers returns the current smoothed multipliers.
func (s *State) Multipliers() Multipliers { return s.mul }
