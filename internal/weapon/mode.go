package weapon

import (
	"arena-combat/internal/areaeffect"
	"arena-combat/internal/effect"
	"arena-combat/internal/vmath"
)

// Defaults recovered from the shipped weapon tuning.
const (
	DefaultMaxDamageRange  = 25000.0
	DefaultProjectileSpeed = 1000.0
	DefaultLifespan        = 10.0
	DefaultBullets         = 1
)

// FireMode is the tagged union of weapon firing behaviors: HitscanMode or ProjectileMode.
type FireMode interface {
	Kind() ModeKind
	DamageEffect() *effect.Template
	isFireMode()
}

// ModeKind names a FireMode variant.
type ModeKind uint8

const (
	ModeHitscan ModeKind = iota
	ModeProjectile
)

func (k ModeKind) String() string {
	if k == ModeProjectile {
		return "projectile"
	}
	return "hitscan"
}

// Attenuation scales damage by travel distance and by the physical material that was hit.
type Attenuation struct {
	DistanceFalloff     vmath.Curve        `json:"distanceFalloff" mapstructure:"distance_falloff"`
	MaterialMultipliers map[string]float64 `json:"materialMultipliers,omitempty" mapstructure:"material_multipliers"`
}

// Distance returns the falloff factor at distance d, 1 when no curve is set.
func (a Attenuation) Distance(d float64) float64 {
	return a.DistanceFalloff.EvalOr(d, 1)
}

// Material returns the multiplier for a physical material, 1 when unlisted.
func (a Attenuation) Material(name string) float64 {
	if m, ok := a.MaterialMultipliers[name]; ok {
		return m
	}
	return 1
}

// HitscanMode traces rays instantly.
type HitscanMode struct {
	Attenuation `mapstructure:",squash"`

	BulletsPerCartridge int     `json:"bulletsPerCartridge" mapstructure:"bullets_per_cartridge"`
	MaxDamageRange      float64 `json:"maxDamageRange" mapstructure:"max_damage_range"`
	// SweepRadius enables the forgiving second pass against pawns. Zero disables it.
	SweepRadius float64 `json:"sweepRadius" mapstructure:"sweep_radius"`

	Damage *effect.Template `json:"damage" mapstructure:"-"`
}

func (*HitscanMode) Kind() ModeKind                   { return ModeHitscan }
func (m *HitscanMode) DamageEffect() *effect.Template { return m.Damage }
func (*HitscanMode) isFireMode()                      {}

// ProjectileMode spawns a physical projectile.
type ProjectileMode struct {
	Attenuation `mapstructure:",squash"`

	ProjectilesPerCartridge int     `json:"projectilesPerCartridge" mapstructure:"projectiles_per_cartridge"`
	Speed                   float64 `json:"speed" mapstructure:"speed"`
	GravityScale            float64 `json:"gravityScale" mapstructure:"gravity_scale"`
	Lifespan                float64 `json:"lifespan" mapstructure:"lifespan"`
	Radius                  float64 `json:"radius" mapstructure:"radius"`
	DamageMultiplier        float64 `json:"damageMultiplier" mapstructure:"damage_multiplier"`
	SizeMultiplier          float64 `json:"sizeMultiplier" mapstructure:"size_multiplier"`
	// Overlap projectiles pass through targets, damaging each one once.
	Overlap bool `json:"overlap" mapstructure:"overlap"`

	Charge *ChargeConfig `json:"charge,omitempty" mapstructure:"charge"`

	Damage     *effect.Template   `json:"damage" mapstructure:"-"`
	AreaEffect *areaeffect.Config `json:"areaEffect,omitempty" mapstructure:"-"`
}

func (*ProjectileMode) Kind() ModeKind                   { return ModeProjectile }
func (m *ProjectileMode) DamageEffect() *effect.Template { return m.Damage }
func (*ProjectileMode) isFireMode()                      {}

// ChargeConfig makes a projectile weapon scale with how long the input was held.
// The curves are evaluated at the normalized charge in [0,1].
type ChargeConfig struct {
	MaxChargeTime float64     `json:"maxChargeTime" mapstructure:"max_charge_time"`
	SpeedCurve    vmath.Curve `json:"speedCurve" mapstructure:"speed_curve"`
	DamageCurve   vmath.Curve `json:"damageCurve" mapstructure:"damage_curve"`
	SizeCurve     vmath.Curve `json:"sizeCurve" mapstructure:"size_curve"`
}

// DefaultChargeConfig doubles speed, triples damage and grows the projectile 10.5x at full charge.
func DefaultChargeConfig(maxChargeTime float64) *ChargeConfig {
	return &ChargeConfig{
		MaxChargeTime: maxChargeTime,
		SpeedCurve:    vmath.NewCurve(vmath.Key{Time: 0, Value: 1}, vmath.Key{Time: 1, Value: 2}),
		DamageCurve:   vmath.NewCurve(vmath.Key{Time: 0, Value: 1}, vmath.Key{Time: 1, Value: 3}),
		SizeCurve:     vmath.NewCurve(vmath.Key{Time: 0, Value: 1}, vmath.Key{Time: 1, Value: 10.5}),
	}
}

// Normalize fills zero fields with defaults.
func (m *HitscanMode) Normalize() {
	if m.BulletsPerCartridge <= 0 {
		m.BulletsPerCartridge = DefaultBullets
	}
	if m.MaxDamageRange <= 0 {
		m.MaxDamageRange = DefaultMaxDamageRange
	}
}

// Normalize fills zero fields with defaults.
func (m *ProjectileMode) Normalize() {
	if m.ProjectilesPerCartridge <= 0 {
		m.ProjectilesPerCartridge = DefaultBullets
	}
	if m.Speed <= 0 {
		m.Speed = DefaultProjectileSpeed
	}
	if m.Lifespan <= 0 {
		m.Lifespan = DefaultLifespan
	}
	if m.DamageMultiplier <= 0 {
		m.DamageMultiplier = 1
	}
	if m.SizeMultiplier <= 0 {
		m.SizeMultiplier = 1
	}
	if m.Radius <= 0 {
		m.Radius = 5
	}
}
