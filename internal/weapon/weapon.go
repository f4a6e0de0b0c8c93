// Package weapon holds weapon definitions and the per-instance runtime state:
// ammunition, fire cooldown, charge and the heat model.
package weapon

import (
	"arena-combat/internal/heat"
	"arena-combat/internal/targeting"
	"arena-combat/internal/vmath"

	"github.com/pkg/errors"
)

var (
	ErrNoAmmo     = errors.New("weapon: magazine empty")
	ErrCooldown   = errors.New("weapon: fire cooldown not elapsed")
	ErrNoFireMode = errors.New("weapon: definition has no fire mode")
)

// Config is the static definition of a weapon.
type Config struct {
	ID   string `json:"id" mapstructure:"id"`
	Name string `json:"name" mapstructure:"name"`

	// MagazineSize of 0 means unlimited ammunition.
	MagazineSize int `json:"magazineSize" mapstructure:"magazine_size"`
	// ReserveAmmo refills the magazine on Reload.
	ReserveAmmo int `json:"reserveAmmo" mapstructure:"reserve_ammo"`
	// FireInterval is the minimum time between two commits, in seconds.
	FireInterval float64 `json:"fireInterval" mapstructure:"fire_interval"`

	Source targeting.Source `json:"source" mapstructure:"-"`
	Heat   heat.Config      `json:"heat" mapstructure:"heat"`
	Mode   FireMode         `json:"mode" mapstructure:"-"`
}

// Validate checks the definition.
func (c *Config) Validate() error {
	if c.Mode == nil {
		return errors.Wrapf(ErrNoFireMode, "weapon %q", c.ID)
	}
	return errors.Wrapf(c.Heat.Validate(), "weapon %q", c.ID)
}

// Instance is one live weapon.
type Instance struct {
	cfg  *Config
	heat *heat.State

	magazine int
	reserve  int

	lastCommit   float64
	hasCommitted bool
	chargeTime   float64
	equipped     bool
}

// NewInstance creates a weapon with a full magazine.
func NewInstance(cfg *Config) *Instance {
	return &Instance{
		cfg:      cfg,
		heat:     heat.New(cfg.Heat),
		magazine: cfg.MagazineSize,
		reserve:  cfg.ReserveAmmo,
	}
}

func (w *Instance) Config() *Config { return w.cfg }

// Accuracy exposes the heat/spread state.
func (w *Instance) Accuracy() *heat.State { return w.heat }

func (w *Instance) Mode() FireMode { return w.cfg.Mode }

// Hitscan returns the hitscan fire mode, if that is what the weapon uses.
func (w *Instance) Hitscan() (*HitscanMode, bool) {
	m, ok := w.cfg.Mode.(*HitscanMode)
	return m, ok
}

// Projectile returns the projectile fire mode, if that is what the weapon uses.
func (w *Instance) Projectile() (*ProjectileMode, bool) {
	m, ok := w.cfg.Mode.(*ProjectileMode)
	return m, ok
}

// OnEquipped is called when the weapon becomes the live one.
func (w *Instance) OnEquipped(now float64) {
	w.equipped = true
	w.heat.OnEquipped(now)
}

// OnUnequipped is called when the weapon stops being live.
func (w *Instance) OnUnequipped(now float64) {
	w.equipped = false
	w.ResetCharge()
}

// Equipped reports whether the weapon is the live one.
func (w *Instance) Equipped() bool { return w.equipped }

// Tick advances the heat model.
func (w *Instance) Tick(now, dt float64, m heat.Movement) {
	w.heat.Tick(now, dt, m)
}

// UpdateFiringTime records an activation for heat recovery.
func (w *Instance) UpdateFiringTime(now float64) {
	w.heat.MarkFired(now)
}

// CanCommit reports whether a shot can be paid for right now.
func (w *Instance) CanCommit(now float64) error {
	if w.hasCommitted && now-w.lastCommit < w.cfg.FireInterval {
		return ErrCooldown
	}
	if w.cfg.MagazineSize > 0 && w.magazine <= 0 {
		return ErrNoAmmo
	}
	return nil
}

// Commit pays for one shot: one round of ammunition and the fire cooldown.
func (w *Instance) Commit(now float64) error {
	if err := w.CanCommit(now); err != nil {
		return err
	}
	if w.cfg.MagazineSize > 0 {
		w.magazine--
	}
	w.lastCommit = now
	w.hasCommitted = true
	return nil
}

// AddSpread spends one shot's heat.
func (w *Instance) AddSpread() {
	w.heat.AddSpread()
}

// Reload moves rounds from the reserve into the magazine and returns how many moved.
func (w *Instance) Reload() int {
	if w.cfg.MagazineSize <= 0 {
		return 0
	}
	n := w.cfg.MagazineSize - w.magazine
	if n > w.reserve {
		n = w.reserve
	}
	w.magazine += n
	w.reserve -= n
	return n
}

// Restock refills magazine and reserve to the definition's amounts.
func (w *Instance) Restock() {
	w.magazine = w.cfg.MagazineSize
	w.reserve = w.cfg.ReserveAmmo
}

// Ammo returns the magazine and reserve counts.
func (w *Instance) Ammo() (magazine, reserve int) {
	return w.magazine, w.reserve
}

// SetChargeTime freezes the held duration, clamped into [0, MaxChargeTime].
func (w *Instance) SetChargeTime(held float64) {
	pm, ok := w.Projectile()
	if !ok || pm.Charge == nil {
		w.chargeTime = 0
		return
	}
	w.chargeTime = vmath.Clamp(held, 0, pm.Charge.MaxChargeTime)
}

// ResetCharge clears the frozen charge.
func (w *Instance) ResetCharge() { w.chargeTime = 0 }

// ChargeTime returns the frozen held duration.
func (w *Instance) ChargeTime() float64 { return w.chargeTime }

// ChargeLevel returns the charge normalized to [0,1].
func (w *Instance) ChargeLevel() float64 {
	pm, ok := w.Projectile()
	if !ok || pm.Charge == nil || pm.Charge.MaxChargeTime <= 0 {
		return 0
	}
	return vmath.Clamp(w.chargeTime/pm.Charge.MaxChargeTime, 0, 1)
}

func (w *Instance) chargeFactor(pick func(*ChargeConfig) vmath.Curve) float64 {
	pm, ok := w.Projectile()
	if !ok || pm.Charge == nil {
		return 1
	}
	return pick(pm.Charge).EvalOr(w.ChargeLevel(), 1)
}

// ProjectileSpeed is the launch speed including charge.
func (w *Instance) ProjectileSpeed() float64 {
	pm, ok := w.Projectile()
	if !ok {
		return 0
	}
	return pm.Speed * w.chargeFactor(func(c *ChargeConfig) vmath.Curve { return c.SpeedCurve })
}

// DamageMultiplier is the projectile damage multiplier including charge.
func (w *Instance) DamageMultiplier() float64 {
	pm, ok := w.Projectile()
	if !ok {
		return 1
	}
	return pm.DamageMultiplier * w.chargeFactor(func(c *ChargeConfig) vmath.Curve { return c.DamageCurve })
}

// ProjectileScale is the projectile size multiplier including charge.
func (w *Instance) ProjectileScale() float64 {
	pm, ok := w.Projectile()
	if !ok {
		return 1
	}
	return pm.SizeMultiplier * w.chargeFactor(func(c *ChargeConfig) vmath.Curve { return c.SizeCurve })
}

// DistanceAttenuation returns the falloff factor of the current fire mode.
func (w *Instance) DistanceAttenuation(d float64) float64 {
	switch m := w.cfg.Mode.(type) {
	case *HitscanMode:
		return m.Distance(d)
	case *ProjectileMode:
		return m.Distance(d)
	}
	return 1
}

// MaterialAttenuation returns the material multiplier of the current fire mode.
func (w *Instance) MaterialAttenuation(material string) float64 {
	switch m := w.cfg.Mode.(type) {
	case *HitscanMode:
		return m.Material(material)
	case *ProjectileMode:
		return m.Material(material)
	}
	return 1
}
