package vmath

import "sort"

// Key is one (time, value) point of a Curve.
type Key struct {
	Time  float64 `json:"time" mapstructure:"time"`
	Value float64 `json:"value" mapstructure:"value"`
}

// Curve is a piecewise linear function over sorted keys.
// Outside the keyed range the end values are held constant.
type Curve struct {
	Keys []Key `json:"keys" mapstructure:"keys"`
}

// NewCurve sorts the keys by time and returns the curve.
func NewCurve(keys ...Key) Curve {
	c := Curve{Keys: append([]Key(nil), keys...)}
	c.sort()
	return c
}

// Flat returns a single-key curve that evaluates to value everywhere.
func Flat(value float64) Curve {
	return Curve{Keys: []Key{{Time: 0, Value: value}}}
}

func (c *Curve) sort() {
	sort.SliceStable(c.Keys, func(i, j int) bool { return c.Keys[i].Time < c.Keys[j].Time })
}

// HasData reports whether the curve has at least one key.
func (c Curve) HasData() bool {
	return len(c.Keys) > 0
}

// Eval returns the curve value at t, or 0 for an empty curve.
func (c Curve) Eval(t float64) float64 {
	n := len(c.Keys)
	switch {
	case n == 0:
		return 0
	case t <= c.Keys[0].Time:
		return c.Keys[0].Value
	case t >= c.Keys[n-1].Time:
		return c.Keys[n-1].Value
	}

	i := sort.Search(n, func(i int) bool { return c.Keys[i].Time >= t })
	a, b := c.Keys[i-1], c.Keys[i]
	span := b.Time - a.Time
	if span <= 0 {
		return b.Value
	}
	alpha := (t - a.Time) / span
	return a.Value + (b.Value-a.Value)*alpha
}

// EvalOr returns fallback when the curve has no keys.
func (c Curve) EvalOr(t, fallback float64) float64 {
	if !c.HasData() {
		return fallback
	}
	return c.Eval(t)
}

// TimeRange returns the first and last key times.
func (c Curve) TimeRange() (lo, hi float64) {
	if len(c.Keys) == 0 {
		return 0, 0
	}
	return c.Keys[0].Time, c.Keys[len(c.Keys)-1].Time
}

// ValueRange returns the smallest and largest key values.
func (c Curve) ValueRange() (lo, hi float64) {
	if len(c.Keys) == 0 {
		return 0, 0
	}
	lo, hi = c.Keys[0].Value, c.Keys[0].Value
	for _, k := range c.Keys[1:] {
		if k.Value < lo {
			lo = k.Value
		}
		if k.Value > hi {
			hi = k.Value
		}
	}
	return lo, hi
}

// Normalized returns a copy with keys sorted by time.
// Curves decoded from config files are not guaranteed to be ordered.
func (c Curve) Normalized() Curve {
	return NewCurve(c.Keys...)
}
