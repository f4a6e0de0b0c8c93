package vmath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestCurveEval(t *testing.T) {
	c := NewCurve(Key{Time: 10, Value: 5}, Key{Time: 0, Value: 1})

	tests := []struct {
		name string
		t    float64
		want float64
	}{
		{"before first key", -5, 1},
		{"first key", 0, 1},
		{"midpoint", 5, 3},
		{"last key", 10, 5},
		{"after last key", 20, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, c.Eval(tt.t), 1e-9)
		})
	}
}

func TestCurveRanges(t *testing.T) {
	c := NewCurve(Key{0, 4}, Key{50, 1}, Key{100, 9})

	lo, hi := c.TimeRange()
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 100.0, hi)

	lo, hi = c.ValueRange()
	assert.Equal(t, 1.0, lo)
	assert.Equal(t, 9.0, hi)

	var empty Curve
	assert.False(t, empty.HasData())
	assert.Equal(t, 7.0, empty.EvalOr(3, 7))
}

func TestInterpTo(t *testing.T) {
	assert.Equal(t, 2.0, InterpTo(1, 2, 0.1, 0), "non-positive speed snaps")
	assert.InDelta(t, 1.5, InterpTo(1, 2, 0.1, 5), 1e-9)
	assert.Equal(t, 2.0, InterpTo(1, 2, 1, 5), "alpha clamps to one")
	assert.Equal(t, 2.0, InterpTo(2-1e-5, 2, 0.1, 5), "tiny distance snaps")
}

func TestMapRangeClamped(t *testing.T) {
	assert.Equal(t, 0.5, MapRangeClamped(80, 80, 100, 0.5, 1))
	assert.Equal(t, 1.0, MapRangeClamped(500, 80, 100, 0.5, 1))
	assert.InDelta(t, 0.75, MapRangeClamped(90, 80, 100, 0.5, 1), 1e-9)
	assert.Equal(t, 0.5, MapRangeClamped(0, 80, 100, 0.5, 1))
}

func TestRotateAroundAxis(t *testing.T) {
	v := RotateAroundAxis(Forward, Up, math.Pi/2)
	assert.True(t, NearlyEqualVec(v, Right, 1e-9), "got %+v", v)

	// Rotating around itself is the identity.
	v = RotateAroundAxis(Forward, Forward, 1.234)
	assert.True(t, NearlyEqualVec(v, Forward, 1e-9))
}

func TestPerpendicularIsOrthogonal(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := V(
			rapid.Float64Range(-10, 10).Draw(t, "x"),
			rapid.Float64Range(-10, 10).Draw(t, "y"),
			rapid.Float64Range(-10, 10).Draw(t, "z"),
		)
		if v.Len() < 1e-3 {
			t.Skip("degenerate vector")
		}
		p := Perpendicular(v)
		require.InDelta(t, 1.0, p.Len(), 1e-9)
		require.InDelta(t, 0.0, p.Dot(v.Normalize()), 1e-9)
	})
}

func TestClosestPointOnSegment(t *testing.T) {
	p, alpha := ClosestPointOnSegment(V(5, 3, 0), V(0, 0, 0), V(10, 0, 0))
	assert.Equal(t, V(5, 0, 0), p)
	assert.InDelta(t, 0.5, alpha, 1e-9)

	p, alpha = ClosestPointOnSegment(V(-5, 3, 0), V(0, 0, 0), V(10, 0, 0))
	assert.Equal(t, V(0, 0, 0), p)
	assert.Equal(t, 0.0, alpha)
}
