package effect

import (
	"testing"

	"arena-combat/internal/vmath"
	"arena-combat/internal/world"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMagnitude(t *testing.T) {
	tmpl := &Template{
		ID:         "explosion",
		Magnitude:  -100,
		LevelScale: vmath.NewCurve(vmath.Key{Time: 0.1, Value: 1}, vmath.Key{Time: 1, Value: 0.25}),
	}

	tests := []struct {
		name string
		spec Spec
		want float64
	}{
		{"center", NewSpec(tmpl, 1).WithLevel(0.1), -100},
		{"edge", NewSpec(tmpl, 1).WithLevel(1), -25},
		{"charged", NewSpec(tmpl, 1).WithLevel(0.1).WithSetByCaller(SetByCallerCharge, 3), -300},
		{"falloff and material", NewSpec(tmpl, 1).WithLevel(0.1).
			WithSetByCaller(SetByCallerFalloff, 0.5).
			WithSetByCaller(SetByCallerMaterial, 2), -100},
		{"no template", Spec{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Magnitude(tt.spec), 1e-9)
		})
	}
}

func TestWithSetByCallerCopies(t *testing.T) {
	base := NewSpec(&Template{ID: "x"}, 1).WithSetByCaller(SetByCallerCharge, 2)
	derived := base.WithSetByCaller(SetByCallerFalloff, 0.5)

	assert.Len(t, base.SetByCaller, 1)
	assert.Len(t, derived.SetByCaller, 2)
}

func TestMemoryEngineInstant(t *testing.T) {
	e := NewMemoryEngine()
	e.Register(1, 100)

	var got []Applied
	e.SetListener(func(a Applied) { got = append(got, a) })

	h, err := e.Apply(NewSpec(&Template{ID: "rifle", Magnitude: -30}, 9), 1)
	require.NoError(t, err)
	assert.False(t, h.Valid())

	hp, ok := e.Health(1)
	require.True(t, ok)
	assert.Equal(t, 70.0, hp)

	_, err = e.Apply(NewSpec(&Template{ID: "rifle", Magnitude: -300}, 9), 1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[1].Killed)
	assert.Equal(t, world.EntityID(9), got[1].Instigator)
	assert.Equal(t, 0.0, got[1].Health)
}

func TestMemoryEngineErrors(t *testing.T) {
	e := NewMemoryEngine()

	_, err := e.Apply(Spec{}, 1)
	assert.ErrorIs(t, err, ErrNoTemplate)

	_, err = e.Apply(NewSpec(&Template{ID: "x"}, 0), 42)
	assert.ErrorIs(t, err, ErrUnknownTarget)

	assert.False(t, e.Remove(Handle(77), 0))
}

func TestMemoryEnginePeriodicInfinite(t *testing.T) {
	e := NewMemoryEngine()
	e.Register(1, 100)

	dot := &Template{ID: "burn", Policy: Infinite, Period: 1, Magnitude: -5}
	h, err := e.Apply(NewSpec(dot, 2), 1)
	require.NoError(t, err)
	require.True(t, h.Valid())
	assert.Equal(t, 1, e.ActiveCount(1))

	hp, _ := e.Health(1)
	assert.Equal(t, 95.0, hp, "executes on application")

	e.Tick(2.5)
	hp, _ = e.Health(1)
	assert.Equal(t, 85.0, hp)

	require.True(t, e.Remove(h, 0))
	assert.False(t, e.Remove(h, 0), "second removal is a no-op")
	assert.Equal(t, 0, e.ActiveCount(1))

	e.Tick(5)
	hp, _ = e.Health(1)
	assert.Equal(t, 85.0, hp)
}

func TestMemoryEngineDurationExpires(t *testing.T) {
	e := NewMemoryEngine()
	e.Register(1, 100)

	_, err := e.Apply(NewSpec(&Template{ID: "slow", Policy: HasDuration, Duration: 2}, 0), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, e.ActiveCount(1))

	e.Tick(1)
	assert.Equal(t, 1, e.ActiveCount(1))
	e.Tick(1.5)
	assert.Equal(t, 0, e.ActiveCount(1))
}

func TestUnregisterDropsActiveEffects(t *testing.T) {
	e := NewMemoryEngine()
	e.Register(1, 100)
	_, err := e.Apply(NewSpec(&Template{ID: "aura", Policy: Infinite}, 0), 1)
	require.NoError(t, err)

	e.Unregister(1)
	assert.Equal(t, 0, e.ActiveCount(1))
	_, ok := e.Health(1)
	assert.False(t, ok)
}

func TestParseDurationPolicy(t *testing.T) {
	for _, p := range []DurationPolicy{Instant, HasDuration, Infinite} {
		assert.Equal(t, p, ParseDurationPolicy(p.String()))
	}
	assert.Equal(t, Instant, ParseDurationPolicy("bogus"))
}
