// Package hitscan resolves instant-hit weapon traces.
//
// A bullet is first traced as a line. When the line finds no pawn and the weapon
// has a sweep radius, a sphere sweep along the same path may replace the line
// result, but only if nothing solid stands in front of the pawn it found.
package hitscan

import (
	"arena-combat/internal/targeting"
	"arena-combat/internal/vmath"
	"arena-combat/internal/world"
)

// Resolver runs weapon traces against the world.
type Resolver struct {
	tracer world.Tracer
}

func NewResolver(t world.Tracer) *Resolver {
	return &Resolver{tracer: t}
}

// WeaponTrace runs one trace and drops repeated hits on the same entity.
func (r *Resolver) WeaponTrace(start, end vmath.Vec3, radius float64, ignore []world.EntityID) []world.Hit {
	return Dedup(r.tracer.Trace(start, end, radius, ignore))
}

// Trace is the two-pass bullet trace.
func (r *Resolver) Trace(start, end vmath.Vec3, sweepRadius float64, ignore []world.EntityID) []world.Hit {
	hits := r.WeaponTrace(start, end, 0, ignore)
	if FirstPawnIndex(hits) >= 0 || sweepRadius <= 0 {
		return hits
	}

	sweep := r.WeaponTrace(start, end, sweepRadius, ignore)
	pawn := FirstPawnIndex(sweep)
	if pawn < 0 || blockedBefore(sweep, pawn) {
		return hits
	}
	for i := range sweep {
		sweep[i].Replaced = true
	}
	return sweep
}

// blockedBefore reports whether a blocking non-pawn hit comes before index pawn.
func blockedBefore(hits []world.Hit, pawn int) bool {
	for _, h := range hits[:pawn] {
		if h.Blocking && !h.IsPawn() {
			return true
		}
	}
	return false
}

// FirstPawnIndex returns the index of the first pawn hit, or -1.
func FirstPawnIndex(hits []world.Hit) int {
	for i, h := range hits {
		if h.IsPawn() {
			return i
		}
	}
	return -1
}

// Dedup keeps the first hit per entity, preserving order. Hits without an entity
// are all kept.
func Dedup(hits []world.Hit) []world.Hit {
	if len(hits) < 2 {
		return hits
	}
	seen := make(map[world.EntityID]struct{}, len(hits))
	out := hits[:0:0]
	for _, h := range hits {
		if h.HasEntity() {
			if _, dup := seen[h.Entity]; dup {
				continue
			}
			seen[h.Entity] = struct{}{}
		}
		out = append(out, h)
	}
	return out
}

// Cartridge is one trigger pull worth of bullets.
type Cartridge struct {
	Origin    vmath.Vec3
	Direction vmath.Vec3
	Bullets   int
	MaxRange  float64

	SweepRadius float64
	// HalfAngle is the spread cone half angle in radians.
	HalfAngle float64
	Exponent  float64

	Ignore []world.EntityID
}

// Bullet is the result of one bullet of a cartridge.
type Bullet struct {
	Direction vmath.Vec3  `json:"direction"`
	Hits      []world.Hit `json:"hits"`
}

// TraceCartridge traces every bullet along its own spread direction. Each bullet
// yields at least one hit; a miss is reported as a non-blocking hit at the trace end.
func (r *Resolver) TraceCartridge(c Cartridge, rng targeting.Rand) []Bullet {
	n := c.Bullets
	if n < 1 {
		n = 1
	}
	out := make([]Bullet, 0, n)
	for i := 0; i < n; i++ {
		dir := targeting.RandCone(rng, c.Direction, c.HalfAngle, c.Exponent)
		end := c.Origin.Add(dir.Scale(c.MaxRange))

		hits := r.Trace(c.Origin, end, c.SweepRadius, c.Ignore)
		if len(hits) == 0 {
			hits = []world.Hit{Miss(c.Origin, end)}
		}
		out = append(out, Bullet{Direction: dir, Hits: hits})
	}
	return out
}

// Miss builds the placeholder hit for a bullet that hit nothing.
func Miss(start, end vmath.Vec3) world.Hit {
	return world.Hit{
		Location:    end,
		ImpactPoint: end,
		Normal:      start.Sub(end).Normalize(),
		Distance:    vmath.Dist(start, end),
		TraceStart:  start,
		TraceEnd:    end,
	}
}

// Flatten concatenates the hits of all bullets.
func Flatten(bullets []Bullet) []world.Hit {
	var out []world.Hit
	for _, b := range bullets {
		out = append(out, b.Hits...)
	}
	return out
}
