package world

import (
	"math"
	"sort"
	"sync"

	"arena-combat/internal/vmath"
)

// Body is one collision shape. A sphere when HalfExtents is zero, an axis-aligned box otherwise.
type Body struct {
	Entity      EntityID
	Kind        Kind
	Response    Response
	Center      vmath.Vec3
	Radius      float64
	HalfExtents vmath.Vec3
	Material    string
	Owner       EntityID // instigating actor, e.g. the pawn that fired a projectile
	AttachedTo  EntityID // pawn this body is attached to
	Combatant   bool
}

func (b *Body) isBox() bool {
	return b.HalfExtents != vmath.Zero
}

func (b *Body) extentXY() (float64, float64) {
	if b.isBox() {
		return b.HalfExtents.X, b.HalfExtents.Y
	}
	return b.Radius, b.Radius
}

// Space is a mutex-guarded in-memory world. The grid is rebuilt lazily after mutations,
// the same way the tick loop rebuilt its spatial grid every frame.
type Space struct {
	mu sync.Mutex

	bodies   []Body
	alive    []bool
	free     []uint32
	byEntity map[EntityID][]uint32

	grid       *Grid
	dirty      bool
	nextEntity EntityID
}

// NewSpace creates an empty world.
func NewSpace(bounds Bounds, cellSize float64, maxBodies int) *Space {
	return &Space{
		bodies:   make([]Body, 0, maxBodies),
		alive:    make([]bool, 0, maxBodies),
		byEntity: make(map[EntityID][]uint32),
		grid:     NewGrid(bounds, cellSize, maxBodies),
	}
}

// NewEntity reserves a fresh EntityID.
func (s *Space) NewEntity() EntityID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEntity++
	return s.nextEntity
}

// AddBody registers a shape. The first body added for an entity is its primary body.
func (s *Space) AddBody(b Body) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var idx uint32
	if n := len(s.free); n > 0 {
		idx = s.free[n-1]
		s.free = s.free[:n-1]
		s.bodies[idx] = b
		s.alive[idx] = true
	} else {
		idx = uint32(len(s.bodies))
		s.bodies = append(s.bodies, b)
		s.alive = append(s.alive, true)
	}
	s.byEntity[b.Entity] = append(s.byEntity[b.Entity], idx)
	s.dirty = true
}

// MoveEntity translates every body of the entity so its primary body is centered at loc.
func (s *Space) MoveEntity(id EntityID, loc vmath.Vec3) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idxs := s.byEntity[id]
	if len(idxs) == 0 {
		return false
	}
	delta := loc.Sub(s.bodies[idxs[0]].Center)
	for _, idx := range idxs {
		s.bodies[idx].Center = s.bodies[idx].Center.Add(delta)
	}
	s.dirty = true
	return true
}

// RemoveEntity drops all bodies of the entity.
func (s *Space) RemoveEntity(id EntityID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, idx := range s.byEntity[id] {
		s.alive[idx] = false
		s.bodies[idx] = Body{}
		s.free = append(s.free, idx)
	}
	delete(s.byEntity, id)
	s.dirty = true
}

// Locate implements Locator using the entity's primary body.
func (s *Space) Locate(id EntityID) (Actor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idxs := s.byEntity[id]
	if len(idxs) == 0 {
		return Actor{}, false
	}
	b := s.bodies[idxs[0]]
	return Actor{
		ID:        id,
		Kind:      b.Kind,
		Location:  b.Center,
		Owner:     b.Owner,
		Combatant: b.Combatant,
	}, true
}

// Stats exposes the broad-phase grid statistics.
func (s *Space) Stats() GridStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rebuildLocked()
	return s.grid.Stats()
}

func (s *Space) rebuildLocked() {
	if !s.dirty {
		return
	}
	s.grid.Clear()
	for i := range s.bodies {
		if !s.alive[i] {
			continue
		}
		b := &s.bodies[i]
		ex, ey := b.extentXY()
		s.grid.Insert(uint32(i), b.Center.X-ex, b.Center.Y-ey, b.Center.X+ex, b.Center.Y+ey)
	}
	s.dirty = false
}

func ignored(b *Body, ignore []EntityID) bool {
	if Contains(ignore, b.Entity) {
		return true
	}
	return b.AttachedTo != NoEntity && Contains(ignore, b.AttachedTo)
}

// Trace implements Tracer. Overlap responses are collected until the first blocking hit,
// which ends the result.
func (s *Space) Trace(start, end vmath.Vec3, radius float64, ignore []EntityID) []Hit {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rebuildLocked()

	minX, maxX := math.Min(start.X, end.X)-radius, math.Max(start.X, end.X)+radius
	minY, maxY := math.Min(start.Y, end.Y)-radius, math.Max(start.Y, end.Y)+radius

	var hits []Hit
	for _, idx := range s.grid.Query(minX, minY, maxX, maxY) {
		b := &s.bodies[idx]
		if ignored(b, ignore) {
			continue
		}
		hit, ok := sweepBody(b, start, end, radius)
		if !ok {
			continue
		}
		hits = append(hits, hit)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	for i := range hits {
		if hits[i].Blocking {
			return hits[:i+1]
		}
	}
	return hits
}

// Overlap implements Overlapper. Entities are ordered by distance to their nearest body.
func (s *Space) Overlap(center vmath.Vec3, radius float64, ignore []EntityID) []EntityID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rebuildLocked()

	nearest := make(map[EntityID]float64)
	for _, idx := range s.grid.QueryRadius(center.X, center.Y, radius) {
		b := &s.bodies[idx]
		if ignored(b, ignore) {
			continue
		}
		d, ok := overlapBody(b, center, radius)
		if !ok {
			continue
		}
		if cur, seen := nearest[b.Entity]; !seen || d < cur {
			nearest[b.Entity] = d
		}
	}

	out := make([]EntityID, 0, len(nearest))
	for id := range nearest {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		if nearest[out[i]] != nearest[out[j]] {
			return nearest[out[i]] < nearest[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

func newHit(b *Body, start, end vmath.Vec3, t float64) Hit {
	d := end.Sub(start)
	return Hit{
		Entity:         b.Entity,
		Kind:           b.Kind,
		Blocking:       b.Response == Block,
		Location:       start.Add(d.Scale(t)),
		Distance:       t * d.Len(),
		Material:       b.Material,
		TraceStart:     start,
		TraceEnd:       end,
		AttachedToPawn: b.AttachedTo,
	}
}

func sweepBody(b *Body, start, end vmath.Vec3, radius float64) (Hit, bool) {
	if b.isBox() {
		return sweepBox(b, start, end, radius)
	}
	return sweepSphere(b, start, end, radius)
}

func sweepSphere(b *Body, start, end vmath.Vec3, radius float64) (Hit, bool) {
	d := end.Sub(start)
	m := start.Sub(b.Center)
	r := b.Radius + radius

	var t float64
	c := m.LenSq() - r*r
	if c > 0 {
		a := d.LenSq()
		if a == 0 {
			return Hit{}, false
		}
		half := m.Dot(d)
		disc := half*half - a*c
		if disc < 0 {
			return Hit{}, false
		}
		t = (-half - math.Sqrt(disc)) / a
		if t < 0 || t > 1 {
			return Hit{}, false
		}
	}

	hit := newHit(b, start, end, t)
	hit.Normal = hit.Location.Sub(b.Center).Normalize()
	if hit.Normal.IsZero() {
		hit.Normal = d.Scale(-1).Normalize()
	}
	hit.ImpactPoint = b.Center.Add(hit.Normal.Scale(b.Radius))
	return hit, true
}

func sweepBox(b *Body, start, end vmath.Vec3, radius float64) (Hit, bool) {
	d := end.Sub(start)
	lo := b.Center.Sub(b.HalfExtents).Sub(vmath.V(radius, radius, radius))
	hi := b.Center.Add(b.HalfExtents).Add(vmath.V(radius, radius, radius))

	s := [3]float64{start.X, start.Y, start.Z}
	dir := [3]float64{d.X, d.Y, d.Z}
	mins := [3]float64{lo.X, lo.Y, lo.Z}
	maxs := [3]float64{hi.X, hi.Y, hi.Z}

	tmin, tmax := 0.0, 1.0
	axis, sign := -1, 0.0
	for i := 0; i < 3; i++ {
		if math.Abs(dir[i]) < 1e-12 {
			if s[i] < mins[i] || s[i] > maxs[i] {
				return Hit{}, false
			}
			continue
		}
		inv := 1 / dir[i]
		t1 := (mins[i] - s[i]) * inv
		t2 := (maxs[i] - s[i]) * inv
		entrySign := -1.0
		if t1 > t2 {
			t1, t2 = t2, t1
			entrySign = 1.0
		}
		if t1 > tmin {
			tmin, axis, sign = t1, i, entrySign
		}
		if t2 < tmax {
			tmax = t2
		}
		if tmin > tmax {
			return Hit{}, false
		}
	}

	hit := newHit(b, start, end, tmin)
	switch axis {
	case 0:
		hit.Normal = vmath.V(sign, 0, 0)
	case 1:
		hit.Normal = vmath.V(0, sign, 0)
	case 2:
		hit.Normal = vmath.V(0, 0, sign)
	default:
		hit.Normal = d.Scale(-1).Normalize()
	}
	boxLo, boxHi := b.Center.Sub(b.HalfExtents), b.Center.Add(b.HalfExtents)
	hit.ImpactPoint = vmath.V(
		vmath.Clamp(hit.Location.X, boxLo.X, boxHi.X),
		vmath.Clamp(hit.Location.Y, boxLo.Y, boxHi.Y),
		vmath.Clamp(hit.Location.Z, boxLo.Z, boxHi.Z),
	)
	return hit, true
}

// overlapBody returns the distance from center to the body's surface-relevant point.
func overlapBody(b *Body, center vmath.Vec3, radius float64) (float64, bool) {
	if b.isBox() {
		lo, hi := b.Center.Sub(b.HalfExtents), b.Center.Add(b.HalfExtents)
		closest := vmath.V(
			vmath.Clamp(center.X, lo.X, hi.X),
			vmath.Clamp(center.Y, lo.Y, hi.Y),
			vmath.Clamp(center.Z, lo.Z, hi.Z),
		)
		d := vmath.Dist(center, closest)
		return d, d <= radius
	}
	d := vmath.Dist(center, b.Center)
	return d, d <= radius+b.Radius
}
