package projectile

import (
	"arena-combat/internal/world"
)

// DefaultMaxProjectiles is the hard cap on live projectiles.
const DefaultMaxProjectiles = 256

// ImpactFunc handles one impact of a projectile.
type ImpactFunc func(p *Projectile, hit world.Hit)

// Manager owns the live projectiles. Not safe for concurrent use.
type Manager struct {
	max         int
	gravity     float64
	tracer      world.Tracer
	bounds      world.Bounds
	projectiles []*Projectile
	onImpact    ImpactFunc
	onExpire    func(p *Projectile)
}

// NewManager creates a manager. Projectiles leaving bounds are dropped.
func NewManager(tracer world.Tracer, bounds world.Bounds, maxProjectiles int, onImpact ImpactFunc) *Manager {
	if maxProjectiles <= 0 {
		maxProjectiles = DefaultMaxProjectiles
	}
	return &Manager{
		max:         maxProjectiles,
		gravity:     DefaultGravity,
		tracer:      tracer,
		bounds:      bounds,
		projectiles: make([]*Projectile, 0, maxProjectiles),
		onImpact:    onImpact,
	}
}

// SetGravity overrides the world gravity.
func (m *Manager) SetGravity(g float64) { m.gravity = g }

// OnExpire registers a callback for projectiles removed without an impact, or after
// their final impact.
func (m *Manager) OnExpire(fn func(p *Projectile)) { m.onExpire = fn }

// Add registers a finished projectile. It refuses unfinished ones and respects the cap.
func (m *Manager) Add(p *Projectile) bool {
	if p == nil || !p.active {
		return false
	}
	if len(m.projectiles) >= m.max {
		return false
	}
	m.projectiles = append(m.projectiles, p)
	return true
}

// Len returns the number of live projectiles.
func (m *Manager) Len() int { return len(m.projectiles) }

// Tick moves every projectile and dispatches impacts. Dead projectiles are
// filtered in place.
func (m *Manager) Tick(dt float64) {
	n := 0
	for _, p := range m.projectiles {
		impacts, alive := p.Update(dt, m.gravity, m.tracer)
		for _, h := range impacts {
			if m.onImpact != nil {
				m.onImpact(p, h)
			}
		}
		if alive && !m.outOfBounds(p) {
			m.projectiles[n] = p
			n++
			continue
		}
		p.active = false
		if m.onExpire != nil {
			m.onExpire(p)
		}
	}
	for i := n; i < len(m.projectiles); i++ {
		m.projectiles[i] = nil
	}
	m.projectiles = m.projectiles[:n]
}

func (m *Manager) outOfBounds(p *Projectile) bool {
	b := m.bounds
	if b.MaxX <= b.MinX || b.MaxY <= b.MinY {
		return false
	}
	return p.Location.X < b.MinX || p.Location.X > b.MaxX || p.Location.Y < b.MinY || p.Location.Y > b.MaxY
}

// Snapshots copies the live projectiles for clients.
func (m *Manager) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, len(m.projectiles))
	for _, p := range m.projectiles {
		out = append(out, p.ToSnapshot())
	}
	return out
}
