package game

import (
	"sync/atomic"
	"time"

	"arena-combat/internal/projectile"
	"arena-combat/internal/vmath"
	"arena-combat/internal/world"
)

// PawnSnapshot is an immutable copy of pawn state for clients
// Uses value types (not pointers) to ensure immutability
type PawnSnapshot struct {
	ID         world.EntityID `json:"id"`
	Name       string         `json:"name"`
	Location   vmath.Vec3     `json:"location"`
	Facing     vmath.Vec3     `json:"facing"`
	Health     float64        `json:"health"`
	MaxHealth  float64        `json:"maxHealth"`
	Alive      bool           `json:"alive"`
	Bot        bool           `json:"bot,omitempty"`
	Kills      int            `json:"kills"`
	Deaths     int            `json:"deaths"`
	ActiveSlot int            `json:"activeSlot"`
	Weapon     string         `json:"weapon,omitempty"`
	Magazine   int            `json:"magazine"`
	Reserve    int            `json:"reserve"`
	Spread     float64        `json:"spread"`
	Skills     []string       `json:"skills,omitempty"`

	// LedgerVersion lets observers tell when to fetch an equipment delta.
	LedgerVersion uint64 `json:"ledgerVersion"`
}

// FieldSnapshot is an immutable lingering area
type FieldSnapshot struct {
	Area      string     `json:"area"`
	Location  vmath.Vec3 `json:"location"`
	Radius    float64    `json:"radius"`
	Remaining float64    `json:"remaining"`
	Occupants int        `json:"occupants"`
}

// GameSnapshot is a complete immutable arena state
type GameSnapshot struct {
	Sequence   uint64    `json:"sequence"`   // Monotonic sequence for ordering
	Timestamp  time.Time `json:"timestamp"`  // When snapshot was created
	TickNumber uint64    `json:"tick"`       // Simulation tick this represents
	SimTime    float64   `json:"simTime"`    // Simulation clock in seconds
	RNGSeed    int64     `json:"rngSeed"`    // Seed for deterministic replay

	Pawns       []PawnSnapshot        `json:"pawns"`
	Projectiles []projectile.Snapshot `json:"projectiles"`
	Fields      []FieldSnapshot       `json:"fields"`

	// Aggregate stats
	PawnCount  int `json:"pawnCount"`
	AliveCount int `json:"aliveCount"`
	TotalKills int `json:"totalKills"`
}

// snapshotStore publishes snapshots for lock-free readers. A published snapshot
// is never written again.
type snapshotStore struct {
	latest   atomic.Pointer[GameSnapshot]
	sequence uint64
}

// publish stamps and stores snap. Producer only (simulation goroutine).
func (s *snapshotStore) publish(snap *GameSnapshot) {
	s.sequence++
	snap.Sequence = s.sequence
	snap.Timestamp = time.Now()
	s.latest.Store(snap)
}

// load returns the latest snapshot, or an empty one before the first tick.
func (s *snapshotStore) load() *GameSnapshot {
	if snap := s.latest.Load(); snap != nil {
		return snap
	}
	return &GameSnapshot{}
}

// produceSnapshot copies the arena state. Caller holds e.mu.
func (e *Engine) produceSnapshot() {
	snap := &GameSnapshot{
		TickNumber:  e.tickCount,
		SimTime:     e.now,
		RNGSeed:     e.rngSeed,
		Pawns:       make([]PawnSnapshot, 0, len(e.order)),
		Projectiles: e.projectiles.Snapshots(),
		Fields:      make([]FieldSnapshot, 0, len(e.fields)),
		PawnCount:   len(e.order),
		TotalKills:  e.totalKills,
	}

	for _, id := range e.order {
		p := e.pawns[id]
		ps := e.pawnSnapshot(p)
		if ps.Alive {
			snap.AliveCount++
		}
		snap.Pawns = append(snap.Pawns, ps)
	}

	for _, f := range e.fields {
		snap.Fields = append(snap.Fields, FieldSnapshot{
			Area:      f.Config().ID,
			Location:  f.Origin(),
			Radius:    f.Config().Radius,
			Remaining: f.Remaining(),
			Occupants: len(f.Zone().Occupants()),
		})
	}

	e.snapshots.publish(snap)
}

// pawnSnapshot copies one pawn. Caller holds e.mu.
func (e *Engine) pawnSnapshot(p *Pawn) PawnSnapshot {
	ps := PawnSnapshot{
		ID:         p.ID,
		Name:       p.Name,
		Location:   p.Location,
		Facing:     p.Facing,
		MaxHealth:  e.cfg.Combat.MaxHealth,
		Alive:      p.Alive(),
		Bot:        p.Bot,
		Kills:      p.Kills,
		Deaths:     p.Deaths,
		ActiveSlot: p.QuickBar.ActiveSlot(),
		Skills:     p.Skills.Owned(),

		LedgerVersion: p.Ledger.Version(),
	}
	if hp, ok := e.effects.Health(p.ID); ok {
		ps.Health = hp
	}
	if inst, ok := p.activeWeapon(); ok {
		ps.Weapon = inst.Definition().ID
		if w, ok := inst.Weapon(); ok {
			ps.Magazine, ps.Reserve = w.Ammo()
			ps.Spread = w.Accuracy().Spread()
		}
	}
	return ps
}
