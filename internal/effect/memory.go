package effect

import (
	"sort"
	"sync"

	"arena-combat/internal/vmath"
	"arena-combat/internal/world"
)

// Applied describes one execution of an effect against a target.
type Applied struct {
	Handle     Handle         `json:"handle,omitempty"`
	Target     world.EntityID `json:"target"`
	Template   string         `json:"template"`
	Instigator world.EntityID `json:"instigator"`
	Causer     world.EntityID `json:"causer,omitempty"`
	Magnitude  float64        `json:"magnitude"`
	Health     float64        `json:"health"`
	Killed     bool           `json:"killed,omitempty"`
}

type pool struct {
	health float64
	max    float64
}

type active struct {
	spec      Spec
	target    world.EntityID
	magnitude float64
	remaining float64
	untilTick float64
}

// MemoryEngine is an in-process effect engine backed by per-target health pools.
// Safe for concurrent use.
type MemoryEngine struct {
	mu       sync.Mutex
	next     Handle
	pools    map[world.EntityID]*pool
	active   map[Handle]*active
	listener func(Applied)
}

// NewMemoryEngine creates an empty engine.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		pools:  make(map[world.EntityID]*pool),
		active: make(map[Handle]*active),
	}
}

// SetListener registers a callback invoked after every execution, outside the lock.
func (e *MemoryEngine) SetListener(fn func(Applied)) {
	e.mu.Lock()
	e.listener = fn
	e.mu.Unlock()
}

// Register gives a target a full health pool.
func (e *MemoryEngine) Register(id world.EntityID, maxHealth float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pools[id] = &pool{health: maxHealth, max: maxHealth}
}

// Unregister drops the pool and every active effect on the target.
func (e *MemoryEngine) Unregister(id world.EntityID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.pools, id)
	for h, a := range e.active {
		if a.target == id {
			delete(e.active, h)
		}
	}
}

// Health returns the target's current health.
func (e *MemoryEngine) Health(id world.EntityID) (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.pools[id]
	if !ok {
		return 0, false
	}
	return p.health, true
}

// ActiveCount returns the number of live duration/infinite effects on the target.
func (e *MemoryEngine) ActiveCount(id world.EntityID) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, a := range e.active {
		if a.target == id {
			n++
		}
	}
	return n
}

// Magnitude computes the per-execution health delta of a spec.
func Magnitude(spec Spec) float64 {
	if spec.Template == nil {
		return 0
	}
	m := spec.Template.Magnitude * spec.Template.LevelScale.EvalOr(spec.Level, 1)
	for _, v := range spec.SetByCaller {
		m *= v
	}
	return m
}

// Apply implements Engine. Instant effects return NoHandle.
func (e *MemoryEngine) Apply(spec Spec, target world.EntityID) (Handle, error) {
	if spec.Template == nil {
		return NoHandle, ErrNoTemplate
	}

	e.mu.Lock()
	p, ok := e.pools[target]
	if !ok {
		e.mu.Unlock()
		return NoHandle, ErrUnknownTarget
	}

	mag := Magnitude(spec)
	h := NoHandle
	if spec.Template.Policy != Instant {
		e.next++
		h = e.next
		e.active[h] = &active{
			spec:      spec,
			target:    target,
			magnitude: mag,
			remaining: spec.Template.Duration,
			untilTick: spec.Template.Period,
		}
	}
	ev := e.executeLocked(p, h, target, spec, mag)
	listener := e.listener
	e.mu.Unlock()

	if listener != nil {
		listener(ev)
	}
	return h, nil
}

func (e *MemoryEngine) executeLocked(p *pool, h Handle, target world.EntityID, spec Spec, mag float64) Applied {
	wasAlive := p.health > 0
	p.health = vmath.Clamp(p.health+mag, 0, p.max)
	return Applied{
		Handle:     h,
		Target:     target,
		Template:   spec.Template.ID,
		Instigator: spec.Instigator,
		Causer:     spec.Causer,
		Magnitude:  mag,
		Health:     p.health,
		Killed:     wasAlive && p.health <= 0,
	}
}

// Remove implements Engine. Every application is a single stack.
func (e *MemoryEngine) Remove(h Handle, stacks int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.active[h]; !ok {
		return false
	}
	delete(e.active, h)
	return true
}

// Tick advances periodic executions and expires duration effects.
func (e *MemoryEngine) Tick(dt float64) {
	e.mu.Lock()

	handles := make([]Handle, 0, len(e.active))
	for h := range e.active {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })

	var events []Applied
	for _, h := range handles {
		a := e.active[h]
		period := a.spec.Template.Period
		if period > 0 {
			a.untilTick -= dt
			for a.untilTick <= 0 {
				if p, ok := e.pools[a.target]; ok {
					events = append(events, e.executeLocked(p, h, a.target, a.spec, a.magnitude))
				}
				a.untilTick += period
			}
		}
		if a.spec.Template.Policy == HasDuration {
			a.remaining -= dt
			if a.remaining <= 0 {
				delete(e.active, h)
			}
		}
	}
	listener := e.listener
	e.mu.Unlock()

	if listener != nil {
		for _, ev := range events {
			listener(ev)
		}
	}
}
