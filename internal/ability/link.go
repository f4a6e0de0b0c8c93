package ability

import (
	"arena-combat/internal/world"
)

// ActivationRequest starts an activation. Released/HeldSeconds describe an input
// that was already let go when the request was made.
type ActivationRequest struct {
	Spec        SpecHandle    `json:"spec"`
	Key         PredictionKey `json:"key"`
	Input       InputType     `json:"input"`
	Released    bool          `json:"released,omitempty"`
	HeldSeconds float64       `json:"heldSeconds,omitempty"`
}

// Submission is target data sent by the locally controlled endpoint.
type Submission struct {
	Owner world.EntityID `json:"owner"`
	Spec  SpecHandle     `json:"spec"`
	Key   PredictionKey  `json:"key"`
	Data  TargetData     `json:"data"`
}

// Confirmation is the authority's verdict on one submission.
type Confirmation struct {
	Owner world.EntityID `json:"owner"`
	ID    CorrelationID  `json:"id"`
	Valid bool           `json:"valid"`
	// Targets are the pawns the authority hit, each listed once.
	Targets []world.EntityID `json:"targets,omitempty"`
	// Replaced are indices into the submitted hit list the authority did not confirm.
	Replaced []int `json:"replaced,omitempty"`
}

// ServerLink carries client traffic to the authority.
type ServerLink interface {
	RequestActivation(owner world.EntityID, req ActivationRequest)
	SubmitTargetData(s Submission)
}

// ClientLink carries authority traffic to the owning client.
type ClientLink interface {
	ConfirmTargetData(c Confirmation)
}

// Loopback connects two in-process systems.
type Loopback struct {
	Server *System
	Client *System
}

func (l *Loopback) RequestActivation(owner world.EntityID, req ActivationRequest) {
	if l.Server != nil {
		l.Server.ReceiveActivation(req)
	}
}

func (l *Loopback) SubmitTargetData(s Submission) {
	if l.Server != nil {
		l.Server.ReceiveTargetData(s)
	}
}

func (l *Loopback) ConfirmTargetData(c Confirmation) {
	if l.Client != nil {
		l.Client.ReceiveConfirmation(c)
	}
}

// correlationWindow remembers the most recent ids to drop retransmissions.
type correlationWindow struct {
	ring []CorrelationID
	set  map[CorrelationID]struct{}
	next int
}

func newCorrelationWindow(size int) *correlationWindow {
	return &correlationWindow{
		ring: make([]CorrelationID, size),
		set:  make(map[CorrelationID]struct{}, size),
	}
}

func (w *correlationWindow) seen(id CorrelationID) bool {
	_, ok := w.set[id]
	return ok
}

func (w *correlationWindow) add(id CorrelationID) {
	if old := w.ring[w.next]; !old.IsZero() {
		delete(w.set, old)
	}
	w.ring[w.next] = id
	w.set[id] = struct{}{}
	w.next = (w.next + 1) % len(w.ring)
}

// DefaultMaxMarkers bounds the unconfirmed hit marker batches.
const DefaultMaxMarkers = 64

// HitMarkers keeps the locally predicted hits until the authority confirms them.
type HitMarkers struct {
	max     int
	pending map[CorrelationID][]world.EntityID
	order   []CorrelationID
}

// NewHitMarkers creates a tracker holding at most max batches.
func NewHitMarkers(max int) *HitMarkers {
	if max <= 0 {
		max = DefaultMaxMarkers
	}
	return &HitMarkers{max: max, pending: make(map[CorrelationID][]world.EntityID)}
}

// Add records a predicted batch. The oldest batch is dropped when full.
func (m *HitMarkers) Add(id CorrelationID, predicted []world.EntityID) {
	if _, ok := m.pending[id]; ok {
		return
	}
	if len(m.order) >= m.max {
		delete(m.pending, m.order[0])
		m.order = m.order[1:]
	}
	m.pending[id] = append([]world.EntityID(nil), predicted...)
	m.order = append(m.order, id)
}

// Predicted returns the unconfirmed batch for id.
func (m *HitMarkers) Predicted(id CorrelationID) ([]world.EntityID, bool) {
	p, ok := m.pending[id]
	return p, ok
}

// Pending returns the number of unconfirmed batches.
func (m *HitMarkers) Pending() int { return len(m.pending) }

// Confirm resolves the batch for c.ID once. It returns the confirmed targets, each
// listed once, and false when the batch is unknown or already resolved.
func (m *HitMarkers) Confirm(c Confirmation) ([]world.EntityID, bool) {
	if _, ok := m.pending[c.ID]; !ok {
		return nil, false
	}
	delete(m.pending, c.ID)
	for i, id := range m.order {
		if id == c.ID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if !c.Valid {
		return nil, true
	}
	return uniqueEntities(c.Targets), true
}

func uniqueEntities(ids []world.EntityID) []world.EntityID {
	out := make([]world.EntityID, 0, len(ids))
	for _, id := range ids {
		if !world.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
