package ability

import (
	"encoding/json"

	"arena-combat/internal/vmath"
	"arena-combat/internal/world"

	"github.com/pkg/errors"
)

// Payload is the tagged union carried by TargetData: HitList or LaunchTransform.
type Payload interface {
	payloadKind() string
	clone() Payload
}

// HitList is the hitscan payload. Hits of one ray share TraceStart and TraceEnd.
type HitList struct {
	Hits []world.Hit `json:"hits"`
}

func (HitList) payloadKind() string { return "hits" }

func (h HitList) clone() Payload {
	return HitList{Hits: append([]world.Hit(nil), h.Hits...)}
}

// Ray is one traced segment of a HitList and the hits along it.
type Ray struct {
	Start vmath.Vec3
	End   vmath.Vec3
	Hits  []world.Hit
	// Index of each hit in the flat list.
	Index []int
}

// Rays groups the hits by trace segment in order of first appearance.
func (h HitList) Rays() []Ray {
	var rays []Ray
	for i, hit := range h.Hits {
		found := -1
		for r := range rays {
			if rays[r].Start == hit.TraceStart && rays[r].End == hit.TraceEnd {
				found = r
				break
			}
		}
		if found < 0 {
			rays = append(rays, Ray{Start: hit.TraceStart, End: hit.TraceEnd})
			found = len(rays) - 1
		}
		rays[found].Hits = append(rays[found].Hits, hit)
		rays[found].Index = append(rays[found].Index, i)
	}
	return rays
}

// LaunchTransform is the projectile payload.
type LaunchTransform struct {
	Transform vmath.Transform `json:"transform"`
	// ChargeSeconds is how long the input was held, for charging abilities.
	ChargeSeconds float64 `json:"chargeSeconds,omitempty"`
}

func (LaunchTransform) payloadKind() string { return "launch" }
func (l LaunchTransform) clone() Payload    { return l }

// TargetData is the output of a targeting pass.
type TargetData struct {
	ID      CorrelationID
	Payload Payload
}

// Clone deep-copies the data so later mutation of the source cannot reach it.
func (d TargetData) Clone() TargetData {
	out := TargetData{ID: d.ID}
	if d.Payload != nil {
		out.Payload = d.Payload.clone()
	}
	return out
}

// Hits returns the hit list payload.
func (d TargetData) Hits() (HitList, bool) {
	h, ok := d.Payload.(HitList)
	return h, ok
}

// Launch returns the launch transform payload.
func (d TargetData) Launch() (LaunchTransform, bool) {
	l, ok := d.Payload.(LaunchTransform)
	return l, ok
}

type targetDataWire struct {
	ID     CorrelationID    `json:"id"`
	Kind   string           `json:"kind"`
	Hits   []world.Hit      `json:"hits,omitempty"`
	Launch *LaunchTransform `json:"launch,omitempty"`
}

func (d TargetData) MarshalJSON() ([]byte, error) {
	w := targetDataWire{ID: d.ID}
	switch p := d.Payload.(type) {
	case HitList:
		w.Kind = p.payloadKind()
		w.Hits = p.Hits
	case LaunchTransform:
		w.Kind = p.payloadKind()
		w.Launch = &p
	}
	return json.Marshal(w)
}

func (d *TargetData) UnmarshalJSON(b []byte) error {
	var w targetDataWire
	if err := json.Unmarshal(b, &w); err != nil {
		return errors.Wrap(err, "decode target data")
	}
	d.ID = w.ID
	switch w.Kind {
	case "hits":
		d.Payload = HitList{Hits: w.Hits}
	case "launch":
		if w.Launch == nil {
			return errors.Wrap(ErrWrongPayload, "launch payload missing")
		}
		d.Payload = *w.Launch
	default:
		return errors.Wrapf(ErrWrongPayload, "unknown payload kind %q", w.Kind)
	}
	return nil
}

type busKey struct {
	spec SpecHandle
	key  PredictionKey
}

// DefaultMaxBuffered bounds the data buffered for activations that have not started yet.
const DefaultMaxBuffered = 32

// TargetDataBus routes target data to the activation subscribed on (spec, prediction key).
// Data published before anyone subscribes is buffered until Subscribe/Flush or Consume.
type TargetDataBus struct {
	max      int
	subs     map[busKey]*Subscription
	buffered map[busKey]TargetData
	order    []busKey
}

// NewTargetDataBus creates a bus buffering at most maxBuffered entries.
func NewTargetDataBus(maxBuffered int) *TargetDataBus {
	if maxBuffered <= 0 {
		maxBuffered = DefaultMaxBuffered
	}
	return &TargetDataBus{
		max:      maxBuffered,
		subs:     make(map[busKey]*Subscription),
		buffered: make(map[busKey]TargetData),
	}
}

// Subscription is the scoped registration of one activation. Release it exactly once;
// further calls do nothing.
type Subscription struct {
	bus      *TargetDataBus
	key      busKey
	fn       func(TargetData)
	released bool
}

// Subscribe registers fn for (spec, key), replacing a previous subscriber.
func (b *TargetDataBus) Subscribe(spec SpecHandle, key PredictionKey, fn func(TargetData)) *Subscription {
	s := &Subscription{bus: b, key: busKey{spec, key}, fn: fn}
	b.subs[s.key] = s
	return s
}

// Publish delivers data to the subscriber or buffers it.
func (b *TargetDataBus) Publish(spec SpecHandle, key PredictionKey, data TargetData) (delivered bool, err error) {
	k := busKey{spec, key}
	if s, ok := b.subs[k]; ok && !s.released {
		s.fn(data)
		return true, nil
	}
	if _, ok := b.buffered[k]; !ok {
		if len(b.buffered) >= b.max {
			return false, ErrBufferFull
		}
		b.order = append(b.order, k)
	}
	b.buffered[k] = data
	return false, nil
}

// Consume removes and returns buffered data for (spec, key).
func (b *TargetDataBus) Consume(spec SpecHandle, key PredictionKey) (TargetData, bool) {
	return b.take(busKey{spec, key})
}

func (b *TargetDataBus) take(k busKey) (TargetData, bool) {
	d, ok := b.buffered[k]
	if !ok {
		return TargetData{}, false
	}
	delete(b.buffered, k)
	for i, o := range b.order {
		if o == k {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return d, true
}

// Buffered returns the number of buffered entries.
func (b *TargetDataBus) Buffered() int { return len(b.buffered) }

// Subscribers returns the number of live subscriptions.
func (b *TargetDataBus) Subscribers() int { return len(b.subs) }

// Flush delivers data buffered before the subscription existed.
func (s *Subscription) Flush() bool {
	if s.released {
		return false
	}
	d, ok := s.bus.take(s.key)
	if !ok {
		return false
	}
	s.fn(d)
	return true
}

// Release deregisters the subscription and drops any data still buffered for it.
func (s *Subscription) Release() {
	if s.released {
		return
	}
	s.released = true
	if cur, ok := s.bus.subs[s.key]; ok && cur == s {
		delete(s.bus.subs, s.key)
	}
	s.bus.take(s.key)
}

// Released reports whether Release ran.
func (s *Subscription) Released() bool { return s.released }
