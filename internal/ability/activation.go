package ability

import (
	"arena-combat/internal/weapon"
)

// Activation is the context of one activation. It is created by TryActivate and
// lives until End.
type Activation struct {
	sys    *System
	spec   *Spec
	key    PredictionKey
	req    ActivationRequest
	weapon *weapon.Instance

	state   State
	sub     *Subscription
	data    TargetData
	started float64
	err     error

	// scope lock: End requests made while locked are replayed on unlock.
	locks      int
	pendingEnd *State
}

func (a *Activation) System() *System             { return a.sys }
func (a *Activation) Spec() *Spec                 { return a.spec }
func (a *Activation) Key() PredictionKey          { return a.key }
func (a *Activation) Request() ActivationRequest  { return a.req }
func (a *Activation) Weapon() *weapon.Instance    { return a.weapon }
func (a *Activation) State() State                { return a.state }
func (a *Activation) TargetData() TargetData      { return a.data }
func (a *Activation) Err() error                  { return a.err }
func (a *Activation) Subscription() *Subscription { return a.sub }

// Ended reports whether the activation reached a terminal state.
func (a *Activation) Ended() bool { return a.state.Terminal() }

// Authoritative reports whether this activation's effects count.
func (a *Activation) Authoritative() bool { return a.sys.role == RoleAuthority }

func (a *Activation) lock() { a.locks++ }

func (a *Activation) unlock() {
	a.locks--
	if a.locks > 0 || a.pendingEnd == nil {
		return
	}
	s := *a.pendingEnd
	a.pendingEnd = nil
	a.End(s)
}

// End finishes the activation. Ending twice is a no-op. While the target data
// handler runs, the request is queued and replayed when it returns; the first
// queued state wins.
func (a *Activation) End(state State) {
	if a.Ended() {
		return
	}
	if !state.Terminal() {
		state = StateCancelled
	}
	if a.locks > 0 {
		if a.pendingEnd == nil {
			a.pendingEnd = &state
		}
		return
	}

	a.state = state
	if a.sub != nil {
		a.sub.Release()
	}
	a.sys.bus.Consume(a.spec.Handle, a.key)
	a.spec.Ability.OnEnd(a, state)
	a.sys.ended(a)
}

// Cancel ends the activation as Cancelled.
func (a *Activation) Cancel() { a.End(StateCancelled) }

func (a *Activation) fail(err error) {
	if a.err == nil {
		a.err = err
	}
	a.End(StateFailed)
}
