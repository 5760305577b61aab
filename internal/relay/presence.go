// Package relay implements the relay-routing core: operator presence,
// forwarded-message correlation, per-conversation flood gating and
// engagement tracking, and the router that orchestrates them.
package relay

import "sync"

// Transition is a pending one-shot operator status change. It is armed by an
// operator command and consumed by the first user notice that observes it.
type Transition int

const (
	TransitionNone Transition = iota
	TransitionAvailable
	TransitionAway
)

// String returns the storable form of the transition.
func (t Transition) String() string {
	switch t {
	case TransitionAvailable:
		return "available"
	case TransitionAway:
		return "away"
	default:
		return "none"
	}
}

// ParseTransition converts a stored transition string back to a Transition.
// Unknown values map to TransitionNone.
func ParseTransition(s string) Transition {
	switch s {
	case "available":
		return TransitionAvailable
	case "away":
		return TransitionAway
	default:
		return TransitionNone
	}
}

// Presence holds the operator's availability and the pending one-shot
// transition notice. All methods are safe for concurrent use; consuming the
// transition is linearizable, so under a race exactly one caller observes a
// given transition.
type Presence struct {
	mu        sync.Mutex
	available bool
	pending   Transition
}

// NewPresence creates a Presence with the given restored state.
func NewPresence(available bool, pending Transition) *Presence {
	return &Presence{available: available, pending: pending}
}

// SetAvailable marks the operator available and arms the transition notice.
// Repeating the same command re-arms the notice.
func (p *Presence) SetAvailable() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.available = true
	p.pending = TransitionAvailable
}

// SetAway marks the operator away and arms the transition notice.
func (p *Presence) SetAway() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.available = false
	p.pending = TransitionAway
}

// ConsumeTransition returns the pending transition and clears it atomically.
func (p *Presence) ConsumeTransition() Transition {
	p.mu.Lock()
	defer p.mu.Unlock()
	t := p.pending
	p.pending = TransitionNone
	return t
}

// IsAvailable reports the operator's current availability.
func (p *Presence) IsAvailable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available
}

// Snapshot returns the current state for persistence.
func (p *Presence) Snapshot() (available bool, pending Transition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available, p.pending
}
