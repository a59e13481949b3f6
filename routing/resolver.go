package routing

import "github.com/opd-ai/nowlink/radio"

// Outcome is the result class of Resolve.
type Outcome int

const (
	// OK means the peer's interface is active and it can be sent to as-is.
	OK Outcome = iota
	// NeedsReassign means the peer must be moved to Resolution.Target first.
	NeedsReassign
	// Unreachable means no interface is active.
	Unreachable
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case NeedsReassign:
		return "needs_reassign"
	case Unreachable:
		return "unreachable"
	}
	return "unknown"
}

// Resolution is the decision for one peer.
type Resolution struct {
	Outcome Outcome
	// Target is only meaningful for NeedsReassign.
	Target radio.Interface
}

// SelectInterface returns the first active role in scan order, station before
// access point. ok is false when active is empty.
func SelectInterface(active radio.InterfaceSet) (radio.Interface, bool) {
	for _, role := range radio.Interfaces {
		if active.Has(role) {
			return role, true
		}
	}
	return 0, false
}

// Resolve decides whether a peer bound to peerIface is reachable through the
// active set. It is pure: the same inputs always give the same Resolution.
func Resolve(peerIface radio.Interface, active radio.InterfaceSet) Resolution {
	return resolve(peerIface, active, SelectInterface)
}

func resolve(peerIface radio.Interface, active radio.InterfaceSet, pick func(radio.InterfaceSet) (radio.Interface, bool)) Resolution {
	if active.Has(peerIface) {
		return Resolution{Outcome: OK}
	}
	target, ok := pick(active)
	if !ok {
		return Resolution{Outcome: Unreachable}
	}
	return Resolution{Outcome: NeedsReassign, Target: target}
}
