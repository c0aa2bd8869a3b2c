package session

import "sync/atomic"

// State is the lifecycle of a single-order run
type State int32

const (
	WaitingForConnect State = iota
	OrderInPlay
	OrderDone
	ConnectionFailed
)

func (s State) String() string {
	switch s {
	case WaitingForConnect:
		return "WaitingForConnect"
	case OrderInPlay:
		return "OrderInPlay"
	case OrderDone:
		return "OrderDone"
	case ConnectionFailed:
		return "ConnectionFailed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transition can happen
func (s State) Terminal() bool {
	return s == OrderDone || s == ConnectionFailed
}

// allowed lists the legal edges; everything else is rejected
func allowed(from, to State) bool {
	switch {
	case from.Terminal():
		return false
	case to == ConnectionFailed:
		return true
	case from == WaitingForConnect:
		return to == OrderInPlay
	case from == OrderInPlay:
		return to == OrderDone
	}
	return false
}

// StateCell holds the run state shared between the gateway callbacks and the
// driver loop
type StateCell struct {
	v atomic.Int32
}

// Load returns the current state
func (c *StateCell) Load() State {
	return State(c.v.Load())
}

// Advance moves to the target state if the edge is legal. It returns the
// state it moved from and whether the move happened.
func (c *StateCell) Advance(to State) (State, bool) {
	for {
		cur := State(c.v.Load())
		if !allowed(cur, to) {
			return cur, false
		}
		if c.v.CompareAndSwap(int32(cur), int32(to)) {
			return cur, true
		}
	}
}
