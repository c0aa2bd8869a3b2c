package wake

import "time"

// Event is a single-slot auto-reset wake signal.
//
// Any number of producers may call Signal; at most one pending wake is
// remembered, and a WaitOne consumes it.
type Event struct {
	ch chan struct{}
}

// New creates an unsignaled Event
func New() *Event {
	return &Event{ch: make(chan struct{}, 1)}
}

// Signal marks one pending wake. It never blocks.
func (e *Event) Signal() {
	select {
	case e.ch <- struct{}{}:
	default:
		// already pending
	}
}

// WaitOne blocks until the event is signaled or timeout elapses.
// It returns false on timeout.
func (e *Event) WaitOne(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-e.ch:
		return true
	case <-timer.C:
		return false
	}
}

// Pending reports whether a wake is queued without consuming it
func (e *Event) Pending() bool {
	return len(e.ch) > 0
}
