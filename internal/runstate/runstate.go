// Package runstate holds the process-wide success flag that ends the watch loop.
package runstate

import (
	"sync/atomic"
	"time"
)

// RunState records whether an availability notification has been delivered.
// The notifier is its only writer and the scheduler loop its only reader.
type RunState struct {
	emailSent atomic.Bool
	sentAt    atomic.Int64
}

// New returns a RunState with the flag unset.
func New() *RunState {
	return &RunState{}
}

// MarkSuccess sets the flag. It reports true only for the call that moved
// the flag from false to true.
func (s *RunState) MarkSuccess() bool {
	if !s.emailSent.CompareAndSwap(false, true) {
		return false
	}
	s.sentAt.Store(time.Now().UnixNano())
	return true
}

// Succeeded reports whether MarkSuccess has been called.
func (s *RunState) Succeeded() bool {
	return s.emailSent.Load()
}

// SucceededAt returns when the flag was set, or the zero time.
func (s *RunState) SucceededAt() time.Time {
	ns := s.sentAt.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
