// Package mailbox provides a single-slot, latest-value handoff between a
// producer goroutine and a consumer.
package mailbox

import "sync"

// Slot holds at most one value. Put overwrites any unread value, so the
// consumer only ever sees the freshest observation.
type Slot[T any] struct {
	mu    sync.Mutex
	val   T
	full  bool
	ready chan struct{}
}

// NewSlot creates an empty slot.
func NewSlot[T any]() *Slot[T] {
	return &Slot[T]{ready: make(chan struct{}, 1)}
}

// Put stores v, replacing an unread value, and wakes the consumer.
func (s *Slot[T]) Put(v T) {
	s.mu.Lock()
	s.val = v
	s.full = true
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// Take removes and returns the stored value, if any.
func (s *Slot[T]) Take() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	if !s.full {
		return zero, false
	}
	v := s.val
	s.val = zero
	s.full = false
	return v, true
}

// Ready is signalled after Put. A signal may be stale; Take reports whether
// a value is actually present.
func (s *Slot[T]) Ready() <-chan struct{} {
	return s.ready
}
