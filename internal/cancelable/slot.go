package cancelable

import "sync"

// Slot holds the single live task of one estimation channel.
type Slot[T any] struct {
	mu   sync.Mutex
	live *Task[T]
}

// Replace cancels the current live task, if any, and installs next in the
// same critical section.
func (s *Slot[T]) Replace(next *Task[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.live != nil && s.live != next {
		s.live.Cancel()
	}
	s.live = next
}

// IsLive reports whether t is the current, uncanceled task.
func (s *Slot[T]) IsLive(t *Task[T]) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return t != nil && s.live == t && !t.Canceled()
}

// Release empties the slot if t is still the live task.
func (s *Slot[T]) Release(t *Task[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live == t {
		s.live = nil
	}
}

// Cancel cancels and clears the live task.
func (s *Slot[T]) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live != nil {
		s.live.Cancel()
		s.live = nil
	}
}

// Pending reports whether a live task is still running.
func (s *Slot[T]) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live == nil {
		return false
	}
	select {
	case <-s.live.Done():
		return false
	default:
		return true
	}
}
