package browser

import "sync"

// Slot holds a replaceable native function. Interceptors wrap the current
// value and later restore the original.
type Slot[F any] struct {
	mu sync.RWMutex
	fn F
}

func NewSlot[F any](fn F) *Slot[F] {
	return &Slot[F]{fn: fn}
}

// Get returns the current function.
func (s *Slot[F]) Get() F {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fn
}

// Set replaces the current function.
func (s *Slot[F]) Set(fn F) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fn = fn
}

// Replace installs wrap(current) and returns a func restoring the value seen
// at install time.
func (s *Slot[F]) Replace(wrap func(orig F) F) (restore func()) {
	s.mu.Lock()
	orig := s.fn
	s.fn = wrap(orig)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.Set(orig) })
	}
}
