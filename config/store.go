package config

import (
	"sync"
	"sync/atomic"
)

// Store holds the active prepared configuration. Readers always observe a
// complete Prepared value; updates replace it wholesale.
type Store struct {
	current atomic.Pointer[Prepared]

	mu        sync.Mutex
	listeners []func(*Prepared)
}

// NewStore returns a store holding p.
func NewStore(p *Prepared) *Store {
	s := &Store{}
	s.current.Store(p)
	return s
}

// Load returns the active configuration.
func (s *Store) Load() *Prepared {
	return s.current.Load()
}

// Swap replaces the active configuration and notifies listeners.
func (s *Store) Swap(p *Prepared) *Prepared {
	old := s.current.Swap(p)

	s.mu.Lock()
	listeners := append([]func(*Prepared){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(p)
	}
	return old
}

// OnChange registers fn to be called after each Swap.
func (s *Store) OnChange(fn func(*Prepared)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}
