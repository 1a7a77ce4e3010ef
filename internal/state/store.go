// Package state holds arbitrary application state keyed by flat strings.
// "a.b" is a literal key; there is no nested path semantics.
package state

import (
	"sync"

	"github.com/loykin/reflexive/internal/metrics"
)

// Store maps keys to values with last-write-wins semantics.
type Store struct {
	mu     sync.RWMutex
	values map[string]any
}

func New() *Store { return &Store{values: make(map[string]any)} }

// Set stores value under key, replacing any previous value.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
	metrics.IncStateSet()
}

// Get returns the value for key. ok is false when the key has never been set.
func (s *Store) Get(key string) (value any, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok = s.values[key]
	return value, ok
}

// All returns a shallow copy of the whole mapping.
func (s *Store) All() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
