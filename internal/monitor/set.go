// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package monitor

import (
	"fmt"
	"sort"
	"sync"
)

// Set holds at most one monitor per kind for one tracked entity.
type Set struct {
	registry *Registry

	mu     sync.RWMutex
	byKind map[Kind]Monitor
}

// NewSet creates an empty set ordered by the registry's priorities.
func NewSet(registry *Registry) *Set {
	return &Set{registry: registry, byKind: make(map[Kind]Monitor)}
}

// Get returns the monitor of the given kind.
func (s *Set) Get(kind Kind) (Monitor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byKind[kind]
	return m, ok
}

// Add inserts m. It fails if the set already holds a monitor of m's kind.
func (s *Set) Add(m Monitor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byKind[m.Kind()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateKind, m.Kind())
	}
	s.byKind[m.Kind()] = m
	return nil
}

// Remove deletes and returns the monitor of the given kind.
func (s *Set) Remove(kind Kind) (Monitor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byKind[kind]
	delete(s.byKind, kind)
	return m, ok
}

// Len returns the number of monitors.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byKind)
}

// Kinds returns the kinds present, in priority order.
func (s *Set) Kinds() []Kind {
	ordered := s.Ordered()
	kinds := make([]Kind, len(ordered))
	for i, m := range ordered {
		kinds[i] = m.Kind()
	}
	return kinds
}

// Ordered returns the monitors in priority order.
func (s *Set) Ordered() []Monitor {
	s.mu.RLock()
	out := make([]Monitor, 0, len(s.byKind))
	for _, m := range s.byKind {
		out = append(out, m)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		ri, rj := s.registry.rank(out[i].Kind()), s.registry.rank(out[j].Kind())
		if ri != rj {
			return ri < rj
		}
		return out[i].Kind() < out[j].Kind()
	})
	return out
}
