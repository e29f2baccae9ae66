// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package monitor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/presencewatch/internal/loop"
	"github.com/tomtom215/presencewatch/internal/models"
)

// Kind identifies a monitor implementation.
type Kind string

const (
	KindSplatoon3Versus Kind = "splatoon3.versus"
	KindSplatoon3Coop   Kind = "splatoon3.coop"
	KindSplatoon3Fest   Kind = "splatoon3.fest"
)

var (
	// ErrUnknownKind is returned when no factory is registered for a kind.
	ErrUnknownKind = errors.New("unknown monitor kind")
	// ErrDuplicateKind is returned when a Set already holds a monitor of the kind.
	ErrDuplicateKind = errors.New("monitor kind already present")
)

// Monitor is an enrichment loop task.
type Monitor interface {
	loop.Task
	loop.Reconfigurable

	Kind() Kind

	// BuildActivity returns base enriched with the monitor's current
	// selection, or nil when the entity's presence is nothing this monitor
	// enriches. It must not perform I/O.
	BuildActivity(base models.ActivityDescriptor, presence models.Presence) *models.ActivityDescriptor
}

// Scope is what a monitor instance is bound to.
type Scope struct {
	// Account is the tenant key whose session the monitor uses.
	Account string
	// Token is that account's upstream session token.
	Token string
	// EntityID is the tracked entity the monitor enriches (the account
	// itself or one of its friends).
	EntityID string
}

// Config is the per-entity configuration of one monitor.
type Config struct {
	Kind     Kind
	Enabled  bool
	Interval time.Duration
	Locale   string
}

// Equal reports whether two configurations are identical.
func (c Config) Equal(o Config) bool {
	return c.Equivalent(o) && c.Interval == o.Interval
}

// Equivalent reports whether o can be applied to a running monitor in
// place. Only the interval may differ.
func (c Config) Equivalent(o Config) bool {
	return c.Kind == o.Kind && c.Enabled == o.Enabled && c.Locale == o.Locale
}

// Factory creates a monitor for a scope.
type Factory func(scope Scope, cfg Config) (Monitor, error)

// Registry maps kinds to factories. Registration order is the monitor
// priority order used by Set.Ordered.
type Registry struct {
	mu        sync.RWMutex
	order     []Kind
	factories map[Kind]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[Kind]Factory)}
}

// Register adds a factory. Registering a kind twice replaces the factory and
// keeps its original priority.
func (r *Registry) Register(kind Kind, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[kind]; !ok {
		r.order = append(r.order, kind)
	}
	r.factories[kind] = f
}

// Kinds returns the registered kinds in priority order.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Kind(nil), r.order...)
}

// Has reports whether kind is registered.
func (r *Registry) Has(kind Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[kind]
	return ok
}

// New creates a monitor of cfg.Kind for scope.
func (r *Registry) New(scope Scope, cfg Config) (Monitor, error) {
	r.mu.RLock()
	f, ok := r.factories[cfg.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, cfg.Kind)
	}
	m, err := f(scope, cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s monitor for %s: %w", cfg.Kind, scope.EntityID, err)
	}
	return m, nil
}

// rank returns the priority of kind; unregistered kinds sort last.
func (r *Registry) rank(kind Kind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i, k := range r.order {
		if k == kind {
			return i
		}
	}
	return len(r.order)
}
