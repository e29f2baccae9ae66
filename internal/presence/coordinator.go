// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package presence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/presencewatch/internal/config"
	"github.com/tomtom215/presencewatch/internal/loop"
	"github.com/tomtom215/presencewatch/internal/metrics"
	"github.com/tomtom215/presencewatch/internal/models"
	"github.com/tomtom215/presencewatch/internal/monitor"
	"github.com/tomtom215/presencewatch/internal/sink"
	"github.com/tomtom215/presencewatch/internal/stream"
	"github.com/tomtom215/presencewatch/internal/tenant"
	"github.com/tomtom215/presencewatch/internal/upstream"
)

// LoopHost runs loops. *suture.Supervisor satisfies it. Loops that are
// disabled or stopped leave the host on their own by returning
// suture.ErrDoNotRestart.
type LoopHost interface {
	Add(service suture.Service) suture.ServiceToken
}

// Options holds the coordinator's collaborators.
type Options struct {
	Source   upstream.PresenceSource
	Cache    *tenant.Cache
	Registry *monitor.Registry
	Host     LoopHost

	// Activity, Notifications and Hub receive pushes. Any may be nil.
	Activity      sink.ActivitySink
	Notifications sink.NotificationSink
	Hub           *stream.Hub

	Presence config.PresenceConfig
	// MaxMalformed is how many consecutive malformed responses a monitor
	// loop tolerates before it stops.
	MaxMalformed int
	Logger       zerolog.Logger
}

type entity struct {
	spec      EntitySpec
	base      *loop.Loop
	task      *baseTask
	monitors  *monitor.Set
	loops     map[monitor.Kind]*loop.Loop
	current   *models.ActivityDescriptor
	stopped   bool
	updatedAt time.Time
}

// Coordinator owns the tracked entities.
type Coordinator struct {
	source        upstream.PresenceSource
	cache         *tenant.Cache
	registry      *monitor.Registry
	host          LoopHost
	activity      sink.ActivitySink
	notifications sink.NotificationSink
	hub           *stream.Hub
	presence      config.PresenceConfig
	maxMalformed  int
	logger        zerolog.Logger
	now           func() time.Time

	// ops serializes Track, Untrack and Reconfigure.
	ops sync.Mutex

	mu       sync.Mutex
	entities map[string]*entity
}

// NewCoordinator creates an empty coordinator.
func NewCoordinator(opts Options) *Coordinator {
	return &Coordinator{
		source:        opts.Source,
		cache:         opts.Cache,
		registry:      opts.Registry,
		host:          opts.Host,
		activity:      opts.Activity,
		notifications: opts.Notifications,
		hub:           opts.Hub,
		presence:      opts.Presence,
		maxMalformed:  opts.MaxMalformed,
		logger:        opts.Logger.With().Str("component", "presence-coordinator").Logger(),
		now:           time.Now,
		entities:      make(map[string]*entity),
	}
}

// Track activates an entity: its base loop and one loop per enabled monitor
// are added to the host. A monitor that cannot be created is skipped and
// its error returned; the entity is tracked regardless.
func (c *Coordinator) Track(spec EntitySpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	c.ops.Lock()
	defer c.ops.Unlock()
	return c.track(spec)
}

func (c *Coordinator) track(spec EntitySpec) error {
	c.mu.Lock()
	if _, ok := c.entities[spec.ID]; ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyTracked, spec.ID)
	}

	e := c.newEntity(spec)
	services := []suture.Service{e.base}
	var errs []error
	for _, mc := range spec.enabledMonitors() {
		l, err := c.newMonitorLoop(e, mc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		services = append(services, l)
	}
	c.entities[spec.ID] = e
	metrics.TrackedEntities.Set(float64(len(c.entities)))
	c.mu.Unlock()

	for _, s := range services {
		c.host.Add(s)
	}

	c.logger.Info().
		Str("entity", spec.ID).
		Str("kind", string(spec.Kind)).
		Str("account", spec.Account).
		Int("monitors", len(services)-1).
		Msg("Entity tracked")
	return errors.Join(errs...)
}

// Untrack stops every loop of an entity, pushes its offline transition and
// disconnects its stream subscribers.
func (c *Coordinator) Untrack(id string) error {
	c.ops.Lock()
	defer c.ops.Unlock()
	return c.untrack(id)
}

func (c *Coordinator) untrack(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entities[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotTracked, id)
	}
	e.base.Stop()
	for kind, l := range e.loops {
		l.Stop()
		e.monitors.Remove(kind)
	}
	e.loops = make(map[monitor.Kind]*loop.Loop)
	e.stopped = true
	c.recomputeLocked(e)

	delete(c.entities, id)
	metrics.TrackedEntities.Set(float64(len(c.entities)))
	if c.hub != nil {
		c.hub.Forget(id)
	}
	c.logger.Info().Str("entity", id).Msg("Entity untracked")
	return nil
}

// Reconfigure applies spec to a tracked entity. A change of session or
// kind recreates the entity. Otherwise the base interval is updated in
// place, monitors whose configuration is equivalent keep running with the
// new interval, changed monitors are recreated and removed ones disabled.
// The entity is recomputed immediately.
func (c *Coordinator) Reconfigure(id string, spec EntitySpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	if spec.ID != id {
		return fmt.Errorf("%w: id %q does not match %q", ErrInvalidSpec, spec.ID, id)
	}

	c.ops.Lock()
	defer c.ops.Unlock()

	c.mu.Lock()
	e, ok := c.entities[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotTracked, id)
	}
	if !e.spec.sameBase(spec) {
		c.mu.Unlock()
		if err := c.untrack(id); err != nil {
			return err
		}
		return c.track(spec)
	}
	current := make(map[monitor.Kind]*loop.Loop, len(e.loops))
	for k, l := range e.loops {
		current[k] = l
	}
	c.mu.Unlock()

	e.base.SetInterval(c.baseInterval(spec))

	// UpdateConfig waits for an in-flight cycle, so it runs outside c.mu.
	want := spec.enabledMonitors()
	wanted := make(map[monitor.Kind]bool, len(want))
	var replace []monitor.Config
	for _, mc := range want {
		wanted[mc.Kind] = true
		l, ok := current[mc.Kind]
		if ok && l.UpdateConfig(mc) {
			l.SetInterval(c.monitorInterval(mc))
			continue
		}
		replace = append(replace, mc)
	}

	c.mu.Lock()
	var services []suture.Service
	var errs []error
	for kind, l := range current {
		if wanted[kind] && !containsKind(replace, kind) {
			continue
		}
		if e.loops[kind] == l {
			l.Disable()
			delete(e.loops, kind)
			e.monitors.Remove(kind)
		}
	}
	for _, mc := range replace {
		if e.stopped {
			break
		}
		l, err := c.newMonitorLoop(e, mc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		services = append(services, l)
	}
	e.spec = spec
	c.recomputeLocked(e)
	c.mu.Unlock()

	for _, s := range services {
		c.host.Add(s)
	}
	c.logger.Info().Str("entity", id).Int("monitors_replaced", len(replace)).Msg("Entity reconfigured")
	return errors.Join(errs...)
}

// Apply converges the tracked set on specs: entities not listed are
// untracked, new ones tracked and changed ones reconfigured.
func (c *Coordinator) Apply(specs []EntitySpec) error {
	want := make(map[string]bool, len(specs))
	for _, s := range specs {
		want[s.ID] = true
	}

	var errs []error
	for _, id := range c.IDs() {
		if !want[id] {
			if err := c.Untrack(id); err != nil && !errors.Is(err, ErrNotTracked) {
				errs = append(errs, err)
			}
		}
	}
	for _, s := range specs {
		existing, ok := c.spec(s.ID)
		switch {
		case !ok:
			if err := c.Track(s); err != nil {
				errs = append(errs, err)
			}
		case !existing.Equal(s):
			if err := c.Reconfigure(s.ID, s); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (c *Coordinator) spec(id string) (EntitySpec, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entities[id]
	if !ok {
		return EntitySpec{}, false
	}
	return e.spec, true
}

func (c *Coordinator) newEntity(spec EntitySpec) *entity {
	e := &entity{
		spec:     spec,
		task:     &baseTask{spec: spec, source: c.source, cache: c.cache},
		monitors: monitor.NewSet(c.registry),
		loops:    make(map[monitor.Kind]*loop.Loop),
	}
	interval := c.baseInterval(spec)

	var base *loop.Loop
	base = loop.New(e.task, loop.Options{
		Name:     "presence/" + spec.ID,
		Kind:     string(spec.Kind),
		Interval: interval,
		Policy:   upstream.NewBasePolicy(c.presence.MaxAuthExpired),
		Backoff:  c.backoff(interval),
		Logger:   c.logger,
		OnCycle:  func() { c.recompute(spec.ID) },
		OnStop:   func(err error) { c.baseStopped(spec.ID, base, err) },
	})
	e.base = base
	return e
}

// newMonitorLoop creates a monitor and its loop and registers both with e.
// Caller holds c.mu.
func (c *Coordinator) newMonitorLoop(e *entity, mc monitor.Config) (*loop.Loop, error) {
	id := e.spec.ID
	m, err := c.registry.New(monitor.Scope{Account: e.spec.Account, Token: e.spec.Token, EntityID: id}, mc)
	if err != nil {
		c.logger.Error().Err(err).Str("entity", id).Str("monitor", string(mc.Kind)).Msg("Failed to create monitor")
		return nil, err
	}
	if err := e.monitors.Add(m); err != nil {
		return nil, err
	}

	interval := c.monitorInterval(mc)
	var l *loop.Loop
	l = loop.New(m, loop.Options{
		Name:     fmt.Sprintf("monitor/%s/%s", id, mc.Kind),
		Kind:     string(mc.Kind),
		Interval: interval,
		Policy:   upstream.NewMonitorPolicy(c.maxMalformed),
		Backoff:  c.backoff(interval),
		Logger:   c.logger,
		OnCycle:  func() { c.recompute(id) },
		OnStop:   func(err error) { c.monitorStopped(id, mc.Kind, l, err) },
	})
	e.loops[mc.Kind] = l
	return l, nil
}

func (c *Coordinator) baseInterval(spec EntitySpec) time.Duration {
	def := c.presence.UpdateInterval
	if spec.Kind == EntityFriend {
		def = c.presence.FriendInterval
	}
	return c.presence.ClampInterval(spec.Interval, def)
}

func (c *Coordinator) monitorInterval(mc monitor.Config) time.Duration {
	return c.presence.ClampInterval(mc.Interval, c.presence.UpdateInterval)
}

// backoff returns the retry spacing selected by configuration. Exponential
// backoff never waits longer than the loop's own interval.
func (c *Coordinator) backoff(interval time.Duration) loop.Backoff {
	if c.presence.RetryBackoff == "exponential" {
		return loop.NewExponential(c.presence.RetryThreshold, c.presence.RetryInitialInterval, interval)
	}
	return loop.Immediate()
}

func (c *Coordinator) baseStopped(id string, l *loop.Loop, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entities[id]
	if !ok || e.base != l {
		return
	}
	for kind, ml := range e.loops {
		ml.Stop()
		e.monitors.Remove(kind)
	}
	e.loops = make(map[monitor.Kind]*loop.Loop)
	e.stopped = true

	c.logger.Error().Err(err).Str("entity", id).Msg("Presence loop stopped, entity cleared")
	c.notifyLocked(e, models.Transition{
		Kind:  models.TransitionError,
		Error: fmt.Sprintf("presence loop stopped: %v", err),
	})
	c.recomputeLocked(e)
}

func (c *Coordinator) monitorStopped(id string, kind monitor.Kind, l *loop.Loop, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entities[id]
	if !ok || e.loops[kind] != l {
		return
	}
	delete(e.loops, kind)
	e.monitors.Remove(kind)

	c.logger.Warn().Err(err).Str("entity", id).Str("monitor", string(kind)).Msg("Monitor stopped, degrading to base presence")
	c.notifyLocked(e, models.Transition{
		Kind:  models.TransitionError,
		Error: fmt.Sprintf("%s monitor stopped: %v", kind, err),
	})
	c.recomputeLocked(e)
}

func (c *Coordinator) recompute(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entities[id]; ok {
		c.recomputeLocked(e)
	}
}

// build merges the base descriptor with the first monitor that enriches it.
func (c *Coordinator) build(e *entity) *models.ActivityDescriptor {
	if e.stopped {
		return nil
	}
	_, p, ok := e.task.observation()
	if !ok {
		return nil
	}
	base := BaseDescriptor(p)
	if base == nil {
		return nil
	}
	for _, m := range e.monitors.Ordered() {
		if d := m.BuildActivity(*base, p); d != nil {
			return d
		}
	}
	return base
}

// recomputeLocked pushes e's descriptor downstream if it changed. Caller
// holds c.mu.
func (c *Coordinator) recomputeLocked(e *entity) {
	next := c.build(e)
	if next.Equal(e.current) {
		metrics.DescriptorDeduplicated.Inc()
		return
	}

	prev := e.current
	e.current = next
	e.updatedAt = c.now()
	kind := models.ClassifyTransition(prev, next)
	metrics.DescriptorPushes.WithLabelValues(string(kind)).Inc()

	id := e.spec.ID
	if c.activity != nil {
		if err := c.activity.SetActivity(context.Background(), id, next.Clone()); err != nil {
			c.logger.Warn().Err(err).Str("entity", id).Msg("Activity sink failed")
		}
	}
	c.notifyLocked(e, models.Transition{Kind: kind, Previous: prev, Current: next.Clone()})

	if c.hub != nil {
		name, p, _ := e.task.observation()
		c.hub.Publish(stream.Event{
			EntityID:   id,
			Name:       name,
			Online:     !e.stopped && p.State.Online(),
			Descriptor: next,
			At:         e.updatedAt,
		})
	}
}

// notifyLocked fills in the entity fields of t and sends it. Caller holds
// c.mu.
func (c *Coordinator) notifyLocked(e *entity, t models.Transition) {
	if c.notifications == nil {
		return
	}
	t.EntityID = e.spec.ID
	t.Name, _, _ = e.task.observation()
	if t.At.IsZero() {
		t.At = c.now()
	}
	if err := c.notifications.Notify(context.Background(), t); err != nil {
		c.logger.Warn().Err(err).Str("entity", t.EntityID).Msg("Notification sink failed")
	}
}

// Snapshot returns the current merged presence of an entity.
func (c *Coordinator) Snapshot(id string) (models.EntitySnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entities[id]
	if !ok {
		return models.EntitySnapshot{}, false
	}
	return c.snapshotLocked(e), true
}

// Snapshots returns every entity's merged presence ordered by ID.
func (c *Coordinator) Snapshots() []models.EntitySnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.EntitySnapshot, 0, len(c.entities))
	for _, e := range c.entities {
		out = append(out, c.snapshotLocked(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Coordinator) snapshotLocked(e *entity) models.EntitySnapshot {
	name, p, observed := e.task.observation()
	s := models.EntitySnapshot{
		ID:         e.spec.ID,
		Kind:       string(e.spec.Kind),
		Name:       name,
		Account:    e.spec.Account,
		Online:     !e.stopped && p.State.Online(),
		Descriptor: e.current.Clone(),
		UpdatedAt:  e.updatedAt,
	}
	if observed {
		s.Presence = &p
	}
	for _, k := range e.monitors.Kinds() {
		s.Monitors = append(s.Monitors, string(k))
	}
	if c.hub != nil {
		if ev, ok := c.hub.Latest(e.spec.ID); ok {
			s.Seq = ev.Seq
		}
	}
	return s
}

// IDs returns the tracked entity IDs in order.
func (c *Coordinator) IDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.entities))
	for id := range c.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ActiveIDs returns the IDs of entities that currently have a descriptor.
func (c *Coordinator) ActiveIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ids []string
	for id, e := range c.entities {
		if e.current != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Counts returns the number of tracked and online entities.
func (c *Coordinator) Counts() (tracked, online int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entities {
		if _, p, _ := e.task.observation(); !e.stopped && p.State.Online() {
			online++
		}
	}
	return len(c.entities), online
}

// Has reports whether an entity is tracked.
func (c *Coordinator) Has(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entities[id]
	return ok
}

// LoopStates returns the state of every loop keyed by loop name.
func (c *Coordinator) LoopStates() map[string]loop.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	states := make(map[string]loop.State)
	for _, e := range c.entities {
		states[e.base.String()] = e.base.State()
		for _, l := range e.loops {
			states[l.String()] = l.State()
		}
	}
	return states
}

func containsKind(cfgs []monitor.Config, kind monitor.Kind) bool {
	for _, c := range cfgs {
		if c.Kind == kind {
			return true
		}
	}
	return false
}
