// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package splatoon3

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/presencewatch/internal/models"
	"github.com/tomtom215/presencewatch/internal/monitor"
)

// variant is the kind-specific part of a monitor.
type variant interface {
	handles(mode Mode) bool
	// stale reports whether any selection this variant depends on is empty.
	stale(s *Schedules, now time.Time) bool
	// nextChange returns when any selection this variant builds from can
	// next change.
	nextChange(s *Schedules, now time.Time) (time.Time, bool)
	build(s *Schedules, mode Mode, base models.ActivityDescriptor, modes ModeTable, now time.Time) *models.ActivityDescriptor
}

// Monitor is one Splatoon 3 enrichment monitor for one tracked entity.
type Monitor struct {
	kind    monitor.Kind
	variant variant
	scope   monitor.Scope
	source  Source
	titleID string
	modes   ModeTable
	cache   *monitor.ScheduleCache[*Schedules]
	logger  zerolog.Logger
	now     func() time.Time

	mu  sync.Mutex
	cfg monitor.Config
}

// NewMonitor creates a monitor of the given kind.
func NewMonitor(scope monitor.Scope, cfg monitor.Config, source Source, titleID string, modes ModeTable, logger zerolog.Logger) (*Monitor, error) {
	var v variant
	switch cfg.Kind {
	case monitor.KindSplatoon3Versus:
		v = versus{}
	case monitor.KindSplatoon3Coop:
		v = coop{}
	case monitor.KindSplatoon3Fest:
		v = fest{}
	default:
		return nil, fmt.Errorf("%w: %s", monitor.ErrUnknownKind, cfg.Kind)
	}
	if modes == nil {
		modes = DefaultModes
	}

	return &Monitor{
		kind:    cfg.Kind,
		variant: v,
		scope:   scope,
		source:  source,
		titleID: titleID,
		modes:   modes,
		cache:   monitor.NewScheduleCache[*Schedules](),
		logger:  logger.With().Str("monitor", string(cfg.Kind)).Str("entity", scope.EntityID).Logger(),
		now:     time.Now,
		cfg:     cfg,
	}, nil
}

// Kind implements monitor.Monitor.
func (m *Monitor) Kind() monitor.Kind {
	return m.kind
}

// Init performs the source handshake and warms the schedule cache.
func (m *Monitor) Init(ctx context.Context) error {
	if err := m.source.Handshake(ctx); err != nil {
		return err
	}
	_, err := m.cache.Refresh(ctx, true, m.source.Schedules)
	return err
}

// Update refetches the feed when a selection this monitor depends on is
// empty or has expired. A failed refetch keeps the previous snapshot so the
// monitor goes on enriching from stale data while the error is retried.
func (m *Monitor) Update(ctx context.Context) error {
	s, ok := m.cache.Get()
	force := !ok || m.variant.stale(s, m.now())

	_, err := m.cache.Refresh(ctx, force, m.source.Schedules)
	if err != nil && ok {
		m.logger.Warn().Err(err).Msg("Schedule refetch failed, serving cached schedules")
	}
	return err
}

// NextWake implements loop.Waker so the monitor runs again, and the entity
// is recomputed, as soon as a rotation it reports starts or ends.
func (m *Monitor) NextWake(now time.Time) (time.Time, bool) {
	s, ok := m.cache.Get()
	if !ok {
		return time.Time{}, false
	}
	return m.variant.nextChange(s, now)
}

// BuildActivity implements monitor.Monitor.
func (m *Monitor) BuildActivity(base models.ActivityDescriptor, presence models.Presence) *models.ActivityDescriptor {
	if !presence.Playing() || !strings.EqualFold(presence.Game.ID, m.titleID) {
		return nil
	}
	mode := Mode(presence.Game.ModeTag)
	if !m.variant.handles(mode) {
		return nil
	}
	s, ok := m.cache.Get()
	if !ok {
		return nil
	}
	return m.variant.build(s, mode, base, m.modes, m.now())
}

// Reconfigure applies cfg in place when only its interval differs.
func (m *Monitor) Reconfigure(cfg any) bool {
	c, ok := cfg.(monitor.Config)
	if !ok {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.cfg.Equivalent(c) {
		return false
	}
	m.cfg = c
	return true
}

// Config returns the monitor's current configuration.
func (m *Monitor) Config() monitor.Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

type versus struct{}

func (versus) handles(mode Mode) bool {
	for _, m := range VersusModes {
		if m == mode {
			return true
		}
	}
	return false
}

// stale tracks the modes that always have a rotation. Challenges and
// Splatfest battles come and go, so an empty selection there is expected.
func (versus) stale(s *Schedules, now time.Time) bool {
	for _, mode := range rotatingModes {
		if _, ok := monitor.Select(s.Versus[mode], now); !ok {
			return true
		}
	}
	return false
}

func (versus) nextChange(s *Schedules, now time.Time) (time.Time, bool) {
	var w wake
	for _, mode := range VersusModes {
		w.add(monitor.NextBoundary(s.Versus[mode], now))
	}
	return w.at, w.ok
}

func (versus) build(s *Schedules, mode Mode, base models.ActivityDescriptor, modes ModeTable, now time.Time) *models.ActivityDescriptor {
	e, ok := monitor.Select(s.Versus[mode], now)
	if !ok {
		return nil
	}
	info := modes.Lookup(mode)
	name := info.Name
	if mode == ModeEvent && e.Payload.EventName != "" {
		name = e.Payload.EventName
	}

	d := base
	d.Details = name + " - " + e.Payload.Rule.Name
	d.State = e.Payload.StagePair()
	d.SmallImageKey = info.Icon
	d.SmallImageText = name
	d.EndTimestamp = e.End
	return &d
}

type coop struct{}

func (coop) handles(mode Mode) bool {
	return mode == ModeCoop || mode == ModeBigRun
}

// stale only tracks regular Salmon Run, which always has a rotation. Big Run
// is an occasional event whose absence is expected.
func (coop) stale(s *Schedules, now time.Time) bool {
	_, ok := monitor.Select(s.CoopEntries(false), now)
	return !ok
}

func (coop) nextChange(s *Schedules, now time.Time) (time.Time, bool) {
	return monitor.NextBoundary(s.Coop, now)
}

func (coop) build(s *Schedules, mode Mode, base models.ActivityDescriptor, modes ModeTable, now time.Time) *models.ActivityDescriptor {
	e, ok := monitor.Select(s.CoopEntries(mode == ModeBigRun), now)
	if !ok {
		return nil
	}
	info := modes.Lookup(mode)

	d := base
	d.Details = info.Name + " - " + e.Payload.Stage.Name
	d.State = strings.Join(e.Payload.Weapons, " / ")
	d.SmallImageKey = info.Icon
	d.SmallImageText = info.Name
	d.EndTimestamp = e.End
	return &d
}

type fest struct{}

func (fest) handles(mode Mode) bool {
	return mode == ModeFest
}

func (fest) stale(s *Schedules, now time.Time) bool {
	_, ok := monitor.Select(s.Festivals, now)
	return !ok
}

func (fest) nextChange(s *Schedules, now time.Time) (time.Time, bool) {
	var w wake
	w.add(monitor.NextBoundary(s.Festivals, now))
	w.add(monitor.NextBoundary(s.Versus[ModeFest], now))
	return w.at, w.ok
}

func (fest) build(s *Schedules, mode Mode, base models.ActivityDescriptor, modes ModeTable, now time.Time) *models.ActivityDescriptor {
	f, ok := monitor.Select(s.Festivals, now)
	if !ok {
		return nil
	}
	info := modes.Lookup(mode)

	d := base
	d.Details = "Splatfest - " + f.Payload.Title
	d.State = strings.Join(f.Payload.Teams, " vs ")
	d.SmallImageKey = info.Icon
	d.SmallImageText = info.Name
	d.EndTimestamp = f.End
	if battle, ok := monitor.Select(s.Versus[ModeFest], now); ok {
		d.State = battle.Payload.StagePair()
		d.EndTimestamp = battle.End
	}
	return &d
}

// wake keeps the earliest of several boundaries.
type wake struct {
	at time.Time
	ok bool
}

func (w *wake) add(at time.Time, ok bool) {
	if ok && (!w.ok || at.Before(w.at)) {
		w.at, w.ok = at, true
	}
}
