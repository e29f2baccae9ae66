// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package sink

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/presencewatch/internal/metrics"
	"github.com/tomtom215/presencewatch/internal/models"
)

// defaultSendTimeout bounds one sink call made by the dispatcher.
const defaultSendTimeout = 15 * time.Second

// Dispatcher delivers sink work from a single worker. Enqueueing never
// blocks.
//
// Descriptors are coalesced per entity: only the latest pending descriptor
// of an entity is delivered, so a sink always converges on the current
// state. Entities are delivered in the order they first became pending.
// Transitions are events and queue in order; when the transition queue is
// full the newest transition is dropped and counted.
//
// Dispatcher implements suture.Service. Work still pending when Serve
// returns is delivered by the next Serve call.
type Dispatcher struct {
	activity     ActivitySink
	notification NotificationSink
	transitions  chan models.Transition
	wake         chan struct{}
	timeout      time.Duration
	logger       zerolog.Logger

	mu      sync.Mutex
	latest  map[string]*models.ActivityDescriptor
	pending []string
}

// NewDispatcher creates a dispatcher. Either sink may be nil. queueSize
// bounds the transition queue.
func NewDispatcher(activity ActivitySink, notification NotificationSink, queueSize int, logger zerolog.Logger) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Dispatcher{
		activity:     activity,
		notification: notification,
		transitions:  make(chan models.Transition, queueSize),
		wake:         make(chan struct{}, 1),
		timeout:      defaultSendTimeout,
		logger:       logger.With().Str("component", "sink-dispatcher").Logger(),
		latest:       make(map[string]*models.ActivityDescriptor),
	}
}

// SetActivity implements ActivitySink by recording desc as the entity's
// pending descriptor, replacing any undelivered one.
func (d *Dispatcher) SetActivity(_ context.Context, entityID string, desc *models.ActivityDescriptor) error {
	if d.activity == nil {
		return nil
	}
	d.mu.Lock()
	if _, ok := d.latest[entityID]; ok {
		metrics.SinkActivityCoalesced.Inc()
	} else {
		d.pending = append(d.pending, entityID)
	}
	d.latest[entityID] = desc.Clone()
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return nil
}

// Notify implements NotificationSink by queueing the transition.
func (d *Dispatcher) Notify(_ context.Context, t models.Transition) error {
	if d.notification == nil {
		return nil
	}
	t.Previous = t.Previous.Clone()
	t.Current = t.Current.Clone()
	select {
	case d.transitions <- t:
	default:
		metrics.SinkQueueDropped.Inc()
		d.logger.Warn().Str("entity", t.EntityID).Str("kind", string(t.Kind)).Msg("Sink queue full, dropping notification")
	}
	return nil
}

// Pending returns the number of entities with an undelivered descriptor
// plus the number of queued transitions.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending) + len(d.transitions)
}

// Serve implements suture.Service.
func (d *Dispatcher) Serve(ctx context.Context) error {
	d.logger.Info().Msg("Sink dispatcher started")
	// Work left by a previous run has no wake signal of its own.
	d.flushActivity(ctx)
	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Int("pending", d.Pending()).Msg("Sink dispatcher stopped")
			return ctx.Err()
		case <-d.wake:
			d.flushActivity(ctx)
		case t := <-d.transitions:
			d.notify(ctx, d.notification, t)
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (d *Dispatcher) String() string {
	return "sink-dispatcher"
}

// flushActivity delivers every pending descriptor. Entities left undelivered
// because ctx ended are put back unless a newer descriptor arrived.
func (d *Dispatcher) flushActivity(ctx context.Context) {
	d.mu.Lock()
	ids := d.pending
	descs := d.latest
	d.pending = nil
	d.latest = make(map[string]*models.ActivityDescriptor, len(descs))
	d.mu.Unlock()

	for i, id := range ids {
		if ctx.Err() != nil {
			d.requeue(ids[i:], descs)
			return
		}
		d.setActivity(ctx, d.activity, id, descs[id])
	}
}

func (d *Dispatcher) requeue(ids []string, descs map[string]*models.ActivityDescriptor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var keep []string
	for _, id := range ids {
		if _, newer := d.latest[id]; newer {
			continue
		}
		d.latest[id] = descs[id]
		keep = append(keep, id)
	}
	d.pending = append(keep, d.pending...)
}

// setActivity delivers to s, unpacking fanouts so failures are counted
// against the sink that failed.
func (d *Dispatcher) setActivity(ctx context.Context, s ActivitySink, entityID string, desc *models.ActivityDescriptor) {
	if f, ok := s.(ActivityFanout); ok {
		for _, inner := range f {
			d.setActivity(ctx, inner, entityID, desc)
		}
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := s.SetActivity(sendCtx, entityID, desc.Clone()); err != nil {
		d.fail(s, entityID, err)
	}
}

func (d *Dispatcher) notify(ctx context.Context, s NotificationSink, t models.Transition) {
	if f, ok := s.(NotificationFanout); ok {
		for _, inner := range f {
			d.notify(ctx, inner, t)
		}
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := s.Notify(sendCtx, t); err != nil {
		d.fail(s, t.EntityID, err)
	}
}

func (d *Dispatcher) fail(s any, entityID string, err error) {
	name := nameOf(s)
	metrics.SinkErrors.WithLabelValues(name).Inc()
	d.logger.Warn().Err(err).Str("sink", name).Str("entity", entityID).Msg("Sink delivery failed")
}
