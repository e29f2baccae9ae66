// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package stream

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/presencewatch/internal/metrics"
	"github.com/tomtom215/presencewatch/internal/models"
)

// TopicAll subscribes to every entity.
const TopicAll = "*"

// DefaultBufferSize is the per-subscriber channel capacity.
const DefaultBufferSize = 64

// Transport labels for subscriber metrics.
const (
	TransportSSE       = "sse"
	TransportWebSocket = "websocket"
)

// Reasons a subscriber channel is closed.
var (
	ErrSlowSubscriber = errors.New("subscriber too slow, disconnected")
	ErrHubClosed      = errors.New("stream hub closed")
	ErrEntityRemoved  = errors.New("entity no longer tracked")
	ErrUnsubscribed   = errors.New("unsubscribed")
)

// Event is one coordinator push for one entity.
type Event struct {
	Seq        uint64                     `json:"seq"`
	EntityID   string                     `json:"entity_id"`
	Name       string                     `json:"name,omitempty"`
	Online     bool                       `json:"online"`
	Descriptor *models.ActivityDescriptor `json:"descriptor"`
	At         time.Time                  `json:"at"`
}

// Subscriber receives events for one topic.
type Subscriber struct {
	id        uint64
	topic     string
	transport string
	ch        chan Event
	hub       *Hub

	// err is written once, before ch is closed.
	err error
}

// Events returns the event channel. It is closed when the subscriber is
// disconnected; Err then reports why.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Err returns the disconnect reason once Events is closed.
func (s *Subscriber) Err() error {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	return s.err
}

// Topic returns the subscribed topic.
func (s *Subscriber) Topic() string {
	return s.topic
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscriber) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.hub.drop(s, ErrUnsubscribed)
}

func (s *Subscriber) matches(entityID string) bool {
	return s.topic == TopicAll || s.topic == entityID
}

// Hub is the subscriber registry.
type Hub struct {
	bufferSize int
	logger     zerolog.Logger

	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*Subscriber
	latest map[string]Event
	closed bool
}

// NewHub creates a hub whose subscribers buffer bufferSize events.
func NewHub(bufferSize int, logger zerolog.Logger) *Hub {
	if bufferSize < 1 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{
		bufferSize: bufferSize,
		logger:     logger.With().Str("component", "stream-hub").Logger(),
		subs:       make(map[uint64]*Subscriber),
		latest:     make(map[string]Event),
	}
}

// Subscribe registers a subscriber for topic and returns the snapshot it
// must emit before reading Events. For an entity topic the snapshot holds
// one event; an entity that has never been published yields an offline
// event with sequence 0. For TopicAll the snapshot holds the latest event of
// every entity, ordered by entity ID.
func (h *Hub) Subscribe(topic, transport string) (*Subscriber, []Event, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, nil, ErrHubClosed
	}

	h.nextID++
	s := &Subscriber{
		id:        h.nextID,
		topic:     topic,
		transport: transport,
		ch:        make(chan Event, h.bufferSize),
		hub:       h,
	}
	h.subs[s.id] = s
	metrics.StreamSubscribers.WithLabelValues(transport).Inc()

	return s, h.snapshotLocked(topic), nil
}

func (h *Hub) snapshotLocked(topic string) []Event {
	if topic != TopicAll {
		if e, ok := h.latest[topic]; ok {
			return []Event{e}
		}
		return []Event{{EntityID: topic}}
	}

	events := make([]Event, 0, len(h.latest))
	for _, e := range h.latest {
		events = append(events, e)
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].EntityID < events[j].EntityID
	})
	return events
}

// Latest returns the last published event of an entity.
func (h *Hub) Latest(entityID string) (Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.latest[entityID]
	return e, ok
}

// Publish assigns the entity's next sequence number to e, records it as the
// latest event and delivers it to every matching subscriber. Subscribers
// with a full buffer are disconnected. It returns the stamped event.
func (h *Hub) Publish(e Event) Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	e.Seq = h.latest[e.EntityID].Seq + 1
	e.Descriptor = e.Descriptor.Clone()
	if e.At.IsZero() {
		e.At = time.Now()
	}
	h.latest[e.EntityID] = e

	for _, s := range h.orderedLocked() {
		if !s.matches(e.EntityID) {
			continue
		}
		select {
		case s.ch <- e:
		default:
			metrics.StreamSlowDisconnects.Inc()
			h.logger.Warn().
				Uint64("subscriber", s.id).
				Str("topic", s.topic).
				Str("transport", s.transport).
				Msg("Subscriber buffer full, disconnecting")
			h.drop(s, ErrSlowSubscriber)
		}
	}
	return e
}

// Forget removes an entity's state and disconnects the subscribers of its
// topic. TopicAll subscribers stay connected.
func (h *Hub) Forget(entityID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.latest, entityID)
	for _, s := range h.orderedLocked() {
		if s.topic == entityID {
			h.drop(s, ErrEntityRemoved)
		}
	}
}

// SubscriberCount returns the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Serve implements suture.Service. It blocks until ctx is done and then
// disconnects every subscriber.
func (h *Hub) Serve(ctx context.Context) error {
	h.mu.Lock()
	h.closed = false
	h.mu.Unlock()

	<-ctx.Done()

	h.mu.Lock()
	h.closed = true
	count := len(h.subs)
	for _, s := range h.orderedLocked() {
		h.drop(s, ErrHubClosed)
	}
	h.mu.Unlock()

	h.logger.Info().Int("subscribers_closed", count).Msg("Stream hub stopped")
	return ctx.Err()
}

// String implements fmt.Stringer for suture logging.
func (h *Hub) String() string {
	return "stream-hub"
}

// orderedLocked returns subscribers in registration order.
func (h *Hub) orderedLocked() []*Subscriber {
	subs := make([]*Subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	sort.Slice(subs, func(i, j int) bool {
		return subs[i].id < subs[j].id
	})
	return subs
}

// drop closes s with reason. Callers hold h.mu.
func (h *Hub) drop(s *Subscriber, reason error) {
	if _, ok := h.subs[s.id]; !ok {
		return
	}
	delete(h.subs, s.id)
	s.err = reason
	close(s.ch)
	metrics.StreamSubscribers.WithLabelValues(s.transport).Dec()
}
