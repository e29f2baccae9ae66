// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package stream

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tomtom215/presencewatch/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// Message types on the WebSocket stream.
const (
	MessageTypePresence = "presence"
	MessageTypePing     = "ping"
	MessageTypePong     = "pong"
	MessageTypeClose    = "close"
)

// Message is one WebSocket frame.
type Message struct {
	Type  string `json:"type"`
	Event *Event `json:"event,omitempty"`
	Error string `json:"error,omitempty"`
}

// wsClient is a middleman between the websocket connection and a subscriber.
type wsClient struct {
	conn   *websocket.Conn
	sub    *Subscriber
	pongs  chan struct{}
	done   chan struct{}
	logger zerolog.Logger
}

// ServeWebSocket streams sub over conn until either side goes away. The
// snapshot is written first. It blocks until both pumps have exited and
// closes sub and conn.
func ServeWebSocket(conn *websocket.Conn, sub *Subscriber, snapshot []Event, logger zerolog.Logger) {
	c := &wsClient{
		conn:   conn,
		sub:    sub,
		pongs:  make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger.With().Str("transport", TransportWebSocket).Str("topic", sub.Topic()).Logger(),
	}

	go c.readPump()
	c.writePump(snapshot)
	<-c.done
}

// readPump reads client frames until the connection fails. Clients only
// send ping messages; everything else is ignored.
func (c *wsClient) readPump() {
	defer func() {
		c.sub.Close()
		_ = c.conn.Close()
		close(c.done)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("Unexpected websocket close")
				metrics.WSErrors.WithLabelValues("unexpected_close").Inc()
			}
			return
		}
		if msg.Type == MessageTypePing {
			select {
			case c.pongs <- struct{}{}:
			default:
			}
		}
	}
}

// writePump writes the snapshot, then events, pongs and keepalive pings.
func (c *wsClient) writePump(snapshot []Event) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for i := range snapshot {
		if !c.write(Message{Type: MessageTypePresence, Event: &snapshot[i]}) {
			return
		}
	}

	for {
		select {
		case e, ok := <-c.sub.Events():
			if !ok {
				reason := c.sub.Err()
				if reason != nil && !errors.Is(reason, ErrUnsubscribed) {
					c.write(Message{Type: MessageTypeClose, Error: reason.Error()})
					_ = c.conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason.Error()),
						time.Now().Add(writeWait))
				}
				return
			}
			if !c.write(Message{Type: MessageTypePresence, Event: &e}) {
				return
			}

		case <-c.pongs:
			if !c.write(Message{Type: MessageTypePong}) {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) write(msg Message) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		c.logger.Debug().Err(err).Msg("Failed to write websocket message")
		metrics.WSErrors.WithLabelValues("write").Inc()
		return false
	}
	metrics.WSMessagesSent.Inc()
	if msg.Type == MessageTypePresence {
		metrics.StreamEventsSent.Inc()
	}
	return true
}
