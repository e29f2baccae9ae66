// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

/*
Package stream fans coordinator pushes out to long-lived HTTP subscribers.

Hub keeps the latest event of every entity and a registry of subscribers
keyed by topic: an entity ID, or TopicAll for every entity. Subscribe
registers a subscriber and returns the current snapshot under the same lock
Publish takes, so an event racing with a connect is delivered exactly once:
either inside the snapshot or on the channel, never both and never neither.

Every entity has its own sequence. Publish assigns the next number, so a
client can detect a gap after reconnecting.

Each subscriber owns a buffered channel. A subscriber whose buffer is full
is disconnected and counted; a live subscriber never silently misses an
event.

Transports:
  - ServeSSE writes text/event-stream frames ("id", "event", "data")
  - ServeWebSocket runs gorilla/websocket read and write pumps

Hub implements suture.Service; when Serve returns every subscriber is
closed with ErrHubClosed.
*/
package stream
