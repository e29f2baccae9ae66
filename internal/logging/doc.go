// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

// Package logging provides the zerolog-based structured logging layer for
// Presencewatch.
//
// # Overview
//
// The process logger is configured once from the logging section of the
// configuration and then handed to components as a child logger:
//
//	logging.Init(logging.FromConfig(cfg.Logging))
//
//	coord := presence.NewCoordinator(presence.Options{
//	    Logger: logging.WithComponent("presence"),
//	    ...
//	})
//
// Components keep the logger they were given. The package-level Info/Warn
// helpers exist for main and for code that runs before any component is
// constructed.
//
// # Request Context
//
// HTTP middleware stores a request ID and a correlation ID in the request
// context. Ctx builds a logger that carries both:
//
//	logging.Ctx(r.Context()).Warn().Err(err).Msg("Upstream fetch failed")
//
// # Suture Integration
//
// Suture v4 reports supervisor events through sutureslog, which wants an
// slog.Logger. NewSlogLogger returns one backed by the process logger:
//
//	handler := &sutureslog.Handler{Logger: logging.NewSlogLogger()}
//
// # Output Formats
//
// JSON (default):
//
//	{"level":"info","component":"stream","time":"2026-01-02T15:04:05Z","message":"Subscriber connected"}
//
// Console:
//
//	15:04:05 INF Subscriber connected component=stream
package logging
