// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

/*
Package supervisor provides the Suture v4 process tree for Presencewatch.

Tree layout:

	presencewatch (root)
	├── presence-layer      poll loops for tracked entities, added at runtime
	├── distribution-layer  stream hub, sink dispatcher, redis TTL refresher
	└── api-layer           HTTP server

Each layer is its own supervisor, so a crash-looping service in one layer
backs off without restarting the others. Supervisor events are logged
through sutureslog using the zerolog slog bridge from the logging package.

Poll loops end with suture.ErrDoNotRestart once they reach a terminal
state, so the presence layer is used purely through Add; nothing removes
their tokens.

Usage:

	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfigFrom(cfg.Supervisor))
	if err != nil {
	    return err
	}
	coord := presence.NewCoordinator(presence.Options{Host: tree.Presence(), ...})
	tree.AddDistributionService(hub)
	tree.AddAPIService(supervisor.NewHTTPServerService(srv, cfg.Server.ShutdownTimeout))
	return tree.Serve(ctx)
*/
package supervisor
