// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/presencewatch/internal/api"
	"github.com/tomtom215/presencewatch/internal/auth"
	"github.com/tomtom215/presencewatch/internal/config"
	"github.com/tomtom215/presencewatch/internal/logging"
	"github.com/tomtom215/presencewatch/internal/monitor"
	"github.com/tomtom215/presencewatch/internal/monitor/splatoon3"
	"github.com/tomtom215/presencewatch/internal/presence"
	"github.com/tomtom215/presencewatch/internal/stream"
	"github.com/tomtom215/presencewatch/internal/supervisor"
	"github.com/tomtom215/presencewatch/internal/tenant"
	"github.com/tomtom215/presencewatch/internal/upstream"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	issueFor := flag.String("issue-session", "", "print a session token for the given account key and exit")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	// Load configuration first to get logging settings
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.FromConfig(cfg.Logging))

	if *issueFor != "" {
		if err := issueSession(os.Stdout, cfg, *issueFor); err != nil {
			logging.Fatal().Err(err).Str("account", *issueFor).Msg("Failed to issue session token")
		}
		return
	}

	logging.Info().
		Str("version", version).
		Int("accounts", len(cfg.Accounts)).
		Strs("splatoon3_monitors", cfg.Splatoon3MonitorKinds()).
		Msg("Starting presencewatch with supervisor tree")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridge zerolog to slog for sutureslog
	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfigFrom(cfg.Supervisor))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// === UPSTREAM ===

	platformClient := upstream.NewClient("platform", cfg.Upstream.BaseURL, &cfg.Upstream, logging.WithComponent("upstream"))
	source := upstream.NewPlatformClient(platformClient)
	cache := tenant.New(cfg.Cache.MinRefetchInterval, cfg.Cache.FetchTimeout, logging.WithComponent("tenant-cache"))

	registry := monitor.NewRegistry()
	if kinds := cfg.Splatoon3MonitorKinds(); len(kinds) > 0 {
		enabled := make([]monitor.Kind, len(kinds))
		for i, k := range kinds {
			enabled[i] = monitor.Kind(k)
		}
		splatoon3.Register(registry, splatoon3.Deps{
			Client:  upstream.NewClient("splatoon3-schedules", cfg.Upstream.ScheduleURL, &cfg.Upstream, logging.WithComponent("upstream")),
			Cache:   cache,
			TitleID: cfg.Monitors.Splatoon3.TitleID,
			Logger:  logging.WithComponent("splatoon3"),
		}, enabled)
		logging.Info().Strs("kinds", kinds).Msg("Splatoon 3 monitors registered")
	}

	// === DISTRIBUTION ===

	sinks := initSinks(ctx, cfg.Sinks)
	defer sinks.Close()
	tree.AddDistributionService(sinks.Dispatcher)

	if cfg.API.HeartbeatInterval > 0 {
		stream.HeartbeatInterval = cfg.API.HeartbeatInterval
	}
	hub := stream.NewHub(cfg.API.StreamBuffer, logging.WithComponent("stream-hub"))
	tree.AddDistributionService(hub)

	coordinator := presence.NewCoordinator(presence.Options{
		Source:        source,
		Cache:         cache,
		Registry:      registry,
		Host:          tree.Presence(),
		Activity:      sinks.Dispatcher,
		Notifications: sinks.Dispatcher,
		Hub:           hub,
		Presence:      cfg.Presence,
		MaxMalformed:  cfg.Monitors.MaxMalformed,
		Logger:        logging.Logger(),
	})

	if refresh := sinks.RefreshLoop(coordinator); refresh != nil {
		tree.AddDistributionService(refresh)
	}

	specs := presence.SpecsFromConfig(cfg)
	if err := coordinator.Apply(specs); err != nil {
		logging.Warn().Err(err).Msg("Some tracked entities did not start cleanly")
	}
	logging.Info().Int("entities", len(specs)).Msg("Presence tracking configured")

	// === API ===

	accounts := auth.NewAccounts(cfg.Accounts)
	sessions, err := newSessionManager(cfg.API)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize session manager")
	}
	warnInsecureAPI(cfg)

	authMiddleware := auth.NewMiddleware(auth.Options{
		Sessions:             sessions,
		Accounts:             accounts,
		AllowAccountKeyQuery: cfg.API.AllowAccountKeyQuery,
		OnError:              api.AuthErrorFunc(),
	})

	handler := api.NewHandler(api.Options{
		Presence: coordinator,
		Hub:      hub,
		Cache:    cache,
		Source:   source,
		Accounts: accounts,
		Config:   cfg.API,
		Version:  version,
		Logger:   logging.WithComponent("api"),
	})
	router := api.NewRouter(handler, authMiddleware, api.NewChiMiddleware(api.ChiMiddlewareConfigFrom(cfg.API)))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	tree.AddAPIService(supervisor.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// === CONFIG RELOAD ===

	if path := config.ConfigFile(); path != "" {
		reloader := newReloader(cfg, coordinator, accounts, cache)
		if err := config.WatchConfigFile(path, reloader.apply); err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Config file watcher unavailable, edits need a restart")
		} else {
			logging.Info().Str("path", path).Msg("Watching config file for changes")
		}
	}

	// === START SUPERVISOR TREE ===

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}

// warnInsecureAPI logs configurations that leave the API open or unusable.
func warnInsecureAPI(cfg *config.Config) {
	if cfg.AllowsAnonymousAPI() {
		logging.Warn().Msg("No API authentication method is configured (SESSION_SECRET unset, account key query disabled)")
		logging.Warn().Msg("Presence and account endpoints will reject every request")
	}
	if cfg.API.AllowAccountKeyQuery {
		logging.Warn().Msg("Account key query authentication is enabled; keys appear in URLs and access logs")
	}
	if cfg.HasWildcardCORS() && !cfg.AllowsAnonymousAPI() {
		logging.Warn().Msg("============================================================")
		logging.Warn().Msg("  SECURITY WARNING: CORS allows any origin (CORS_ORIGINS=*)")
		logging.Warn().Msg("  Browsers holding a session cookie can be driven by any site.")
		logging.Warn().Msg("  RECOMMENDED: CORS_ORIGINS=https://yourdomain.com")
		logging.Warn().Msg("============================================================")
	}
	if cfg.API.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}
}
