// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ifauzeee/BipolTracker/internal/api"
	"github.com/ifauzeee/BipolTracker/internal/auth"
	"github.com/ifauzeee/BipolTracker/internal/cache"
	"github.com/ifauzeee/BipolTracker/internal/config"
	"github.com/ifauzeee/BipolTracker/internal/geofence"
	"github.com/ifauzeee/BipolTracker/internal/ingest"
	"github.com/ifauzeee/BipolTracker/internal/logging"
	"github.com/ifauzeee/BipolTracker/internal/models"
	"github.com/ifauzeee/BipolTracker/internal/motion"
	"github.com/ifauzeee/BipolTracker/internal/retention"
	"github.com/ifauzeee/BipolTracker/internal/settings"
	"github.com/ifauzeee/BipolTracker/internal/store"
	"github.com/ifauzeee/BipolTracker/internal/supervisor"
	"github.com/ifauzeee/BipolTracker/internal/supervisor/services"
	ws "github.com/ifauzeee/BipolTracker/internal/websocket"
)

//nolint:gocyclo // sequential wiring
func main() {
	exitCode := 0
	defer func() {
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("db_driver", cfg.Database.Driver).
		Str("auth_mode", cfg.Security.AuthMode).
		Bool("udp_enabled", cfg.UDP.Enabled).
		Bool("nats_enabled", cfg.NATS.Enabled).
		Msg("Starting BipolTracker")

	db, err := store.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Str("driver", db.Driver()).Msg("Database initialized")

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// === DATA LAYER ===

	writer := store.NewWriter(db, cfg.Writer)
	readCache := cache.New(cfg.Cache.TTL(), cfg.Cache.SweepInterval)
	// A read between emit and persist re-caches the old event list.
	writer.OnWritten(cache.DeleteOnWrite(readCache, store.KindZoneEvent, cache.KeyGeofenceEvents))
	settingsSvc := settings.New(db, cfg.Settings)

	// Seed the snapshot before the listeners open; Serve keeps it fresh.
	loadCtx, loadCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := settingsSvc.Refresh(loadCtx); err != nil {
		logging.Warn().Err(err).Msg("Initial settings load failed, using configured defaults")
	}
	loadCancel()

	tree.AddDataService(writer)
	tree.AddDataService(settingsSvc)
	tree.AddDataService(readCache)
	tree.AddDataService(retention.NewReaper(db, cfg.Retention.Window(), cfg.Retention.Interval))

	limiter, closeLimiter, err := initRateLimiter(cfg, tree)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize rate limiter")
	}
	defer closeLimiter()

	// === MESSAGING LAYER ===

	hub := ws.NewHub(cfg.WebSocket.BroadcastBuffer, cfg.WebSocket.ClientBuffer)
	settingsSvc.OnChange(func(s models.Settings) {
		readCache.Delete(cache.KeyPublicConfig)
		hub.BroadcastSettings(settings.Public(s))
	})

	detector := geofence.NewDetector(geofence.Policy(cfg.Geofence.OverlapPolicy))
	refresher := geofence.NewRefresher(db, detector, cfg.Geofence.RefreshInterval)

	tree.AddMessagingService(services.NewBroadcastHubService(hub))
	tree.AddMessagingService(refresher)

	publisher, err := initEventPublisher(cfg, tree)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize event publisher")
	}

	pipeline := ingest.NewPipeline(ingest.Deps{
		Detector:  detector,
		Motion:    motion.NewEngine(settingsSvc.StopTimeout),
		Settings:  settingsSvc,
		Cache:     readCache,
		Writer:    writer,
		Hub:       hub,
		Publisher: publisher,
	}, ingest.Bounds{
		Latitude:  cfg.Telemetry.LatitudeBound,
		Longitude: cfg.Telemetry.LongitudeBound,
	})

	// === API LAYER ===

	if cfg.UDP.Enabled {
		udpCfg := ingest.UDPListenerConfig{
			Address:    net.JoinHostPort(cfg.UDP.Host, strconv.Itoa(cfg.UDP.Port)),
			ReadBuffer: cfg.UDP.ReadBufferBytes,
			Processor:  pipeline,
			Limiter:    ingest.NewDatagramLimiter(cfg.UDP.MaxDatagramsPerSecond, cfg.UDP.Burst),
		}
		if cfg.UDP.Legacy.Enabled() {
			forwarder, err := ingest.NewLegacyForwarder(cfg.UDP.Legacy)
			if err != nil {
				logging.Fatal().Err(err).Msg("Failed to initialize legacy forwarder")
			}
			udpCfg.Forwarder = forwarder
			tree.AddMessagingService(forwarder)
			logging.Info().
				Str("host", cfg.UDP.Legacy.Host).
				Int("port", cfg.UDP.Legacy.Port).
				Int("mapped_ids", len(cfg.UDP.Legacy.IDMap)).
				Msg("Legacy forwarding enabled")
		}
		tree.AddAPIService(ingest.NewUDPListener(udpCfg))
	} else {
		logging.Info().Msg("UDP listener disabled")
	}

	var jwtManager *auth.JWTManager
	switch cfg.Security.AuthMode {
	case config.AuthModeJWT:
		jwtManager, err = auth.NewJWTManager(cfg.Security)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
		}
		logging.Info().Msg("JWT authentication enabled for admin routes")
	case config.AuthModeNone:
		logging.Warn().Msg("Admin routes are NOT authenticated (security.auth_mode=none). Use only on isolated networks.")
	}

	if cfg.RateLimit.Disabled {
		logging.Warn().Msg("Rate limiting is DISABLED (ratelimit.disabled=true)")
	}

	handler := api.NewHandler(api.Deps{
		Pipeline: pipeline,
		Store:    db,
		Settings: settingsSvc,
		Zones:    refresher,
		Cache:    readCache,
		Hub:      hub,
		Config:   cfg,
	})
	router := api.NewRouter(handler, limiter, jwtManager, cfg)

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	server := &http.Server{
		Addr:              addr,
		Handler:           router.Setup(),
		ReadTimeout:       cfg.Server.Timeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, addr, cfg.Server.ShutdownTimeout))

	for _, layer := range []supervisor.Layer{supervisor.LayerData, supervisor.LayerMessaging, supervisor.LayerAPI} {
		logging.Info().Str("layer", string(layer)).Strs("services", tree.Services(layer)).Msg("Supervisor layer assembled")
	}

	// === RUN ===

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, tree); err != nil {
		logging.Error().Err(err).Msg("Supervisor tree error")
		exitCode = 1
		return
	}
	logging.Info().Msg("Application stopped gracefully")
}

// run serves the tree until ctx is canceled and reports services that did
// not stop in time.
func run(ctx context.Context, tree *supervisor.SupervisorTree) error {
	logging.Info().Msg("Starting supervisor tree")
	err := tree.Serve(ctx)

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}
	return nil
}
