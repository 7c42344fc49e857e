// Activeboard - Wearable Activity Telemetry and Realtime Leaderboard
// Copyright 2026 J. Perkola
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/perkola/activeboard

// Package main is the Activeboard server entry point.
//
// Activeboard turns raw wearable telemetry into a realtime activity
// leaderboard. Boards publish events onto a NATS JetStream bus; the
// scoring pipeline attributes each event to a wearer, folds it into
// hour-aligned score windows, and pushes refreshed standings to every
// connected dashboard over websockets.
//
// The server initializes components in the following order:
//
//  1. Configuration: Koanf v2 layered sources (defaults, YAML, env)
//  2. Store: BadgerDB directory and score storage
//  3. Standings hub: websocket fan-out for dashboards
//  4. Pipeline: NATS connection, JetStream stream, Watermill router
//  5. HTTP server: directory API, standings, metrics, /ws upgrade
//
// Everything long-running is supervised by a suture tree; a crash in
// one layer restarts that layer with backoff without taking down the
// rest.
//
// # Example Usage
//
// Single binary with embedded broker and demo data:
//
//	export BUS_EMBEDDED=true
//	export BUS_STORE_DIR=/data/nats
//	export STORE_PATH=/data/activeboard
//	export STORE_SEED_DEMO_DATA=true
//	./activeboard
//
// Against an external NATS server:
//
//	export BUS_URL=nats://broker:4222
//	export STORE_PATH=/data/activeboard
//	./activeboard
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/perkola/activeboard/internal/api"
	"github.com/perkola/activeboard/internal/config"
	"github.com/perkola/activeboard/internal/logging"
	"github.com/perkola/activeboard/internal/models"
	"github.com/perkola/activeboard/internal/scoring"
	"github.com/perkola/activeboard/internal/standings"
	"github.com/perkola/activeboard/internal/store"
	"github.com/perkola/activeboard/internal/supervisor"
	"github.com/perkola/activeboard/internal/supervisor/services"
	ws "github.com/perkola/activeboard/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("store_path", cfg.Store.Path).
		Bool("embedded_bus", cfg.Bus.Embedded).
		Str("timezone", cfg.Scoring.Timezone).
		Msg("Starting Activeboard")

	st, err := store.Open(cfg.Store)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	if cfg.Store.SeedDemoData {
		if err := st.SeedDemoData(context.Background()); err != nil {
			logging.Fatal().Err(err).Msg("Failed to seed demo data")
		}
		logging.Info().Msg("Demo users and devices seeded")
	}

	params, err := scoring.ParamsFromConfig(cfg.Scoring)
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid scoring configuration")
	}
	keeper := scoring.NewKeeper(st, params)
	aggregator := standings.New(st, params.Location)

	hub := ws.NewHub(func(ctx context.Context) (*models.StandingsSnapshot, error) {
		return aggregator.All(ctx, time.Now())
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipeline, err := InitPipeline(cfg, st, keeper, aggregator, hub)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize telemetry pipeline")
	}

	handler := api.NewHandler(st, aggregator, hub, cfg.Server.CORSOrigins)
	router := api.NewRouter(handler, cfg.Server)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	tree.AddDataService(services.NewStoreGCService(st, cfg.Store.GCInterval))
	tree.AddMessagingService(services.NewHubService(hub))
	tree.AddMessagingService(services.NewPipelineService(pipeline, cfg.Bus.CloseTimeout))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Activeboard stopped gracefully")
}
