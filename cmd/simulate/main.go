// Activeboard - Wearable Activity Telemetry and Realtime Leaderboard
// Copyright 2026 J. Perkola
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/perkola/activeboard

// Package main publishes fake wearable telemetry for local
// development and load testing.
//
// Each tick emits one event for the given board: a random step count
// and coin flips (weighted ~35%) for standing and outside. Point the
// server at the same bus and watch the standings move:
//
//	./simulate -url nats://127.0.0.1:4222 -board board-demo-1 -interval 2s
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/perkola/activeboard/internal/ingest"
	"github.com/perkola/activeboard/internal/logging"
)

const (
	maxSteps          = 10
	standingThreshold = 65
	outsideThreshold  = 65
)

func main() {
	var (
		url      = flag.String("url", "nats://127.0.0.1:4222", "NATS server URL")
		board    = flag.String("board", "", "board external ID to emit events for (required)")
		interval = flag.Duration("interval", 2*time.Second, "time between events")
		base     = flag.String("base", "activeboard", "bus subject prefix")
		channel  = flag.String("channel", "events", "telemetry event channel")
		count    = flag.Int("count", 0, "number of events to publish, 0 for unlimited")
	)
	flag.Parse()

	logging.Init(logging.Config{Level: "info", Format: "console"})

	if *board == "" {
		fmt.Fprintln(os.Stderr, "Please specify a board ID with -board")
		flag.Usage()
		os.Exit(1)
	}

	topics := ingest.Topics{Base: *base, EventChannel: *channel}

	publisher, err := ingest.NewPublisher(ingest.PublisherConfig{
		URL:           *url,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}, ingest.NewWatermillLogger())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create publisher")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing publisher")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	limiter := rate.NewLimiter(rate.Every(*interval), 1)

	published := 0
	for *count == 0 || published < *count {
		if err := limiter.Wait(ctx); err != nil {
			break
		}

		event := ingest.TelemetryEvent{
			BoardID:              *board,
			Standing:             rng.Intn(100) >= standingThreshold,
			StepsSinceLastUpdate: rng.Intn(maxSteps),
			Outside:              rng.Intn(100) >= outsideThreshold,
		}

		payload, err := json.Marshal(event)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to encode event")
		}

		msg := message.NewMessage(watermill.NewUUID(), payload)
		if err := publisher.Publish(ctx, topics.Inbound(), msg); err != nil {
			logging.Error().Err(err).Msg("Failed to publish event")
			continue
		}
		published++

		logging.Info().
			Str("board", event.BoardID).
			Bool("standing", event.Standing).
			Bool("outside", event.Outside).
			Int("steps", event.StepsSinceLastUpdate).
			Msg("Published event")
	}

	logging.Info().Int("published", published).Msg("Simulator stopped")
}
