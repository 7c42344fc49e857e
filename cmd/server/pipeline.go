// Activeboard - Wearable Activity Telemetry and Realtime Leaderboard
// Copyright 2026 J. Perkola
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/perkola/activeboard

package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/perkola/activeboard/internal/config"
	"github.com/perkola/activeboard/internal/ingest"
	"github.com/perkola/activeboard/internal/logging"
	"github.com/perkola/activeboard/internal/scoring"
	"github.com/perkola/activeboard/internal/standings"
	"github.com/perkola/activeboard/internal/store"
	ws "github.com/perkola/activeboard/internal/websocket"
)

// streamMaxAge bounds how long raw telemetry sticks around in
// JetStream. Standings only ever look at today and yesterday.
const streamMaxAge = 7 * 24 * time.Hour

// PipelineComponents holds the telemetry pipeline for lifecycle
// management: the optional embedded broker, JetStream provisioning,
// the Watermill router, and its publisher/subscriber pair.
type PipelineComponents struct {
	server            *ingest.EmbeddedServer
	natsConn          *natsgo.Conn
	streamInitializer *ingest.StreamInitializer
	publisher         *ingest.Publisher
	subscriber        *ingest.Subscriber
	router            *ingest.Router
	handler           *ingest.Handler

	mu      sync.Mutex
	running bool
}

// InitPipeline builds every bus-side component and registers the
// scoring handler with the router. Nothing consumes until Start.
func InitPipeline(cfg *config.Config, st *store.Store, keeper *scoring.Keeper, aggregator *standings.Aggregator, hub *ws.Hub) (*PipelineComponents, error) {
	components := &PipelineComponents{}

	topics := ingest.Topics{
		Base:         cfg.Bus.BaseTopic,
		EventChannel: cfg.Bus.EventChannel,
	}

	var natsURL string
	if cfg.Bus.Embedded {
		server, err := ingest.NewEmbeddedServer(ingest.ServerConfig{
			Host:              "127.0.0.1",
			Port:              4222,
			StoreDir:          cfg.Bus.StoreDir,
			JetStreamMaxMem:   cfg.Bus.MaxMemory,
			JetStreamMaxStore: cfg.Bus.MaxStore,
		})
		if err != nil {
			return nil, err
		}
		components.server = server
		natsURL = server.ClientURL()
		logging.Info().Str("url", natsURL).Msg("Embedded NATS server started")
	} else {
		natsURL = cfg.Bus.URL
		logging.Info().Str("url", natsURL).Msg("Using external NATS server")
	}

	nc, err := natsgo.Connect(natsURL,
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.Bus.MaxReconnects),
		natsgo.ReconnectWait(cfg.Bus.ReconnectWait),
	)
	if err != nil {
		components.Shutdown(context.Background())
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	components.natsConn = nc

	js, err := jetstream.New(nc)
	if err != nil {
		components.Shutdown(context.Background())
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	streamInitializer, err := ingest.NewStreamInitializer(js, ingest.StreamConfig{
		Name:     cfg.Bus.StreamName,
		Subjects: topics.StreamSubjects(),
		MaxAge:   streamMaxAge,
		MaxBytes: cfg.Bus.MaxStore,
	})
	if err != nil {
		components.Shutdown(context.Background())
		return nil, fmt.Errorf("create stream initializer: %w", err)
	}
	components.streamInitializer = streamInitializer

	stream, err := streamInitializer.EnsureStream(context.Background())
	if err != nil {
		components.Shutdown(context.Background())
		return nil, fmt.Errorf("ensure stream exists: %w", err)
	}
	streamInfo := stream.CachedInfo()
	logging.Info().
		Str("name", streamInfo.Config.Name).
		Strs("subjects", streamInfo.Config.Subjects).
		Dur("max_age", streamInfo.Config.MaxAge).
		Msg("JetStream stream ready")

	wmLogger := ingest.NewWatermillLogger()

	publisher, err := ingest.NewPublisher(ingest.PublisherConfig{
		URL:           natsURL,
		MaxReconnects: cfg.Bus.MaxReconnects,
		ReconnectWait: cfg.Bus.ReconnectWait,
	}, wmLogger)
	if err != nil {
		components.Shutdown(context.Background())
		return nil, err
	}
	components.publisher = publisher

	router, err := ingest.NewRouter(ingest.RouterConfig{
		CloseTimeout:         cfg.Bus.RouterCloseTimeout,
		RetryMaxRetries:      cfg.Bus.RetryCount,
		RetryInitialInterval: cfg.Bus.RetryInitialInterval,
		PoisonTopic:          topics.Poison(),
	}, publisher.WatermillPublisher(), wmLogger)
	if err != nil {
		components.Shutdown(context.Background())
		return nil, fmt.Errorf("create router: %w", err)
	}
	components.router = router

	subscriber, err := ingest.NewSubscriber(ingest.SubscriberConfig{
		URL:              natsURL,
		StreamName:       cfg.Bus.StreamName,
		QueueGroup:       cfg.Bus.QueueGroup,
		DurableName:      cfg.Bus.DurableName,
		SubscribersCount: cfg.Bus.SubscribersCount,
		AckWaitTimeout:   cfg.Bus.AckWaitTimeout,
		CloseTimeout:     cfg.Bus.CloseTimeout,
		MaxReconnects:    cfg.Bus.MaxReconnects,
		ReconnectWait:    cfg.Bus.ReconnectWait,
	}, wmLogger)
	if err != nil {
		components.Shutdown(context.Background())
		return nil, fmt.Errorf("create subscriber: %w", err)
	}
	components.subscriber = subscriber

	resolver := ingest.NewResolver(st)
	handler := ingest.NewHandler(resolver, keeper, aggregator, hub, publisher, topics)
	components.handler = handler

	router.AddConsumerHandler(
		"score-pipeline",
		topics.Inbound(),
		subscriber,
		handler.Handle,
	)
	logging.Info().
		Str("subject", topics.Inbound()).
		Str("queue_group", cfg.Bus.QueueGroup).
		Msg("Scoring handler registered with router")

	components.mu.Lock()
	components.running = true
	components.mu.Unlock()

	return components, nil
}

// Start runs the router and waits until its handlers are consuming.
func (c *PipelineComponents) Start(ctx context.Context) error {
	if c == nil {
		return nil
	}

	go func() {
		if err := c.router.Run(ctx); err != nil && ctx.Err() == nil {
			logging.Error().Err(err).Msg("Telemetry router stopped unexpectedly")
		}
	}()

	select {
	case <-c.router.Running():
		logging.Info().Msg("Telemetry pipeline running")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context canceled while starting router: %w", ctx.Err())
	}
}

// Shutdown stops everything in dependency order: router first so no
// handler is mid-message, then subscriber, publisher, connection, and
// the embedded server last.
func (c *PipelineComponents) Shutdown(ctx context.Context) {
	if c == nil {
		return
	}

	c.mu.Lock()
	running := c.running
	c.running = false
	c.mu.Unlock()
	if !running && c.router == nil && c.natsConn == nil && c.server == nil {
		return
	}

	if c.router != nil {
		if err := c.router.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing router")
		}
	}
	if c.subscriber != nil {
		if err := c.subscriber.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing subscriber")
		}
	}
	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing publisher")
		}
	}
	if c.natsConn != nil {
		c.natsConn.Close()
	}
	if c.server != nil {
		if err := c.server.Shutdown(ctx); err != nil {
			logging.Error().Err(err).Msg("Error shutting down embedded NATS server")
		}
	}

	logging.Info().Msg("Telemetry pipeline stopped")
}

// IsRunning reports whether the pipeline is active.
func (c *PipelineComponents) IsRunning() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
