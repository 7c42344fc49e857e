// Activeboard - Wearable Activity Telemetry and Realtime Leaderboard
// Copyright 2026 J. Perkola
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/perkola/activeboard

// Package config loads and validates Activeboard configuration from
// layered sources: struct defaults, an optional YAML file, and
// environment variables (highest priority), via Koanf v2.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration.
type Config struct {
	Bus     BusConfig     `koanf:"bus"`
	Scoring ScoringConfig `koanf:"scoring"`
	Store   StoreConfig   `koanf:"store"`
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
}

// BusConfig configures the NATS JetStream telemetry bus.
type BusConfig struct {
	// URL of the external NATS server; ignored when Embedded is true.
	URL string `koanf:"url" validate:"required"`

	// Embedded starts an in-process NATS server with JetStream.
	Embedded bool `koanf:"embedded"`

	// StoreDir is the JetStream storage directory for the embedded server.
	StoreDir string `koanf:"store_dir"`

	MaxMemory int64 `koanf:"max_memory"`
	MaxStore  int64 `koanf:"max_store"`

	// BaseTopic is the subject prefix shared by all Activeboard
	// subjects: inbound telemetry is {base}.{event_channel}, per-device
	// standings go to {base}.{deviceExternalID}.
	BaseTopic    string `koanf:"base_topic" validate:"required"`
	EventChannel string `koanf:"event_channel" validate:"required"`

	StreamName       string        `koanf:"stream_name"`
	QueueGroup       string        `koanf:"queue_group"`
	DurableName      string        `koanf:"durable_name"`
	SubscribersCount int           `koanf:"subscribers_count" validate:"min=1"`
	AckWaitTimeout   time.Duration `koanf:"ack_wait_timeout"`
	CloseTimeout     time.Duration `koanf:"close_timeout"`
	MaxReconnects    int           `koanf:"max_reconnects"`
	ReconnectWait    time.Duration `koanf:"reconnect_wait"`

	// Watermill router middleware knobs.
	RetryCount           int           `koanf:"retry_count"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	RouterCloseTimeout   time.Duration `koanf:"router_close_timeout"`
}

// ScoringConfig holds the score update parameters.
type ScoringConfig struct {
	// ElapsedCapMinutes bounds a single event's time contribution,
	// protecting against clock skew and message backlogs.
	ElapsedCapMinutes float64 `koanf:"elapsed_cap_minutes" validate:"gt=0"`

	StepWeight     float64 `koanf:"step_weight" validate:"gte=0"`
	StandingWeight float64 `koanf:"standing_weight" validate:"gte=0"`
	OutsideWeight  float64 `koanf:"outside_weight" validate:"gte=0"`

	// Timezone is the fixed reference timezone used for calendar-day
	// boundaries (carry-forward checks and standings day buckets).
	Timezone string `koanf:"timezone" validate:"required"`
}

// Location resolves the configured reference timezone.
func (s *ScoringConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scoring timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// StoreConfig configures the Badger-backed directory and score store.
type StoreConfig struct {
	Path string `koanf:"path"`

	// InMemory runs Badger without disk persistence (dev and tests).
	InMemory bool `koanf:"in_memory"`

	// OpTimeout bounds every storage call so a wedged disk surfaces as
	// an error instead of stalling the pipeline.
	OpTimeout time.Duration `koanf:"op_timeout" validate:"gt=0"`

	// GCInterval is how often the value-log garbage collector runs.
	GCInterval time.Duration `koanf:"gc_interval"`

	// SeedDemoData inserts a few demo users and devices at startup.
	SeedDemoData bool `koanf:"seed_demo_data"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout         time.Duration `koanf:"timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

var validate = validator.New()

// Validate checks structural constraints plus the cross-field rules the
// tag syntax can't express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if _, err := c.Scoring.Location(); err != nil {
		return err
	}

	if !c.Store.InMemory && c.Store.Path == "" {
		return fmt.Errorf("store.path is required unless store.in_memory is set")
	}

	if c.Bus.Embedded && c.Bus.StoreDir == "" {
		return fmt.Errorf("bus.store_dir is required when bus.embedded is set")
	}

	return nil
}
