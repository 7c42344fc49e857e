// Activeboard - Wearable Activity Telemetry and Realtime Leaderboard
// Copyright 2026 J. Perkola
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/perkola/activeboard

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/activeboard/config.yaml",
	"/etc/activeboard/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Default returns a Config with all defaults applied. Defaults are
// loaded first, then overridden by the config file and env vars.
func Default() *Config {
	return &Config{
		Bus: BusConfig{
			URL:              "nats://127.0.0.1:4222",
			Embedded:         false,
			StoreDir:         "/data/nats/jetstream",
			MaxMemory:        256 << 20, // 256MB
			MaxStore:         2 << 30,   // 2GB
			BaseTopic:        "activeboard",
			EventChannel:     "events",
			StreamName:       "ACTIVEBOARD",
			QueueGroup:       "scorers",
			DurableName:      "score-pipeline",
			SubscribersCount: 1, // events apply in arrival order; cross-user parallelism lives in the keeper
			AckWaitTimeout:   30 * time.Second,
			CloseTimeout:     30 * time.Second,
			MaxReconnects:    -1,
			ReconnectWait:    2 * time.Second,

			RetryCount:           3,
			RetryInitialInterval: 100 * time.Millisecond,
			RouterCloseTimeout:   30 * time.Second,
		},
		Scoring: ScoringConfig{
			ElapsedCapMinutes: 0.5,
			StepWeight:        0.2,
			StandingWeight:    2,
			OutsideWeight:     2,
			Timezone:          "UTC",
		},
		Store: StoreConfig{
			Path:         "/data/activeboard",
			InMemory:     false,
			OpTimeout:    5 * time.Second,
			GCInterval:   10 * time.Minute,
			SeedDemoData: false,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8420,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   300,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration with layered sources, highest priority last:
//
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths are the config paths parsed as comma-separated
// slices when they arrive via environment variables.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated env strings to slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf paths.
//
// Examples:
//   - BUS_URL            -> bus.url
//   - BUS_EVENT_CHANNEL  -> bus.event_channel
//   - SCORING_TIMEZONE   -> scoring.timezone
//   - HTTP_PORT          -> server.port
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		"bus_url":                "bus.url",
		"bus_embedded":           "bus.embedded",
		"bus_store_dir":          "bus.store_dir",
		"bus_max_memory":         "bus.max_memory",
		"bus_max_store":          "bus.max_store",
		"bus_base_topic":         "bus.base_topic",
		"bus_event_channel":      "bus.event_channel",
		"bus_stream_name":        "bus.stream_name",
		"bus_queue_group":        "bus.queue_group",
		"bus_durable_name":       "bus.durable_name",
		"bus_subscribers_count":  "bus.subscribers_count",
		"bus_retry_count":        "bus.retry_count",
		"bus_max_reconnects":     "bus.max_reconnects",
		"bus_reconnect_wait":     "bus.reconnect_wait",

		"scoring_elapsed_cap_minutes": "scoring.elapsed_cap_minutes",
		"scoring_step_weight":         "scoring.step_weight",
		"scoring_standing_weight":     "scoring.standing_weight",
		"scoring_outside_weight":      "scoring.outside_weight",
		"scoring_timezone":            "scoring.timezone",

		"store_path":           "store.path",
		"store_in_memory":      "store.in_memory",
		"store_op_timeout":     "store.op_timeout",
		"store_gc_interval":    "store.gc_interval",
		"store_seed_demo_data": "store.seed_demo_data",
		"seed_demo_data":       "store.seed_demo_data",

		"http_host":         "server.host",
		"http_port":         "server.port",
		"http_timeout":      "server.timeout",
		"cors_origins":      "server.cors_origins",
		"rate_limit_reqs":   "server.rate_limit_reqs",
		"rate_limit_window": "server.rate_limit_window",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unknown variables are dropped rather than guessed at; a typo'd
	// setting should not silently land somewhere in the tree.
	return ""
}
