// Activeboard - Wearable Activity Telemetry and Realtime Leaderboard
// Copyright 2026 J. Perkola
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/perkola/activeboard

package ingest

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/perkola/activeboard/internal/logging"
)

func TestWatermillLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logging.Init(logging.Config{Level: "trace", Format: "json", Output: &buf})

	logger := NewWatermillLogger()
	logger.Error("publish failed", errors.New("broken pipe"), watermill.LogFields{"topic": "activeboard.events"})
	logger.Info("router started", nil)
	logger.Debug("message received", watermill.LogFields{"uuid": "abc"})
	logger.Trace("ack sent", nil)

	out := buf.String()
	for _, want := range []string{
		"publish failed", "broken pipe", "activeboard.events",
		"router started", "message received", "ack sent",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q", want)
		}
	}
}

func TestWatermillLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	logging.Init(logging.Config{Level: "debug", Format: "json", Output: &buf})

	logger := NewWatermillLogger().With(watermill.LogFields{"handler": "score-pipeline"})
	logger.Info("subscribed", watermill.LogFields{"topic": "activeboard.events"})

	out := buf.String()
	if !strings.Contains(out, "score-pipeline") {
		t.Error("log output missing bound field")
	}
	if !strings.Contains(out, "activeboard.events") {
		t.Error("log output missing call field")
	}
}
