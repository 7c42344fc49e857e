// Activeboard - Wearable Activity Telemetry and Realtime Leaderboard
// Copyright 2026 J. Perkola
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/perkola/activeboard

// Package ingest consumes telemetry events from the NATS JetStream
// bus, resolves each event to its wearer, feeds the scoring keeper,
// and fans the refreshed standings out to the push channel and the
// per-device outbound subject.
package ingest

import (
	"fmt"

	"github.com/goccy/go-json"
)

// TelemetryEvent is the wire payload a wearable publishes on the
// inbound subject. Field names are fixed by the board firmware.
type TelemetryEvent struct {
	BoardID              string `json:"boardID"`
	Standing             bool   `json:"standing"`
	StepsSinceLastUpdate int    `json:"stepsSinceLastUpdate"`
	Outside              bool   `json:"outside"`
}

// ParseTelemetryEvent decodes and validates a raw payload.
func ParseTelemetryEvent(payload []byte) (*TelemetryEvent, error) {
	var event TelemetryEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("decode telemetry event: %w", err)
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}
	return &event, nil
}

// Validate checks the decoded event's field constraints.
func (e *TelemetryEvent) Validate() error {
	if e.BoardID == "" {
		return fmt.Errorf("telemetry event missing boardID")
	}
	if e.StepsSinceLastUpdate < 0 {
		return fmt.Errorf("telemetry event has negative step count %d", e.StepsSinceLastUpdate)
	}
	return nil
}
