// Activeboard - Wearable Activity Telemetry and Realtime Leaderboard
// Copyright 2026 J. Perkola
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/perkola/activeboard

package ingest

import "strings"

// Topics derives every bus subject from the configured base. All
// Activeboard traffic lives under "{base}.": telemetry arrives on
// "{base}.{eventChannel}", per-device standings leave on
// "{base}.{deviceExternalID}", and messages that exhaust their retries
// land on "{base}.poison".
type Topics struct {
	Base         string
	EventChannel string
}

// Inbound returns the telemetry subject wearables publish to.
func (t Topics) Inbound() string {
	return t.Base + "." + t.EventChannel
}

// Device returns the outbound subject for one device's standing.
func (t Topics) Device(externalID string) string {
	return t.Base + "." + externalID
}

// Poison returns the dead-letter subject.
func (t Topics) Poison() string {
	return t.Base + ".poison"
}

// StreamSubjects returns the subject patterns the JetStream stream
// must capture.
func (t Topics) StreamSubjects() []string {
	return []string{t.Base + ".>"}
}

// Suffix strips the base prefix from a subject. The second return is
// false when the subject does not belong to this deployment's base,
// or equals the bare base; such subjects are ignored, not errors.
func (t Topics) Suffix(subject string) (string, bool) {
	suffix, ok := strings.CutPrefix(subject, t.Base+".")
	if !ok || suffix == "" {
		return "", false
	}
	return suffix, true
}

// IsInbound reports whether a subject carries telemetry events.
func (t Topics) IsInbound(subject string) bool {
	suffix, ok := t.Suffix(subject)
	return ok && suffix == t.EventChannel
}
