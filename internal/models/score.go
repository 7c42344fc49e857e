// Activeboard - Wearable Activity Telemetry and Realtime Leaderboard
// Copyright 2026 J. Perkola
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/perkola/activeboard

package models

import (
	"time"

	"github.com/google/uuid"
)

// ScoreEntry is one hour-aligned accumulation window for one user.
//
// Invariants maintained by the scoring pipeline:
//   - WindowStart is hour-aligned UTC and WindowEnd = WindowStart + 1h
//   - windows never overlap for a user; at most one contains "now"
//   - entries are created lazily on the first event inside a new hour
//   - counters carry forward from the most recent prior window only if
//     that window started on the same calendar day, else reset to zero
//   - entries are never deleted by the core
type ScoreEntry struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"userId"`
	WindowStart     time.Time `json:"windowStart"`
	WindowEnd       time.Time `json:"windowEnd"`
	Score           int       `json:"score"`
	Steps           int       `json:"steps"`
	StandingMinutes float64   `json:"standingMinutes"`
	OutsideMinutes  float64   `json:"outsideMinutes"`
	LastUpdate      time.Time `json:"lastUpdate"`
}

// Contains reports whether t falls inside the entry's half-open window.
func (e *ScoreEntry) Contains(t time.Time) bool {
	return !t.Before(e.WindowStart) && t.Before(e.WindowEnd)
}
