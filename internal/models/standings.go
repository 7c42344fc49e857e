// Activeboard - Wearable Activity Telemetry and Realtime Leaderboard
// Copyright 2026 J. Perkola
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/perkola/activeboard

package models

// HoursPerDay is the slot count of the hourly dashboard arrays.
const HoursPerDay = 24

// HourlySeries holds a dimension's per-hour values for today and
// yesterday, indexed by local hour-of-day. The arrays are fixed-size on
// purpose so the wire shape is always 24 slots.
type HourlySeries struct {
	Today     [HoursPerDay]float64 `json:"today"`
	Yesterday [HoursPerDay]float64 `json:"yesterday"`
}

// Dimension is one tracked quantity (score, steps, standing minutes or
// outside minutes) for one user. Current is today's maximum, LastDay
// yesterday's. The hourly curves are smoothed to be monotonically
// non-decreasing for display.
type Dimension struct {
	Current float64      `json:"current"`
	LastDay float64      `json:"lastDay"`
	Hourly  HourlySeries `json:"hourly"`
}

// StandingRecord is one user's full dashboard across all four
// dimensions.
type StandingRecord struct {
	User     UserSummary `json:"user"`
	Score    Dimension   `json:"score"`
	Steps    Dimension   `json:"steps"`
	Standing Dimension   `json:"standing"`
	Outside  Dimension   `json:"outside"`
}

// StandingsSnapshot is the full-roster payload pushed to viewers,
// sorted ascending by Score.Current.
type StandingsSnapshot struct {
	Standings []StandingRecord `json:"standings"`
}
