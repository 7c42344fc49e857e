// Activeboard - Wearable Activity Telemetry and Realtime Leaderboard
// Copyright 2026 J. Perkola
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/perkola/activeboard

// Package scoring turns telemetry observations into per-hour score
// entries: hour-aligned window resolution with same-day carry-forward,
// and the weighted composite score update.
package scoring

import "time"

// WindowBounds returns the UTC hour window [start, end) containing now.
func WindowBounds(now time.Time) (start, end time.Time) {
	start = now.UTC().Truncate(time.Hour)
	return start, start.Add(time.Hour)
}

// SameCalendarDay reports whether a and b fall on the same calendar
// day in the given reference timezone. Carry-forward across windows
// stops at this boundary so every day starts from zero.
func SameCalendarDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
