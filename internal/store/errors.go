// Activeboard - Wearable Activity Telemetry and Realtime Leaderboard
// Copyright 2026 J. Perkola
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/perkola/activeboard

package store

import "errors"

// Sentinel errors returned by lookups and writes. Callers distinguish
// "the record does not exist" from storage failures with errors.Is.
var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrScoreNotFound  = errors.New("score entry not found")
	ErrDuplicate      = errors.New("record already exists")
)
