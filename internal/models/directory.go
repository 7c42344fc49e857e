// Activeboard - Wearable Activity Telemetry and Realtime Leaderboard
// Copyright 2026 J. Perkola
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/perkola/activeboard

// Package models defines the core data types shared across Activeboard:
// the device/user directory records, hourly score entries, and the
// standings structures pushed to viewers.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Device is a registered wearable board. Devices are immutable from the
// scoring pipeline's perspective; only the directory API mutates them.
type Device struct {
	ID         uuid.UUID `json:"id"`
	ExternalID string    `json:"externalId"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"createdAt"`
}

// User is a registered participant. A user references at most one
// device; the scoring pipeline resolves inbound telemetry through that
// reference. Highscore is mutated only by the standings aggregator's
// ratchet and never decreases.
type User struct {
	ID         uuid.UUID  `json:"id"`
	ExternalID string     `json:"externalId"`
	Name       string     `json:"name"`
	Picture    string     `json:"picture,omitempty"`
	Highscore  int        `json:"highscore"`
	DeviceID   *uuid.UUID `json:"deviceId,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Summary returns the user projection embedded in standing records.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:         u.ID,
		ExternalID: u.ExternalID,
		Name:       u.Name,
		Picture:    u.Picture,
		Highscore:  u.Highscore,
	}
}

// UserSummary is the user projection sent to viewers.
type UserSummary struct {
	ID         uuid.UUID `json:"id"`
	ExternalID string    `json:"externalId"`
	Name       string    `json:"name"`
	Picture    string    `json:"picture,omitempty"`
	Highscore  int       `json:"highscore"`
}
