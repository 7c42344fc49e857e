// Activeboard - Wearable Activity Telemetry and Realtime Leaderboard
// Copyright 2026 J. Perkola
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/perkola/activeboard

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/perkola/activeboard/internal/logging"
	"github.com/perkola/activeboard/internal/models"
)

// demoUsers are created by SeedDemoData when the directory is empty.
// The device external IDs are stable so a simulator can target them
// without a lookup step.
var demoUsers = []struct {
	name     string
	deviceID string
}{
	{"Astrid Lindqvist", "board-demo-1"},
	{"Henrik Wallin", "board-demo-2"},
	{"Maja Holmberg", "board-demo-3"},
}

// SeedDemoData inserts a few linked users and devices for development
// setups. It is a no-op when any user already exists.
func (s *Store) SeedDemoData(ctx context.Context) error {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("check existing users: %w", err)
	}
	if len(users) > 0 {
		return nil
	}

	for _, demo := range demoUsers {
		device := &models.Device{
			ID:         uuid.New(),
			ExternalID: demo.deviceID,
			Name:       demo.name + "'s board",
			CreatedAt:  time.Now().UTC(),
		}
		if err := s.CreateDevice(ctx, device); err != nil && !errors.Is(err, ErrDuplicate) {
			return fmt.Errorf("seed device %s: %w", demo.deviceID, err)
		}

		user := &models.User{
			ID:         uuid.New(),
			ExternalID: uuid.NewString(),
			Name:       demo.name,
			DeviceID:   &device.ID,
			CreatedAt:  time.Now().UTC(),
		}
		if err := s.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("seed user %s: %w", demo.name, err)
		}

		logging.Info().
			Str("user", demo.name).
			Str("board_id", demo.deviceID).
			Msg("seeded demo user")
	}

	return nil
}
