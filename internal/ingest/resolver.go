// Activeboard - Wearable Activity Telemetry and Realtime Leaderboard
// Copyright 2026 J. Perkola
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/perkola/activeboard

package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/perkola/activeboard/internal/models"
	"github.com/perkola/activeboard/internal/store"
)

// Directory is the lookup surface for device-to-user attribution.
type Directory interface {
	GetDeviceByExternalID(ctx context.Context, externalID string) (*models.Device, error)
	GetUserByDeviceID(ctx context.Context, deviceID uuid.UUID) (*models.User, error)
}

// ErrUnresolvable marks an event whose board is unregistered or whose
// device has no wearer. These are soft failures: the event is dropped
// and logged, never retried.
var ErrUnresolvable = errors.New("event not attributable to a user")

// ErrUnknownDevice and ErrUnknownUser narrow ErrUnresolvable for
// logging and metrics; both match ErrUnresolvable under errors.Is.
var (
	ErrUnknownDevice = fmt.Errorf("%w: unregistered board", ErrUnresolvable)
	ErrUnknownUser   = fmt.Errorf("%w: device has no wearer", ErrUnresolvable)
)

// Resolver maps a telemetry event's boardID to the owning user.
type Resolver struct {
	directory Directory
}

// NewResolver builds a Resolver over the given directory.
func NewResolver(directory Directory) *Resolver {
	return &Resolver{directory: directory}
}

// Resolve returns the device and user behind a boardID. Unknown
// devices and unlinked devices return ErrUnresolvable; any other error
// is a storage failure.
func (r *Resolver) Resolve(ctx context.Context, boardID string) (*models.Device, *models.User, error) {
	device, err := r.directory.GetDeviceByExternalID(ctx, boardID)
	if errors.Is(err, store.ErrDeviceNotFound) {
		return nil, nil, fmt.Errorf("board %q: %w", boardID, ErrUnknownDevice)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("look up device: %w", err)
	}

	user, err := r.directory.GetUserByDeviceID(ctx, device.ID)
	if errors.Is(err, store.ErrUserNotFound) {
		return nil, nil, fmt.Errorf("device %s: %w", device.ID, ErrUnknownUser)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("look up wearer: %w", err)
	}

	return device, user, nil
}
