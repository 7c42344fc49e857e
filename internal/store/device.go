// Activeboard - Wearable Activity Telemetry and Realtime Leaderboard
// Copyright 2026 J. Perkola
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/perkola/activeboard

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/perkola/activeboard/internal/models"
)

// CreateDevice stores a new device and its external-ID index entry.
// The external ID is what wearables put in the boardID field, so it
// must be unique across the fleet.
func (s *Store) CreateDevice(ctx context.Context, device *models.Device) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}

	data, err := json.Marshal(device)
	if err != nil {
		return fmt.Errorf("marshal device: %w", err)
	}

	return s.update(ctx, "create_device", func(txn *badger.Txn) error {
		extKey := []byte(deviceExtKeyPrefix + device.ExternalID)
		if _, err := txn.Get(extKey); err == nil {
			return fmt.Errorf("device external ID %q: %w", device.ExternalID, ErrDuplicate)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check external ID: %w", err)
		}

		deviceKey := []byte(deviceKeyPrefix + device.ID.String())
		if err := txn.Set(deviceKey, data); err != nil {
			return fmt.Errorf("set device: %w", err)
		}

		if err := txn.Set(extKey, []byte(device.ID.String())); err != nil {
			return fmt.Errorf("set external ID index: %w", err)
		}

		return nil
	})
}

// GetDevice retrieves a device by ID.
func (s *Store) GetDevice(ctx context.Context, id uuid.UUID) (*models.Device, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	var device models.Device

	err := s.view(ctx, "get_device", func(txn *badger.Txn) error {
		key := []byte(deviceKeyPrefix + id.String())
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrDeviceNotFound
		}
		if err != nil {
			return fmt.Errorf("get device: %w", err)
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &device)
		})
	})

	if err != nil {
		return nil, err
	}

	return &device, nil
}

// GetDeviceByExternalID resolves the boardID carried in telemetry
// events to the registered device.
func (s *Store) GetDeviceByExternalID(ctx context.Context, externalID string) (*models.Device, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	var device models.Device

	err := s.view(ctx, "get_device_by_external_id", func(txn *badger.Txn) error {
		extKey := []byte(deviceExtKeyPrefix + externalID)
		item, err := txn.Get(extKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrDeviceNotFound
		}
		if err != nil {
			return fmt.Errorf("get external ID index: %w", err)
		}

		var deviceID string
		if err := item.Value(func(val []byte) error {
			deviceID = string(val)
			return nil
		}); err != nil {
			return err
		}

		deviceItem, err := txn.Get([]byte(deviceKeyPrefix + deviceID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrDeviceNotFound
		}
		if err != nil {
			return fmt.Errorf("get device: %w", err)
		}

		return deviceItem.Value(func(val []byte) error {
			return json.Unmarshal(val, &device)
		})
	})

	if err != nil {
		return nil, err
	}

	return &device, nil
}

// ListDevices returns all registered devices.
func (s *Store) ListDevices(ctx context.Context) ([]*models.Device, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	var devices []*models.Device

	err := s.view(ctx, "list_devices", func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(deviceKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var device models.Device
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &device)
			})
			if err != nil {
				return fmt.Errorf("unmarshal device: %w", err)
			}
			devices = append(devices, &device)
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	return devices, nil
}

// DeleteDevice removes a device, its external-ID index entry, and any
// user link pointing at it. The linked user keeps its score history.
func (s *Store) DeleteDevice(ctx context.Context, id uuid.UUID) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}

	device, err := s.GetDevice(ctx, id)
	if err != nil {
		return err
	}

	return s.update(ctx, "delete_device", func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(deviceKeyPrefix + id.String())); err != nil {
			return fmt.Errorf("delete device: %w", err)
		}

		extKey := []byte(deviceExtKeyPrefix + device.ExternalID)
		if err := txn.Delete(extKey); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete external ID index: %w", err)
		}

		linkKey := []byte(userDeviceKeyPrefix + id.String())
		item, err := txn.Get(linkKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get device link: %w", err)
		}

		var userID string
		if err := item.Value(func(val []byte) error {
			userID = string(val)
			return nil
		}); err != nil {
			return err
		}

		if err := txn.Delete(linkKey); err != nil {
			return fmt.Errorf("delete device link: %w", err)
		}

		// Clear the DeviceID on the linked user so the directory and
		// the index stay consistent.
		userItem, err := txn.Get([]byte(userKeyPrefix + userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get linked user: %w", err)
		}

		var user models.User
		if err := userItem.Value(func(val []byte) error {
			return json.Unmarshal(val, &user)
		}); err != nil {
			return err
		}

		user.DeviceID = nil
		data, err := json.Marshal(&user)
		if err != nil {
			return fmt.Errorf("marshal user: %w", err)
		}
		return txn.Set([]byte(userKeyPrefix+userID), data)
	})
}
