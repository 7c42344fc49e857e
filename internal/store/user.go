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

// CreateUser stores a new user. If the user already carries a device
// link, the device index entry is written in the same transaction.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}

	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	return s.update(ctx, "create_user", func(txn *badger.Txn) error {
		userKey := []byte(userKeyPrefix + user.ID.String())
		if _, err := txn.Get(userKey); err == nil {
			return fmt.Errorf("user %s: %w", user.ID, ErrDuplicate)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check user: %w", err)
		}

		if err := txn.Set(userKey, data); err != nil {
			return fmt.Errorf("set user: %w", err)
		}

		if user.DeviceID != nil {
			linkKey := []byte(userDeviceKeyPrefix + user.DeviceID.String())
			if err := txn.Set(linkKey, []byte(user.ID.String())); err != nil {
				return fmt.Errorf("set device link: %w", err)
			}
		}

		return nil
	})
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	var user models.User

	err := s.view(ctx, "get_user", func(txn *badger.Txn) error {
		key := []byte(userKeyPrefix + id.String())
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &user)
		})
	})

	if err != nil {
		return nil, err
	}

	return &user, nil
}

// GetUserByDeviceID returns the user a device is linked to. This is
// the second hop of telemetry attribution: boardID resolves to a
// device, the device link resolves to its wearer.
func (s *Store) GetUserByDeviceID(ctx context.Context, deviceID uuid.UUID) (*models.User, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	var user models.User

	err := s.view(ctx, "get_user_by_device", func(txn *badger.Txn) error {
		linkKey := []byte(userDeviceKeyPrefix + deviceID.String())
		item, err := txn.Get(linkKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrUserNotFound
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

		userItem, err := txn.Get([]byte(userKeyPrefix + userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}

		return userItem.Value(func(val []byte) error {
			return json.Unmarshal(val, &user)
		})
	})

	if err != nil {
		return nil, err
	}

	return &user, nil
}

// ListUsers returns all users in the directory.
func (s *Store) ListUsers(ctx context.Context) ([]*models.User, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	var users []*models.User

	err := s.view(ctx, "list_users", func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(userKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var user models.User
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &user)
			})
			if err != nil {
				return fmt.Errorf("unmarshal user: %w", err)
			}
			users = append(users, &user)
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	return users, nil
}

// UpdateUser overwrites an existing user record. Device links are not
// touched here; use LinkDevice for that.
func (s *Store) UpdateUser(ctx context.Context, user *models.User) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}

	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	return s.update(ctx, "update_user", func(txn *badger.Txn) error {
		key := []byte(userKeyPrefix + user.ID.String())
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return ErrUserNotFound
		} else if err != nil {
			return fmt.Errorf("check user: %w", err)
		}
		return txn.Set(key, data)
	})
}

// LinkDevice assigns a device to a user, moving the link away from any
// previous wearer. A device belongs to at most one user at a time.
func (s *Store) LinkDevice(ctx context.Context, userID, deviceID uuid.UUID) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}

	return s.update(ctx, "link_device", func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(deviceKeyPrefix + deviceID.String())); errors.Is(err, badger.ErrKeyNotFound) {
			return ErrDeviceNotFound
		} else if err != nil {
			return fmt.Errorf("check device: %w", err)
		}

		userItem, err := txn.Get([]byte(userKeyPrefix + userID.String()))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}

		var user models.User
		if err := userItem.Value(func(val []byte) error {
			return json.Unmarshal(val, &user)
		}); err != nil {
			return err
		}

		linkKey := []byte(userDeviceKeyPrefix + deviceID.String())

		// Detach the device from its previous wearer, if any.
		if item, err := txn.Get(linkKey); err == nil {
			var prevID string
			if err := item.Value(func(val []byte) error {
				prevID = string(val)
				return nil
			}); err != nil {
				return err
			}

			if prevID != userID.String() {
				if err := clearUserDevice(txn, prevID); err != nil {
					return err
				}
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("get device link: %w", err)
		}

		// Drop the user's old link so the previous board no longer
		// resolves to them.
		if user.DeviceID != nil && *user.DeviceID != deviceID {
			oldKey := []byte(userDeviceKeyPrefix + user.DeviceID.String())
			if err := txn.Delete(oldKey); err != nil {
				return fmt.Errorf("delete old device link: %w", err)
			}
		}

		user.DeviceID = &deviceID
		data, err := json.Marshal(&user)
		if err != nil {
			return fmt.Errorf("marshal user: %w", err)
		}
		if err := txn.Set([]byte(userKeyPrefix+userID.String()), data); err != nil {
			return fmt.Errorf("set user: %w", err)
		}

		return txn.Set(linkKey, []byte(userID.String()))
	})
}

// clearUserDevice drops the DeviceID from a user record inside an open
// transaction.
func clearUserDevice(txn *badger.Txn, userID string) error {
	item, err := txn.Get([]byte(userKeyPrefix + userID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get previous wearer: %w", err)
	}

	var user models.User
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &user)
	}); err != nil {
		return err
	}

	user.DeviceID = nil
	data, err := json.Marshal(&user)
	if err != nil {
		return fmt.Errorf("marshal previous wearer: %w", err)
	}
	return txn.Set([]byte(userKeyPrefix+userID), data)
}

// UpdateHighscore raises the user's persisted highscore. Lower values
// are ignored so the highscore only ever ratchets upward.
func (s *Store) UpdateHighscore(ctx context.Context, userID uuid.UUID, score int) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}

	return s.update(ctx, "update_highscore", func(txn *badger.Txn) error {
		key := []byte(userKeyPrefix + userID.String())
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}

		var user models.User
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &user)
		}); err != nil {
			return err
		}

		if score <= user.Highscore {
			return nil
		}

		user.Highscore = score
		data, err := json.Marshal(&user)
		if err != nil {
			return fmt.Errorf("marshal user: %w", err)
		}
		return txn.Set(key, data)
	})
}

// DeleteUser removes a user and any device link pointing back at it.
func (s *Store) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}

	user, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}

	return s.update(ctx, "delete_user", func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(userKeyPrefix + id.String())); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}

		if user.DeviceID != nil {
			linkKey := []byte(userDeviceKeyPrefix + user.DeviceID.String())
			if err := txn.Delete(linkKey); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("delete device link: %w", err)
			}
		}

		return nil
	})
}
