// Activeboard - Wearable Activity Telemetry and Realtime Leaderboard
// Copyright 2026 J. Perkola
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/perkola/activeboard

package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/perkola/activeboard/internal/models"
)

// scoreKey builds "score:<userID>:<windowStart>" with the window start
// encoded as 8 bytes of big-endian unix seconds. Big-endian keeps the
// byte order and the chronological order identical, so forward prefix
// scans walk windows oldest-first and reverse scans newest-first.
func scoreKey(userID uuid.UUID, windowStart time.Time) []byte {
	prefix := scoreUserPrefix(userID)
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], uint64(windowStart.Unix()))
	return key
}

func scoreUserPrefix(userID uuid.UUID) []byte {
	return []byte(scoreKeyPrefix + userID.String() + ":")
}

// PutScore upserts a score entry keyed by its user and window start.
func (s *Store) PutScore(ctx context.Context, entry *models.ScoreEntry) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal score entry: %w", err)
	}

	return s.update(ctx, "put_score", func(txn *badger.Txn) error {
		return txn.Set(scoreKey(entry.UserID, entry.WindowStart), data)
	})
}

// GetScore returns the entry for an exact window start, if any.
func (s *Store) GetScore(ctx context.Context, userID uuid.UUID, windowStart time.Time) (*models.ScoreEntry, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	var entry models.ScoreEntry

	err := s.view(ctx, "get_score", func(txn *badger.Txn) error {
		item, err := txn.Get(scoreKey(userID, windowStart))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrScoreNotFound
		}
		if err != nil {
			return fmt.Errorf("get score entry: %w", err)
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})

	if err != nil {
		return nil, err
	}

	return &entry, nil
}

// LatestScore returns the user's most recently started window. This is
// the entry carry-forward reads from when a new window opens.
func (s *Store) LatestScore(ctx context.Context, userID uuid.UUID) (*models.ScoreEntry, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	var entry models.ScoreEntry

	err := s.view(ctx, "latest_score", func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := scoreUserPrefix(userID)

		// In reverse mode, seek to just past the user's keyspace so
		// the first valid item is the newest window.
		seek := make([]byte, len(prefix)+8)
		copy(seek, prefix)
		for i := len(prefix); i < len(seek); i++ {
			seek[i] = 0xff
		}

		it.Seek(seek)
		if !it.ValidForPrefix(prefix) {
			return ErrScoreNotFound
		}

		return it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})

	if err != nil {
		return nil, err
	}

	return &entry, nil
}

// ScoresBetween returns the user's entries with from <= WindowStart < to,
// in chronological order.
func (s *Store) ScoresBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*models.ScoreEntry, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	var entries []*models.ScoreEntry

	err := s.view(ctx, "scores_between", func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := scoreUserPrefix(userID)
		end := scoreKey(userID, to)

		for it.Seek(scoreKey(userID, from)); it.ValidForPrefix(prefix); it.Next() {
			if string(it.Item().Key()) >= string(end) {
				break
			}

			var entry models.ScoreEntry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				return fmt.Errorf("unmarshal score entry: %w", err)
			}
			entries = append(entries, &entry)
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("scan score entries: %w", err)
	}

	return entries, nil
}
