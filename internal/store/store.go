// Activeboard - Wearable Activity Telemetry and Realtime Leaderboard
// Copyright 2026 J. Perkola
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/perkola/activeboard

// Package store persists the device/user directory and per-hour score
// entries in BadgerDB. Keys are prefixed by record type; score entries
// additionally encode their window start big-endian so prefix scans
// return them in chronological order.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/perkola/activeboard/internal/config"
	"github.com/perkola/activeboard/internal/logging"
	"github.com/perkola/activeboard/internal/metrics"
)

// Key prefixes for BadgerDB storage.
const (
	deviceKeyPrefix     = "device:"
	deviceExtKeyPrefix  = "device_ext:"
	userKeyPrefix       = "user:"
	userDeviceKeyPrefix = "user_device:"
	scoreKeyPrefix      = "score:"
)

// Store is the BadgerDB-backed directory and score store.
type Store struct {
	db        *badger.DB
	opTimeout time.Duration
}

// Open opens (or creates) the store at the configured path. With
// InMemory set, nothing touches disk and Close discards everything.
func Open(cfg config.StoreConfig) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}

	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Msg("store opened")

	return &Store{db: db, opTimeout: cfg.OpTimeout}, nil
}

// OpenForTesting opens an in-memory store for unit tests.
func OpenForTesting() (*Store, error) {
	return Open(config.StoreConfig{InMemory: true, OpTimeout: 5 * time.Second})
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	return nil
}

// checkCtx rejects work when the caller has already given up. Badger
// transactions are synchronous and do not take a context themselves.
func checkCtx(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

const defaultOpTimeout = 5 * time.Second

// update runs a read-write transaction bounded by the operation
// timeout. On timeout the transaction goroutine is abandoned and the
// caller gets the context error instead of blocking on a wedged disk.
func (s *Store) update(ctx context.Context, op string, fn func(txn *badger.Txn) error) error {
	return s.bounded(ctx, op, func() error { return s.db.Update(fn) })
}

// view runs a read-only transaction bounded by the operation timeout.
func (s *Store) view(ctx context.Context, op string, fn func(txn *badger.Txn) error) error {
	return s.bounded(ctx, op, func() error { return s.db.View(fn) })
}

func (s *Store) bounded(ctx context.Context, op string, work func() error) error {
	timeout := s.opTimeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		metrics.RecordStoreOp(op, time.Since(start))
	}()

	done := make(chan error, 1)
	go func() { done <- work() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunGC runs the value-log garbage collector until ctx is cancelled.
// Badger returns ErrNoRewrite when there is nothing to collect; that
// is the common case and not an error.
func (s *Store) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				if err := s.db.RunValueLogGC(0.5); err != nil {
					break
				}
			}
		}
	}
}
