// Activeboard - Wearable Activity Telemetry and Realtime Leaderboard
// Copyright 2026 J. Perkola
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/perkola/activeboard

package scoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/perkola/activeboard/internal/metrics"
	"github.com/perkola/activeboard/internal/models"
	"github.com/perkola/activeboard/internal/store"
)

// ScoreStore is the persistence surface the keeper needs.
type ScoreStore interface {
	GetScore(ctx context.Context, userID uuid.UUID, windowStart time.Time) (*models.ScoreEntry, error)
	LatestScore(ctx context.Context, userID uuid.UUID) (*models.ScoreEntry, error)
	PutScore(ctx context.Context, entry *models.ScoreEntry) error
}

// Keeper serializes score updates per user. Window resolution plus the
// counter update is a read-modify-write on the (user, hour) entry, so
// two observations for the same user must never interleave; distinct
// users proceed in parallel.
type Keeper struct {
	store  ScoreStore
	params Params

	mu        sync.Mutex
	userLocks map[uuid.UUID]*sync.Mutex
}

// NewKeeper builds a Keeper over the given store.
func NewKeeper(s ScoreStore, params Params) *Keeper {
	return &Keeper{
		store:     s,
		params:    params,
		userLocks: make(map[uuid.UUID]*sync.Mutex),
	}
}

// Params returns the keeper's scoring parameters.
func (k *Keeper) Params() Params {
	return k.params
}

// Record applies one observation for a user at the given time and
// persists the resulting entry in a single write. It returns the
// updated entry.
func (k *Keeper) Record(ctx context.Context, userID uuid.UUID, obs Observation, now time.Time) (*models.ScoreEntry, error) {
	lock := k.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	entry, err := k.resolveWindow(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	k.params.Apply(entry, obs, now)

	if err := k.store.PutScore(ctx, entry); err != nil {
		return nil, fmt.Errorf("persist score entry: %w", err)
	}

	return entry, nil
}

// resolveWindow finds the entry for the hour containing now, creating
// one in memory if the hour is new. A fresh entry seeds its counters
// and last-update time from the user's most recently started window
// when that window began on the same calendar day; otherwise it starts
// from zero with lastUpdate = now, so the first observation of a day
// earns no elapsed-time credit.
func (k *Keeper) resolveWindow(ctx context.Context, userID uuid.UUID, now time.Time) (*models.ScoreEntry, error) {
	windowStart, windowEnd := WindowBounds(now)

	entry, err := k.store.GetScore(ctx, userID, windowStart)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, store.ErrScoreNotFound) {
		return nil, fmt.Errorf("load score entry: %w", err)
	}

	entry = &models.ScoreEntry{
		ID:          uuid.New(),
		UserID:      userID,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		LastUpdate:  now,
	}

	latest, err := k.store.LatestScore(ctx, userID)
	if errors.Is(err, store.ErrScoreNotFound) {
		metrics.ScoreWindowsCreated.WithLabelValues("fresh").Inc()
		return entry, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load latest score entry: %w", err)
	}

	seed := "fresh"
	if SameCalendarDay(latest.WindowStart, windowStart, k.params.Location) {
		entry.Score = latest.Score
		entry.Steps = latest.Steps
		entry.StandingMinutes = latest.StandingMinutes
		entry.OutsideMinutes = latest.OutsideMinutes
		entry.LastUpdate = latest.LastUpdate
		seed = "carry_forward"
	}
	metrics.ScoreWindowsCreated.WithLabelValues(seed).Inc()

	return entry, nil
}

func (k *Keeper) userLock(userID uuid.UUID) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	lock, ok := k.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		k.userLocks[userID] = lock
	}
	return lock
}
