// Activeboard - Wearable Activity Telemetry and Realtime Leaderboard
// Copyright 2026 J. Perkola
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/perkola/activeboard

// Package standings builds per-user leaderboard dashboards from the
// persisted score entries: today's and yesterday's hourly curves per
// dimension, daily maxima, and the all-time highscore ratchet.
package standings

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/perkola/activeboard/internal/models"
)

// Store is the read surface the aggregator needs, plus the highscore
// write-back.
type Store interface {
	ListUsers(ctx context.Context) ([]*models.User, error)
	ScoresBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*models.ScoreEntry, error)
	UpdateHighscore(ctx context.Context, userID uuid.UUID, score int) error
}

// Aggregator computes standings dashboards. It only reads score
// entries, so it can run concurrently with event processing; a
// snapshot may observe an entry mid-day and simply shows slightly
// stale numbers.
type Aggregator struct {
	store Store
	loc   *time.Location
}

// New builds an Aggregator using the given reference timezone for
// day boundaries and hour-of-day bucketing.
func New(store Store, loc *time.Location) *Aggregator {
	return &Aggregator{store: store, loc: loc}
}

// ForUser builds the user's dashboard at the given time. As a side
// effect it ratchets the persisted highscore when today's score
// maximum exceeds it.
func (a *Aggregator) ForUser(ctx context.Context, user *models.User, now time.Time) (*models.StandingRecord, error) {
	todayStart := startOfDay(now, a.loc)
	todayEnd := todayStart.AddDate(0, 0, 1)
	yesterdayStart := todayStart.AddDate(0, 0, -1)

	record := &models.StandingRecord{User: user.Summary()}

	today, err := a.store.ScoresBetween(ctx, user.ID, todayStart, todayEnd)
	if err != nil {
		return nil, fmt.Errorf("load today's entries: %w", err)
	}
	for _, entry := range today {
		slot := entry.WindowStart.In(a.loc).Hour()
		addToday(record, slot, entry)
	}

	yesterday, err := a.store.ScoresBetween(ctx, user.ID, yesterdayStart, todayStart)
	if err != nil {
		return nil, fmt.Errorf("load yesterday's entries: %w", err)
	}
	for _, entry := range yesterday {
		slot := entry.WindowStart.In(a.loc).Hour()
		addYesterday(record, slot, entry)
	}

	for _, dim := range []*models.Dimension{&record.Score, &record.Steps, &record.Standing, &record.Outside} {
		smooth(&dim.Hourly.Today)
		smooth(&dim.Hourly.Yesterday)
	}

	if current := int(record.Score.Current); current > user.Highscore {
		if err := a.store.UpdateHighscore(ctx, user.ID, current); err != nil {
			return nil, fmt.Errorf("ratchet highscore: %w", err)
		}
		user.Highscore = current
		record.User.Highscore = current
	}

	return record, nil
}

// All builds dashboards for every registered user, sorted ascending by
// today's score.
func (a *Aggregator) All(ctx context.Context, now time.Time) (*models.StandingsSnapshot, error) {
	users, err := a.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	snapshot := &models.StandingsSnapshot{Standings: make([]models.StandingRecord, 0, len(users))}
	for _, user := range users {
		record, err := a.ForUser(ctx, user, now)
		if err != nil {
			return nil, err
		}
		snapshot.Standings = append(snapshot.Standings, *record)
	}

	sort.SliceStable(snapshot.Standings, func(i, j int) bool {
		return snapshot.Standings[i].Score.Current < snapshot.Standings[j].Score.Current
	})

	return snapshot, nil
}

func addToday(record *models.StandingRecord, slot int, entry *models.ScoreEntry) {
	record.Score.Hourly.Today[slot] = float64(entry.Score)
	record.Score.Current = max64(record.Score.Current, float64(entry.Score))

	record.Steps.Hourly.Today[slot] = float64(entry.Steps)
	record.Steps.Current = max64(record.Steps.Current, float64(entry.Steps))

	record.Standing.Hourly.Today[slot] = entry.StandingMinutes
	record.Standing.Current = max64(record.Standing.Current, entry.StandingMinutes)

	record.Outside.Hourly.Today[slot] = entry.OutsideMinutes
	record.Outside.Current = max64(record.Outside.Current, entry.OutsideMinutes)
}

func addYesterday(record *models.StandingRecord, slot int, entry *models.ScoreEntry) {
	record.Score.Hourly.Yesterday[slot] = float64(entry.Score)
	record.Score.LastDay = max64(record.Score.LastDay, float64(entry.Score))

	record.Steps.Hourly.Yesterday[slot] = float64(entry.Steps)
	record.Steps.LastDay = max64(record.Steps.LastDay, float64(entry.Steps))

	record.Standing.Hourly.Yesterday[slot] = entry.StandingMinutes
	record.Standing.LastDay = max64(record.Standing.LastDay, entry.StandingMinutes)

	record.Outside.Hourly.Yesterday[slot] = entry.OutsideMinutes
	record.Outside.LastDay = max64(record.Outside.LastDay, entry.OutsideMinutes)
}

// smooth forward-fills an hourly curve with its running floor: walking
// the slots chronologically, any slot below the highest value seen so
// far is lifted to that value. Hours without events inherit the
// previous hour's level instead of dropping to zero, so the display
// curve never regresses within a day.
func smooth(slots *[models.HoursPerDay]float64) {
	var floor float64
	for i := range slots {
		if slots[i] < floor {
			slots[i] = floor
		} else {
			floor = slots[i]
		}
	}
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

func max64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
