// Activeboard - Wearable Activity Telemetry and Realtime Leaderboard
// Copyright 2026 J. Perkola
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/perkola/activeboard

package scoring

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/perkola/activeboard/internal/metrics"
	"github.com/perkola/activeboard/internal/models"
	"github.com/perkola/activeboard/internal/store"
)

func defaultParams(t *testing.T) Params {
	t.Helper()
	return Params{
		ElapsedCapMinutes: 0.5,
		StepWeight:        0.2,
		StandingWeight:    2,
		OutsideWeight:     2,
		Location:          time.UTC,
	}
}

func newTestKeeper(t *testing.T) *Keeper {
	t.Helper()
	s, err := store.OpenForTesting()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewKeeper(s, defaultParams(t))
}

func TestWindowBounds(t *testing.T) {
	now := time.Date(2026, time.March, 5, 10, 42, 17, 123, time.UTC)
	start, end := WindowBounds(now)

	if want := time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Errorf("start = %v, want %v", start, want)
	}
	if want := time.Date(2026, time.March, 5, 11, 0, 0, 0, time.UTC); !end.Equal(want) {
		t.Errorf("end = %v, want %v", end, want)
	}
}

func TestWindowBoundsNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	now := time.Date(2026, time.March, 5, 12, 30, 0, 0, loc) // 10:30 UTC

	start, _ := WindowBounds(now)
	if want := time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Errorf("start = %v, want %v", start, want)
	}
}

func TestSameCalendarDay(t *testing.T) {
	stockholm := time.FixedZone("CET", 3600)

	tests := []struct {
		name string
		a, b time.Time
		loc  *time.Location
		want bool
	}{
		{
			name: "same utc day",
			a:    time.Date(2026, time.March, 5, 9, 0, 0, 0, time.UTC),
			b:    time.Date(2026, time.March, 5, 22, 0, 0, 0, time.UTC),
			loc:  time.UTC,
			want: true,
		},
		{
			name: "utc midnight crossing",
			a:    time.Date(2026, time.March, 5, 23, 0, 0, 0, time.UTC),
			b:    time.Date(2026, time.March, 6, 0, 0, 0, 0, time.UTC),
			loc:  time.UTC,
			want: false,
		},
		{
			name: "crosses utc midnight but not local",
			a:    time.Date(2026, time.March, 5, 22, 30, 0, 0, time.UTC), // 23:30 CET
			b:    time.Date(2026, time.March, 5, 23, 30, 0, 0, time.UTC), // 00:30 CET next day
			loc:  stockholm,
			want: false,
		},
		{
			name: "same local day across utc boundary",
			a:    time.Date(2026, time.March, 5, 23, 30, 0, 0, time.UTC), // 00:30 CET Mar 6
			b:    time.Date(2026, time.March, 6, 1, 0, 0, 0, time.UTC),   // 02:00 CET Mar 6
			loc:  stockholm,
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SameCalendarDay(tt.a, tt.b, tt.loc); got != tt.want {
				t.Errorf("SameCalendarDay = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApplyCapsElapsed(t *testing.T) {
	p := defaultParams(t)
	base := time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)

	entry := &models.ScoreEntry{LastUpdate: base}
	p.Apply(entry, Observation{Standing: true, Outside: true}, base.Add(45*time.Minute))

	if entry.StandingMinutes != 0.5 {
		t.Errorf("standing minutes = %v, want 0.5 (capped)", entry.StandingMinutes)
	}
	if entry.OutsideMinutes != 0.5 {
		t.Errorf("outside minutes = %v, want 0.5 (capped)", entry.OutsideMinutes)
	}
}

func TestApplyClampsNegativeElapsed(t *testing.T) {
	p := defaultParams(t)
	base := time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)

	// lastUpdate ahead of now: skewed clock must not subtract credit.
	entry := &models.ScoreEntry{LastUpdate: base.Add(time.Minute), StandingMinutes: 1}
	p.Apply(entry, Observation{Standing: true}, base)

	if entry.StandingMinutes != 1 {
		t.Errorf("standing minutes = %v, want 1 (unchanged)", entry.StandingMinutes)
	}
}

func TestApplyRoundsToTwoDecimals(t *testing.T) {
	p := defaultParams(t)
	base := time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)

	entry := &models.ScoreEntry{LastUpdate: base}
	p.Apply(entry, Observation{Standing: true}, base.Add(20*time.Second)) // 0.333... min

	if entry.StandingMinutes != 0.33 {
		t.Errorf("standing minutes = %v, want 0.33", entry.StandingMinutes)
	}
}

func TestApplyUpdatesLastUpdate(t *testing.T) {
	p := defaultParams(t)
	base := time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)
	now := base.Add(time.Minute)

	entry := &models.ScoreEntry{LastUpdate: base}
	p.Apply(entry, Observation{}, now)

	if !entry.LastUpdate.Equal(now) {
		t.Errorf("last update = %v, want %v", entry.LastUpdate, now)
	}
}

func TestScoreFormula(t *testing.T) {
	p := defaultParams(t)

	tests := []struct {
		entry models.ScoreEntry
		want  int
	}{
		{models.ScoreEntry{}, 0},
		{models.ScoreEntry{Steps: 5}, 1},                                          // ceil(1.0)
		{models.ScoreEntry{Steps: 8, StandingMinutes: 0.5}, 3},                    // ceil(1.6 + 1.0)
		{models.ScoreEntry{Steps: 10, StandingMinutes: 2, OutsideMinutes: 1}, 8},  // ceil(2 + 4 + 2)
		{models.ScoreEntry{Steps: 1}, 1},                                          // ceil(0.2)
	}

	for _, tt := range tests {
		if got := p.Score(&tt.entry); got != tt.want {
			t.Errorf("Score(%+v) = %d, want %d", tt.entry, got, tt.want)
		}
	}
}

func TestKeeperFirstEventsScenario(t *testing.T) {
	k := newTestKeeper(t)
	ctx := context.Background()
	userID := uuid.New()

	ten := time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)

	entry, err := k.Record(ctx, userID, Observation{Standing: true, Steps: 5}, ten)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if entry.Score != 1 {
		t.Errorf("score after first event = %d, want 1", entry.Score)
	}
	if entry.StandingMinutes != 0 {
		t.Errorf("standing minutes = %v, want 0 (no elapsed on window open)", entry.StandingMinutes)
	}

	entry, err = k.Record(ctx, userID, Observation{Standing: true, Steps: 3}, ten.Add(time.Minute))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if entry.Steps != 8 {
		t.Errorf("steps = %d, want 8", entry.Steps)
	}
	if entry.StandingMinutes != 0.5 {
		t.Errorf("standing minutes = %v, want 0.5", entry.StandingMinutes)
	}
	if entry.Score != 3 {
		t.Errorf("score = %d, want 3", entry.Score)
	}
}

func TestKeeperCarriesForwardSameDay(t *testing.T) {
	k := newTestKeeper(t)
	ctx := context.Background()
	userID := uuid.New()

	ten := time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)

	if _, err := k.Record(ctx, userID, Observation{Standing: true, Steps: 5}, ten); err != nil {
		t.Fatal(err)
	}
	if _, err := k.Record(ctx, userID, Observation{Standing: true, Steps: 3}, ten.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}

	// First event of the next hour seeds from the 10:00 window.
	entry, err := k.Record(ctx, userID, Observation{Steps: 2}, ten.Add(time.Hour).Add(5*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if entry.Steps != 10 {
		t.Errorf("steps = %d, want 10 (carried 8 + 2)", entry.Steps)
	}
	if entry.StandingMinutes != 0.5 {
		t.Errorf("standing minutes = %v, want carried 0.5", entry.StandingMinutes)
	}
	if !entry.WindowStart.Equal(ten.Add(time.Hour)) {
		t.Errorf("window start = %v, want %v", entry.WindowStart, ten.Add(time.Hour))
	}
}

func TestKeeperResetsAcrossDays(t *testing.T) {
	k := newTestKeeper(t)
	ctx := context.Background()
	userID := uuid.New()

	evening := time.Date(2026, time.March, 5, 23, 30, 0, 0, time.UTC)
	if _, err := k.Record(ctx, userID, Observation{Standing: true, Steps: 100}, evening); err != nil {
		t.Fatal(err)
	}

	morning := time.Date(2026, time.March, 6, 0, 15, 0, 0, time.UTC)
	entry, err := k.Record(ctx, userID, Observation{Steps: 2}, morning)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Steps != 2 {
		t.Errorf("steps = %d, want 2 (reset at midnight)", entry.Steps)
	}
	if entry.StandingMinutes != 0 {
		t.Errorf("standing minutes = %v, want 0", entry.StandingMinutes)
	}
}

func TestKeeperCarryForwardElapsedStillCapped(t *testing.T) {
	k := newTestKeeper(t)
	ctx := context.Background()
	userID := uuid.New()

	ten := time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)
	if _, err := k.Record(ctx, userID, Observation{Standing: true, Steps: 1}, ten); err != nil {
		t.Fatal(err)
	}

	// Next event three hours later, same day: carry-forward also
	// brings the old lastUpdate along, so the gap is capped, not
	// credited in full.
	entry, err := k.Record(ctx, userID, Observation{Standing: true}, ten.Add(3*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if entry.StandingMinutes != 0.5 {
		t.Errorf("standing minutes = %v, want 0.5 (capped across the gap)", entry.StandingMinutes)
	}
}

func TestKeeperSerializesPerUser(t *testing.T) {
	k := newTestKeeper(t)
	ctx := context.Background()
	userID := uuid.New()
	now := time.Date(2026, time.March, 5, 10, 30, 0, 0, time.UTC)

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := k.Record(ctx, userID, Observation{Steps: 1}, now); err != nil {
				t.Errorf("record: %v", err)
			}
		}()
	}
	wg.Wait()

	entry, err := k.Record(ctx, userID, Observation{}, now)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Steps != n {
		t.Errorf("steps = %d, want %d (no lost updates)", entry.Steps, n)
	}
}

func TestKeeperCountsWindowOpens(t *testing.T) {
	k := newTestKeeper(t)
	ctx := context.Background()
	userID := uuid.New()

	fresh := testutil.ToFloat64(metrics.ScoreWindowsCreated.WithLabelValues("fresh"))
	carried := testutil.ToFloat64(metrics.ScoreWindowsCreated.WithLabelValues("carry_forward"))

	ten := time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)
	if _, err := k.Record(ctx, userID, Observation{Steps: 1}, ten); err != nil {
		t.Fatal(err)
	}
	// Same window, no new open.
	if _, err := k.Record(ctx, userID, Observation{Steps: 1}, ten.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	if _, err := k.Record(ctx, userID, Observation{Steps: 1}, ten.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	if got := testutil.ToFloat64(metrics.ScoreWindowsCreated.WithLabelValues("fresh")); got != fresh+1 {
		t.Errorf("fresh opens = %v, want %v", got, fresh+1)
	}
	if got := testutil.ToFloat64(metrics.ScoreWindowsCreated.WithLabelValues("carry_forward")); got != carried+1 {
		t.Errorf("carry-forward opens = %v, want %v", got, carried+1)
	}
}
