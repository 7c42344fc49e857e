// Activeboard - Wearable Activity Telemetry and Realtime Leaderboard
// Copyright 2026 J. Perkola
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/perkola/activeboard

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/perkola/activeboard/internal/config"
	"github.com/perkola/activeboard/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenForTesting()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return s
}

func newTestDevice(externalID string) *models.Device {
	return &models.Device{
		ID:         uuid.New(),
		ExternalID: externalID,
		Name:       "test board",
		CreatedAt:  time.Now().UTC(),
	}
}

func newTestUser(name string) *models.User {
	return &models.User{
		ID:         uuid.New(),
		ExternalID: uuid.NewString(),
		Name:       name,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestDeviceCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	device := newTestDevice("board-42")
	if err := s.CreateDevice(ctx, device); err != nil {
		t.Fatalf("create device: %v", err)
	}

	got, err := s.GetDevice(ctx, device.ID)
	if err != nil {
		t.Fatalf("get device: %v", err)
	}
	if got.ExternalID != "board-42" {
		t.Errorf("external ID = %q, want board-42", got.ExternalID)
	}

	byExt, err := s.GetDeviceByExternalID(ctx, "board-42")
	if err != nil {
		t.Fatalf("get device by external ID: %v", err)
	}
	if byExt.ID != device.ID {
		t.Errorf("resolved device = %s, want %s", byExt.ID, device.ID)
	}

	if err := s.DeleteDevice(ctx, device.ID); err != nil {
		t.Fatalf("delete device: %v", err)
	}
	if _, err := s.GetDevice(ctx, device.ID); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("get after delete: err = %v, want ErrDeviceNotFound", err)
	}
	if _, err := s.GetDeviceByExternalID(ctx, "board-42"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("external ID lookup after delete: err = %v, want ErrDeviceNotFound", err)
	}
}

func TestCreateDeviceRejectsDuplicateExternalID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateDevice(ctx, newTestDevice("board-1")); err != nil {
		t.Fatalf("create device: %v", err)
	}
	err := s.CreateDevice(ctx, newTestDevice("board-1"))
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate external ID: err = %v, want ErrDuplicate", err)
	}
}

func TestGetDeviceByExternalIDUnknown(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetDeviceByExternalID(context.Background(), "nope")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("err = %v, want ErrDeviceNotFound", err)
	}
}

func TestLinkDeviceResolvesUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	device := newTestDevice("board-1")
	user := newTestUser("Astrid")
	if err := s.CreateDevice(ctx, device); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatal(err)
	}

	if err := s.LinkDevice(ctx, user.ID, device.ID); err != nil {
		t.Fatalf("link device: %v", err)
	}

	got, err := s.GetUserByDeviceID(ctx, device.ID)
	if err != nil {
		t.Fatalf("get user by device: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("resolved user = %s, want %s", got.ID, user.ID)
	}
	if got.DeviceID == nil || *got.DeviceID != device.ID {
		t.Errorf("user.DeviceID = %v, want %s", got.DeviceID, device.ID)
	}
}

func TestLinkDeviceMovesLink(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	device := newTestDevice("board-1")
	first := newTestUser("Astrid")
	second := newTestUser("Henrik")
	for _, u := range []*models.User{first, second} {
		if err := s.CreateUser(ctx, u); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.CreateDevice(ctx, device); err != nil {
		t.Fatal(err)
	}

	if err := s.LinkDevice(ctx, first.ID, device.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.LinkDevice(ctx, second.ID, device.ID); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetUserByDeviceID(ctx, device.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != second.ID {
		t.Errorf("device resolves to %s, want %s", got.Name, second.Name)
	}

	prev, err := s.GetUser(ctx, first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if prev.DeviceID != nil {
		t.Errorf("previous wearer still linked to %s", prev.DeviceID)
	}
}

func TestLinkDeviceUnknownTargets(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := newTestUser("Astrid")
	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatal(err)
	}

	if err := s.LinkDevice(ctx, user.ID, uuid.New()); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("unknown device: err = %v, want ErrDeviceNotFound", err)
	}

	device := newTestDevice("board-1")
	if err := s.CreateDevice(ctx, device); err != nil {
		t.Fatal(err)
	}
	if err := s.LinkDevice(ctx, uuid.New(), device.ID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("unknown user: err = %v, want ErrUserNotFound", err)
	}
}

func TestUpdateHighscoreRatchets(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := newTestUser("Astrid")
	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatal(err)
	}

	for _, step := range []struct {
		set  int
		want int
	}{
		{10, 10},
		{5, 10},  // lower values ignored
		{25, 25},
		{25, 25},
	} {
		if err := s.UpdateHighscore(ctx, user.ID, step.set); err != nil {
			t.Fatalf("update highscore to %d: %v", step.set, err)
		}
		got, err := s.GetUser(ctx, user.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Highscore != step.want {
			t.Errorf("after set %d: highscore = %d, want %d", step.set, got.Highscore, step.want)
		}
	}
}

func TestScoreRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	userID := uuid.New()
	windowStart := time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)

	entry := &models.ScoreEntry{
		ID:              uuid.New(),
		UserID:          userID,
		WindowStart:     windowStart,
		WindowEnd:       windowStart.Add(time.Hour),
		Score:           3,
		Steps:           8,
		StandingMinutes: 0.5,
		LastUpdate:      windowStart.Add(time.Minute),
	}
	if err := s.PutScore(ctx, entry); err != nil {
		t.Fatalf("put score: %v", err)
	}

	got, err := s.GetScore(ctx, userID, windowStart)
	if err != nil {
		t.Fatalf("get score: %v", err)
	}
	if got.Score != 3 || got.Steps != 8 || got.StandingMinutes != 0.5 {
		t.Errorf("got %+v", got)
	}

	if _, err := s.GetScore(ctx, userID, windowStart.Add(time.Hour)); !errors.Is(err, ErrScoreNotFound) {
		t.Errorf("missing window: err = %v, want ErrScoreNotFound", err)
	}
}

func TestLatestScore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	userID := uuid.New()
	other := uuid.New()
	base := time.Date(2026, time.March, 5, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		entry := &models.ScoreEntry{
			ID:          uuid.New(),
			UserID:      userID,
			WindowStart: base.Add(time.Duration(i) * time.Hour),
			WindowEnd:   base.Add(time.Duration(i+1) * time.Hour),
			Score:       i,
		}
		if err := s.PutScore(ctx, entry); err != nil {
			t.Fatal(err)
		}
	}
	// Another user's later window must not leak into the result.
	if err := s.PutScore(ctx, &models.ScoreEntry{
		ID:          uuid.New(),
		UserID:      other,
		WindowStart: base.Add(48 * time.Hour),
		WindowEnd:   base.Add(49 * time.Hour),
		Score:       99,
	}); err != nil {
		t.Fatal(err)
	}

	latest, err := s.LatestScore(ctx, userID)
	if err != nil {
		t.Fatalf("latest score: %v", err)
	}
	if !latest.WindowStart.Equal(base.Add(4 * time.Hour)) {
		t.Errorf("latest window start = %v, want %v", latest.WindowStart, base.Add(4*time.Hour))
	}
	if latest.Score != 4 {
		t.Errorf("latest score = %d, want 4", latest.Score)
	}

	if _, err := s.LatestScore(ctx, uuid.New()); !errors.Is(err, ErrScoreNotFound) {
		t.Errorf("no entries: err = %v, want ErrScoreNotFound", err)
	}
}

func TestScoresBetween(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	userID := uuid.New()
	base := time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 6; i++ {
		entry := &models.ScoreEntry{
			ID:          uuid.New(),
			UserID:      userID,
			WindowStart: base.Add(time.Duration(i) * time.Hour),
			WindowEnd:   base.Add(time.Duration(i+1) * time.Hour),
			Score:       i,
		}
		if err := s.PutScore(ctx, entry); err != nil {
			t.Fatal(err)
		}
	}

	// Half-open range: windows 1, 2, 3.
	entries, err := s.ScoresBetween(ctx, userID, base.Add(time.Hour), base.Add(4*time.Hour))
	if err != nil {
		t.Fatalf("scores between: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	for i, entry := range entries {
		want := base.Add(time.Duration(i+1) * time.Hour)
		if !entry.WindowStart.Equal(want) {
			t.Errorf("entry[%d] window start = %v, want %v (chronological order)", i, entry.WindowStart, want)
		}
	}
}

func TestSeedDemoDataIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SeedDemoData(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != len(demoUsers) {
		t.Fatalf("got %d users, want %d", len(users), len(demoUsers))
	}
	for _, u := range users {
		if u.DeviceID == nil {
			t.Errorf("seeded user %s has no device", u.Name)
		}
	}

	if err := s.SeedDemoData(ctx); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	users, err = s.ListUsers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != len(demoUsers) {
		t.Errorf("second seed added users: got %d", len(users))
	}
}

func TestCheckCtxCancelled(t *testing.T) {
	s := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.ListUsers(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestLinkDeviceRelinkDropsOldLink(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	boardA := newTestDevice("board-a")
	boardB := newTestDevice("board-b")
	user := newTestUser("Astrid")
	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatal(err)
	}
	for _, d := range []*models.Device{boardA, boardB} {
		if err := s.CreateDevice(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.LinkDevice(ctx, user.ID, boardA.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.LinkDevice(ctx, user.ID, boardB.ID); err != nil {
		t.Fatal(err)
	}

	// The old board must no longer resolve to the user.
	if _, err := s.GetUserByDeviceID(ctx, boardA.ID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("old board still resolves: err = %v, want ErrUserNotFound", err)
	}

	got, err := s.GetUserByDeviceID(ctx, boardB.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != user.ID {
		t.Errorf("new board resolves to %s, want %s", got.ID, user.ID)
	}
	if got.DeviceID == nil || *got.DeviceID != boardB.ID {
		t.Errorf("user.DeviceID = %v, want %s", got.DeviceID, boardB.ID)
	}
}

func TestStoreOpTimeout(t *testing.T) {
	s, err := Open(config.StoreConfig{InMemory: true, OpTimeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})

	release := make(chan struct{})
	defer close(release)

	err = s.bounded(context.Background(), "stalled", func() error {
		<-release
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
}
