// Activeboard - Wearable Activity Telemetry and Realtime Leaderboard
// Copyright 2026 J. Perkola
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/perkola/activeboard

package ingest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/perkola/activeboard/internal/models"
	"github.com/perkola/activeboard/internal/scoring"
	"github.com/perkola/activeboard/internal/standings"
	"github.com/perkola/activeboard/internal/store"
)

type fakeBroadcaster struct {
	snapshots []*models.StandingsSnapshot
}

func (b *fakeBroadcaster) BroadcastSnapshot(snapshot *models.StandingsSnapshot) {
	b.snapshots = append(b.snapshots, snapshot)
}

type fakePublisher struct {
	topics   []string
	payloads [][]byte
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, topic string, msg *message.Message) error {
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, msg.Payload)
	return nil
}

type pipeline struct {
	handler     *Handler
	store       *store.Store
	broadcaster *fakeBroadcaster
	publisher   *fakePublisher
	user        *models.User
	device      *models.Device
}

func newTestPipeline(t *testing.T, now time.Time) *pipeline {
	t.Helper()

	s, err := store.OpenForTesting()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	device := &models.Device{ID: uuid.New(), ExternalID: "board-1", Name: "test board", CreatedAt: now}
	if err := s.CreateDevice(ctx, device); err != nil {
		t.Fatal(err)
	}
	user := &models.User{ID: uuid.New(), ExternalID: uuid.NewString(), Name: "Astrid", CreatedAt: now}
	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatal(err)
	}
	if err := s.LinkDevice(ctx, user.ID, device.ID); err != nil {
		t.Fatal(err)
	}

	params := scoring.Params{
		ElapsedCapMinutes: 0.5,
		StepWeight:        0.2,
		StandingWeight:    2,
		OutsideWeight:     2,
		Location:          time.UTC,
	}

	broadcaster := &fakeBroadcaster{}
	publisher := &fakePublisher{}
	topics := Topics{Base: "activeboard", EventChannel: "events"}

	handler := NewHandler(
		NewResolver(s),
		scoring.NewKeeper(s, params),
		standings.New(s, time.UTC),
		broadcaster,
		publisher,
		topics,
	)
	handler.nowFn = func() time.Time { return now }

	return &pipeline{
		handler:     handler,
		store:       s,
		broadcaster: broadcaster,
		publisher:   publisher,
		user:        user,
		device:      device,
	}
}

func newEventMessage(payload string) *message.Message {
	return message.NewMessage(uuid.NewString(), []byte(payload))
}

func TestHandleScoresAndFansOut(t *testing.T) {
	now := time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)
	p := newTestPipeline(t, now)

	msg := newEventMessage(`{"boardID":"board-1","standing":true,"stepsSinceLastUpdate":5,"outside":false}`)
	if err := p.handler.Handle(msg); err != nil {
		t.Fatalf("handle: %v", err)
	}

	entry, err := p.store.GetScore(context.Background(), p.user.ID, now)
	if err != nil {
		t.Fatalf("score entry not persisted: %v", err)
	}
	if entry.Steps != 5 || entry.Score != 1 {
		t.Errorf("entry = steps %d score %d, want 5 and 1", entry.Steps, entry.Score)
	}

	if len(p.broadcaster.snapshots) != 1 {
		t.Fatalf("broadcast count = %d, want 1", len(p.broadcaster.snapshots))
	}
	if got := len(p.broadcaster.snapshots[0].Standings); got != 1 {
		t.Errorf("snapshot has %d records, want 1", got)
	}

	if len(p.publisher.topics) != 1 || p.publisher.topics[0] != "activeboard.board-1" {
		t.Errorf("device publish topics = %v", p.publisher.topics)
	}
}

func TestHandleMalformedPayloadAcks(t *testing.T) {
	p := newTestPipeline(t, time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC))

	if err := p.handler.Handle(newEventMessage(`not json at all`)); err != nil {
		t.Fatalf("malformed payload should ack, got %v", err)
	}
	if len(p.broadcaster.snapshots) != 0 {
		t.Error("malformed payload must not trigger a broadcast")
	}
}

func TestHandleUnknownBoardAcks(t *testing.T) {
	p := newTestPipeline(t, time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC))

	msg := newEventMessage(`{"boardID":"nope","standing":true,"stepsSinceLastUpdate":1,"outside":false}`)
	if err := p.handler.Handle(msg); err != nil {
		t.Fatalf("unknown board should ack, got %v", err)
	}
	if len(p.broadcaster.snapshots) != 0 {
		t.Error("unknown board must not trigger a broadcast")
	}
}

func TestHandleUnwornDeviceAcks(t *testing.T) {
	now := time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)
	p := newTestPipeline(t, now)

	ctx := context.Background()
	orphan := &models.Device{ID: uuid.New(), ExternalID: "board-orphan", Name: "spare", CreatedAt: now}
	if err := p.store.CreateDevice(ctx, orphan); err != nil {
		t.Fatal(err)
	}

	msg := newEventMessage(`{"boardID":"board-orphan","standing":true,"stepsSinceLastUpdate":1,"outside":false}`)
	if err := p.handler.Handle(msg); err != nil {
		t.Fatalf("unworn device should ack, got %v", err)
	}
	if len(p.broadcaster.snapshots) != 0 {
		t.Error("unworn device must not trigger a broadcast")
	}
}

func TestIngestIgnoresForeignSubjects(t *testing.T) {
	p := newTestPipeline(t, time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC))

	payload := []byte(`{"boardID":"board-1","standing":true,"stepsSinceLastUpdate":5,"outside":false}`)
	for _, subject := range []string{"activeboard.board-2", "other.events", "activeboard"} {
		if err := p.handler.ingest(context.Background(), subject, payload); err != nil {
			t.Errorf("subject %q: %v", subject, err)
		}
	}
	if len(p.broadcaster.snapshots) != 0 {
		t.Error("non-event subjects must be ignored")
	}
}

func TestHandlePublishFailureStillAcks(t *testing.T) {
	now := time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)
	p := newTestPipeline(t, now)
	p.publisher.err = fmt.Errorf("bus unavailable")

	msg := newEventMessage(`{"boardID":"board-1","standing":true,"stepsSinceLastUpdate":5,"outside":false}`)
	if err := p.handler.Handle(msg); err != nil {
		t.Fatalf("fan-out failure must not nack the event, got %v", err)
	}

	// The score still landed.
	if _, err := p.store.GetScore(context.Background(), p.user.ID, now); err != nil {
		t.Errorf("score entry missing: %v", err)
	}
	// Broadcast to dashboard subscribers still happened.
	if len(p.broadcaster.snapshots) != 1 {
		t.Errorf("broadcast count = %d, want 1", len(p.broadcaster.snapshots))
	}
}

func TestHandleSecondEventAccumulates(t *testing.T) {
	ten := time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)
	p := newTestPipeline(t, ten)

	if err := p.handler.Handle(newEventMessage(`{"boardID":"board-1","standing":true,"stepsSinceLastUpdate":5,"outside":false}`)); err != nil {
		t.Fatal(err)
	}

	p.handler.nowFn = func() time.Time { return ten.Add(time.Minute) }
	if err := p.handler.Handle(newEventMessage(`{"boardID":"board-1","standing":true,"stepsSinceLastUpdate":3,"outside":false}`)); err != nil {
		t.Fatal(err)
	}

	entry, err := p.store.GetScore(context.Background(), p.user.ID, ten)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Steps != 8 || entry.StandingMinutes != 0.5 || entry.Score != 3 {
		t.Errorf("entry = steps %d standing %v score %d, want 8, 0.5, 3",
			entry.Steps, entry.StandingMinutes, entry.Score)
	}
}
