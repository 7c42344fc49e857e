// Activeboard - Wearable Activity Telemetry and Realtime Leaderboard
// Copyright 2026 J. Perkola
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/perkola/activeboard

package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/perkola/activeboard/internal/logging"
	"github.com/perkola/activeboard/internal/metrics"
	"github.com/perkola/activeboard/internal/models"
	"github.com/perkola/activeboard/internal/scoring"
)

// Broadcaster pushes a full standings snapshot to every connected
// subscriber. Delivery is best-effort; the hub isolates slow clients.
type Broadcaster interface {
	BroadcastSnapshot(snapshot *models.StandingsSnapshot)
}

// DevicePublisher publishes a message to an outbound bus subject.
type DevicePublisher interface {
	Publish(ctx context.Context, topic string, msg *message.Message) error
}

// Scorekeeper applies one observation and returns the updated entry.
type Scorekeeper interface {
	Record(ctx context.Context, userID uuid.UUID, obs scoring.Observation, now time.Time) (*models.ScoreEntry, error)
}

// Aggregator builds standings views after an event has been scored.
type Aggregator interface {
	ForUser(ctx context.Context, user *models.User, now time.Time) (*models.StandingRecord, error)
	All(ctx context.Context, now time.Time) (*models.StandingsSnapshot, error)
}

// Handler is the telemetry pipeline entry point: parse, attribute,
// score, then fan out the refreshed standings.
type Handler struct {
	resolver    *Resolver
	keeper      Scorekeeper
	aggregator  Aggregator
	broadcaster Broadcaster
	publisher   DevicePublisher
	topics      Topics

	// nowFn is replaceable in tests.
	nowFn func() time.Time
}

// NewHandler wires the pipeline stages together. Broadcaster and
// publisher may be nil; the corresponding fan-out step is skipped.
func NewHandler(resolver *Resolver, keeper Scorekeeper, aggregator Aggregator, broadcaster Broadcaster, publisher DevicePublisher, topics Topics) *Handler {
	return &Handler{
		resolver:    resolver,
		keeper:      keeper,
		aggregator:  aggregator,
		broadcaster: broadcaster,
		publisher:   publisher,
		topics:      topics,
		nowFn:       time.Now,
	}
}

// Handle processes one bus message. It is registered as a Watermill
// consumer handler: a nil return acks the message, an error nacks it
// into the retry/poison path. Malformed and unattributable events are
// acked after logging; only storage failures are worth a retry.
func (h *Handler) Handle(msg *message.Message) error {
	return h.ingest(msg.Context(), h.topics.Inbound(), msg.Payload)
}

func (h *Handler) ingest(ctx context.Context, subject string, payload []byte) error {
	suffix, ok := h.topics.Suffix(subject)
	if !ok || suffix != h.topics.EventChannel {
		return nil
	}

	start := time.Now()
	metrics.EventsReceived.Inc()

	event, err := ParseTelemetryEvent(payload)
	if err != nil {
		logging.Warn().Err(err).Msg("Discarding malformed telemetry event")
		metrics.RecordEventDiscarded("malformed")
		return nil
	}

	device, user, err := h.resolver.Resolve(ctx, event.BoardID)
	if errors.Is(err, ErrUnknownDevice) {
		logging.Warn().Str("board_id", event.BoardID).Msg("Discarding event from unregistered board")
		metrics.RecordEventDiscarded("unknown_device")
		return nil
	}
	if errors.Is(err, ErrUnknownUser) {
		logging.Warn().Str("board_id", event.BoardID).Msg("Discarding event from unworn device")
		metrics.RecordEventDiscarded("unknown_user")
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolve event: %w", err)
	}

	now := h.nowFn()
	obs := scoring.Observation{
		Standing: event.Standing,
		Outside:  event.Outside,
		Steps:    event.StepsSinceLastUpdate,
	}

	entry, err := h.keeper.Record(ctx, user.ID, obs, now)
	if err != nil {
		return fmt.Errorf("score event for %s: %w", user.ID, err)
	}

	logging.Debug().
		Str("user", user.Name).
		Str("board_id", event.BoardID).
		Int("score", entry.Score).
		Int("steps", entry.Steps).
		Msg("Telemetry event scored")

	// The entry is persisted; everything below is fan-out. Failing the
	// message here would retry and double-count the observation, so
	// fan-out errors are logged and swallowed.
	h.fanOut(ctx, device, user, now)

	metrics.RecordEventProcessed(time.Since(start))
	return nil
}

func (h *Handler) fanOut(ctx context.Context, device *models.Device, user *models.User, now time.Time) {
	if h.broadcaster != nil {
		snapshot, err := h.aggregator.All(ctx, now)
		if err != nil {
			logging.Error().Err(err).Msg("Standings recomputation failed after event")
		} else {
			h.broadcaster.BroadcastSnapshot(snapshot)
		}
	}

	if h.publisher == nil {
		return
	}

	record, err := h.aggregator.ForUser(ctx, user, now)
	if err != nil {
		logging.Error().Err(err).Str("user", user.Name).Msg("Per-user standing recomputation failed")
		return
	}

	data, err := json.Marshal(record)
	if err != nil {
		logging.Error().Err(err).Msg("Encode device standing failed")
		return
	}

	topic := h.topics.Device(device.ExternalID)
	msg := message.NewMessage(uuid.NewString(), data)
	if err := h.publisher.Publish(ctx, topic, msg); err != nil {
		metrics.BusPublishErrors.Inc()
		logging.Error().Err(err).Str("topic", topic).Msg("Publish device standing failed")
		return
	}
	metrics.BusPublishes.WithLabelValues("device_standing").Inc()
}
