// Activeboard - Wearable Activity Telemetry and Realtime Leaderboard
// Copyright 2026 J. Perkola
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/perkola/activeboard

// Package metrics exposes Prometheus instrumentation for the telemetry
// pipeline, the push channel, and the HTTP surface. Metrics are served
// at /metrics in Prometheus text format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Telemetry pipeline metrics
	EventsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telemetry_events_received_total",
			Help: "Total telemetry events received from the bus",
		},
	)

	EventsDiscarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_events_discarded_total",
			Help: "Telemetry events discarded without scoring",
		},
		[]string{"reason"}, // "malformed", "unknown_device", "unknown_user"
	)

	EventsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telemetry_events_processed_total",
			Help: "Telemetry events successfully applied to a score entry",
		},
	)

	EventProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "telemetry_event_processing_duration_seconds",
			Help:    "End-to-end processing time per telemetry event",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	ScoreWindowsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "score_windows_created_total",
			Help: "New hour windows opened per seed mode",
		},
		[]string{"seed"}, // "carry_forward", "fresh"
	)

	// Bus metrics
	BusPublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_publishes_total",
			Help: "Messages published to the bus",
		},
		[]string{"kind"}, // "device_standing", "poison"
	)

	BusPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bus_publish_errors_total",
			Help: "Failed bus publish attempts",
		},
	)

	// Storage metrics
	StoreOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Duration of BadgerDB operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Push channel metrics
	WebsocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Currently connected standings subscribers",
		},
	)

	WebsocketMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Standings snapshots delivered to subscribers",
		},
	)

	WebsocketDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_dropped_total",
			Help: "Snapshots dropped because a subscriber's buffer was full",
		},
	)

	// HTTP metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordEventDiscarded counts an event dropped for the given reason.
func RecordEventDiscarded(reason string) {
	EventsDiscarded.WithLabelValues(reason).Inc()
}

// RecordEventProcessed counts a scored event and its processing time.
func RecordEventProcessed(duration time.Duration) {
	EventsProcessed.Inc()
	EventProcessingDuration.Observe(duration.Seconds())
}

// RecordStoreOp observes the duration of one storage operation.
func RecordStoreOp(operation string, duration time.Duration) {
	StoreOpDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordAPIRequest counts one HTTP request and its latency.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
