// Activeboard - Wearable Activity Telemetry and Realtime Leaderboard
// Copyright 2026 J. Perkola
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/perkola/activeboard

// Package websocket implements the standings push channel: every
// connected dashboard receives the full roster on connect, after each
// processed telemetry event, and on demand when it sends the literal
// refresh request "standings".
package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/perkola/activeboard/internal/logging"
	"github.com/perkola/activeboard/internal/metrics"
	"github.com/perkola/activeboard/internal/models"
)

// RefreshRequest is the only client-to-server message: a client
// sending this literal text gets a fresh snapshot pushed back.
const RefreshRequest = "standings"

// SnapshotFunc computes the current full standings. The hub calls it
// for connect-time pushes and refresh requests.
type SnapshotFunc func(ctx context.Context) (*models.StandingsSnapshot, error)

// Hub maintains the set of connected clients and fans snapshots out
// to them. Delivery per client is drop-on-full: a subscriber that
// cannot keep up loses snapshots (and eventually its connection)
// without slowing anyone else down.
type Hub struct {
	snapshotFn SnapshotFunc

	clients    map[*Client]bool
	broadcast  chan []byte
	refresh    chan *Client
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a hub. snapshotFn may be nil, disabling connect-time
// and on-demand pushes (used in tests).
func NewHub(snapshotFn SnapshotFunc) *Hub {
	return &Hub{
		snapshotFn: snapshotFn,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		refresh:    make(chan *Client, 64),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// RunWithContext runs the hub loop until ctx is cancelled. Lifecycle
// events take priority over broadcasts so client state is settled
// before messages are delivered.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.addClient(ctx, client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown()
			return ctx.Err()

		case client := <-h.Register:
			h.addClient(ctx, client)

		case client := <-h.Unregister:
			h.removeClient(client)

		case client := <-h.refresh:
			h.pushSnapshot(ctx, client)

		case data := <-h.broadcast:
			h.broadcastToClients(data)
		}
	}
}

// BroadcastSnapshot queues a snapshot for delivery to every client.
// Never blocks; if the hub is saturated the snapshot is dropped, the
// next event will carry fresher data anyway.
func (h *Hub) BroadcastSnapshot(snapshot *models.StandingsSnapshot) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		logging.Error().Err(err).Msg("encode standings snapshot failed")
		return
	}

	select {
	case h.broadcast <- data:
	default:
		metrics.WebsocketDrops.Inc()
		logging.Warn().Msg("broadcast channel full, dropping standings snapshot")
	}
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) addClient(ctx context.Context, client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WebsocketConnections.Inc()
	logging.Info().Int("total_clients", total).Msg("standings subscriber connected")

	// Join-time push: a new dashboard renders immediately instead of
	// waiting for the next telemetry event.
	h.pushSnapshot(ctx, client)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		metrics.WebsocketConnections.Dec()
	}
	total := len(h.clients)
	h.mu.Unlock()

	logging.Info().Int("total_clients", total).Msg("standings subscriber disconnected")
}

// pushSnapshot computes and delivers a fresh snapshot to one client.
func (h *Hub) pushSnapshot(ctx context.Context, client *Client) {
	if h.snapshotFn == nil {
		return
	}

	snapshot, err := h.snapshotFn(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("compute standings snapshot failed")
		return
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		logging.Error().Err(err).Msg("encode standings snapshot failed")
		return
	}

	h.mu.RLock()
	registered := h.clients[client]
	h.mu.RUnlock()
	if !registered {
		return
	}

	select {
	case client.send <- data:
		metrics.WebsocketMessagesSent.Inc()
	default:
		metrics.WebsocketDrops.Inc()
	}
}

// broadcastToClients delivers one snapshot to every client in ID
// order. Clients with a full send buffer are disconnected; their read
// pump will unregister them.
func (h *Hub) broadcastToClients(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- data:
			metrics.WebsocketMessagesSent.Inc()
		default:
			metrics.WebsocketDrops.Inc()
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		metrics.WebsocketConnections.Dec()
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	count := len(h.clients)
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.mu.Unlock()

	metrics.WebsocketConnections.Sub(float64(count))
	logging.Info().
		Str("component", "websocket-hub").
		Int("clients_closed", count).
		Msg("standings hub stopped")
}
