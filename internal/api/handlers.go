// Activeboard - Wearable Activity Telemetry and Realtime Leaderboard
// Copyright 2026 J. Perkola
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/perkola/activeboard

// Package api exposes the Activeboard HTTP surface: device and user
// directory management, the standings dashboard, health, Prometheus
// metrics, and the websocket upgrade for realtime standings pushes.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/perkola/activeboard/internal/logging"
	"github.com/perkola/activeboard/internal/models"
	"github.com/perkola/activeboard/internal/store"
	ws "github.com/perkola/activeboard/internal/websocket"
)

// Aggregator computes standings dashboards from stored score entries.
type Aggregator interface {
	ForUser(ctx context.Context, user *models.User, now time.Time) (*models.StandingRecord, error)
	All(ctx context.Context, now time.Time) (*models.StandingsSnapshot, error)
}

// Handler holds the dependencies of all HTTP handlers.
type Handler struct {
	store       *store.Store
	aggregator  Aggregator
	wsHub       *ws.Hub
	corsOrigins []string
	nowFn       func() time.Time
}

// NewHandler creates the handler set. wsHub may be nil, disabling the
// websocket endpoint.
func NewHandler(st *store.Store, aggregator Aggregator, wsHub *ws.Hub, corsOrigins []string) *Handler {
	return &Handler{
		store:       st,
		aggregator:  aggregator,
		wsHub:       wsHub,
		corsOrigins: corsOrigins,
		nowFn:       time.Now,
	}
}

// Health reports liveness plus a few cheap gauges.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	clients := 0
	if h.wsHub != nil {
		clients = h.wsHub.GetClientCount()
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"status":            "healthy",
		"websocket_clients": clients,
	})
}

// ListDevices returns every registered board.
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.store.ListDevices(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to list devices", err)
		return
	}
	respondSuccess(w, http.StatusOK, devices)
}

// CreateDevice registers a new board.
func (h *Handler) CreateDevice(w http.ResponseWriter, r *http.Request) {
	var req CreateDeviceRequest
	if err := decodeRequest(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), nil)
		return
	}

	device := &models.Device{
		ID:         uuid.New(),
		ExternalID: req.ExternalID,
		Name:       req.Name,
		CreatedAt:  h.nowFn().UTC(),
	}

	if err := h.store.CreateDevice(r.Context(), device); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			respondError(w, http.StatusConflict, ErrCodeConflict, "A device with this external ID already exists", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to create device", err)
		return
	}

	logging.Info().Str("device_id", device.ID.String()).Str("external_id", device.ExternalID).Msg("device registered")
	respondSuccess(w, http.StatusCreated, device)
}

// GetDevice returns one board by ID.
func (h *Handler) GetDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	device, err := h.store.GetDevice(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrDeviceNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "Device not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to load device", err)
		return
	}
	respondSuccess(w, http.StatusOK, device)
}

// DeleteDevice unregisters a board and detaches its wearer.
func (h *Handler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteDevice(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrDeviceNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "Device not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to delete device", err)
		return
	}

	logging.Info().Str("device_id", id.String()).Msg("device unregistered")
	w.WriteHeader(http.StatusNoContent)
}

// ListUsers returns every registered participant.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to list users", err)
		return
	}
	respondSuccess(w, http.StatusOK, users)
}

// CreateUser registers a new participant, optionally linked to a
// device in the same call.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := decodeRequest(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), nil)
		return
	}

	externalID := req.ExternalID
	if externalID == "" {
		externalID = uuid.NewString()
	}

	user := &models.User{
		ID:         uuid.New(),
		ExternalID: externalID,
		Name:       req.Name,
		Picture:    req.Picture,
		CreatedAt:  h.nowFn().UTC(),
	}

	if req.DeviceID != nil {
		if _, err := h.store.GetDevice(r.Context(), *req.DeviceID); err != nil {
			if errors.Is(err, store.ErrDeviceNotFound) {
				respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "Referenced device does not exist", nil)
				return
			}
			respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to load device", err)
			return
		}
		user.DeviceID = req.DeviceID
	}

	if err := h.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			respondError(w, http.StatusConflict, ErrCodeConflict, "User already exists", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to create user", err)
		return
	}

	logging.Info().Str("user_id", user.ID.String()).Str("name", sanitizeLogValue(user.Name)).Msg("user registered")
	respondSuccess(w, http.StatusCreated, user)
}

// GetUser returns one participant by ID.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	user, err := h.store.GetUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "User not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to load user", err)
		return
	}
	respondSuccess(w, http.StatusOK, user)
}

// UpdateUser changes a participant's profile fields. Device linkage
// and highscore are managed by their own endpoints.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := decodeRequest(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), nil)
		return
	}

	user, err := h.store.GetUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "User not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to load user", err)
		return
	}

	user.Name = req.Name
	user.Picture = req.Picture

	if err := h.store.UpdateUser(r.Context(), user); err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to update user", err)
		return
	}
	respondSuccess(w, http.StatusOK, user)
}

// DeleteUser removes a participant and their score history stays
// orphaned until compaction; the directory no longer resolves to them.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteUser(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "User not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to delete user", err)
		return
	}

	logging.Info().Str("user_id", id.String()).Msg("user removed")
	w.WriteHeader(http.StatusNoContent)
}

// LinkDevice assigns a board to a participant, detaching any previous
// wearer.
func (h *Handler) LinkDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var req LinkDeviceRequest
	if err := decodeRequest(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), nil)
		return
	}

	if err := h.store.LinkDevice(r.Context(), id, req.DeviceID); err != nil {
		switch {
		case errors.Is(err, store.ErrUserNotFound):
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "User not found", nil)
		case errors.Is(err, store.ErrDeviceNotFound):
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "Device not found", nil)
		default:
			respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to link device", err)
		}
		return
	}

	user, err := h.store.GetUser(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to load user", err)
		return
	}

	logging.Info().
		Str("user_id", id.String()).
		Str("device_id", req.DeviceID.String()).
		Msg("device linked")
	respondSuccess(w, http.StatusOK, user)
}

// Standings returns the full roster, sorted ascending by current score.
func (h *Handler) Standings(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.aggregator.All(r.Context(), h.nowFn())
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to compute standings", err)
		return
	}
	respondSuccess(w, http.StatusOK, snapshot)
}

// UserStandings returns one participant's dashboard.
func (h *Handler) UserStandings(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	user, err := h.store.GetUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "User not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to load user", err)
		return
	}

	record, err := h.aggregator.ForUser(r.Context(), user, h.nowFn())
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to compute standings", err)
		return
	}
	respondSuccess(w, http.StatusOK, record)
}

// WebSocket upgrades the connection and hands it to the standings hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsHub == nil {
		logging.Warn().Msg("websocket connection rejected: hub not initialized")
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Standings push unavailable", nil)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("websocket upgrade error")
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	h.wsHub.Register <- client
	client.Start()
}

// checkWebSocketOrigin validates browser origins against the
// configured allow list. Requests without an Origin header come from
// non-browser clients and are allowed.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	for _, allowed := range h.corsOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("websocket connection rejected from unauthorized origin")
	return false
}

// parseIDParam extracts and parses the {id} route parameter, writing
// a 400 on failure.
func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "Invalid ID", nil)
		return uuid.Nil, false
	}
	return id, true
}
