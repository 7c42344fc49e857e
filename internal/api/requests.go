// Activeboard - Wearable Activity Telemetry and Realtime Leaderboard
// Copyright 2026 J. Perkola
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/perkola/activeboard

package api

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// maxRequestBody bounds directory mutation payloads.
const maxRequestBody = 64 * 1024

var validate = validator.New()

// CreateDeviceRequest is the body for POST /devices.
type CreateDeviceRequest struct {
	ExternalID string `json:"externalId" validate:"required,min=1,max=128"`
	Name       string `json:"name" validate:"max=256"`
}

// CreateUserRequest is the body for POST /users. DeviceID, when set,
// links the new user to an existing device.
type CreateUserRequest struct {
	ExternalID string     `json:"externalId" validate:"omitempty,min=1,max=128"`
	Name       string     `json:"name" validate:"required,min=1,max=256"`
	Picture    string     `json:"picture" validate:"omitempty,url"`
	DeviceID   *uuid.UUID `json:"deviceId"`
}

// UpdateUserRequest is the body for PUT /users/{id}.
type UpdateUserRequest struct {
	Name    string `json:"name" validate:"required,min=1,max=256"`
	Picture string `json:"picture" validate:"omitempty,url"`
}

// LinkDeviceRequest is the body for POST /users/{id}/device.
type LinkDeviceRequest struct {
	DeviceID uuid.UUID `json:"deviceId" validate:"required"`
}

// decodeRequest parses and validates a JSON request body into dst.
func decodeRequest(r *http.Request, dst interface{}) error {
	defer r.Body.Close()

	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}

	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}
