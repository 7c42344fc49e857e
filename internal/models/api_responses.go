// Activeboard - Wearable Activity Telemetry and Realtime Leaderboard
// Copyright 2026 J. Perkola
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/perkola/activeboard

package models

import "time"

// APIResponse is the envelope for every HTTP API response.
//
// Example success:
//
//	{"status":"success","data":{...},"metadata":{"timestamp":"..."}}
//
// Example error:
//
//	{"status":"error","error":{"code":"NOT_FOUND","message":"..."},
//	 "metadata":{"timestamp":"..."}}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response metadata.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
}

// APIError is a structured error payload with a machine-readable code.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
