// Credboard - Credential Issuance Metrics Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/credboard

package models

import "time"

// APIResponse is the envelope every BFF endpoint returns.
//
// Success:
//
//	{"status": "success", "data": {...}, "metadata": {"timestamp": "...", "request_id": "..."}}
//
// Failure:
//
//	{"status": "error", "error": {"code": "BACKEND_ERROR", "message": "invalid api key"}, "metadata": {...}}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response bookkeeping.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
	// Demo is set when the payload is placeholder data served after a backend failure.
	Demo bool `json:"demo,omitempty"`
}

// APIError is the error body of an APIResponse.
//
// Codes:
//   - VALIDATION_ERROR: input rejected before any backend call
//   - BACKEND_ERROR: backend answered with a failure status
//   - BACKEND_UNREACHABLE: no response from the backend
//   - NOT_CONNECTED: no backend base URL in the session
//   - RATE_LIMITED: inbound rate limit exceeded
//   - NOT_FOUND: unknown local resource
//   - INTERNAL_ERROR: anything else
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error codes.
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeBackend            = "BACKEND_ERROR"
	ErrCodeBackendUnreachable = "BACKEND_UNREACHABLE"
	ErrCodeNotConnected       = "NOT_CONNECTED"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInternal           = "INTERNAL_ERROR"
)
