// Credboard - Credential Issuance Metrics Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/credboard

package backend

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
)

// User-facing messages published when the backend gives nothing better.
const (
	GenericBackendMessage = "unexpected API error"
	ConnectivityMessage   = "could not connect to the backend"
)

// maxErrorBodySize limits how much of a failed response is read.
const maxErrorBodySize = 64 * 1024

// BackendError is a completed call that the backend reported as failed.
type BackendError struct {
	Status  int
	Message string
	Body    []byte
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Message)
}

// ConnectivityError is a call that produced no response: DNS or dial
// failures, timeouts, an unusable base URL or an open circuit breaker.
type ConnectivityError struct {
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("backend unreachable: %v", e.Err)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// readBodyForError reads at most maxErrorBodySize bytes of r.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return nil
	}
	return body
}

func newBackendError(status int, body []byte, mode Mode) *BackendError {
	return &BackendError{
		Status:  status,
		Message: extractMessage(body, mode),
		Body:    body,
	}
}

// extractMessage picks the human-readable message out of an error body:
// "message", else "error" (a string, or an object with its own "message"),
// else GenericBackendMessage.
func extractMessage(body []byte, mode Mode) string {
	body = bytes.TrimSpace(body)
	if mode == ModeWebhookTunneled {
		if inner, ok := Unwrap(body); ok {
			body = inner
		}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return GenericBackendMessage
	}

	if msg := stringField(fields["message"]); msg != "" {
		return msg
	}
	if msg := stringField(fields["error"]); msg != "" {
		return msg
	}
	var nested struct {
		Message string `json:"message"`
	}
	if raw, ok := fields["error"]; ok && json.Unmarshal(raw, &nested) == nil {
		if msg := strings.TrimSpace(nested.Message); msg != "" {
			return msg
		}
	}
	return GenericBackendMessage
}

func stringField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
