// Credboard - Credential Issuance Metrics Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/credboard

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/credboard/internal/backend"
	"github.com/tomtom215/credboard/internal/dashboard"
	"github.com/tomtom215/credboard/internal/logging"
	"github.com/tomtom215/credboard/internal/models"
)

// maxRequestBodySize bounds JSON request bodies.
const maxRequestBodySize = 1 << 20

// sanitizeLogValue escapes control characters so request data cannot forge
// log lines.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&b, "\\x%02x", r)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func newMetadata(r *http.Request) models.Metadata {
	return models.Metadata{
		Timestamp: time.Now().UTC(),
		RequestID: logging.RequestIDFromContext(r.Context()),
	}
}

// respondJSON writes response with status. Responses carry session-bound
// data and are never cached.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Debug().Err(err).Msg("Failed to write JSON response")
	}
}

func respondSuccess(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	respondJSON(w, status, &models.APIResponse{
		Status:   "success",
		Data:     data,
		Metadata: newMetadata(r),
	})
}

// respondDemo is respondSuccess with the placeholder-data flag set.
func respondDemo(w http.ResponseWriter, r *http.Request, data interface{}, demo bool) {
	meta := newMetadata(r)
	meta.Demo = demo
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     data,
		Metadata: meta,
	})
}

func respondError(w http.ResponseWriter, r *http.Request, status int, apiErr *models.APIError, err error) {
	if err != nil {
		ev := logging.Ctx(r.Context()).Warn()
		if status >= http.StatusInternalServerError && status != http.StatusBadGateway && status != http.StatusServiceUnavailable {
			ev = logging.Ctx(r.Context()).Error()
		}
		ev.Str("code", apiErr.Code).
			Str("path", sanitizeLogValue(r.URL.Path)).
			Str("error", sanitizeLogValue(err.Error())).
			Msg("API error")
	}

	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: newMetadata(r),
		Error:    apiErr,
	})
}

// respondFacadeError maps the dashboard error taxonomy to HTTP.
func respondFacadeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr   *dashboard.ValidationError
		backendErr      *backend.BackendError
		connectivityErr *backend.ConnectivityError
	)

	switch {
	case errors.As(err, &validationErr):
		respondError(w, r, http.StatusBadRequest, validationAPIError(validationErr), nil)

	case errors.As(err, &backendErr):
		respondError(w, r, http.StatusBadGateway, &models.APIError{
			Code:    models.ErrCodeBackend,
			Message: backendErr.Message,
			Details: map[string]interface{}{"upstream_status": backendErr.Status},
		}, err)

	case errors.As(err, &connectivityErr):
		respondError(w, r, http.StatusServiceUnavailable, &models.APIError{
			Code:    models.ErrCodeBackendUnreachable,
			Message: backend.ConnectivityMessage,
		}, err)

	case errors.Is(err, dashboard.ErrNotConnected):
		respondError(w, r, http.StatusConflict, &models.APIError{
			Code:    models.ErrCodeNotConnected,
			Message: "no backend configured; set a base URL with PUT /api/v1/session",
		}, nil)

	case errors.Is(err, context.Canceled):
		// The client went away; nobody is left to read a response.
		logging.Ctx(r.Context()).Debug().Str("path", sanitizeLogValue(r.URL.Path)).Msg("Request canceled by client")

	default:
		respondError(w, r, http.StatusInternalServerError, &models.APIError{
			Code:    models.ErrCodeInternal,
			Message: "internal error",
		}, err)
	}
}

func validationAPIError(ve *dashboard.ValidationError) *models.APIError {
	apiErr := ve.Err.ToAPIError()
	return &models.APIError{
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Details: apiErr.Details,
	}
}

// decodeJSONBody reads a bounded JSON body into v. An empty body leaves v
// unchanged.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
