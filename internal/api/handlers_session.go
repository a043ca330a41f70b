// Credboard - Credential Issuance Metrics Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/credboard

package api

import (
	"net/http"

	"github.com/tomtom215/credboard/internal/backend"
	"github.com/tomtom215/credboard/internal/config"
	"github.com/tomtom215/credboard/internal/models"
	"github.com/tomtom215/credboard/internal/validation"
)

// SessionView is the session as shown to the UI. The credential is masked.
type SessionView struct {
	BaseURL       string `json:"baseUrl"`
	HasCredential bool   `json:"hasCredential"`
	Credential    string `json:"credential,omitempty"`
	Mode          string `json:"mode,omitempty"`
}

// UpdateSessionRequest is the PUT /session body. Absent fields are left
// unchanged; an explicit empty credential is stored as empty.
type UpdateSessionRequest struct {
	BaseURL    *string `json:"baseUrl" validate:"omitempty,max=2048"`
	Credential *string `json:"credential" validate:"omitempty,max=4096"`
}

func (h *Handler) sessionView() SessionView {
	s := h.sessions.Get()
	view := SessionView{
		BaseURL:       s.BaseURL,
		HasCredential: s.HasCredential,
		Credential:    config.MaskCredential(s.Credential),
	}
	if s.BaseURL != "" {
		var override string
		var markers []string
		if h.config != nil {
			override, markers = h.config.Backend.Mode, h.config.Backend.WebhookMarkers
		}
		mode, err := backend.ResolveMode(override, s.BaseURL, markers)
		if err != nil {
			mode = backend.DetectMode(s.BaseURL, markers)
		}
		view.Mode = mode.String()
	}
	return view
}

// GetSession returns the current session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, http.StatusOK, h.sessionView())
}

// UpdateSession stores a base URL and/or credential. Nothing is checked
// against the backend here; a bad value surfaces on the next call.
func (h *Handler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	var req UpdateSessionRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, &models.APIError{
			Code:    models.ErrCodeValidation,
			Message: "request body must be a JSON object",
		}, nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		respondError(w, r, http.StatusBadRequest, &models.APIError{
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Details: apiErr.Details,
		}, nil)
		return
	}

	ctx := r.Context()
	if req.BaseURL != nil {
		if err := h.sessions.SetBaseURL(ctx, *req.BaseURL); err != nil {
			respondFacadeError(w, r, err)
			return
		}
	}
	if req.Credential != nil {
		if err := h.sessions.SetCredential(ctx, *req.Credential); err != nil {
			respondFacadeError(w, r, err)
			return
		}
	}

	respondSuccess(w, r, http.StatusOK, h.sessionView())
}

// DeleteSession logs out. The base URL is kept.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Clear(r.Context()); err != nil {
		respondFacadeError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, h.sessionView())
}
