// Credboard - Credential Issuance Metrics Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/credboard

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/credboard/internal/backend"
	"github.com/tomtom215/credboard/internal/models"
)

// Toast messages published after successful mutations.
const (
	msgKeyCreated         = "API key created"
	msgKeyRevoked         = "API key revoked"
	msgKeyAlreadyRevoked  = "API key was already revoked"
	msgCredentialVerified = "Credential verified"
	msgCredentialNotValid = "Verification completed: credential is not valid"
)

// Overview handles GET /overview.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.facade(w, r)
	if !ok {
		return
	}
	out, err := svc.GetOverview(r.Context())
	if err != nil {
		respondFacadeError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, out)
}

// Institutions handles GET /institutions.
func (h *Handler) Institutions(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.facade(w, r)
	if !ok {
		return
	}
	out, err := svc.GetInstitutions(r.Context())
	if err != nil {
		respondFacadeError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, out)
}

// APIKeys handles GET /api-keys.
func (h *Handler) APIKeys(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.facade(w, r)
	if !ok {
		return
	}
	out, err := svc.GetAPIKeys(r.Context())
	if err != nil {
		respondFacadeError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, out)
}

// CreateAPIKey handles POST /institutions/{id}/api-keys.
func (h *Handler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAPIKeyRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, &models.APIError{
			Code:    models.ErrCodeValidation,
			Message: "request body must be a JSON object",
		}, nil)
		return
	}

	svc, ok := h.facade(w, r)
	if !ok {
		return
	}
	out, err := svc.CreateAPIKeyForInstitution(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondFacadeError(w, r, err)
		return
	}
	h.notifySuccess(msgKeyCreated)
	respondSuccess(w, r, http.StatusCreated, out)
}

// RevokeAPIKey handles DELETE /api-keys/{id}. A key the backend no longer
// knows (404 or 410) counts as revoked.
func (h *Handler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.facade(w, r)
	if !ok {
		return
	}
	keyID := chi.URLParam(r, "id")

	err := svc.RevokeAPIKey(r.Context(), keyID)
	message := msgKeyRevoked
	var backendErr *backend.BackendError
	if errors.As(err, &backendErr) && (backendErr.Status == http.StatusNotFound || backendErr.Status == http.StatusGone) {
		err = nil
		message = msgKeyAlreadyRevoked
	}
	if err != nil {
		respondFacadeError(w, r, err)
		return
	}
	h.notifySuccess(message)
	respondSuccess(w, r, http.StatusOK, map[string]interface{}{"id": keyID, "revoked": true})
}

// Logs handles GET /logs.
func (h *Handler) Logs(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.facade(w, r)
	if !ok {
		return
	}
	out, err := svc.GetLogs(r.Context())
	if err != nil {
		respondFacadeError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, out)
}

// Emissions handles GET /emissions?institutionId=&status=.
func (h *Handler) Emissions(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.facade(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	out, err := svc.GetEmissions(r.Context(), models.EmissionFilter{
		InstitutionID: q.Get("institutionId"),
		Status:        q.Get("status"),
	})
	if err != nil {
		respondFacadeError(w, r, err)
		return
	}
	demo := false
	for i := range out {
		if out[i].Demo {
			demo = true
			break
		}
	}
	respondDemo(w, r, out, demo)
}

// VerifyCredential handles GET /verify/credential/{id}.
func (h *Handler) VerifyCredential(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.facade(w, r)
	if !ok {
		return
	}
	out, err := svc.VerifyByCredentialID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondFacadeError(w, r, err)
		return
	}
	h.respondVerification(w, r, out)
}

// VerifyToken handles GET /verify/token?tokenId=&serialNumber=.
func (h *Handler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.facade(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	out, err := svc.VerifyByTokenAndSerial(r.Context(), models.TokenSerial{
		TokenID:      q.Get("tokenId"),
		SerialNumber: q.Get("serialNumber"),
	})
	if err != nil {
		respondFacadeError(w, r, err)
		return
	}
	h.respondVerification(w, r, out)
}

func (h *Handler) respondVerification(w http.ResponseWriter, r *http.Request, out *models.VerificationResult) {
	if !out.Demo {
		if out.Valid {
			h.notifySuccess(msgCredentialVerified)
		} else {
			h.notifySuccess(msgCredentialNotValid)
		}
	}
	respondDemo(w, r, out, out.Demo)
}

// Wallet handles GET /wallet.
func (h *Handler) Wallet(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.facade(w, r)
	if !ok {
		return
	}
	out, err := svc.GetWallet(r.Context())
	if err != nil {
		respondFacadeError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, out)
}
