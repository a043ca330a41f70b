// Credboard - Credential Issuance Metrics Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/credboard

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/credboard/internal/logging"
	"github.com/tomtom215/credboard/internal/metrics"
	"github.com/tomtom215/credboard/internal/models"
	"github.com/tomtom215/credboard/internal/notify"
	ws "github.com/tomtom215/credboard/internal/websocket"
)

// Notifications handles GET /notifications: the notifications still within
// their display duration, oldest first.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	active := []notify.Notification{}
	if h.tray != nil {
		active = h.tray.Active()
	}
	respondSuccess(w, r, http.StatusOK, active)
}

// DismissNotification handles DELETE /notifications/{id}.
func (h *Handler) DismissNotification(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.tray == nil || !h.tray.Dismiss(id) {
		respondError(w, r, http.StatusNotFound, &models.APIError{
			Code:    models.ErrCodeNotFound,
			Message: "notification not found",
		}, nil)
		return
	}
	respondSuccess(w, r, http.StatusOK, map[string]interface{}{"id": id, "dismissed": true})
}

// NotificationsWebSocket upgrades to a websocket that streams every
// published notification.
func (h *Handler) NotificationsWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsHub == nil {
		respondError(w, r, http.StatusNotFound, &models.APIError{
			Code:    models.ErrCodeNotFound,
			Message: "notification streaming is disabled",
		}, nil)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		metrics.WSErrors.WithLabelValues("upgrade").Inc()
		logging.Ctx(r.Context()).Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	h.wsHub.Register(client)
	client.Start()
}
