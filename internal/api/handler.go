// Credboard - Credential Issuance Metrics Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/credboard

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/credboard/internal/config"
	"github.com/tomtom215/credboard/internal/dashboard"
	"github.com/tomtom215/credboard/internal/logging"
	"github.com/tomtom215/credboard/internal/notify"
	"github.com/tomtom215/credboard/internal/session"
	ws "github.com/tomtom215/credboard/internal/websocket"
)

// SessionStore is the part of *session.Store the handlers use.
type SessionStore interface {
	Get() session.Session
	SetBaseURL(ctx context.Context, value string) error
	SetCredential(ctx context.Context, value string) error
	ClearCredential(ctx context.Context) error
	Clear(ctx context.Context) error
}

// FacadeSource hands out the facade for the current session.
type FacadeSource interface {
	Facade() (*dashboard.Service, error)
}

// Handler serves the BFF API.
type Handler struct {
	config    *config.Config
	sessions  SessionStore
	facades   FacadeSource
	notifier  notify.Publisher
	tray      *notify.Tray
	wsHub     *ws.Hub
	upgrader  websocket.Upgrader
	startTime time.Time
}

// Deps groups the handler's collaborators. Tray and Hub are optional.
type Deps struct {
	Config   *config.Config
	Sessions SessionStore
	Facades  FacadeSource
	Notifier notify.Publisher
	Tray     *notify.Tray
	Hub      *ws.Hub
}

// NewHandler creates a handler.
func NewHandler(d Deps) *Handler {
	h := &Handler{
		config:    d.Config,
		sessions:  d.Sessions,
		facades:   d.Facades,
		notifier:  d.Notifier,
		tray:      d.Tray,
		wsHub:     d.Hub,
		startTime: time.Now(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
	return h
}

// HealthLive reports that the process is up. It never calls the backend.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// notifySuccess publishes a success toast when a notifier is configured.
func (h *Handler) notifySuccess(message string) {
	if h.notifier != nil {
		h.notifier.Publish(notify.Notification{Kind: notify.KindSuccess, Message: message})
	}
}

// facade resolves the current facade, writing the error response on failure.
func (h *Handler) facade(w http.ResponseWriter, r *http.Request) (*dashboard.Service, bool) {
	svc, err := h.facades.Facade()
	if err != nil {
		respondFacadeError(w, r, err)
		return nil, false
	}
	return svc, true
}

// checkWebSocketOrigin accepts browser origins listed in the CORS
// configuration. Requests without an Origin header are rejected.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}
	if h.config == nil {
		return true
	}
	for _, allowed := range h.config.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}
