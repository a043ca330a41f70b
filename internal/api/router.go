// Credboard - Credential Issuance Metrics Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/credboard

// Package api is the BFF HTTP API the dashboard UI talks to. Every route
// under /api/v1 answers with the models.APIResponse envelope.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/credboard/internal/config"
	"github.com/tomtom215/credboard/internal/metrics"
	"github.com/tomtom215/credboard/internal/middleware"
	"github.com/tomtom215/credboard/internal/models"
)

// RateLimitConfig is a request budget per client IP.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Disabled bool
}

// RateLimitHealth keeps probes from being throttled by the API budget.
var RateLimitHealth = RateLimitConfig{Requests: 1000, Window: time.Minute}

// NewRouter builds the chi router for h.
func NewRouter(cfg *config.Config, h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsHandler(cfg))

	r.Handle("/metrics", promhttp.Handler())

	apiLimit := rateLimitFromConfig(cfg)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.SecurityHeaders)
		r.Use(middleware.PrometheusMetrics)

		r.With(rateLimit(RateLimitHealth)).Get("/health/live", h.HealthLive)

		r.Group(func(r chi.Router) {
			r.Use(rateLimit(apiLimit))

			r.Get("/session", h.GetSession)
			r.Put("/session", h.UpdateSession)
			r.Delete("/session", h.DeleteSession)

			r.Get("/overview", h.Overview)
			r.Get("/institutions", h.Institutions)
			r.Post("/institutions/{id}/api-keys", h.CreateAPIKey)
			r.Get("/api-keys", h.APIKeys)
			r.Delete("/api-keys/{id}", h.RevokeAPIKey)
			r.Get("/logs", h.Logs)
			r.Get("/emissions", h.Emissions)
			r.Get("/verify/credential/{id}", h.VerifyCredential)
			r.Get("/verify/token", h.VerifyToken)
			r.Get("/wallet", h.Wallet)

			r.Get("/notifications", h.Notifications)
			r.Delete("/notifications/{id}", h.DismissNotification)
			r.Get("/notifications/ws", h.NotificationsWebSocket)
		})
	})

	return r
}

func corsHandler(cfg *config.Config) func(http.Handler) http.Handler {
	var origins []string
	if cfg != nil {
		origins = cfg.Security.CORSOrigins
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", middleware.HeaderRequestID},
		ExposedHeaders:   []string{middleware.HeaderRequestID},
		AllowCredentials: false,
		MaxAge:           86400,
	})
}

func rateLimitFromConfig(cfg *config.Config) RateLimitConfig {
	if cfg == nil {
		return RateLimitConfig{Disabled: true}
	}
	return RateLimitConfig{
		Requests: cfg.Security.RateLimitReqs,
		Window:   cfg.Security.RateLimitWindow,
		Disabled: cfg.Security.RateLimitDisabled,
	}
}

// rateLimit limits by client IP and answers 429 in the response envelope.
func rateLimit(rl RateLimitConfig) func(http.Handler) http.Handler {
	if rl.Disabled || rl.Requests <= 0 || rl.Window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		rl.Requests,
		rl.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.APIRateLimitHits.WithLabelValues(routeLabel(r)).Inc()
			respondError(w, r, http.StatusTooManyRequests, &models.APIError{
				Code:    models.ErrCodeRateLimited,
				Message: "too many requests",
			}, nil)
		}),
	)
}

func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return "unmatched"
}
