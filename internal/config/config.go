// Credboard - Credential Issuance Metrics Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/credboard

// Package config loads Credboard configuration with Koanf v2.
//
// Loading order:
//  1. Built-in defaults
//  2. Optional YAML file (CONFIG_PATH or config.yaml)
//  3. Environment variables
//
// Config is immutable after Load and safe for concurrent reads.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Backend   BackendConfig   `koanf:"backend"`
	Session   SessionConfig   `koanf:"session"`
	Notify    NotifyConfig    `koanf:"notify"`
	Dashboard DashboardConfig `koanf:"dashboard"`
	Server    ServerConfig    `koanf:"server"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// Backend modes accepted by BackendConfig.Mode.
const (
	BackendModeAuto    = "auto"
	BackendModeREST    = "rest"
	BackendModeWebhook = "webhook"
)

// BackendConfig describes the remote credential-issuance backend.
//
// BaseURL and APIKey are only the defaults used when the session store holds
// no value of its own; the session is the source of truth once set.
//
// Environment Variables:
//   - BACKEND_BASE_URL: default backend URL (default: http://localhost:3001)
//   - BACKEND_API_KEY: default credential (default: empty)
//   - BACKEND_MODE: auto, rest or webhook (default: auto)
//   - BACKEND_WEBHOOK_MARKERS: comma separated path markers for auto mode
//   - BACKEND_TIMEOUT: per-call timeout (default: 30s)
type BackendConfig struct {
	BaseURL        string               `koanf:"base_url"`
	APIKey         string               `koanf:"api_key"`
	Mode           string               `koanf:"mode"`
	WebhookMarkers []string             `koanf:"webhook_markers"`
	Timeout        time.Duration        `koanf:"timeout"`
	CircuitBreaker CircuitBreakerConfig `koanf:"circuit_breaker"`
}

// CircuitBreakerConfig configures the optional breaker in front of the backend.
// Disabled by default: every call reaches the network.
type CircuitBreakerConfig struct {
	Enabled      bool          `koanf:"enabled"`
	MinRequests  uint32        `koanf:"min_requests"`
	FailureRatio float64       `koanf:"failure_ratio"`
	Interval     time.Duration `koanf:"interval"`
	Timeout      time.Duration `koanf:"timeout"`
	MaxHalfOpen  uint32        `koanf:"max_half_open"`
}

// Session store types.
const (
	SessionStoreMemory = "memory"
	SessionStoreBadger = "badger"
)

// SessionConfig selects where the base URL and credential are persisted.
//
// Environment Variables:
//   - SESSION_STORE: memory or badger (default: badger)
//   - SESSION_STORE_PATH: badger directory (default: /data/session)
//   - SESSION_ENCRYPTION_SECRET: encrypts the stored credential when set
type SessionConfig struct {
	Store            string `koanf:"store"`
	Path             string `koanf:"path"`
	EncryptionSecret string `koanf:"encryption_secret"`
}

// NotifyConfig controls how long notifications stay visible.
type NotifyConfig struct {
	DisplayDuration  time.Duration `koanf:"display_duration"`
	WebsocketEnabled bool          `koanf:"websocket_enabled"`
}

// DashboardConfig holds facade options.
type DashboardConfig struct {
	// DemoFallback substitutes placeholder data for failed emission and
	// verification reads. Off by default because it hides backend failures.
	DemoFallback bool `koanf:"demo_fallback"`
}

// ServerConfig holds the BFF HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// SecurityConfig holds CORS and inbound rate limiting.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration from defaults, the optional YAML file and the environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
