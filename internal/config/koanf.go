// Credboard - Credential Issuance Metrics Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/credboard

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/credboard/config.yaml",
	"/etc/credboard/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultWebhookMarkers are the path fragments that identify a workflow
// webhook endpoint (n8n production and test URLs).
var DefaultWebhookMarkers = []string{"/webhook/", "/webhook-test/"}

func defaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:        "http://localhost:3001",
			APIKey:         "",
			Mode:           BackendModeAuto,
			WebhookMarkers: append([]string(nil), DefaultWebhookMarkers...),
			Timeout:        30 * time.Second,
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:      false,
				MinRequests:  10,
				FailureRatio: 0.6,
				Interval:     time.Minute,
				Timeout:      2 * time.Minute,
				MaxHalfOpen:  3,
			},
		},
		Session: SessionConfig{
			Store: SessionStoreBadger,
			Path:  "/data/session",
		},
		Notify: NotifyConfig{
			DisplayDuration:  3500 * time.Millisecond,
			WebsocketEnabled: true,
		},
		Dashboard: DashboardConfig{
			DemoFallback: false,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8787,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Security: SecurityConfig{
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf loads defaults, then the config file, then env vars, and validates.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sliceConfigPaths lists keys that may arrive as comma separated env strings.
var sliceConfigPaths = []string{
	"backend.webhook_markers",
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		parts := strings.Split(s, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	"backend_base_url":              "backend.base_url",
	"backend_api_key":               "backend.api_key",
	"backend_mode":                  "backend.mode",
	"backend_webhook_markers":       "backend.webhook_markers",
	"backend_timeout":               "backend.timeout",
	"backend_breaker_enabled":       "backend.circuit_breaker.enabled",
	"backend_breaker_min_requests":  "backend.circuit_breaker.min_requests",
	"backend_breaker_failure_ratio": "backend.circuit_breaker.failure_ratio",
	"backend_breaker_interval":      "backend.circuit_breaker.interval",
	"backend_breaker_timeout":       "backend.circuit_breaker.timeout",
	"backend_breaker_max_half_open": "backend.circuit_breaker.max_half_open",
	"session_store":                 "session.store",
	"session_store_path":            "session.path",
	"session_encryption_secret":     "session.encryption_secret",
	"notify_display_duration":       "notify.display_duration",
	"notify_websocket_enabled":      "notify.websocket_enabled",
	"demo_fallback":                 "dashboard.demo_fallback",
	"http_host":                     "server.host",
	"http_port":                     "server.port",
	"http_timeout":                  "server.timeout",
	"http_shutdown_timeout":         "server.shutdown_timeout",
	"cors_origins":                  "security.cors_origins",
	"rate_limit_requests":           "security.rate_limit_reqs",
	"rate_limit_window":             "security.rate_limit_window",
	"disable_rate_limit":            "security.rate_limit_disabled",
	"log_level":                     "logging.level",
	"log_format":                    "logging.format",
	"log_caller":                    "logging.caller",
}

// envTransformFunc maps known environment variables to config keys.
// Unmapped variables return "" and are ignored.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
