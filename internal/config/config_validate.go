// Credboard - Credential Issuance Metrics Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/credboard

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate checks that the loaded configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBackend(); err != nil {
		return err
	}
	if err := c.validateSession(); err != nil {
		return err
	}
	if err := c.validateNotify(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateRateLimits(); err != nil {
		return err
	}
	return c.validateLogging()
}

var validBackendModes = map[string]bool{
	BackendModeAuto:    true,
	BackendModeREST:    true,
	BackendModeWebhook: true,
}

func (c *Config) validateBackend() error {
	b := c.Backend
	// An empty default is allowed: the user supplies the URL at login.
	if b.BaseURL != "" {
		if err := validateBackendURL(b.BaseURL, "BACKEND_BASE_URL"); err != nil {
			return err
		}
	}
	if !validBackendModes[b.Mode] {
		return fmt.Errorf("BACKEND_MODE must be one of: auto, rest, webhook")
	}
	if b.Mode == BackendModeAuto && len(b.WebhookMarkers) == 0 {
		return errors.New("BACKEND_WEBHOOK_MARKERS must not be empty when BACKEND_MODE=auto")
	}
	for _, m := range b.WebhookMarkers {
		if strings.TrimSpace(m) == "" {
			return errors.New("BACKEND_WEBHOOK_MARKERS must not contain blank entries")
		}
	}
	if b.Timeout <= 0 {
		return errors.New("BACKEND_TIMEOUT must be positive")
	}
	return c.validateCircuitBreaker()
}

func (c *Config) validateCircuitBreaker() error {
	cb := c.Backend.CircuitBreaker
	if !cb.Enabled {
		return nil
	}
	if cb.MinRequests == 0 {
		return errors.New("BACKEND_BREAKER_MIN_REQUESTS must be at least 1")
	}
	if cb.FailureRatio <= 0 || cb.FailureRatio > 1 {
		return errors.New("BACKEND_BREAKER_FAILURE_RATIO must be in (0, 1]")
	}
	if cb.Timeout <= 0 {
		return errors.New("BACKEND_BREAKER_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateSession() error {
	switch c.Session.Store {
	case SessionStoreMemory:
		return nil
	case SessionStoreBadger:
		if c.Session.Path == "" {
			return errors.New("SESSION_STORE_PATH is required when SESSION_STORE=badger")
		}
		return nil
	default:
		return fmt.Errorf("SESSION_STORE must be one of: memory, badger")
	}
}

func (c *Config) validateNotify() error {
	if c.Notify.DisplayDuration <= 0 {
		return errors.New("NOTIFY_DISPLAY_DURATION must be positive")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	return nil
}

const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

var (
	validLogLevels  = map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"json": true, "console": true}
)

func (c *Config) validateLogging() error {
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if !validLogFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// HasWildcardCORS reports whether any origin is allowed. Logged as a warning at startup.
func (c *Config) HasWildcardCORS() bool {
	for _, o := range c.Security.CORSOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}
