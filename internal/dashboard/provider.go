// Credboard - Credential Issuance Metrics Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/credboard

package dashboard

import (
	"sync"

	"github.com/tomtom215/credboard/internal/logging"
	"github.com/tomtom215/credboard/internal/metrics"
	"github.com/tomtom215/credboard/internal/session"
)

// SessionSource supplies the current session. *session.Store implements it.
type SessionSource interface {
	Get() session.Session
}

// BuildFunc creates the facade for one {base URL, credential} pair.
type BuildFunc func(pair session.Pair) *Service

// Provider hands out the facade for the current session. The facade is
// built lazily and replaced, never reconfigured, when the pair changes, so
// requests already in flight keep the adapter they started with.
type Provider struct {
	source SessionSource
	build  BuildFunc

	mu      sync.Mutex
	pair    session.Pair
	current *Service
}

// NewProvider creates a provider over source.
func NewProvider(source SessionSource, build BuildFunc) *Provider {
	return &Provider{source: source, build: build}
}

// Facade returns the facade for the current session, or ErrNotConnected
// when no base URL is set.
func (p *Provider) Facade() (*Service, error) {
	pair := p.source.Get().Pair()
	if pair.BaseURL == "" {
		return nil, ErrNotConnected
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil && p.pair == pair {
		return p.current, nil
	}

	p.current = p.build(pair)
	p.pair = pair
	metrics.DashboardFacadeBuilds.Inc()
	logging.Debug().Str("base_url", pair.BaseURL).Msg("Built dashboard facade for new session")
	return p.current, nil
}
