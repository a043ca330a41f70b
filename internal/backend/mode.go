// Credboard - Credential Issuance Metrics Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/credboard

package backend

import (
	"fmt"
	"strings"

	"github.com/tomtom215/credboard/internal/config"
)

// Mode is the calling convention of the remote backend.
type Mode string

const (
	// ModeDirectRest is a conventional REST API: one path per resource.
	ModeDirectRest Mode = "rest"

	// ModeWebhookTunneled is a single workflow-automation endpoint. The
	// logical path travels in a "route" parameter and responses may be
	// wrapped as [{"json": payload}].
	ModeWebhookTunneled Mode = "webhook"
)

func (m Mode) String() string {
	return string(m)
}

// DetectMode guesses the mode from the base URL.
//
// This is a heuristic, not a negotiation: any base URL containing one of
// markers is treated as webhook-tunneled. A REST backend whose path happens
// to contain a marker is misclassified; set an explicit mode for those.
// A nil markers slice uses config.DefaultWebhookMarkers.
func DetectMode(baseURL string, markers []string) Mode {
	if markers == nil {
		markers = config.DefaultWebhookMarkers
	}
	for _, marker := range markers {
		if marker != "" && strings.Contains(baseURL, marker) {
			return ModeWebhookTunneled
		}
	}
	return ModeDirectRest
}

// ResolveMode applies a configured override ("auto", "rest" or "webhook").
// An empty override means auto.
func ResolveMode(override, baseURL string, markers []string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(override)) {
	case "", config.BackendModeAuto:
		return DetectMode(baseURL, markers), nil
	case config.BackendModeREST:
		return ModeDirectRest, nil
	case config.BackendModeWebhook:
		return ModeWebhookTunneled, nil
	default:
		return "", fmt.Errorf("unknown backend mode %q (expected auto, rest or webhook)", override)
	}
}
