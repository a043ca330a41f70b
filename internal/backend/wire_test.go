// Credboard - Credential Issuance Metrics Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/credboard

package backend

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q) error = %v", raw, err)
	}
	return u
}

func TestBuildWireRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		base     string
		mode     Mode
		desc     Descriptor
		wantURL  string
		wantBody map[string]any
	}{
		{
			name:    "direct get joins paths",
			base:    "https://api.example.com/v1/",
			mode:    ModeDirectRest,
			desc:    Get("/dashboard/institutions", nil),
			wantURL: "https://api.example.com/v1/dashboard/institutions",
		},
		{
			name:     "direct post keeps body",
			base:     "https://api.example.com",
			mode:     ModeDirectRest,
			desc:     Post("/dashboard/institutions/i1/api-keys", map[string]any{"label": "x"}),
			wantURL:  "https://api.example.com/dashboard/institutions/i1/api-keys",
			wantBody: map[string]any{"label": "x"},
		},
		{
			name:    "webhook get puts route in query",
			base:    "https://host/webhook/abc",
			mode:    ModeWebhookTunneled,
			desc:    Get("/dashboard/overview", nil),
			wantURL: "https://host/webhook/abc?route=%2Fdashboard%2Foverview",
		},
		{
			name:    "webhook route overrides a caller route key",
			base:    "https://host/webhook/abc",
			mode:    ModeWebhookTunneled,
			desc:    Get("/verify/token", url.Values{"route": {"/evil"}, "tokenId": {"0.0.1"}}),
			wantURL: "https://host/webhook/abc?route=%2Fverify%2Ftoken&tokenId=0.0.1",
		},
		{
			name:     "webhook post with nil body",
			base:     "https://host/webhook/abc",
			mode:     ModeWebhookTunneled,
			desc:     Descriptor{Method: http.MethodPost, Path: "/dashboard/refresh"},
			wantURL:  "https://host/webhook/abc",
			wantBody: map[string]any{"route": "/dashboard/refresh"},
		},
		{
			name:     "webhook patch goes in body",
			base:     "https://host/webhook/abc?token=1",
			mode:     ModeWebhookTunneled,
			desc:     Descriptor{Method: http.MethodPatch, Path: "/x", Body: map[string]any{"a": "b"}},
			wantURL:  "https://host/webhook/abc?token=1",
			wantBody: map[string]any{"a": "b", "route": "/x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			base := mustParse(t, tt.base)
			w, err := buildWireRequest(base, tt.mode, tt.desc.normalized())
			if err != nil {
				t.Fatalf("buildWireRequest() error = %v", err)
			}
			if w.url != tt.wantURL {
				t.Errorf("url = %q, want %q", w.url, tt.wantURL)
			}
			if base.String() != tt.base {
				t.Errorf("base URL modified to %q", base.String())
			}

			var gotBody map[string]any
			if w.body != nil {
				if err := json.Unmarshal(w.body, &gotBody); err != nil {
					t.Fatalf("body is not JSON: %v", err)
				}
			}
			if diff := cmp.Diff(tt.wantBody, gotBody); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDescriptorNormalized(t *testing.T) {
	t.Parallel()

	d := Descriptor{Method: " post ", Path: "dashboard/logs"}.normalized()
	if d.Method != http.MethodPost || d.Path != "/dashboard/logs" {
		t.Errorf("normalized() = %+v", d)
	}
	if got := (Descriptor{}).normalized().Method; got != http.MethodGet {
		t.Errorf("empty method = %q, want GET", got)
	}
}

func TestDetectMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		baseURL string
		markers []string
		want    Mode
	}{
		{"https://host/webhook/abc", nil, ModeWebhookTunneled},
		{"https://host/webhook-test/abc", nil, ModeWebhookTunneled},
		{"https://api.example.com/v1", nil, ModeDirectRest},
		{"https://host/webhooks", nil, ModeDirectRest},
		{"https://host/hooks/abc", []string{"/hooks/"}, ModeWebhookTunneled},
		{"https://host/webhook/abc", []string{}, ModeDirectRest},
		{"https://host/webhook/abc", []string{""}, ModeDirectRest},
	}

	for _, tt := range tests {
		if got := DetectMode(tt.baseURL, tt.markers); got != tt.want {
			t.Errorf("DetectMode(%q, %v) = %v, want %v", tt.baseURL, tt.markers, got, tt.want)
		}
	}
}

func TestResolveMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		override string
		baseURL  string
		want     Mode
		wantErr  bool
	}{
		{"", "https://host/webhook/abc", ModeWebhookTunneled, false},
		{"auto", "https://api.example.com", ModeDirectRest, false},
		{"REST", "https://host/webhook/abc", ModeDirectRest, false},
		{"webhook", "https://api.example.com", ModeWebhookTunneled, false},
		{"grpc", "https://api.example.com", "", true},
	}

	for _, tt := range tests {
		got, err := ResolveMode(tt.override, tt.baseURL, nil)
		if (err != nil) != tt.wantErr {
			t.Errorf("ResolveMode(%q) error = %v, wantErr %v", tt.override, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ResolveMode(%q, %q) = %v, want %v", tt.override, tt.baseURL, got, tt.want)
		}
	}
}

func TestNew_InvalidModeFallsBackToDetection(t *testing.T) {
	t.Parallel()

	a := New(Options{BaseURL: "https://host/webhook/abc", ModeOverride: "soap"})
	if a.Mode() != ModeWebhookTunneled {
		t.Errorf("Mode() = %v, want detected webhook", a.Mode())
	}
}
