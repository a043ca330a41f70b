// Credboard - Credential Issuance Metrics Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/credboard

package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"

	"github.com/tomtom215/credboard/internal/config"
	"github.com/tomtom215/credboard/internal/notify"
)

// captured is what the fake backend saw.
type captured struct {
	Method  string
	Path    string
	Query   url.Values
	Body    map[string]any
	APIKey  string
	HasKey  bool
	CType   string
	Cookies []*http.Cookie
}

type fakeBackend struct {
	*httptest.Server
	mu       sync.Mutex
	requests []captured
}

func newFakeBackend(t *testing.T, handler http.HandlerFunc) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{}
	fb.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := captured{
			Method:  r.Method,
			Path:    r.URL.Path,
			Query:   r.URL.Query(),
			APIKey:  r.Header.Get(HeaderAPIKey),
			CType:   r.Header.Get("Content-Type"),
			Cookies: r.Cookies(),
		}
		_, c.HasKey = r.Header[http.CanonicalHeaderKey(HeaderAPIKey)]
		if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
			_ = json.Unmarshal(raw, &c.Body)
		}
		fb.mu.Lock()
		fb.requests = append(fb.requests, c)
		fb.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(fb.Close)
	return fb
}

func (fb *fakeBackend) last(t *testing.T) captured {
	t.Helper()
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if len(fb.requests) == 0 {
		t.Fatal("backend received no request")
	}
	return fb.requests[len(fb.requests)-1]
}

func (fb *fakeBackend) count() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return len(fb.requests)
}

func respondJSON(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

func respondStatus(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

// collector records notifications published through a broker.
type collector struct {
	mu    sync.Mutex
	items []notify.Notification
}

func newCollector(b *notify.Broker) *collector {
	c := &collector{}
	b.Subscribe(func(n notify.Notification) {
		c.mu.Lock()
		c.items = append(c.items, n)
		c.mu.Unlock()
	})
	return c
}

func (c *collector) all() []notify.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]notify.Notification(nil), c.items...)
}

func newTestAdapter(baseURL, credential string) (*Adapter, *collector) {
	b := notify.NewBroker()
	c := newCollector(b)
	return New(Options{BaseURL: baseURL, Credential: credential, Notifier: b, Timeout: 5 * time.Second}), c
}

func TestSend_CredentialHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		credential string
	}{
		{name: "non-empty credential", credential: "acp_live_4f9c"},
		{name: "absent credential is sent empty", credential: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fb := newFakeBackend(t, respondJSON(`{}`))
			a, _ := newTestAdapter(fb.URL, tt.credential)
			for _, d := range []Descriptor{Get("/dashboard/overview", nil), Post("/x", map[string]any{"a": 1}), Delete("/y")} {
				if _, err := a.Send(context.Background(), d); err != nil {
					t.Fatalf("Send(%s) error = %v", d.Method, err)
				}
				got := fb.last(t)
				if !got.HasKey || got.APIKey != tt.credential {
					t.Errorf("%s: X-API-Key = %q (present %v), want %q", d.Method, got.APIKey, got.HasKey, tt.credential)
				}
				if got.CType != "application/json" {
					t.Errorf("%s: Content-Type = %q", d.Method, got.CType)
				}
			}
		})
	}
}

func TestSend_WebhookOverviewScenario(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend(t, respondJSON(`[{"json":{"totalEmissions":42}}]`))
	a, notes := newTestAdapter(fb.URL+"/webhook/abc", "k")
	if a.Mode() != ModeWebhookTunneled {
		t.Fatalf("Mode() = %v, want webhook", a.Mode())
	}

	resp, err := a.Send(context.Background(), Get("/dashboard/overview", nil))
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	got := fb.last(t)
	if got.Path != "/webhook/abc" {
		t.Errorf("literal path = %q, want /webhook/abc", got.Path)
	}
	if diff := cmp.Diff(url.Values{"route": {"/dashboard/overview"}}, got.Query); diff != "" {
		t.Errorf("query mismatch (-want +got):\n%s", diff)
	}
	if string(resp.Payload) != `{"totalEmissions":42}` {
		t.Errorf("Payload = %s, want unwrapped object", resp.Payload)
	}
	if n := notes.all(); len(n) != 0 {
		t.Errorf("unexpected notifications: %+v", n)
	}
}

func TestSend_WebhookReadsCarryRouteInQuery(t *testing.T) {
	t.Parallel()

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			t.Parallel()

			fb := newFakeBackend(t, respondJSON(`{"ok":true}`))
			a, _ := newTestAdapter(fb.URL+"/webhook-test/flow?token=t1", "k")

			d := Descriptor{
				Method: method,
				Path:   "/dashboard/emissions",
				Query:  url.Values{"status": {"emitida"}},
			}
			if _, err := a.Send(context.Background(), d); err != nil {
				t.Fatalf("Send() error = %v", err)
			}

			got := fb.last(t)
			if got.Path != "/webhook-test/flow" {
				t.Errorf("literal path = %q, logical path must not appear", got.Path)
			}
			want := url.Values{
				"route":  {"/dashboard/emissions"},
				"status": {"emitida"},
				"token":  {"t1"},
			}
			if diff := cmp.Diff(want, got.Query); diff != "" {
				t.Errorf("query mismatch (-want +got):\n%s", diff)
			}
			if _, ok := got.Body["route"]; ok {
				t.Error("route must not appear in the body for reads")
			}
		})
	}
}

func TestSend_WebhookWritesCarryRouteInBody(t *testing.T) {
	t.Parallel()

	for _, method := range []string{http.MethodPost, http.MethodPut} {
		t.Run(method, func(t *testing.T) {
			t.Parallel()

			fb := newFakeBackend(t, respondJSON(`[{"json":{"id":"k1"}}]`))
			a, _ := newTestAdapter(fb.URL+"/webhook/abc", "k")

			body := map[string]any{"label": "prod", "role": "institution_admin"}
			d := Descriptor{Method: method, Path: "/dashboard/institutions/i1/api-keys", Body: body}
			if _, err := a.Send(context.Background(), d); err != nil {
				t.Fatalf("Send() error = %v", err)
			}

			got := fb.last(t)
			want := map[string]any{
				"label": "prod",
				"role":  "institution_admin",
				"route": "/dashboard/institutions/i1/api-keys",
			}
			if diff := cmp.Diff(want, got.Body); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
			if got.Query.Has("route") {
				t.Error("route must not appear in the query for writes")
			}
			if got.Path != "/webhook/abc" {
				t.Errorf("literal path = %q", got.Path)
			}
			if _, ok := body["route"]; ok {
				t.Error("caller's body map was modified")
			}
		})
	}
}

func TestSend_DirectRestLeavesPayloadAlone(t *testing.T) {
	t.Parallel()

	wrapped := `[{"json":{"totalEmissions":42}}]`
	fb := newFakeBackend(t, respondJSON(wrapped))
	a, _ := newTestAdapter(fb.URL+"/api/", "k")
	if a.Mode() != ModeDirectRest {
		t.Fatalf("Mode() = %v, want rest", a.Mode())
	}

	resp, err := a.Send(context.Background(), Get("/dashboard/overview", url.Values{"range": {"7d"}}))
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	got := fb.last(t)
	if got.Path != "/api/dashboard/overview" {
		t.Errorf("path = %q, want /api/dashboard/overview", got.Path)
	}
	if got.Query.Get("range") != "7d" || got.Query.Has("route") {
		t.Errorf("query = %v", got.Query)
	}
	if string(resp.Payload) != wrapped {
		t.Errorf("Payload = %s, direct responses must pass through", resp.Payload)
	}
}

func TestSend_EmptyBodyIsNull(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend(t, func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	a, _ := newTestAdapter(fb.URL, "k")

	resp, err := a.Send(context.Background(), Delete("/dashboard/api-keys/k1"))
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !resp.IsNull() || resp.Status != http.StatusNoContent {
		t.Errorf("Response = %+v, want null payload with 204", resp)
	}
}

func TestSend_BackendErrorMessages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		path    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "message field", status: 401, body: `{"message":"invalid api key","error":"Unauthorized"}`, wantMsg: "invalid api key"},
		{name: "error field", status: 403, body: `{"error":"forbidden"}`, wantMsg: "forbidden"},
		{name: "nested error object", status: 400, body: `{"error":{"message":"bad institution"}}`, wantMsg: "bad institution"},
		{name: "blank message falls through", status: 400, body: `{"message":"  ","error":"nope"}`, wantMsg: "nope"},
		{name: "no json body", status: 500, body: `<html>oops</html>`, wantMsg: GenericBackendMessage},
		{name: "empty body", status: 502, body: ``, wantMsg: GenericBackendMessage},
		{name: "webhook wrapped error", path: "/webhook/abc", status: 422, body: `[{"json":{"message":"duplicate label"}}]`, wantMsg: "duplicate label"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fb := newFakeBackend(t, respondStatus(tt.status, tt.body))
			a, notes := newTestAdapter(fb.URL+tt.path, "k")

			_, err := a.Send(context.Background(), Get("/dashboard/logs", nil))
			var be *BackendError
			if !errors.As(err, &be) {
				t.Fatalf("Send() error = %v, want *BackendError", err)
			}
			if be.Status != tt.status || be.Message != tt.wantMsg {
				t.Errorf("BackendError = {%d %q}, want {%d %q}", be.Status, be.Message, tt.status, tt.wantMsg)
			}

			got := notes.all()
			if len(got) != 1 || got[0].Kind != notify.KindError || got[0].Message != tt.wantMsg {
				t.Errorf("notifications = %+v, want one error %q", got, tt.wantMsg)
			}
		})
	}
}

func TestSend_ConnectivityFailure(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend(t, respondJSON(`{}`))
	deadURL := fb.URL
	fb.Close()

	a, notes := newTestAdapter(deadURL+"/webhook/abc", "k")
	_, err := a.Send(context.Background(), Get("/dashboard/overview", nil))

	var ce *ConnectivityError
	if !errors.As(err, &ce) {
		t.Fatalf("Send() error = %v, want *ConnectivityError", err)
	}
	got := notes.all()
	if len(got) != 1 {
		t.Fatalf("got %d notifications, want exactly 1: %+v", len(got), got)
	}
	if got[0].Kind != notify.KindError || got[0].Message != ConnectivityMessage {
		t.Errorf("notification = %+v, want generic connectivity error", got[0])
	}
}

func TestSend_UnusableBaseURL(t *testing.T) {
	t.Parallel()

	for _, base := range []string{"", "ftp://host/x", "not a url", "http://"} {
		t.Run(base, func(t *testing.T) {
			t.Parallel()

			a, notes := newTestAdapter(base, "k")
			_, err := a.Send(context.Background(), Get("/dashboard/overview", nil))
			var ce *ConnectivityError
			if !errors.As(err, &ce) {
				t.Fatalf("Send() error = %v, want *ConnectivityError", err)
			}
			if len(notes.all()) != 1 {
				t.Errorf("want exactly one notification, got %+v", notes.all())
			}
		})
	}
}

func TestSend_CancelledCallerIsNotNotified(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	fb := newFakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	a, notes := newTestAdapter(fb.URL, "k")
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := a.Send(ctx, Get("/dashboard/overview", nil))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Send() error = %v, want context.Canceled", err)
	}
	var ce *ConnectivityError
	if errors.As(err, &ce) {
		t.Error("cancellation must not be classified as a connectivity failure")
	}
	if n := notes.all(); len(n) != 0 {
		t.Errorf("unexpected notifications: %+v", n)
	}
}

func TestSend_CallerDeadlineIsConnectivityFailure(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	fb := newFakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	a, notes := newTestAdapter(fb.URL, "k")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := a.Send(ctx, Get("/dashboard/overview", nil))
	var ce *ConnectivityError
	if !errors.As(err, &ce) {
		t.Fatalf("Send() error = %v, want *ConnectivityError", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Send() error = %v, want it to wrap context.DeadlineExceeded", err)
	}
	got := notes.all()
	if len(got) != 1 {
		t.Fatalf("got %d notifications, want exactly 1: %+v", len(got), got)
	}
	if got[0].Kind != notify.KindError || got[0].Message != ConnectivityMessage {
		t.Errorf("notification = %+v, want generic connectivity error", got[0])
	}
}

func TestSend_MalformedSuccessPayload(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend(t, respondJSON(`{"totalEmissions":`))
	a, notes := newTestAdapter(fb.URL, "k")

	_, err := a.Send(context.Background(), Get("/dashboard/overview", nil))
	if err == nil {
		t.Fatal("Send() error = nil, want decode error")
	}
	var be *BackendError
	var ce *ConnectivityError
	if errors.As(err, &be) || errors.As(err, &ce) {
		t.Errorf("error %v should not be a backend or connectivity error", err)
	}
	if n := notes.all(); len(n) != 0 {
		t.Errorf("unexpected notifications: %+v", n)
	}
}

func TestSend_KeepsCookies(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "abc", Path: "/"})
		_, _ = io.WriteString(w, `{}`)
	})
	a, _ := newTestAdapter(fb.URL, "k")

	for i := 0; i < 2; i++ {
		if _, err := a.Send(context.Background(), Get("/dashboard/overview", nil)); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
	}
	got := fb.last(t)
	if len(got.Cookies) != 1 || got.Cookies[0].Value != "abc" {
		t.Errorf("second request cookies = %v, want sid=abc", got.Cookies)
	}
}

func TestSend_CircuitBreaker(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend(t, respondStatus(http.StatusServiceUnavailable, `{"error":"down"}`))
	b := notify.NewBroker()
	notes := newCollector(b)
	a := New(Options{
		BaseURL:  fb.URL,
		Notifier: b,
		CircuitBreaker: config.CircuitBreakerConfig{
			Enabled:      true,
			MinRequests:  2,
			FailureRatio: 0.5,
			Interval:     time.Minute,
			Timeout:      time.Minute,
			MaxHalfOpen:  1,
		},
	})

	for i := 0; i < 2; i++ {
		_, err := a.Send(context.Background(), Get("/dashboard/overview", nil))
		var be *BackendError
		if !errors.As(err, &be) {
			t.Fatalf("call %d: error = %v, want *BackendError", i, err)
		}
	}

	_, err := a.Send(context.Background(), Get("/dashboard/overview", nil))
	var ce *ConnectivityError
	if !errors.As(err, &ce) {
		t.Fatalf("open breaker error = %v, want *ConnectivityError", err)
	}
	if fb.count() != 2 {
		t.Errorf("backend saw %d requests, want 2 (third rejected locally)", fb.count())
	}
	got := notes.all()
	if len(got) != 3 || got[2].Message != ConnectivityMessage {
		t.Errorf("notifications = %+v, want 3 with the last a connectivity message", got)
	}
}

func TestSend_BreakerIgnoresClientErrors(t *testing.T) {
	t.Parallel()

	fb := newFakeBackend(t, respondStatus(http.StatusNotFound, `{"message":"no such key"}`))
	a := New(Options{
		BaseURL:        fb.URL,
		CircuitBreaker: config.CircuitBreakerConfig{Enabled: true, MinRequests: 1, FailureRatio: 0.1, Interval: time.Minute, Timeout: time.Minute, MaxHalfOpen: 1},
	})

	for i := 0; i < 3; i++ {
		_, err := a.Send(context.Background(), Delete("/dashboard/api-keys/k1"))
		var be *BackendError
		if !errors.As(err, &be) {
			t.Fatalf("call %d: error = %v, want *BackendError", i, err)
		}
	}
	if fb.count() != 3 {
		t.Errorf("backend saw %d requests, want 3", fb.count())
	}
}
