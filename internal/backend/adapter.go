// Credboard - Credential Issuance Metrics Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/credboard

// Package backend is the transport adapter between Credboard and the remote
// credential-issuance backend.
//
// An Adapter is bound to one frozen {base URL, credential} pair. It speaks
// either a conventional REST API or a workflow-automation webhook, where
// every call goes to the same URL and the logical path is carried in a
// "route" parameter:
//
//	GET /dashboard/overview     -> GET https://host/webhook/abc?route=%2Fdashboard%2Foverview
//	POST /dashboard/x {"a": 1}  -> POST https://host/webhook/abc {"a": 1, "route": "/dashboard/x"}
//
// Every failure that reaches the network is classified as a *BackendError
// or *ConnectivityError, published once to the notification bus as an error,
// and returned. The adapter never retries and never swallows an error.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/credboard/internal/config"
	"github.com/tomtom215/credboard/internal/logging"
	"github.com/tomtom215/credboard/internal/metrics"
	"github.com/tomtom215/credboard/internal/notify"
)

// HeaderAPIKey carries the credential on every call.
const HeaderAPIKey = "X-API-Key"

// DefaultTimeout applies when Options.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// maxResponseSize limits a successful response body.
const maxResponseSize = 10 << 20

// Options configures an Adapter.
type Options struct {
	BaseURL    string
	Credential string

	// ModeOverride is "auto" (or empty), "rest" or "webhook".
	ModeOverride string
	// WebhookMarkers drive auto detection. Nil uses the defaults.
	WebhookMarkers []string

	Timeout        time.Duration
	CircuitBreaker config.CircuitBreakerConfig

	// Notifier receives error notifications. Nil disables them.
	Notifier notify.Publisher

	// HTTPClient replaces the default client. Its cookie jar and timeout are
	// used as is.
	HTTPClient *http.Client
}

// Response is a successful backend reply. Payload is already unwrapped in
// webhook mode and is "null" for an empty body.
type Response struct {
	Status  int
	Payload json.RawMessage
}

// Decode unmarshals the payload into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Payload, v); err != nil {
		return fmt.Errorf("decode backend payload: %w", err)
	}
	return nil
}

// IsNull reports whether the backend returned no payload.
func (r *Response) IsNull() bool {
	p := bytes.TrimSpace(r.Payload)
	return len(p) == 0 || bytes.Equal(p, []byte("null"))
}

// Adapter sends descriptors to one backend. It is immutable and safe for
// concurrent use; build a new one when the base URL or credential changes.
type Adapter struct {
	baseURL    string
	base       *url.URL
	baseErr    error
	credential string
	mode       Mode
	client     *http.Client
	notifier   notify.Publisher
	breaker    *gobreaker.CircuitBreaker[*Response]
}

// New builds an adapter. It never fails: an unusable base URL or mode is
// reported by Send as a ConnectivityError, the same way a bad address would
// be, so that setting the session never has validation side effects.
func New(opts Options) *Adapter {
	a := &Adapter{
		baseURL:    opts.BaseURL,
		credential: opts.Credential,
		notifier:   opts.Notifier,
		breaker:    newBreaker(opts.CircuitBreaker),
	}

	a.base, a.baseErr = parseBaseURL(opts.BaseURL)

	mode, err := ResolveMode(opts.ModeOverride, opts.BaseURL, opts.WebhookMarkers)
	if err != nil {
		logging.Warn().Err(err).Msg("Falling back to backend mode detection")
		mode = DetectMode(opts.BaseURL, opts.WebhookMarkers)
	}
	a.mode = mode

	a.client = opts.HTTPClient
	if a.client == nil {
		a.client = newHTTPClient(opts.Timeout)
	}
	return a
}

func parseBaseURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, errors.New("no backend base URL configured")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid backend base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend base URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid backend base URL %q: missing host", raw)
	}
	u.Fragment = ""
	return u, nil
}

// newHTTPClient returns a client that keeps cookies between calls but no
// pooled connections.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	jar, _ := cookiejar.New(nil) // only fails with a non-nil option

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DisableKeepAlives = true

	return &http.Client{
		Timeout:   timeout,
		Jar:       jar,
		Transport: transport,
	}
}

// Mode returns the calling convention in effect.
func (a *Adapter) Mode() Mode {
	return a.mode
}

// BaseURL returns the base URL the adapter was built with.
func (a *Adapter) BaseURL() string {
	return a.baseURL
}

// Send performs d against the backend.
//
// On failure the returned error is a *BackendError (non-2xx response), a
// *ConnectivityError (no response, including an expired caller deadline),
// a wrapped context.Canceled (the caller went away) or a wrapped decode
// error (2xx with invalid JSON). Only the first two are published to the
// notification bus.
func (a *Adapter) Send(ctx context.Context, d Descriptor) (*Response, error) {
	d = d.normalized()
	start := time.Now()

	resp, err := a.execute(ctx, d)

	metrics.RecordBackendRequest(a.mode.String(), d.Method, outcomeOf(err), time.Since(start))
	if err != nil {
		a.report(ctx, d, err)
		return nil, err
	}

	logging.Ctx(ctx).Debug().
		Str("method", d.Method).
		Str("route", d.Path).
		Str("mode", a.mode.String()).
		Int("status", resp.Status).
		Dur("duration", time.Since(start)).
		Msg("Backend call completed")
	return resp, nil
}

func (a *Adapter) execute(ctx context.Context, d Descriptor) (*Response, error) {
	if a.breaker == nil {
		return a.roundTrip(ctx, d)
	}

	resp, err := a.breaker.Execute(func() (*Response, error) {
		return a.roundTrip(ctx, d)
	})
	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "success").Inc()
	case isRejection(err):
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "rejected").Inc()
		return nil, &ConnectivityError{Err: err}
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "failure").Inc()
	}
	return resp, err
}

func (a *Adapter) roundTrip(ctx context.Context, d Descriptor) (*Response, error) {
	if a.baseErr != nil {
		return nil, &ConnectivityError{Err: a.baseErr}
	}

	wire, err := buildWireRequest(a.base, a.mode, d)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", d.Method, d.Path, err)
	}

	req, err := http.NewRequestWithContext(ctx, wire.method, wire.url, wire.bodyReader())
	if err != nil {
		return nil, &ConnectivityError{Err: err}
	}
	req.Header.Set(HeaderAPIKey, a.credential)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	httpResp, err := a.client.Do(req)
	if err != nil {
		return nil, contextFailure(ctx, d, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, newBackendError(httpResp.StatusCode, readBodyForError(httpResp.Body), a.mode)
	}

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize+1))
	if err != nil {
		return nil, contextFailure(ctx, d, fmt.Errorf("read response: %w", err))
	}
	if len(raw) > maxResponseSize {
		return nil, fmt.Errorf("%s %s: response exceeds %d bytes", d.Method, d.Path, maxResponseSize)
	}

	payload := json.RawMessage(bytes.TrimSpace(raw))
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	} else if !json.Valid(payload) {
		return nil, fmt.Errorf("%s %s: decode response: invalid JSON", d.Method, d.Path)
	}

	if a.mode == ModeWebhookTunneled {
		if inner, ok := Unwrap(payload); ok {
			payload = inner
			metrics.BackendUnwrappedResponses.Inc()
		}
	}

	return &Response{Status: httpResp.StatusCode, Payload: payload}, nil
}

// contextFailure classifies a transport error. Only a cancelled caller is
// left unclassified; an expired deadline is a timeout like any other.
func contextFailure(ctx context.Context, d Descriptor, err error) error {
	ctxErr := ctx.Err()
	if errors.Is(ctxErr, context.Canceled) {
		return fmt.Errorf("%s %s: %w", d.Method, d.Path, ctxErr)
	}
	if ctxErr != nil {
		return &ConnectivityError{Err: ctxErr}
	}
	return &ConnectivityError{Err: err}
}

// report publishes exactly one notification for a classified failure.
func (a *Adapter) report(ctx context.Context, d Descriptor, err error) {
	logger := logging.Ctx(ctx)

	var be *BackendError
	var ce *ConnectivityError
	switch {
	case errors.As(err, &be):
		logger.Warn().
			Str("method", d.Method).
			Str("route", d.Path).
			Int("status", be.Status).
			Str("message", be.Message).
			Msg("Backend returned an error")
		a.publish(be.Message)
	case errors.As(err, &ce):
		logger.Warn().
			Err(ce.Err).
			Str("method", d.Method).
			Str("route", d.Path).
			Msg("Backend unreachable")
		a.publish(ConnectivityMessage)
	default:
		logger.Debug().Err(err).Str("method", d.Method).Str("route", d.Path).Msg("Backend call abandoned")
	}
}

func (a *Adapter) publish(message string) {
	if a.notifier == nil {
		return
	}
	a.notifier.Publish(notify.Notification{Kind: notify.KindError, Message: message})
}

func outcomeOf(err error) string {
	if err == nil {
		return "success"
	}
	var be *BackendError
	if errors.As(err, &be) {
		return "backend_error"
	}
	var ce *ConnectivityError
	if errors.As(err, &ce) {
		return "connectivity_error"
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	return "decode_error"
}
