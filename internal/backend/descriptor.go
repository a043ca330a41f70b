// Credboard - Credential Issuance Metrics Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/credboard

package backend

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
)

// RouteParam carries the logical path in webhook mode.
const RouteParam = "route"

// Descriptor is the logical operation a caller wants performed, independent
// of the backend's calling convention.
type Descriptor struct {
	Method string
	Path   string
	Query  url.Values
	Body   map[string]any
}

// Get returns a GET descriptor for path.
func Get(path string, query url.Values) Descriptor {
	return Descriptor{Method: http.MethodGet, Path: path, Query: query}
}

// Post returns a POST descriptor for path.
func Post(path string, body map[string]any) Descriptor {
	return Descriptor{Method: http.MethodPost, Path: path, Body: body}
}

// Delete returns a DELETE descriptor for path.
func Delete(path string) Descriptor {
	return Descriptor{Method: http.MethodDelete, Path: path}
}

func (d Descriptor) normalized() Descriptor {
	d.Method = strings.ToUpper(strings.TrimSpace(d.Method))
	if d.Method == "" {
		d.Method = http.MethodGet
	}
	if !strings.HasPrefix(d.Path, "/") {
		d.Path = "/" + d.Path
	}
	return d
}

// carriesRouteInBody reports whether the webhook route goes in the body.
// Reads and deletes put it in the query string.
func carriesRouteInBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

// wireRequest is the HTTP call actually issued.
type wireRequest struct {
	method string
	url    string
	body   []byte
}

func (w *wireRequest) bodyReader() io.Reader {
	if w.body == nil {
		return http.NoBody
	}
	return bytes.NewReader(w.body)
}

// buildWireRequest translates d for base in the given mode. base is never
// modified.
func buildWireRequest(base *url.URL, mode Mode, d Descriptor) (*wireRequest, error) {
	u := *base
	query := u.Query()
	for key, values := range d.Query {
		query[key] = append([]string(nil), values...)
	}

	body := d.Body
	switch mode {
	case ModeWebhookTunneled:
		if carriesRouteInBody(d.Method) {
			merged := make(map[string]any, len(body)+1)
			for k, v := range body {
				merged[k] = v
			}
			merged[RouteParam] = d.Path
			body = merged
		} else {
			query.Set(RouteParam, d.Path)
		}
	default:
		u.Path = strings.TrimSuffix(u.Path, "/") + d.Path
		u.RawPath = ""
	}
	u.RawQuery = query.Encode()

	w := &wireRequest{method: d.Method, url: u.String()}
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		w.body = encoded
	}
	return w, nil
}
