// Credboard - Credential Issuance Metrics Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/credboard

package backend

import (
	"bytes"

	"github.com/goccy/go-json"
)

// wrapperKey holds the real payload in a webhook response item.
const wrapperKey = "json"

// Unwrap strips the webhook response wrapper. A payload of the form
// [{"json": X, ...}] becomes X, whatever X is. Anything else is returned
// unchanged with ok == false, so applying Unwrap to an already unwrapped
// payload is a no-op.
func Unwrap(payload json.RawMessage) (out json.RawMessage, ok bool) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return payload, false
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil || len(items) != 1 {
		return payload, false
	}

	item := bytes.TrimSpace(items[0])
	if len(item) == 0 || item[0] != '{' {
		return payload, false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(item, &fields); err != nil {
		return payload, false
	}
	inner, found := fields[wrapperKey]
	if !found {
		return payload, false
	}
	return inner, true
}
