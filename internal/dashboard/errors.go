// Credboard - Credential Issuance Metrics Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/credboard

package dashboard

import (
	"errors"
	"fmt"

	"github.com/tomtom215/credboard/internal/validation"
)

// ErrNotConnected is returned by Provider.Facade when the session holds no
// backend base URL.
var ErrNotConnected = errors.New("dashboard: no backend base URL configured")

// ValidationError is caller input rejected before any backend call. It is
// never published to the notification bus; the caller decides how to
// surface it.
type ValidationError struct {
	Operation string
	Err       *validation.RequestValidationError
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
