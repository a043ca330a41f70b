// Credboard - Credential Issuance Metrics Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/credboard

package services

import "context"

// Runner is a component with a context-bound main loop, such as
// *websocket.Hub.
type Runner interface {
	RunWithContext(ctx context.Context) error
}

// LoopService names a Runner for the supervisor.
//
//	hub := websocket.NewHub()
//	tree.AddMessagingService(services.NewLoopService("websocket-hub", hub))
type LoopService struct {
	name   string
	runner Runner
}

// NewLoopService creates a named service around r.
func NewLoopService(name string, r Runner) *LoopService {
	return &LoopService{name: name, runner: r}
}

// Serve implements suture.Service.
func (l *LoopService) Serve(ctx context.Context) error {
	return l.runner.RunWithContext(ctx)
}

// String implements fmt.Stringer.
func (l *LoopService) String() string {
	return l.name
}
