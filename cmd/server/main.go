// Credboard - Credential Issuance Metrics Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/credboard

// Command server runs the Credboard BFF: it holds the backend session,
// adapts dashboard calls to the credential-issuance backend (direct REST or
// webhook-tunneled) and pushes notifications to the UI.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/tomtom215/credboard/internal/api"
	"github.com/tomtom215/credboard/internal/backend"
	"github.com/tomtom215/credboard/internal/config"
	"github.com/tomtom215/credboard/internal/dashboard"
	"github.com/tomtom215/credboard/internal/logging"
	"github.com/tomtom215/credboard/internal/notify"
	"github.com/tomtom215/credboard/internal/session"
	"github.com/tomtom215/credboard/internal/supervisor"
	"github.com/tomtom215/credboard/internal/supervisor/services"
	ws "github.com/tomtom215/credboard/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	logging.Info().
		Str("backend_mode", cfg.Backend.Mode).
		Str("session_store", cfg.Session.Store).
		Bool("demo_fallback", cfg.Dashboard.DemoFallback).
		Msg("Starting Credboard")

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Credboard stopped with an error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Session store
	persister, err := session.NewPersister(session.StoreType(cfg.Session.Store), cfg.Session.Path)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer func() {
		if err := persister.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing session store")
		}
	}()

	var storeOpts []session.Option
	if cfg.Session.EncryptionSecret != "" {
		enc, err := config.NewCredentialEncryptor(cfg.Session.EncryptionSecret)
		if err != nil {
			return fmt.Errorf("credential encryption: %w", err)
		}
		storeOpts = append(storeOpts, session.WithEncryptor(enc))
	}
	store, err := session.NewStore(ctx, persister, session.Defaults{
		BaseURL:    cfg.Backend.BaseURL,
		Credential: cfg.Backend.APIKey,
	}, storeOpts...)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	current := store.Get()
	logging.Info().
		Str("base_url", current.BaseURL).
		Bool("has_credential", current.HasCredential).
		Msg("Session loaded")

	// Notifications
	broker := notify.NewBroker()
	tray := notify.NewTray(broker, cfg.Notify.DisplayDuration)
	defer tray.Close()

	var hub *ws.Hub
	if cfg.Notify.WebsocketEnabled {
		hub = ws.NewHub()
		defer hub.Attach(broker)()
	}

	// Dashboard facade, rebuilt whenever the session pair changes
	provider := dashboard.NewProvider(store, func(pair session.Pair) *dashboard.Service {
		adapter := backend.New(backend.Options{
			BaseURL:        pair.BaseURL,
			Credential:     pair.Credential,
			ModeOverride:   cfg.Backend.Mode,
			WebhookMarkers: cfg.Backend.WebhookMarkers,
			Timeout:        cfg.Backend.Timeout,
			CircuitBreaker: cfg.Backend.CircuitBreaker,
			Notifier:       broker,
		})
		logging.Info().
			Str("base_url", adapter.BaseURL()).
			Str("mode", adapter.Mode().String()).
			Msg("Backend adapter ready")
		return dashboard.New(adapter, dashboard.WithDemoFallback(cfg.Dashboard.DemoFallback))
	})

	handler := api.NewHandler(api.Deps{
		Config:   cfg,
		Sessions: store,
		Facades:  provider,
		Notifier: broker,
		Tray:     tray,
		Hub:      hub,
	})
	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           api.NewRouter(cfg, handler),
		ReadHeaderTimeout: cfg.Server.Timeout,
		ReadTimeout:       cfg.Server.Timeout,
		IdleTimeout:       2 * cfg.Server.Timeout,
	}

	// Supervisor tree
	tree := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if bp, ok := persister.(*session.BadgerPersister); ok {
		tree.AddDataService(bp)
	}
	tree.AddMessagingService(tray)
	if hub != nil {
		tree.AddMessagingService(services.NewLoopService("websocket-hub", hub))
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	err = tree.Serve(ctx)

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
