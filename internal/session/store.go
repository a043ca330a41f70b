// Credboard - Credential Issuance Metrics Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/credboard

// Package session holds the backend base URL and credential for the
// running process and persists them across restarts.
//
// The two values are stored under separate keys. Clearing the credential
// removes its entry instead of writing "", so "no credential" and "empty
// credential" stay distinguishable after a restart. Setters never touch the
// network and never validate: a bad URL or credential only surfaces when a
// backend call is attempted.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tomtom215/credboard/internal/config"
	"github.com/tomtom215/credboard/internal/logging"
	"github.com/tomtom215/credboard/internal/metrics"
)

// Storage keys.
const (
	credentialKey  = "session:credential"
	baseURLKey     = "session:base_url"
	initializedKey = "session:initialized"
)

// encryptedPrefix marks credential values written with an encryptor.
const encryptedPrefix = "enc:v1:"

// ErrNoEncryptor is returned when an encrypted credential is found but the
// store was built without the secret to read it.
var ErrNoEncryptor = errors.New("session: stored credential is encrypted but no encryption secret is configured")

// Session is a snapshot of the current connection settings.
type Session struct {
	BaseURL       string
	Credential    string
	HasCredential bool
}

// Pair identifies the adapter a session needs. An absent credential and an
// empty one produce the same wire request and therefore the same Pair.
type Pair struct {
	BaseURL    string
	Credential string
}

// Pair returns the {base URL, credential} pair of s.
func (s Session) Pair() Pair {
	return Pair{BaseURL: s.BaseURL, Credential: s.Credential}
}

// Defaults supply initial values. The base URL default fills in whenever no
// base URL is persisted. The credential default is written to storage once,
// on the first start against an empty persister, so a later logout stays
// logged out across restarts. Empty defaults leave the field absent.
type Defaults struct {
	BaseURL    string
	Credential string
}

// Store is the session store. Safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	persister  Persister
	defaults   Defaults
	encryptor  *config.CredentialEncryptor
	current    Session
	generation uint64
}

// Option configures a Store.
type Option func(*Store)

// WithEncryptor encrypts non-empty credentials before they are persisted.
func WithEncryptor(enc *config.CredentialEncryptor) Option {
	return func(s *Store) { s.encryptor = enc }
}

// NewStore loads the persisted session, seeding defaults on first start.
func NewStore(ctx context.Context, p Persister, defaults Defaults, opts ...Option) (*Store, error) {
	s := &Store{persister: p, defaults: defaults}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.seed(ctx); err != nil {
		return nil, err
	}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns the current session.
func (s *Store) Get() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Generation increases on every change to the session.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Reload re-reads both entries from the persister.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := Session{BaseURL: s.defaults.BaseURL}
	baseURL, err := s.persister.Get(ctx, baseURLKey)
	switch {
	case err == nil:
		next.BaseURL = baseURL
	case !errors.Is(err, ErrNotFound):
		return fmt.Errorf("load base URL: %w", err)
	}

	stored, err := s.persister.Get(ctx, credentialKey)
	switch {
	case err == nil:
		cred, decErr := s.decode(stored)
		if decErr != nil {
			return fmt.Errorf("load credential: %w", decErr)
		}
		next.Credential, next.HasCredential = cred, true
	case errors.Is(err, ErrNotFound):
	default:
		return fmt.Errorf("load credential: %w", err)
	}

	s.swapLocked(next)
	return nil
}

// seed writes the default credential the first time a persister is used.
// An existing credential entry is never overwritten.
func (s *Store) seed(ctx context.Context) error {
	_, err := s.persister.Get(ctx, initializedKey)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, ErrNotFound):
		return fmt.Errorf("load session marker: %w", err)
	}

	if s.defaults.Credential != "" {
		_, err := s.persister.Get(ctx, credentialKey)
		switch {
		case errors.Is(err, ErrNotFound):
			encoded, encErr := s.encode(s.defaults.Credential)
			if encErr != nil {
				return fmt.Errorf("encode default credential: %w", encErr)
			}
			if err := s.persister.Set(ctx, credentialKey, encoded); err != nil {
				return fmt.Errorf("persist default credential: %w", err)
			}
			logging.Info().Msg("Seeded session with the configured default credential")
		case err != nil:
			return fmt.Errorf("load credential: %w", err)
		}
	}

	if err := s.persister.Set(ctx, initializedKey, "1"); err != nil {
		return fmt.Errorf("persist session marker: %w", err)
	}
	return nil
}

// SetCredential persists value exactly, including an explicit empty string.
func (s *Store) SetCredential(ctx context.Context, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	encoded, err := s.encode(value)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	if err := s.persister.Set(ctx, credentialKey, encoded); err != nil {
		return fmt.Errorf("persist credential: %w", err)
	}
	metrics.SessionMutations.WithLabelValues("credential", "set").Inc()

	next := s.current
	next.Credential, next.HasCredential = value, true
	s.swapLocked(next)
	return nil
}

// ClearCredential removes the credential entry.
func (s *Store) ClearCredential(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearCredentialLocked(ctx)
}

func (s *Store) clearCredentialLocked(ctx context.Context) error {
	if err := s.persister.Delete(ctx, credentialKey); err != nil {
		return fmt.Errorf("remove credential: %w", err)
	}
	metrics.SessionMutations.WithLabelValues("credential", "clear").Inc()

	next := s.current
	next.Credential, next.HasCredential = "", false
	s.swapLocked(next)
	return nil
}

// SetBaseURL persists value. An empty value removes the entry.
func (s *Store) SetBaseURL(ctx context.Context, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	value = strings.TrimSpace(value)
	action := "set"
	if value == "" {
		action = "clear"
		if err := s.persister.Delete(ctx, baseURLKey); err != nil {
			return fmt.Errorf("remove base URL: %w", err)
		}
	} else if err := s.persister.Set(ctx, baseURLKey, value); err != nil {
		return fmt.Errorf("persist base URL: %w", err)
	}
	metrics.SessionMutations.WithLabelValues("base_url", action).Inc()

	next := s.current
	next.BaseURL = value
	s.swapLocked(next)
	return nil
}

// Clear logs out: the credential entry is removed and the base URL kept so
// the next login targets the same backend.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearCredentialLocked(ctx)
}

// Close closes the persister.
func (s *Store) Close() error {
	return s.persister.Close()
}

// swapLocked must be called with mu held.
func (s *Store) swapLocked(next Session) {
	if next == s.current {
		return
	}
	s.current = next
	s.generation++
	logging.Debug().
		Str("base_url", next.BaseURL).
		Bool("has_credential", next.HasCredential).
		Uint64("generation", s.generation).
		Msg("Session changed")
}

func (s *Store) encode(value string) (string, error) {
	if s.encryptor == nil || value == "" {
		return value, nil
	}
	ct, err := s.encryptor.Encrypt(value)
	if err != nil {
		return "", err
	}
	return encryptedPrefix + ct, nil
}

func (s *Store) decode(stored string) (string, error) {
	ct, ok := strings.CutPrefix(stored, encryptedPrefix)
	if !ok {
		return stored, nil
	}
	if s.encryptor == nil {
		return "", ErrNoEncryptor
	}
	return s.encryptor.Decrypt(ct)
}
