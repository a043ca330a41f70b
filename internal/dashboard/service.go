// Credboard - Credential Issuance Metrics Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/credboard

// Package dashboard is the resource-oriented facade the HTTP API depends on.
//
// Each operation validates its input, describes the logical backend call and
// decodes the typed result. The calling convention of the backend (REST or
// webhook) is invisible here; it is handled by the transport adapter behind
// the Sender. Operations never retry.
package dashboard

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/tomtom215/credboard/internal/backend"
	"github.com/tomtom215/credboard/internal/logging"
	"github.com/tomtom215/credboard/internal/metrics"
	"github.com/tomtom215/credboard/internal/models"
	"github.com/tomtom215/credboard/internal/validation"
)

// Backend routes.
const (
	routeOverview         = "/dashboard/overview"
	routeInstitutions     = "/dashboard/institutions"
	routeAPIKeys          = "/dashboard/api-keys"
	routeLogs             = "/dashboard/logs"
	routeEmissions        = "/dashboard/emissions"
	routeWallet           = "/dashboard/wallet"
	routeVerifyToken      = "/verify/token"
	routeVerifyCredential = "/verify/credential/"
)

// Sender performs one logical backend call. *backend.Adapter implements it.
type Sender interface {
	Send(ctx context.Context, d backend.Descriptor) (*backend.Response, error)
}

// Service is the dashboard facade bound to one backend pair. It has no state
// of its own beyond the Sender and is safe for concurrent use.
type Service struct {
	sender       Sender
	demoFallback bool
}

// Option configures a Service.
type Option func(*Service)

// WithDemoFallback makes GetEmissions and VerifyByCredentialID return
// placeholder data, marked Demo, when the backend fails. The failure has
// already been notified by the adapter at that point.
func WithDemoFallback(enabled bool) Option {
	return func(s *Service) { s.demoFallback = enabled }
}

// New creates a facade over sender.
func New(sender Sender, opts ...Option) *Service {
	s := &Service{sender: sender}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOverview returns the aggregate metrics for the home page.
func (s *Service) GetOverview(ctx context.Context) (*models.OverviewMetrics, error) {
	var out models.OverviewMetrics
	if err := s.call(ctx, backend.Get(routeOverview, nil), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetInstitutions lists the issuing institutions.
func (s *Service) GetInstitutions(ctx context.Context) ([]models.Institution, error) {
	return callList[models.Institution](ctx, s, backend.Get(routeInstitutions, nil))
}

// GetAPIKeys lists API keys across institutions.
func (s *Service) GetAPIKeys(ctx context.Context) ([]models.APIKeyRecord, error) {
	return callList[models.APIKeyRecord](ctx, s, backend.Get(routeAPIKeys, nil))
}

type institutionRef struct {
	InstitutionID string `json:"institutionId" validate:"notblank,max=128"`
}

// CreateAPIKeyForInstitution creates a key. The role defaults to
// models.DefaultAPIKeyRole. The plaintext secret is only present in the
// returned record.
func (s *Service) CreateAPIKeyForInstitution(ctx context.Context, institutionID string, req models.CreateAPIKeyRequest) (*models.APIKeyRecord, error) {
	const op = "createApiKeyForInstitution"

	ref := institutionRef{InstitutionID: institutionID}
	if err := validate(op, &ref); err != nil {
		return nil, err
	}
	req.Label = strings.TrimSpace(req.Label)
	req.Role = strings.TrimSpace(req.Role)
	if err := validate(op, &req); err != nil {
		return nil, err
	}
	if req.Role == "" {
		req.Role = models.DefaultAPIKeyRole
	}

	path := routeInstitutions + "/" + url.PathEscape(strings.TrimSpace(institutionID)) + "/api-keys"
	body := map[string]any{"label": req.Label, "role": req.Role}

	var out models.APIKeyRecord
	if err := s.call(ctx, backend.Post(path, body), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type keyRef struct {
	KeyID string `json:"keyId" validate:"notblank,max=128"`
}

// RevokeAPIKey revokes a key and forwards the backend's outcome unchanged,
// including "not found" for an already revoked key.
func (s *Service) RevokeAPIKey(ctx context.Context, keyID string) error {
	ref := keyRef{KeyID: keyID}
	if err := validate("revokeApiKey", &ref); err != nil {
		return err
	}
	path := routeAPIKeys + "/" + url.PathEscape(strings.TrimSpace(keyID))
	_, err := s.sender.Send(ctx, backend.Delete(path))
	return err
}

// GetLogs lists audited API calls.
func (s *Service) GetLogs(ctx context.Context) ([]models.LogEntry, error) {
	return callList[models.LogEntry](ctx, s, backend.Get(routeLogs, nil))
}

// GetEmissions lists issued credentials. Empty filter fields are not sent.
func (s *Service) GetEmissions(ctx context.Context, filter models.EmissionFilter) ([]models.EmissionRecord, error) {
	const op = "getEmissions"

	filter.InstitutionID = strings.TrimSpace(filter.InstitutionID)
	filter.Status = strings.TrimSpace(filter.Status)
	if err := validate(op, &filter); err != nil {
		return nil, err
	}

	query := url.Values{}
	if filter.InstitutionID != "" {
		query.Set("institutionId", filter.InstitutionID)
	}
	if filter.Status != "" {
		query.Set("status", filter.Status)
	}

	records, err := callList[models.EmissionRecord](ctx, s, backend.Get(routeEmissions, query))
	if err != nil && s.demoFallback && isBackendFailure(err) {
		logging.Ctx(ctx).Warn().Err(err).Str("operation", op).Msg("Serving demo emissions after backend failure")
		metrics.DashboardDemoFallbacks.WithLabelValues(op).Inc()
		return demoEmissions(filter), nil
	}
	return records, err
}

type credentialRef struct {
	CredentialID string `json:"credentialId" validate:"notblank,max=256"`
}

// VerifyByCredentialID verifies one credential by its identifier.
func (s *Service) VerifyByCredentialID(ctx context.Context, credentialID string) (*models.VerificationResult, error) {
	const op = "verifyByCredentialId"

	ref := credentialRef{CredentialID: credentialID}
	if err := validate(op, &ref); err != nil {
		return nil, err
	}

	path := routeVerifyCredential + url.PathEscape(strings.TrimSpace(credentialID))
	var out models.VerificationResult
	err := s.call(ctx, backend.Get(path, nil), &out)
	if err != nil && s.demoFallback && isBackendFailure(err) {
		logging.Ctx(ctx).Warn().Err(err).Str("operation", op).Msg("Serving demo verification after backend failure")
		metrics.DashboardDemoFallbacks.WithLabelValues(op).Inc()
		return demoVerification(), nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyByTokenAndSerial verifies one credential by token and serial number.
func (s *Service) VerifyByTokenAndSerial(ctx context.Context, ref models.TokenSerial) (*models.VerificationResult, error) {
	if err := validate("verifyByTokenAndSerial", &ref); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("tokenId", strings.TrimSpace(ref.TokenID))
	query.Set("serialNumber", strings.TrimSpace(ref.SerialNumber))

	var out models.VerificationResult
	if err := s.call(ctx, backend.Get(routeVerifyToken, query), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetWallet returns the issuer account balance and recent movements.
func (s *Service) GetWallet(ctx context.Context) (*models.Wallet, error) {
	out := models.Wallet{Transactions: []models.WalletTransaction{}}
	if err := s.call(ctx, backend.Get(routeWallet, nil), &out); err != nil {
		return nil, err
	}
	if out.Transactions == nil {
		out.Transactions = []models.WalletTransaction{}
	}
	return &out, nil
}

// call sends d and decodes a non-null payload into out.
func (s *Service) call(ctx context.Context, d backend.Descriptor, out any) error {
	resp, err := s.sender.Send(ctx, d)
	if err != nil {
		return err
	}
	if resp.IsNull() {
		return nil
	}
	if err := resp.Decode(out); err != nil {
		return fmt.Errorf("%s %s: %w", d.Method, d.Path, err)
	}
	return nil
}

// callList is call for list resources; a null payload is an empty list.
func callList[T any](ctx context.Context, s *Service, d backend.Descriptor) ([]T, error) {
	var out []T
	if err := s.call(ctx, d, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func validate(op string, v any) error {
	verr := validation.ValidateStruct(v)
	if verr == nil {
		return nil
	}
	metrics.DashboardValidationErrors.WithLabelValues(op).Inc()
	return &ValidationError{Operation: op, Err: verr}
}
