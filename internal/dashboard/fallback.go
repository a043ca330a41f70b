// Credboard - Credential Issuance Metrics Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/credboard

package dashboard

import (
	"errors"
	"time"

	"github.com/tomtom215/credboard/internal/backend"
	"github.com/tomtom215/credboard/internal/models"
)

// isBackendFailure reports whether err is a classified transport failure.
// Validation, cancellation and decode errors never trigger the fallback.
func isBackendFailure(err error) bool {
	var be *backend.BackendError
	var ce *backend.ConnectivityError
	return errors.As(err, &be) || errors.As(err, &ce)
}

// demoEmissions returns the placeholder emissions matching filter's status.
// The institution filter is not applied: demo rows carry names, not ids.
func demoEmissions(filter models.EmissionFilter) []models.EmissionRecord {
	all := []models.EmissionRecord{
		{
			ID:              "demo-1",
			StudentName:     "Ana Martínez",
			InstitutionName: "Tech University",
			CredentialType:  "Grado en Ingeniería Informática",
			Status:          models.EmissionVerified,
			TokenID:         "0.0.123456",
			SerialNumber:    "1283",
			IssuedAt:        "2024-09-12",
		},
		{
			ID:              "demo-2",
			StudentName:     "Carlos Gómez",
			InstitutionName: "Escuela de Negocios Global",
			CredentialType:  "MBA Data & AI",
			Status:          models.EmissionIssued,
			TokenID:         "0.0.654321",
			SerialNumber:    "342",
			IssuedAt:        "2024-10-03",
		},
		{
			ID:              "demo-3",
			StudentName:     "Laura Pérez",
			InstitutionName: "Tech University",
			CredentialType:  "Bootcamp Web3",
			Status:          models.EmissionRevoked,
			TokenID:         "0.0.123456",
			SerialNumber:    "291",
			IssuedAt:        "2023-07-21",
		},
	}

	out := make([]models.EmissionRecord, 0, len(all))
	for _, rec := range all {
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		rec.Demo = true
		out = append(out, rec)
	}
	return out
}

// demoVerification returns a placeholder successful verification.
func demoVerification() *models.VerificationResult {
	return &models.VerificationResult{
		Valid:  true,
		Status: "active",
		Evidence: models.VerificationEvidence{
			TokenID:      "0.0.459123",
			SerialNumber: "42",
			Timestamp:    time.Now().UTC().Format(time.RFC3339),
			Issuer:       "Universidad Tecnológica",
			Recipient:    "Juan Pérez",
			IPFSCID:      "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi",
			TxHash:       "0x123abc456def789",
		},
		Checks: []models.VerificationCheck{
			{Name: "Digital signature", Passed: true},
			{Name: "Blockchain integrity", Passed: true},
			{Name: "Revocation status", Passed: true},
			{Name: "Authorized issuer", Passed: true},
		},
		Demo: true,
	}
}
