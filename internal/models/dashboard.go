// Credboard - Credential Issuance Metrics Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/credboard

// Package models defines the resources exchanged with the credential backend
// and the BFF response envelope. JSON names follow the backend's camelCase.
package models

import (
	"bytes"
	"strconv"

	"github.com/goccy/go-json"
)

// OverviewMetrics is the aggregate view on the dashboard home page.
type OverviewMetrics struct {
	TotalEmissions     int64                  `json:"totalEmissions"`
	TotalVerifications int64                  `json:"totalVerifications"`
	RevokedCount       int64                  `json:"revokedCount"`
	ActiveInstitutions int64                  `json:"activeInstitutions"`
	HbarBalance        float64                `json:"hbarBalance"`
	UsageSeries        []UsagePoint           `json:"usageSeries"`
	ByInstitution      []InstitutionBreakdown `json:"byInstitution"`
}

// UsagePoint is one sample of the daily emissions/verifications series.
type UsagePoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// InstitutionBreakdown is the per-institution emission count.
type InstitutionBreakdown struct {
	Name      string `json:"name"`
	Plan      string `json:"plan"`
	Emissions int64  `json:"emissions"`
}

// Institution is an issuing organization.
type Institution struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Plan string `json:"plan,omitempty"`
}

// DefaultAPIKeyRole is used when a key is created without a role.
const DefaultAPIKeyRole = "institution_admin"

// APIKeyRecord describes an institution API key. The secret itself is only
// present in the create response (APIKey or Key depending on the backend).
type APIKeyRecord struct {
	ID            string `json:"id"`
	Prefix        string `json:"prefix,omitempty"`
	LastDigits    string `json:"lastDigits,omitempty"`
	InstitutionID string `json:"institutionId,omitempty"`
	Role          string `json:"role,omitempty"`
	Label         string `json:"label,omitempty"`
	ExpiresAt     string `json:"expiresAt,omitempty"`
	APIKey        string `json:"apiKey,omitempty"`
	Key           string `json:"key,omitempty"`
}

// Secret returns the plaintext key from a create response, if any.
func (r *APIKeyRecord) Secret() string {
	if r.APIKey != "" {
		return r.APIKey
	}
	return r.Key
}

// CreateAPIKeyRequest is the body of a key creation.
type CreateAPIKeyRequest struct {
	Label string `json:"label" validate:"max=120"`
	Role  string `json:"role" validate:"max=64"`
}

// LogEntry is one audited API call.
type LogEntry struct {
	ID              string `json:"id,omitempty"`
	InstitutionName string `json:"institutionName"`
	Endpoint        string `json:"endpoint"`
	Status          string `json:"status"` // success or failed
	Timestamp       string `json:"timestamp"`
}

// Emission statuses.
const (
	EmissionIssued   = "emitida"
	EmissionVerified = "verificada"
	EmissionRevoked  = "revocada"
)

// EmissionRecord is an issued credential.
type EmissionRecord struct {
	ID              string     `json:"id"`
	StudentName     string     `json:"studentName"`
	InstitutionName string     `json:"institutionName"`
	CredentialType  string     `json:"credentialType"`
	Status          string     `json:"status"`
	TokenID         string     `json:"tokenId"`
	SerialNumber    FlexString `json:"serialNumber"`
	IssuedAt        string     `json:"issuedAt"`
	// Demo marks placeholder data served after a backend failure.
	Demo bool `json:"demo,omitempty"`
}

// EmissionFilter narrows GetEmissions. Empty fields are not sent.
type EmissionFilter struct {
	InstitutionID string `json:"institutionId,omitempty"`
	Status        string `json:"status,omitempty" validate:"omitempty,oneof=emitida verificada revocada"`
}

// TokenSerial identifies a credential by its token and serial number.
type TokenSerial struct {
	TokenID      string `json:"tokenId" validate:"notblank"`
	SerialNumber string `json:"serialNumber" validate:"notblank"`
}

// VerificationResult is the forensic verification of one credential.
type VerificationResult struct {
	Valid    bool                 `json:"valid"`
	Status   string               `json:"status"`
	Evidence VerificationEvidence `json:"evidence"`
	Checks   []VerificationCheck  `json:"checks"`
	// Demo marks placeholder data served after a backend failure.
	Demo bool `json:"demo,omitempty"`
}

// VerificationEvidence is the on-chain evidence backing a verification.
type VerificationEvidence struct {
	TokenID      string     `json:"tokenId"`
	SerialNumber FlexString `json:"serialNumber"`
	Timestamp    string     `json:"timestamp"`
	Issuer       string     `json:"issuer"`
	Recipient    string     `json:"recipient"`
	IPFSCID      string     `json:"ipfsCid"`
	TxHash       string     `json:"txHash"`
}

// VerificationCheck is one named verification step.
type VerificationCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
}

// Wallet is the issuer account balance and recent movements.
type Wallet struct {
	Balance      float64             `json:"balance"`
	Transactions []WalletTransaction `json:"transactions"`
}

// WalletTransaction is one credit or debit on the issuer account.
type WalletTransaction struct {
	ID     string  `json:"id"`
	Type   string  `json:"type"` // credit or debit
	Label  string  `json:"label"`
	TxID   string  `json:"txId"`
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
}

// FlexString decodes from a JSON string or number. Backends disagree on
// whether serial numbers are numeric.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// Int returns the numeric value, or 0 when the value is not an integer.
func (f FlexString) Int() int64 {
	n, err := strconv.ParseInt(string(f), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
