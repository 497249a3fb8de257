package auth

import (
	"context"
	"errors"
	"log/slog"
)

// Validator composes key resolution and quota consumption into a single
// validation pipeline for incoming requests.
type Validator struct {
	keys   *KeyStore
	ledger *QuotaLedger
}

// NewValidator creates a Validator over the given key store and ledger.
func NewValidator(keys *KeyStore, ledger *QuotaLedger) *Validator {
	return &Validator{
		keys:   keys,
		ledger: ledger,
	}
}

// Validate resolves the raw key and, only if the credential is good, consumes
// one quota slot. Credential and quota rejections come back in the result;
// the error return is reserved for infrastructure failures.
func (v *Validator) Validate(ctx context.Context, rawKey string) (*ValidationResult, error) {
	result, err := v.ValidateWithoutQuota(ctx, rawKey)
	if err != nil || !result.Valid {
		return result, err
	}

	quota, err := v.ledger.Consume(ctx, result.PrincipalID)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			// A key row pointing at a missing principal is a provisioning
			// problem, not a client one.
			slog.ErrorContext(ctx, "api key references missing principal",
				"key_id", result.KeyID, "principal_id", result.PrincipalID)
			return &ValidationResult{ErrorCode: ErrorCodeConfigError}, nil
		}
		return nil, err
	}

	result.Quota = quota
	if !quota.Accepted {
		result.Valid = false
		result.ErrorCode = ErrorCodeRateLimited
	}
	return result, nil
}

// ValidateWithoutQuota resolves the raw key without touching the ledger.
// Used for endpoints that must authenticate but not count against the window.
func (v *Validator) ValidateWithoutQuota(ctx context.Context, rawKey string) (*ValidationResult, error) {
	if rawKey == "" {
		return &ValidationResult{ErrorCode: ErrorCodeEmptyKey}, nil
	}

	record, err := v.keys.Lookup(ctx, rawKey)
	switch {
	case errors.Is(err, ErrKeyNotFound):
		return &ValidationResult{ErrorCode: ErrorCodeInvalidKey}, nil
	case errors.Is(err, ErrKeyExpired):
		return &ValidationResult{
			ErrorCode:   ErrorCodeExpiredKey,
			PrincipalID: record.PrincipalID,
			KeyID:       record.KeyID,
		}, nil
	case err != nil:
		return nil, err
	}

	return &ValidationResult{
		Valid:       true,
		PrincipalID: record.PrincipalID,
		KeyID:       record.KeyID,
	}, nil
}
