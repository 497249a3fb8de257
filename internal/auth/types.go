// Package auth provides credential validation and per-principal request
// quota enforcement for the gateway API.
package auth

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// ErrorCode identifies why a validation attempt was rejected.
type ErrorCode string

// Validation error codes. These are wire-level identifiers and must stay stable.
const (
	ErrorCodeMissingAuth   ErrorCode = "MISSING_AUTH"
	ErrorCodeInvalidFormat ErrorCode = "INVALID_FORMAT"
	ErrorCodeEmptyKey      ErrorCode = "EMPTY_KEY"
	ErrorCodeInvalidKey    ErrorCode = "INVALID_KEY"
	ErrorCodeExpiredKey    ErrorCode = "EXPIRED_KEY"
	ErrorCodeRateLimited   ErrorCode = "RATE_LIMITED"
	ErrorCodeConfigError   ErrorCode = "CONFIG_ERROR"
	ErrorCodeServerError   ErrorCode = "SERVER_ERROR"
)

// QuotaResult describes the outcome of one quota consumption attempt.
// On rejection the metadata fields come from a non-atomic diagnostic read and
// are informational only; they must never be used to re-decide admission.
type QuotaResult struct {
	Accepted     bool
	Remaining    int64
	Limit        int64
	RequestCount int64
	LastRequest  *time.Time
	WindowMs     int64
}

// ResetTime returns the instant the current window ends, or the zero time if
// the principal has never made a request.
func (r *QuotaResult) ResetTime() time.Time {
	if r.LastRequest == nil {
		return time.Time{}
	}
	return r.LastRequest.Add(time.Duration(r.WindowMs) * time.Millisecond)
}

// RetryAfterSeconds returns the number of whole seconds until the window
// resets, rounded up, and never negative.
func (r *QuotaResult) RetryAfterSeconds(now time.Time) int64 {
	if r.LastRequest == nil {
		return 0
	}
	until := r.ResetTime().Sub(now)
	if until <= 0 {
		return 0
	}
	return int64(math.Ceil(until.Seconds()))
}

// ValidationResult is the typed outcome of validating one credential.
// Credential and quota rejections are carried here rather than as errors so
// callers can build protocol-specific responses.
type ValidationResult struct {
	Valid       bool
	ErrorCode   ErrorCode
	PrincipalID uuid.UUID
	KeyID       uuid.UUID
	Quota       *QuotaResult
}
