package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/modelgate/modelgate-server/internal/api/common"
	"github.com/modelgate/modelgate-server/internal/telemetry"
)

type contextKey int

const identityContextKey contextKey = iota

// Identity is the authenticated caller attached to the request context.
type Identity struct {
	PrincipalID uuid.UUID
	KeyID       uuid.UUID
}

// IdentityFromContext returns the authenticated identity, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(Identity)
	return id, ok
}

// Middleware authenticates requests with bearer API keys and, unless
// configured otherwise, charges each request against the caller's quota.
type Middleware struct {
	validator    *Validator
	metrics      *telemetry.ValidationMetrics
	consumeQuota bool
	now          func() time.Time
}

// MiddlewareOption configures a Middleware.
type MiddlewareOption func(*Middleware)

// WithoutQuota authenticates without consuming a quota slot. Used for
// operational endpoints that must not count against the caller's window.
func WithoutQuota() MiddlewareOption {
	return func(m *Middleware) {
		m.consumeQuota = false
	}
}

// WithValidationMetrics records validation outcomes on the given metrics.
func WithValidationMetrics(metrics *telemetry.ValidationMetrics) MiddlewareOption {
	return func(m *Middleware) {
		m.metrics = metrics
	}
}

// NewMiddleware creates an authenticating middleware over the validator.
func NewMiddleware(validator *Validator, opts ...MiddlewareOption) *Middleware {
	m := &Middleware{
		validator:    validator,
		consumeQuota: true,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handler wraps next with authentication and quota enforcement.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		rawKey, code := extractBearerKey(r)
		if code != "" {
			m.reject(ctx, w, &ValidationResult{ErrorCode: code})
			return
		}

		var result *ValidationResult
		var err error
		if m.consumeQuota {
			result, err = m.validator.Validate(ctx, rawKey)
		} else {
			result, err = m.validator.ValidateWithoutQuota(ctx, rawKey)
		}
		if err != nil {
			slog.ErrorContext(ctx, "credential validation failed", "error", err)
			m.reject(ctx, w, &ValidationResult{ErrorCode: ErrorCodeServerError})
			return
		}

		writeQuotaHeaders(w, result.Quota)
		if !result.Valid {
			m.reject(ctx, w, result)
			return
		}

		m.metrics.RecordValidation(ctx, "ok")
		ctx = context.WithValue(ctx, identityContextKey, Identity{
			PrincipalID: result.PrincipalID,
			KeyID:       result.KeyID,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) reject(ctx context.Context, w http.ResponseWriter, result *ValidationResult) {
	m.metrics.RecordValidation(ctx, string(result.ErrorCode))

	status := statusForCode(result.ErrorCode)
	if status == http.StatusTooManyRequests && result.Quota != nil {
		w.Header().Set("Retry-After",
			strconv.FormatInt(result.Quota.RetryAfterSeconds(m.now()), 10))
	}
	common.WriteErrorResponse(w, status, messageForCode(result.ErrorCode), string(result.ErrorCode))
}

// extractBearerKey pulls the raw key out of the Authorization header,
// returning an error code if the header is absent or malformed.
func extractBearerKey(r *http.Request) (string, ErrorCode) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrorCodeMissingAuth
	}
	scheme, key, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrorCodeInvalidFormat
	}
	if key == "" {
		return "", ErrorCodeEmptyKey
	}
	return key, ""
}

// writeQuotaHeaders sets the rate limit headers whenever a quota decision was
// made, on acceptances and rejections alike.
func writeQuotaHeaders(w http.ResponseWriter, quota *QuotaResult) {
	if quota == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(quota.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(quota.Remaining, 10))
	if reset := quota.ResetTime(); !reset.IsZero() {
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
	}
}

func statusForCode(code ErrorCode) int {
	switch code {
	case ErrorCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrorCodeConfigError, ErrorCodeServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusUnauthorized
	}
}

func messageForCode(code ErrorCode) string {
	switch code {
	case ErrorCodeMissingAuth:
		return "authorization header is required"
	case ErrorCodeInvalidFormat:
		return "authorization header must use the Bearer scheme"
	case ErrorCodeEmptyKey:
		return "api key is empty"
	case ErrorCodeInvalidKey:
		return "api key is not valid"
	case ErrorCodeExpiredKey:
		return "api key has expired"
	case ErrorCodeRateLimited:
		return "rate limit exceeded"
	case ErrorCodeConfigError:
		return "server configuration error"
	default:
		return "internal server error"
	}
}
