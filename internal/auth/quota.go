package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/modelgate/modelgate-server/internal/db/sqlc"
)

// ErrPrincipalNotFound is returned when a quota operation references a
// principal that does not exist.
var ErrPrincipalNotFound = errors.New("principal not found")

// QuotaQuerier is the database surface the ledger needs.
type QuotaQuerier interface {
	ConsumePrincipalQuota(ctx context.Context, arg sqlc.ConsumePrincipalQuotaParams) (sqlc.Principal, error)
	GetPrincipal(ctx context.Context, id uuid.UUID) (sqlc.Principal, error)
}

// QuotaLedger enforces per-principal sliding-window request limits.
//
// Admission is decided by a single conditional UPDATE in the database, so
// concurrent requests against one principal can never over-admit: with L slots
// left and N competing requests, exactly min(N, L) succeed.
type QuotaLedger struct {
	querier QuotaQuerier
	now     func() time.Time
}

// NewQuotaLedger creates a ledger backed by the given querier.
func NewQuotaLedger(querier QuotaQuerier) *QuotaLedger {
	return &QuotaLedger{
		querier: querier,
		now:     time.Now,
	}
}

// Consume attempts to take one request slot for the principal. A rejected
// attempt is not an error; it comes back as a QuotaResult with Accepted false
// and window metadata from a follow-up diagnostic read.
func (l *QuotaLedger) Consume(ctx context.Context, principalID uuid.UUID) (*QuotaResult, error) {
	now := l.now()

	p, err := l.querier.ConsumePrincipalQuota(ctx, sqlc.ConsumePrincipalQuotaParams{
		ID:  principalID,
		Now: now,
	})
	if err == nil {
		return &QuotaResult{
			Accepted:     true,
			Remaining:    p.Remaining,
			Limit:        p.RateLimitMax,
			RequestCount: p.RequestCount,
			LastRequest:  p.LastRequest,
			WindowMs:     p.RateLimitTimeWindowMs,
		}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to consume quota for principal %s: %w", principalID, err)
	}

	// Zero rows means the guard rejected the request, or the principal does
	// not exist at all. The read below distinguishes the two and supplies
	// header metadata; it is deliberately outside the admission decision.
	p, err = l.querier.GetPrincipal(ctx, principalID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("quota check for %s: %w", principalID, ErrPrincipalNotFound)
		}
		return nil, fmt.Errorf("failed to read principal %s after quota rejection: %w", principalID, err)
	}

	return &QuotaResult{
		Accepted:     false,
		Remaining:    0,
		Limit:        p.RateLimitMax,
		RequestCount: p.RequestCount,
		LastRequest:  p.LastRequest,
		WindowMs:     p.RateLimitTimeWindowMs,
	}, nil
}
