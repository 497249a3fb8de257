package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dayMs = int64(24 * time.Hour / time.Millisecond)

func TestQuotaLedger_Consume_FirstRequest(t *testing.T) {
	t.Parallel()

	db := newFakeDB()
	principalID := db.addPrincipal(200, dayMs)

	ledger := NewQuotaLedger(db)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return now }

	result, err := ledger.Consume(context.Background(), principalID)
	require.NoError(t, err)

	assert.True(t, result.Accepted)
	assert.Equal(t, int64(199), result.Remaining)
	assert.Equal(t, int64(200), result.Limit)
	assert.Equal(t, int64(1), result.RequestCount)
	require.NotNil(t, result.LastRequest)
	assert.Equal(t, now, *result.LastRequest)
}

func TestQuotaLedger_Consume_ExhaustionAndRejection(t *testing.T) {
	t.Parallel()

	db := newFakeDB()
	principalID := db.addPrincipal(3, dayMs)

	ledger := NewQuotaLedger(db)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return now }

	ctx := context.Background()
	for i := int64(1); i <= 3; i++ {
		result, err := ledger.Consume(ctx, principalID)
		require.NoError(t, err)
		assert.True(t, result.Accepted)
		assert.Equal(t, 3-i, result.Remaining)
	}

	// Fourth request inside the window is rejected, not an error.
	result, err := ledger.Consume(ctx, principalID)
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Equal(t, int64(0), result.Remaining)
	assert.Equal(t, int64(3), result.Limit)
	require.NotNil(t, result.LastRequest)
	assert.Equal(t, now, *result.LastRequest)
}

func TestQuotaLedger_Consume_WindowExpiryResets(t *testing.T) {
	t.Parallel()

	db := newFakeDB()
	principalID := db.addPrincipal(2, int64(time.Minute/time.Millisecond))

	ledger := NewQuotaLedger(db)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return now }

	ctx := context.Background()
	for range 2 {
		result, err := ledger.Consume(ctx, principalID)
		require.NoError(t, err)
		require.True(t, result.Accepted)
	}

	result, err := ledger.Consume(ctx, principalID)
	require.NoError(t, err)
	require.False(t, result.Accepted)

	// One window later the count restarts from one.
	now = now.Add(time.Minute)
	result, err = ledger.Consume(ctx, principalID)
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, int64(1), result.RequestCount)
	assert.Equal(t, int64(1), result.Remaining)
}

func TestQuotaLedger_Consume_Concurrent(t *testing.T) {
	t.Parallel()

	const (
		limit      = 200
		goroutines = 500
	)

	db := newFakeDB()
	principalID := db.addPrincipal(limit, dayMs)
	ledger := NewQuotaLedger(db)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected int
	)
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := ledger.Consume(context.Background(), principalID)
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if result.Accepted {
				accepted++
			} else {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, accepted, "exactly the limit must be admitted, never more")
	assert.Equal(t, goroutines-limit, rejected)
}

func TestQuotaLedger_Consume_PrincipalNotFound(t *testing.T) {
	t.Parallel()

	ledger := NewQuotaLedger(newFakeDB())

	_, err := ledger.Consume(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrPrincipalNotFound)
}

func TestQuotaLedger_Consume_InfrastructureError(t *testing.T) {
	t.Parallel()

	db := newFakeDB()
	principalID := db.addPrincipal(10, dayMs)
	db.consumeErr = errors.New("connection reset")

	ledger := NewQuotaLedger(db)

	_, err := ledger.Consume(context.Background(), principalID)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrPrincipalNotFound)
}

func TestQuotaResult_RetryAfterSeconds(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		lastRequest *time.Time
		windowMs    int64
		wantSeconds int64
	}{
		{
			name:        "no request yet",
			lastRequest: nil,
			windowMs:    dayMs,
			wantSeconds: 0,
		},
		{
			name:        "window already elapsed",
			lastRequest: timePtr(now.Add(-25 * time.Hour)),
			windowMs:    dayMs,
			wantSeconds: 0,
		},
		{
			name:        "five minutes into a day window",
			lastRequest: timePtr(now.Add(-5 * time.Minute)),
			windowMs:    dayMs,
			wantSeconds: 86100,
		},
		{
			name:        "sub-second remainder rounds up",
			lastRequest: timePtr(now.Add(-500 * time.Millisecond)),
			windowMs:    1000,
			wantSeconds: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := &QuotaResult{
				LastRequest: tt.lastRequest,
				WindowMs:    tt.windowMs,
			}
			assert.Equal(t, tt.wantSeconds, r.RetryAfterSeconds(now))
		})
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
