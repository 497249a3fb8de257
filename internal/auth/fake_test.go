package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/modelgate/modelgate-server/internal/db/sqlc"
)

// fakeDB is an in-memory stand-in for the query layer. Quota consumption
// reproduces the conditional UPDATE semantics under a mutex, so concurrency
// tests exercise the same admission behavior the database enforces.
type fakeDB struct {
	mu         sync.Mutex
	keys       map[string]sqlc.ApiKey
	principals map[uuid.UUID]sqlc.Principal

	consumeErr error
	getErr     error
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		keys:       make(map[string]sqlc.ApiKey),
		principals: make(map[uuid.UUID]sqlc.Principal),
	}
}

func (f *fakeDB) addPrincipal(limit, windowMs int64) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.principals[id] = sqlc.Principal{
		ID:                    id,
		Name:                  "test",
		Remaining:             limit,
		RateLimitMax:          limit,
		RateLimitTimeWindowMs: windowMs,
	}
	return id
}

func (f *fakeDB) addKey(rawKey string, principalID uuid.UUID, enabled bool, expiresAt *time.Time) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.keys[HashKey(rawKey)] = sqlc.ApiKey{
		ID:          id,
		KeyHash:     HashKey(rawKey),
		PrincipalID: principalID,
		Enabled:     enabled,
		ExpiresAt:   expiresAt,
	}
	return id
}

func (f *fakeDB) GetAPIKeyByHash(_ context.Context, keyHash string) (sqlc.ApiKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, ok := f.keys[keyHash]
	if !ok || !key.Enabled {
		return sqlc.ApiKey{}, pgx.ErrNoRows
	}
	return key, nil
}

func (f *fakeDB) ConsumePrincipalQuota(_ context.Context, arg sqlc.ConsumePrincipalQuotaParams) (sqlc.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.consumeErr != nil {
		return sqlc.Principal{}, f.consumeErr
	}

	p, ok := f.principals[arg.ID]
	if !ok {
		return sqlc.Principal{}, pgx.ErrNoRows
	}

	window := time.Duration(p.RateLimitTimeWindowMs) * time.Millisecond
	windowElapsed := p.LastRequest == nil || arg.Now.Sub(*p.LastRequest) >= window

	switch {
	case windowElapsed:
		p.RequestCount = 1
	case p.RequestCount < p.RateLimitMax:
		p.RequestCount++
	default:
		return sqlc.Principal{}, pgx.ErrNoRows
	}

	p.Remaining = p.RateLimitMax - p.RequestCount
	if p.Remaining < 0 {
		p.Remaining = 0
	}
	now := arg.Now
	p.LastRequest = &now
	p.UpdatedAt = now
	f.principals[arg.ID] = p
	return p, nil
}

func (f *fakeDB) GetPrincipal(_ context.Context, id uuid.UUID) (sqlc.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return sqlc.Principal{}, f.getErr
	}
	p, ok := f.principals[id]
	if !ok {
		return sqlc.Principal{}, pgx.ErrNoRows
	}
	return p, nil
}
