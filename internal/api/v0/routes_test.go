package v0_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v0 "github.com/modelgate/modelgate-server/internal/api/v0"
	"github.com/modelgate/modelgate-server/internal/catalog"
	"github.com/modelgate/modelgate-server/internal/db/sqlc"
	"github.com/modelgate/modelgate-server/internal/sources"
	syncpkg "github.com/modelgate/modelgate-server/internal/sync"
)

// fakeBackend implements every database surface the handlers and the sync
// pipeline need, backed by in-memory maps.
type fakeBackend struct {
	mu      sync.Mutex
	entries map[string]sqlc.CatalogEntry
	meta    map[string]time.Time
	locks   map[string]sqlc.SyncLock
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		entries: make(map[string]sqlc.CatalogEntry),
		meta:    make(map[string]time.Time),
		locks:   make(map[string]sqlc.SyncLock),
	}
}

func (f *fakeBackend) seed(e sqlc.CatalogEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[e.ID] = e
}

func (f *fakeBackend) ListActiveCatalogEntries(context.Context) ([]sqlc.CatalogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sqlc.CatalogEntry
	for _, e := range f.entries {
		if e.IsActive {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeBackend) GetCatalogEntry(_ context.Context, id string) (sqlc.CatalogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok || !e.IsActive {
		return sqlc.CatalogEntry{}, pgx.ErrNoRows
	}
	return e, nil
}

func (f *fakeBackend) CountActiveCatalogEntries(ctx context.Context) (int64, error) {
	entries, _ := f.ListActiveCatalogEntries(ctx)
	return int64(len(entries)), nil
}

func (f *fakeBackend) UpsertCatalogEntry(_ context.Context, arg sqlc.UpsertCatalogEntryParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, exists := f.entries[arg.ID]
	f.entries[arg.ID] = sqlc.CatalogEntry{
		ID:          arg.ID,
		DisplayName: arg.DisplayName,
		Provider:    arg.Provider,
		IsActive:    true,
		LastSeenAt:  arg.LastSeenAt,
	}
	return !exists, nil
}

func (f *fakeBackend) DeactivateCatalogEntriesNotSeenSince(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, e := range f.entries {
		if e.IsActive && e.LastSeenAt.Before(cutoff) {
			e.IsActive = false
			f.entries[id] = e
			n++
		}
	}
	return n, nil
}

func (f *fakeBackend) TouchCatalogMeta(_ context.Context, arg sqlc.TouchCatalogMetaParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meta[arg.Key] = arg.Now
	return nil
}

func (f *fakeBackend) GetCatalogMeta(_ context.Context, key string) (sqlc.CatalogMetum, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	at, ok := f.meta[key]
	if !ok {
		return sqlc.CatalogMetum{}, pgx.ErrNoRows
	}
	return sqlc.CatalogMetum{Key: key, UpdatedAt: at}, nil
}

func (f *fakeBackend) AcquireSyncLock(_ context.Context, arg sqlc.AcquireSyncLockParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.locks[arg.Key]
	if ok && existing.Value {
		if arg.Now.Sub(existing.UpdatedAt) < time.Duration(arg.LockDurationMs)*time.Millisecond {
			return "", pgx.ErrNoRows
		}
	}
	f.locks[arg.Key] = sqlc.SyncLock{Key: arg.Key, Value: true, UpdatedAt: arg.Now}
	return arg.Key, nil
}

func (f *fakeBackend) ReleaseSyncLock(_ context.Context, arg sqlc.ReleaseSyncLockParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locks[arg.Key] = sqlc.SyncLock{Key: arg.Key, Value: false, UpdatedAt: arg.Now}
	return nil
}

type stubLister struct {
	models []sources.Model
}

func (s *stubLister) ListModels(context.Context) ([]sources.Model, error) {
	return s.models, nil
}

func passthrough(next http.Handler) http.Handler { return next }

func newTestRouter(backend *fakeBackend, lister sources.Lister) http.Handler {
	syncer := catalog.NewSyncer(lister, backend, 0)
	lock := syncpkg.NewLock(backend, 10*time.Minute)
	coordinator := syncpkg.NewCoordinator(syncer, lock, backend, 15*time.Minute, time.Hour)

	routes := v0.NewRoutes(backend, coordinator)
	return routes.Router(passthrough, passthrough)
}

func TestListModels(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	backend.seed(sqlc.CatalogEntry{
		ID:                       "gpt-large",
		DisplayName:              "GPT Large",
		Provider:                 "openai",
		ContextWindow:            128000,
		MaxOutputTokens:          16384,
		PromptCostPerMillion:     2.5,
		CompletionCostPerMillion: 10,
		IsActive:                 true,
	})
	backend.seed(sqlc.CatalogEntry{ID: "retired", IsActive: false})

	router := newTestRouter(backend, &stubLister{})

	req := httptest.NewRequest(http.MethodGet, "/models", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp v0.ModelListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "gpt-large", resp.Data[0].ID)
	assert.Equal(t, 2.5, resp.Data[0].Pricing.PromptPerMillion)
}

func TestGetModel(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	backend.seed(sqlc.CatalogEntry{ID: "gpt-large", DisplayName: "GPT Large", IsActive: true})
	backend.seed(sqlc.CatalogEntry{ID: "retired", IsActive: false})

	router := newTestRouter(backend, &stubLister{})

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{
			name:       "active model found",
			path:       "/models/gpt-large",
			wantStatus: http.StatusOK,
		},
		{
			name:       "unknown model",
			path:       "/models/nope",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "retired model is not served",
			path:       "/models/retired",
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestTriggerSync(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	lister := &stubLister{models: []sources.Model{
		{ID: "m1", ContextWindow: 8192},
		{ID: "m2", ContextWindow: 8192},
	}}
	router := newTestRouter(backend, lister)

	// Never synced, so even an unforced trigger runs.
	req := httptest.NewRequest(http.MethodPost, "/sync", strings.NewReader(`{"force": false}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp v0.SyncResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Skipped)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Result)
	assert.Equal(t, 2, resp.Result.Inserted)
	assert.Empty(t, resp.Result.Error)
	assert.NotNil(t, resp.LastUpdated, "a sync that ran reports when the catalog was updated")

	// Freshly synced data skips the next trigger.
	req = httptest.NewRequest(http.MethodPost, "/sync", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Skipped)
	assert.Equal(t, "data_fresh", resp.Reason)
}

func TestTriggerSync_BadBody(t *testing.T) {
	t.Parallel()

	router := newTestRouter(newFakeBackend(), &stubLister{})

	req := httptest.NewRequest(http.MethodPost, "/sync", strings.NewReader(`{"force": "yes"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubPinger struct{ err error }

func (s *stubPinger) Ping(context.Context) error { return s.err }

func TestHealthRouter(t *testing.T) {
	t.Parallel()

	t.Run("healthy and ready", func(t *testing.T) {
		t.Parallel()
		router := v0.HealthRouter(&stubPinger{})

		for _, path := range []string{"/health", "/readiness", "/version"} {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code, path)
		}
	})

	t.Run("database down fails readiness only", func(t *testing.T) {
		t.Parallel()
		router := v0.HealthRouter(&stubPinger{err: errors.New("connection refused")})

		req := httptest.NewRequest(http.MethodGet, "/readiness", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		req = httptest.NewRequest(http.MethodGet, "/health", nil)
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
