// Package v0 provides the REST API handlers for the gateway catalog.
package v0

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/modelgate/modelgate-server/internal/api/common"
	"github.com/modelgate/modelgate-server/internal/db/sqlc"
	syncpkg "github.com/modelgate/modelgate-server/internal/sync"
	"github.com/modelgate/modelgate-server/internal/versions"
)

// CatalogQuerier is the database surface the catalog handlers need.
type CatalogQuerier interface {
	ListActiveCatalogEntries(ctx context.Context) ([]sqlc.CatalogEntry, error)
	GetCatalogEntry(ctx context.Context, id string) (sqlc.CatalogEntry, error)
}

// ModelResponse is one catalog entry on the wire.
type ModelResponse struct {
	ID              string          `json:"id"`
	DisplayName     string          `json:"display_name"`
	Provider        string          `json:"provider"`
	ContextWindow   int64           `json:"context_window"`
	MaxOutputTokens int64           `json:"max_output_tokens"`
	Pricing         PricingResponse `json:"pricing"`
}

// PricingResponse holds USD prices per million tokens.
type PricingResponse struct {
	PromptPerMillion     float64 `json:"prompt_per_million"`
	CompletionPerMillion float64 `json:"completion_per_million"`
}

// ModelListResponse is the catalog listing on the wire.
type ModelListResponse struct {
	Data  []ModelResponse `json:"data"`
	Total int             `json:"total"`
}

// SyncRequest is the body of a manual sync trigger. An empty body is an
// unforced trigger.
type SyncRequest struct {
	Force bool `json:"force"`
}

// SyncResultBody is the per-cycle outcome detail of a sync that actually ran.
type SyncResultBody struct {
	TotalFetched int    `json:"total_fetched"`
	Qualifying   int    `json:"qualifying"`
	Inserted     int    `json:"inserted"`
	Updated      int    `json:"updated"`
	Deactivated  int64  `json:"deactivated"`
	Error        string `json:"error,omitempty"`
}

// SyncResponse reports what a manual sync trigger did. Result is absent when
// the trigger was skipped.
type SyncResponse struct {
	Skipped     bool            `json:"skipped"`
	Reason      string          `json:"reason,omitempty"`
	LastUpdated *time.Time      `json:"last_updated,omitempty"`
	Success     bool            `json:"success"`
	Result      *SyncResultBody `json:"result,omitempty"`
	DurationMs  int64           `json:"duration_ms"`
}

// Routes defines the gateway API handlers with dependency injection.
type Routes struct {
	querier     CatalogQuerier
	coordinator *syncpkg.Coordinator
}

// NewRoutes creates a Routes instance with the provided dependencies.
func NewRoutes(querier CatalogQuerier, coordinator *syncpkg.Coordinator) *Routes {
	return &Routes{
		querier:     querier,
		coordinator: coordinator,
	}
}

// Router builds the /v0 route tree. Catalog reads go through authMW, which
// charges quota; sync triggers go through syncAuthMW, which authenticates
// without charging.
func (rr *Routes) Router(authMW, syncAuthMW func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(authMW)
		r.Get("/models", rr.listModels)
		r.Get("/models/{id}", rr.getModel)
	})

	r.Group(func(r chi.Router) {
		r.Use(syncAuthMW)
		r.Post("/sync", rr.triggerSync)
	})

	return r
}

// listModels handles GET /v0/models
func (rr *Routes) listModels(w http.ResponseWriter, r *http.Request) {
	entries, err := rr.querier.ListActiveCatalogEntries(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list catalog entries", "error", err)
		common.WriteErrorResponse(w, http.StatusInternalServerError,
			"failed to list models", "SERVER_ERROR")
		return
	}

	resp := ModelListResponse{
		Data:  make([]ModelResponse, 0, len(entries)),
		Total: len(entries),
	}
	for _, e := range entries {
		resp.Data = append(resp.Data, toModelResponse(e))
	}
	common.WriteJSONResponse(w, http.StatusOK, resp)
}

// getModel handles GET /v0/models/{id}
func (rr *Routes) getModel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	entry, err := rr.querier.GetCatalogEntry(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.WriteErrorResponse(w, http.StatusNotFound, "model not found", "")
			return
		}
		slog.ErrorContext(r.Context(), "failed to get catalog entry", "id", id, "error", err)
		common.WriteErrorResponse(w, http.StatusInternalServerError,
			"failed to get model", "SERVER_ERROR")
		return
	}

	common.WriteJSONResponse(w, http.StatusOK, toModelResponse(entry))
}

// triggerSync handles POST /v0/sync
func (rr *Routes) triggerSync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		common.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	result, err := rr.coordinator.TriggerSync(r.Context(), req.Force)
	if err != nil {
		slog.ErrorContext(r.Context(), "sync trigger failed", "error", err)
		common.WriteErrorResponse(w, http.StatusInternalServerError,
			"failed to trigger sync", "SERVER_ERROR")
		return
	}

	resp := SyncResponse{
		Skipped:     result.Skipped,
		Reason:      result.Reason,
		LastUpdated: result.LastUpdated,
		Success:     result.Success,
		DurationMs:  result.DurationMs,
	}
	if !result.Skipped {
		body := &SyncResultBody{
			TotalFetched: result.Result.TotalFetched,
			Qualifying:   result.Result.Qualifying,
			Inserted:     result.Result.Inserted,
			Updated:      result.Result.Updated,
			Deactivated:  result.Result.Deactivated,
		}
		if result.Result.Err != nil {
			body.Error = result.Result.Err.Error()
		}
		resp.Result = body
	}
	common.WriteJSONResponse(w, http.StatusOK, resp)
}

func toModelResponse(e sqlc.CatalogEntry) ModelResponse {
	return ModelResponse{
		ID:              e.ID,
		DisplayName:     e.DisplayName,
		Provider:        e.Provider,
		ContextWindow:   e.ContextWindow,
		MaxOutputTokens: e.MaxOutputTokens,
		Pricing: PricingResponse{
			PromptPerMillion:     e.PromptCostPerMillion,
			CompletionPerMillion: e.CompletionCostPerMillion,
		},
	}
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthRouter creates a router for health check endpoints.
func HealthRouter(pinger Pinger) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(pinger))
	r.Get("/version", versionHandler)

	return r
}

// healthHandler handles liveness requests
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// readinessHandler reports ready once the database answers a ping
func readinessHandler(pinger Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := pinger.Ping(r.Context()); err != nil {
			slog.ErrorContext(r.Context(), "readiness check failed", "error", err)
			common.WriteJSONResponse(w, http.StatusServiceUnavailable,
				map[string]string{"status": "unavailable"})
			return
		}
		common.WriteJSONResponse(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// versionHandler reports build information
func versionHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, http.StatusOK, versions.GetVersionInfo())
}
