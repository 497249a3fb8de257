// Package catalog maintains the local mirror of the upstream model listing.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelgate/modelgate-server/internal/db/sqlc"
	"github.com/modelgate/modelgate-server/internal/sources"
)

// MetaKey is the catalog_meta row recording the last successful sync.
const MetaKey = "catalog_last_updated"

// SyncQuerier is the database surface one sync cycle needs.
type SyncQuerier interface {
	CountActiveCatalogEntries(ctx context.Context) (int64, error)
	UpsertCatalogEntry(ctx context.Context, arg sqlc.UpsertCatalogEntryParams) (bool, error)
	DeactivateCatalogEntriesNotSeenSince(ctx context.Context, cutoff time.Time) (int64, error)
	TouchCatalogMeta(ctx context.Context, arg sqlc.TouchCatalogMetaParams) error
}

// Result summarizes one sync cycle.
type Result struct {
	TotalFetched int
	Qualifying   int
	Inserted     int
	Updated      int
	Deactivated  int64
	Err          error
}

// Syncer runs catalog refresh cycles: fetch the upstream listing, upsert the
// qualifying models and retire entries the upstream no longer advertises.
type Syncer struct {
	lister           sources.Lister
	querier          SyncQuerier
	minContextWindow int64
	now              func() time.Time
}

// NewSyncer creates a Syncer. Models with a context window below
// minContextWindow are ignored.
func NewSyncer(lister sources.Lister, querier SyncQuerier, minContextWindow int64) *Syncer {
	return &Syncer{
		lister:           lister,
		querier:          querier,
		minContextWindow: minContextWindow,
		now:              time.Now,
	}
}

// Run executes one sync cycle. A fetch failure leaves the catalog untouched.
// Deactivation is skipped when the fetched listing looks implausibly small
// next to the current active set, so a flaky upstream response cannot wipe
// the catalog.
func (s *Syncer) Run(ctx context.Context) Result {
	cycleStart := s.now()

	previouslyActive, err := s.querier.CountActiveCatalogEntries(ctx)
	if err != nil {
		return Result{Err: fmt.Errorf("failed to count active entries: %w", err)}
	}

	models, err := s.lister.ListModels(ctx)
	if err != nil {
		return Result{Err: fmt.Errorf("failed to fetch upstream listing: %w", err)}
	}

	result := Result{TotalFetched: len(models)}
	for _, m := range models {
		if m.ContextWindow < s.minContextWindow {
			continue
		}
		result.Qualifying++

		inserted, err := s.querier.UpsertCatalogEntry(ctx, sqlc.UpsertCatalogEntryParams{
			ID:                       m.ID,
			DisplayName:              m.DisplayName,
			Provider:                 m.Provider,
			ContextWindow:            m.ContextWindow,
			MaxOutputTokens:          m.MaxOutputTokens,
			PromptCostPerMillion:     m.PromptCostPerMillion,
			CompletionCostPerMillion: m.CompletionCostPerMillion,
			LastSeenAt:               cycleStart,
		})
		if err != nil {
			result.Err = fmt.Errorf("failed to upsert catalog entry %s: %w", m.ID, err)
			return result
		}
		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
	}

	if s.safeToDeactivate(int64(result.Qualifying), previouslyActive) {
		deactivated, err := s.querier.DeactivateCatalogEntriesNotSeenSince(ctx, cycleStart)
		if err != nil {
			result.Err = fmt.Errorf("failed to deactivate stale entries: %w", err)
			return result
		}
		result.Deactivated = deactivated
	} else {
		slog.WarnContext(ctx, "skipping deactivation, fetched listing is implausibly small",
			"qualifying", result.Qualifying,
			"previously_active", previouslyActive)
	}

	if err := s.querier.TouchCatalogMeta(ctx, sqlc.TouchCatalogMetaParams{
		Key: MetaKey,
		Now: s.now(),
	}); err != nil {
		result.Err = fmt.Errorf("failed to record sync completion: %w", err)
		return result
	}

	slog.InfoContext(ctx, "catalog sync completed",
		"total_fetched", result.TotalFetched,
		"qualifying", result.Qualifying,
		"inserted", result.Inserted,
		"updated", result.Updated,
		"deactivated", result.Deactivated)
	return result
}

// safeToDeactivate guards against retiring the whole catalog off the back of
// a truncated listing: the fetch must cover at least half of the currently
// active set before anything may be deactivated.
func (s *Syncer) safeToDeactivate(qualifying, previouslyActive int64) bool {
	if previouslyActive == 0 {
		return true
	}
	return qualifying*2 >= previouslyActive
}
