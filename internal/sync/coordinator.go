package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/modelgate/modelgate-server/internal/catalog"
	"github.com/modelgate/modelgate-server/internal/db/sqlc"
	"github.com/modelgate/modelgate-server/internal/telemetry"
)

const (
	// basePollingInterval is the base interval at which the coordinator checks staleness
	basePollingInterval = 2 * time.Minute
	// pollingJitter is the maximum random offset (±30 seconds) applied to the polling interval
	pollingJitter = 30 * time.Second
)

// Skip reasons reported in TriggerResult.
const (
	ReasonDataFresh      = "data_fresh"
	ReasonSyncInProgress = "sync_in_progress"
)

// MetaQuerier is the database surface the coordinator needs.
type MetaQuerier interface {
	GetCatalogMeta(ctx context.Context, key string) (sqlc.CatalogMetum, error)
	CountActiveCatalogEntries(ctx context.Context) (int64, error)
}

// TriggerResult reports what a sync trigger did.
type TriggerResult struct {
	Skipped     bool           `json:"skipped"`
	Reason      string         `json:"reason,omitempty"`
	LastUpdated *time.Time     `json:"last_updated,omitempty"`
	Success     bool           `json:"success"`
	Result      catalog.Result `json:"-"`
	DurationMs  int64          `json:"duration_ms"`
}

// Coordinator decides when sync cycles run. Unforced triggers sync only once
// the catalog age reaches the critical threshold; forced triggers always
// sync. Below the fresh threshold the skip does not even attempt the lock.
// The lease in Lock keeps concurrent triggers down to one winner.
type Coordinator struct {
	syncer  *catalog.Syncer
	lock    *Lock
	querier MetaQuerier

	freshThreshold    time.Duration
	criticalThreshold time.Duration

	cancelFunc context.CancelFunc
	done       chan struct{}

	syncMetrics *telemetry.SyncMetrics
	now         func() time.Time
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithSyncMetrics sets the sync metrics for the coordinator.
func WithSyncMetrics(metrics *telemetry.SyncMetrics) CoordinatorOption {
	return func(c *Coordinator) {
		c.syncMetrics = metrics
	}
}

// NewCoordinator creates a coordinator with injected dependencies.
func NewCoordinator(
	syncer *catalog.Syncer,
	lock *Lock,
	querier MetaQuerier,
	freshThreshold time.Duration,
	criticalThreshold time.Duration,
	opts ...CoordinatorOption,
) *Coordinator {
	c := &Coordinator{
		syncer:            syncer,
		lock:              lock,
		querier:           querier,
		freshThreshold:    freshThreshold,
		criticalThreshold: criticalThreshold,
		done:              make(chan struct{}),
		now:               time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// calculatePollingInterval returns the base polling interval with a random
// jitter applied, so multiple instances do not hit the database in lockstep.
func calculatePollingInterval() time.Duration {
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for polling jitter
	jitterOffset := time.Duration(rand.Int64N(int64(2*pollingJitter))) - pollingJitter
	return basePollingInterval + jitterOffset
}

// Start runs the background staleness loop. Blocks until the context is
// cancelled or Stop is called.
func (c *Coordinator) Start(ctx context.Context) error {
	coordCtx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel
	defer func() {
		close(c.done)
		slog.Info("Background sync coordinator shutting down")
	}()

	pollingInterval := calculatePollingInterval()
	slog.Info("Configured coordinator polling interval",
		"base_interval", basePollingInterval,
		"actual_interval", pollingInterval)

	ticker := time.NewTicker(pollingInterval)
	defer ticker.Stop()

	c.runScheduledCheck(coordCtx)

	for {
		select {
		case <-ticker.C:
			c.runScheduledCheck(coordCtx)

			// Recalculate interval with new jitter for next iteration
			ticker.Reset(calculatePollingInterval())
		case <-coordCtx.Done():
			slog.Info("Sync coordinator stopping")
			return nil
		}
	}
}

// Stop gracefully stops the coordinator.
func (c *Coordinator) Stop() error {
	if c.cancelFunc != nil {
		slog.Info("Stopping sync coordinator")
		c.cancelFunc()
		<-c.done
	}
	return nil
}

func (c *Coordinator) runScheduledCheck(ctx context.Context) {
	result, err := c.TriggerSync(ctx, false)
	if err != nil {
		slog.ErrorContext(ctx, "scheduled sync check failed", "error", err)
		return
	}
	if result.Skipped {
		slog.DebugContext(ctx, "scheduled sync skipped", "reason", result.Reason)
	}
}

// TriggerSync runs one sync cycle if the catalog is stale enough and no other
// cycle is in flight. Forced triggers bypass the staleness thresholds.
func (c *Coordinator) TriggerSync(ctx context.Context, force bool) (TriggerResult, error) {
	lastUpdated, err := c.lastSyncTime(ctx)
	if err != nil {
		return TriggerResult{}, err
	}

	if !force && lastUpdated != nil {
		age := c.now().Sub(*lastUpdated)
		if age < c.criticalThreshold {
			slog.DebugContext(ctx, "catalog is within staleness tolerance",
				"age", age,
				"fresh", age < c.freshThreshold)
			return TriggerResult{
				Skipped:     true,
				Reason:      ReasonDataFresh,
				LastUpdated: lastUpdated,
			}, nil
		}
	}

	if err := c.lock.Acquire(ctx); err != nil {
		if errors.Is(err, ErrSyncInProgress) {
			return TriggerResult{
				Skipped:     true,
				Reason:      ReasonSyncInProgress,
				LastUpdated: lastUpdated,
			}, nil
		}
		return TriggerResult{}, err
	}
	defer func() {
		// Release even when the sync context was cancelled mid-cycle, so the
		// lease does not have to age out before the next worker can take it.
		releaseCtx := context.WithoutCancel(ctx)
		if err := c.lock.Release(releaseCtx); err != nil {
			slog.ErrorContext(ctx, "failed to release sync lock", "error", err)
		}
	}()

	startTime := c.now()
	result := c.syncer.Run(ctx)
	elapsed := c.now().Sub(startTime)

	success := result.Err == nil
	c.syncMetrics.RecordSync(ctx, elapsed, success)
	if success {
		if at, err := c.lastSyncTime(ctx); err == nil {
			lastUpdated = at
		}
		if active, err := c.querier.CountActiveCatalogEntries(ctx); err == nil {
			c.syncMetrics.RecordActiveEntries(ctx, active)
		}
	} else {
		slog.ErrorContext(ctx, "sync cycle failed", "error", result.Err)
	}

	return TriggerResult{
		Success:     success,
		Result:      result,
		LastUpdated: lastUpdated,
		DurationMs:  elapsed.Milliseconds(),
	}, nil
}

// lastSyncTime returns the completion time of the last successful sync, or
// nil when no sync has ever completed.
func (c *Coordinator) lastSyncTime(ctx context.Context) (*time.Time, error) {
	meta, err := c.querier.GetCatalogMeta(ctx, catalog.MetaKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read catalog metadata: %w", err)
	}
	return &meta.UpdatedAt, nil
}
