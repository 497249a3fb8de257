// Package sync coordinates catalog refresh cycles across gateway instances.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/modelgate/modelgate-server/internal/db/sqlc"
)

// LockKey is the shared row all instances contend on.
const LockKey = "sync_in_progress"

// ErrSyncInProgress is returned by Acquire when another holder owns the lease.
var ErrSyncInProgress = errors.New("sync already in progress")

// LockQuerier is the database surface the lock needs.
type LockQuerier interface {
	AcquireSyncLock(ctx context.Context, arg sqlc.AcquireSyncLockParams) (string, error)
	ReleaseSyncLock(ctx context.Context, arg sqlc.ReleaseSyncLockParams) error
}

// Lock is a database-backed lease ensuring at most one sync cycle runs at a
// time across all instances. A held lease older than lockDuration counts as
// abandoned and can be taken over, so a crashed holder never wedges syncing.
type Lock struct {
	querier      LockQuerier
	lockDuration time.Duration
	now          func() time.Time
}

// NewLock creates a Lock with the given takeover threshold.
func NewLock(querier LockQuerier, lockDuration time.Duration) *Lock {
	return &Lock{
		querier:      querier,
		lockDuration: lockDuration,
		now:          time.Now,
	}
}

// Acquire takes the lease. The decision is a single conditional upsert, so
// two racing callers can never both win. Returns ErrSyncInProgress when the
// lease is held and still fresh.
func (l *Lock) Acquire(ctx context.Context) error {
	_, err := l.querier.AcquireSyncLock(ctx, sqlc.AcquireSyncLockParams{
		Key:            LockKey,
		Now:            l.now(),
		LockDurationMs: l.lockDuration.Milliseconds(),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSyncInProgress
		}
		return fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	return nil
}

// Release gives the lease up unconditionally.
func (l *Lock) Release(ctx context.Context) error {
	err := l.querier.ReleaseSyncLock(ctx, sqlc.ReleaseSyncLockParams{
		Key: LockKey,
		Now: l.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to release sync lock: %w", err)
	}
	return nil
}
