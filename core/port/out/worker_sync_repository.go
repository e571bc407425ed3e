package out

import (
	"context"
	"time"

	"github.com/sanskarm7/JobCATGmail/core/domain"
)

// CheckpointRepository stores the per-user sync checkpoint.
type CheckpointRepository interface {
	// Get returns nil without error when the user has never synced.
	Get(ctx context.Context, userID string) (*domain.SyncCheckpoint, error)
	// Advance never moves the timestamp backwards. partial is stored only when
	// ts is at least the current timestamp.
	Advance(ctx context.Context, userID string, ts time.Time, partial bool) error
}

// SyncRunRepository keeps the audit trail of sync invocations.
type SyncRunRepository interface {
	Record(ctx context.Context, run *domain.SyncRun) error
	ListRecent(ctx context.Context, userID string, limit int) ([]*domain.SyncRun, error)
}

// SyncLocker serializes syncs per user.
type SyncLocker interface {
	// Acquire returns domain.ErrSyncInProgress when the lock is held elsewhere.
	Acquire(ctx context.Context, userID string) (release func(), err error)
}
