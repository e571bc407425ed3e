package in

import (
	"context"

	"github.com/sanskarm7/JobCATGmail/core/domain"
	"github.com/sanskarm7/JobCATGmail/core/port/out"
)

// SyncService runs the incremental mailbox sync of a user.
type SyncService interface {
	Sync(ctx context.Context, userID string, trigger domain.SyncTrigger, sink out.EventSink) (*domain.SyncResult, error)
	RecentRuns(ctx context.Context, userID string, limit int) ([]*domain.SyncRun, error)
}
