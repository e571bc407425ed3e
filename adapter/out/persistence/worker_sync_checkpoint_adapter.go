package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanskarm7/JobCATGmail/core/domain"
	"github.com/sanskarm7/JobCATGmail/core/port/out"
)

// CheckpointAdapter stores one sync checkpoint row per user.
type CheckpointAdapter struct {
	db *sqlx.DB
}

func NewCheckpointAdapter(db *sqlx.DB) *CheckpointAdapter {
	return &CheckpointAdapter{db: db}
}

var _ out.CheckpointRepository = (*CheckpointAdapter)(nil)

type checkpointEntity struct {
	UserID     string    `db:"user_id"`
	LastSyncAt time.Time `db:"last_sync_at"`
	Partial    bool      `db:"partial"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (e *checkpointEntity) toDomain() *domain.SyncCheckpoint {
	return &domain.SyncCheckpoint{
		UserID:    e.UserID,
		Timestamp: e.LastSyncAt.UTC(),
		Partial:   e.Partial,
		UpdatedAt: e.UpdatedAt.UTC(),
	}
}

func (a *CheckpointAdapter) Get(ctx context.Context, userID string) (*domain.SyncCheckpoint, error) {
	var entity checkpointEntity
	query := `SELECT user_id, last_sync_at, partial, updated_at FROM sync_checkpoints WHERE user_id = $1`

	if err := a.db.GetContext(ctx, &entity, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return entity.toDomain(), nil
}

// Advance moves the checkpoint forward. An older timestamp never overwrites a
// newer one, nor its partial flag.
func (a *CheckpointAdapter) Advance(ctx context.Context, userID string, ts time.Time, partial bool) error {
	query := `
		INSERT INTO sync_checkpoints (user_id, last_sync_at, partial, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			partial = CASE WHEN EXCLUDED.last_sync_at >= sync_checkpoints.last_sync_at
				THEN EXCLUDED.partial ELSE sync_checkpoints.partial END,
			last_sync_at = GREATEST(sync_checkpoints.last_sync_at, EXCLUDED.last_sync_at),
			updated_at = NOW()`

	_, err := a.db.ExecContext(ctx, query, userID, ts.UTC(), partial)
	return err
}
