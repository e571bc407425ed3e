package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanskarm7/JobCATGmail/core/domain"
	"github.com/sanskarm7/JobCATGmail/core/port/out"
)

// SyncRunAdapter keeps the sync audit trail in PostgreSQL.
type SyncRunAdapter struct {
	db *sqlx.DB
}

func NewSyncRunAdapter(db *sqlx.DB) *SyncRunAdapter {
	return &SyncRunAdapter{db: db}
}

var _ out.SyncRunRepository = (*SyncRunAdapter)(nil)

type syncRunEntity struct {
	ID         int64          `db:"id"`
	UserID     string         `db:"user_id"`
	Trigger    string         `db:"trigger"`
	Status     string         `db:"status"`
	StartedAt  time.Time      `db:"started_at"`
	FinishedAt time.Time      `db:"finished_at"`
	WindowDays int            `db:"window_days"`
	Scanned    int            `db:"scanned"`
	Filtered   int            `db:"filtered"`
	Created    int            `db:"created"`
	Updated    int            `db:"updated"`
	Skipped    int            `db:"skipped"`
	Rejected   int            `db:"rejected"`
	ErrorCode  sql.NullString `db:"error_code"`
	Warnings   pq.StringArray `db:"warnings"`
}

func (e *syncRunEntity) toDomain() *domain.SyncRun {
	run := &domain.SyncRun{
		ID:         e.ID,
		UserID:     e.UserID,
		Trigger:    domain.SyncTrigger(e.Trigger),
		Status:     domain.SyncRunStatus(e.Status),
		StartedAt:  e.StartedAt.UTC(),
		FinishedAt: e.FinishedAt.UTC(),
		WindowDays: e.WindowDays,
		Scanned:    e.Scanned,
		Filtered:   e.Filtered,
		Created:    e.Created,
		Updated:    e.Updated,
		Skipped:    e.Skipped,
		Rejected:   e.Rejected,
	}
	if e.ErrorCode.Valid {
		run.ErrorCode = e.ErrorCode.String
	}
	if len(e.Warnings) > 0 {
		run.Warnings = []string(e.Warnings)
	}
	return run
}

func toSyncRunEntity(run *domain.SyncRun) *syncRunEntity {
	warnings := pq.StringArray(run.Warnings)
	if warnings == nil {
		warnings = pq.StringArray{}
	}
	return &syncRunEntity{
		UserID:     run.UserID,
		Trigger:    string(run.Trigger),
		Status:     string(run.Status),
		StartedAt:  run.StartedAt.UTC(),
		FinishedAt: run.FinishedAt.UTC(),
		WindowDays: run.WindowDays,
		Scanned:    run.Scanned,
		Filtered:   run.Filtered,
		Created:    run.Created,
		Updated:    run.Updated,
		Skipped:    run.Skipped,
		Rejected:   run.Rejected,
		ErrorCode:  sql.NullString{String: run.ErrorCode, Valid: run.ErrorCode != ""},
		Warnings:   warnings,
	}
}

// Record inserts the run and sets run.ID.
func (a *SyncRunAdapter) Record(ctx context.Context, run *domain.SyncRun) error {
	query := `
		INSERT INTO sync_runs (
			user_id, trigger, status, started_at, finished_at, window_days,
			scanned, filtered, created, updated, skipped, rejected, error_code, warnings
		) VALUES (
			:user_id, :trigger, :status, :started_at, :finished_at, :window_days,
			:scanned, :filtered, :created, :updated, :skipped, :rejected, :error_code, :warnings
		) RETURNING id`

	rows, err := a.db.NamedQueryContext(ctx, query, toSyncRunEntity(run))
	if err != nil {
		return err
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&run.ID); err != nil {
			return err
		}
	}
	return rows.Err()
}

// ListRecent returns the newest runs first.
func (a *SyncRunAdapter) ListRecent(ctx context.Context, userID string, limit int) ([]*domain.SyncRun, error) {
	var entities []syncRunEntity
	query := `
		SELECT id, user_id, trigger, status, started_at, finished_at, window_days,
		       scanned, filtered, created, updated, skipped, rejected, error_code, warnings
		FROM sync_runs
		WHERE user_id = $1
		ORDER BY started_at DESC, id DESC
		LIMIT $2`

	if err := a.db.SelectContext(ctx, &entities, query, userID, limit); err != nil {
		return nil, err
	}

	runs := make([]*domain.SyncRun, 0, len(entities))
	for i := range entities {
		runs = append(runs, entities[i].toDomain())
	}
	return runs, nil
}
