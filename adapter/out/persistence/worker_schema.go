package persistence

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Schema is the PostgreSQL DDL for the relational side of the store.
const Schema = `
CREATE TABLE IF NOT EXISTS mailbox_connections (
	id            BIGSERIAL PRIMARY KEY,
	user_id       TEXT NOT NULL UNIQUE,
	provider      TEXT NOT NULL DEFAULT 'gmail',
	email         TEXT NOT NULL DEFAULT '',
	access_token  TEXT NOT NULL DEFAULT '',
	refresh_token TEXT NOT NULL DEFAULT '',
	expires_at    TIMESTAMPTZ NOT NULL,
	is_connected  BOOLEAN NOT NULL DEFAULT true,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS sync_checkpoints (
	user_id      TEXT PRIMARY KEY,
	last_sync_at TIMESTAMPTZ NOT NULL,
	partial      BOOLEAN NOT NULL DEFAULT false,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

ALTER TABLE sync_checkpoints ADD COLUMN IF NOT EXISTS partial BOOLEAN NOT NULL DEFAULT false;

CREATE TABLE IF NOT EXISTS sync_runs (
	id          BIGSERIAL PRIMARY KEY,
	user_id     TEXT NOT NULL,
	trigger     TEXT NOT NULL,
	status      TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	window_days INT NOT NULL DEFAULT 0,
	scanned     INT NOT NULL DEFAULT 0,
	filtered    INT NOT NULL DEFAULT 0,
	created     INT NOT NULL DEFAULT 0,
	updated     INT NOT NULL DEFAULT 0,
	skipped     INT NOT NULL DEFAULT 0,
	rejected    INT NOT NULL DEFAULT 0,
	error_code  TEXT,
	warnings    TEXT[] NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_sync_runs_user_started ON sync_runs (user_id, started_at DESC);
`

// Migrate applies Schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, Schema)
	return err
}
