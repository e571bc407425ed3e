// Package persistence provides database adapters.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanskarm7/JobCATGmail/core/port/out"
)

// MailboxAdapter implements out.MailboxConnectionRepository using PostgreSQL.
// Tokens arrive already encrypted; the adapter stores them as opaque strings.
type MailboxAdapter struct {
	db *sqlx.DB
}

func NewMailboxAdapter(db *sqlx.DB) *MailboxAdapter {
	return &MailboxAdapter{db: db}
}

var _ out.MailboxConnectionRepository = (*MailboxAdapter)(nil)

const mailboxColumns = `id, user_id, provider, email, access_token, refresh_token,
		       expires_at, is_connected, created_at, updated_at`

// GetByUser returns the connected grant, or nil when the user has none.
func (a *MailboxAdapter) GetByUser(ctx context.Context, userID string) (*out.MailboxConnectionEntity, error) {
	var entity out.MailboxConnectionEntity
	query := `
		SELECT ` + mailboxColumns + `
		FROM mailbox_connections
		WHERE user_id = $1 AND is_connected = true`

	if err := a.db.GetContext(ctx, &entity, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &entity, nil
}

// ListConnected returns every live grant, oldest first.
func (a *MailboxAdapter) ListConnected(ctx context.Context) ([]*out.MailboxConnectionEntity, error) {
	var entities []*out.MailboxConnectionEntity
	query := `
		SELECT ` + mailboxColumns + `
		FROM mailbox_connections
		WHERE is_connected = true
		ORDER BY created_at ASC`

	if err := a.db.SelectContext(ctx, &entities, query); err != nil {
		return nil, err
	}
	return entities, nil
}

// Upsert creates the user's grant or refreshes it in place.
// An empty refresh token keeps the stored one; Google only returns it on first consent.
func (a *MailboxAdapter) Upsert(ctx context.Context, entity *out.MailboxConnectionEntity) error {
	query := `
		INSERT INTO mailbox_connections (user_id, provider, email, access_token, refresh_token, expires_at, is_connected, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, true, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			provider = EXCLUDED.provider,
			email = EXCLUDED.email,
			access_token = EXCLUDED.access_token,
			refresh_token = COALESCE(NULLIF(EXCLUDED.refresh_token, ''), mailbox_connections.refresh_token),
			expires_at = EXCLUDED.expires_at,
			is_connected = true,
			updated_at = NOW()
		RETURNING id, is_connected, created_at, updated_at`

	return a.db.QueryRowxContext(ctx, query,
		entity.UserID, entity.Provider, entity.Email,
		entity.AccessToken, entity.RefreshToken, entity.ExpiresAt,
	).Scan(&entity.ID, &entity.IsConnected, &entity.CreatedAt, &entity.UpdatedAt)
}

// UpdateTokens stores refreshed tokens for a connection.
func (a *MailboxAdapter) UpdateTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error {
	query := `
		UPDATE mailbox_connections
		SET access_token = $2,
		    refresh_token = COALESCE(NULLIF($3, ''), refresh_token),
		    expires_at = $4,
		    updated_at = NOW()
		WHERE id = $1`

	res, err := a.db.ExecContext(ctx, query, id, accessToken, refreshToken, expiresAt)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Disconnect clears the tokens and marks the grant disconnected.
func (a *MailboxAdapter) Disconnect(ctx context.Context, userID string) error {
	query := `
		UPDATE mailbox_connections
		SET is_connected = false, access_token = '', refresh_token = '', updated_at = NOW()
		WHERE user_id = $1`

	_, err := a.db.ExecContext(ctx, query, userID)
	return err
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
