package out

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MailboxConnectionRepository persists mailbox grants.
type MailboxConnectionRepository interface {
	// GetByUser returns the connected grant of a user, or nil when there is none.
	GetByUser(ctx context.Context, userID string) (*MailboxConnectionEntity, error)

	// ListConnected returns every user with a live grant.
	ListConnected(ctx context.Context) ([]*MailboxConnectionEntity, error)

	// Upsert creates or refreshes the user's grant.
	Upsert(ctx context.Context, entity *MailboxConnectionEntity) error

	// UpdateTokens stores refreshed tokens.
	UpdateTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error

	// Disconnect marks the user's grant as disconnected.
	Disconnect(ctx context.Context, userID string) error
}

// MailboxConnectionEntity is the persisted form of a mailbox grant.
type MailboxConnectionEntity struct {
	ID           int64     `db:"id"`
	UserID       string    `db:"user_id"`
	Provider     string    `db:"provider"`
	Email        string    `db:"email"`
	AccessToken  string    `db:"access_token"`
	RefreshToken string    `db:"refresh_token"`
	ExpiresAt    time.Time `db:"expires_at"`
	IsConnected  bool      `db:"is_connected"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// OAuthStateStore keeps single-use OAuth state values.
type OAuthStateStore interface {
	StoreState(ctx context.Context, state string, userID uuid.UUID, ttl time.Duration) error
	ValidateState(ctx context.Context, state string) (uuid.UUID, error)
}
