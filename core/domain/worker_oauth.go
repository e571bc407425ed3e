package domain

import (
	"time"

	"github.com/google/uuid"
)

type OAuthProvider string

const ProviderGoogle OAuthProvider = "google"

// MailboxConnection is a user's mailbox grant. Tokens are stored encrypted.
type MailboxConnection struct {
	ID           int64         `json:"id"`
	UserID       uuid.UUID     `json:"user_id"`
	Provider     OAuthProvider `json:"provider"`
	Email        string        `json:"email"`
	AccessToken  string        `json:"-"`
	RefreshToken string        `json:"-"`
	ExpiresAt    time.Time     `json:"expires_at"`
	IsConnected  bool          `json:"is_connected"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}
