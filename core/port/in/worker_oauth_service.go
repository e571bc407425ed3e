package in

import (
	"context"

	"github.com/google/uuid"
	"github.com/sanskarm7/JobCATGmail/core/domain"
)

// MailboxAuthService connects and disconnects a user's mailbox.
type MailboxAuthService interface {
	GetAuthURL(ctx context.Context, state string) string
	HandleCallback(ctx context.Context, code string, userID uuid.UUID) (*domain.MailboxConnection, error)
	Disconnect(ctx context.Context, userID uuid.UUID) error
	// Status returns nil without error when no mailbox is connected.
	Status(ctx context.Context, userID uuid.UUID) (*domain.MailboxConnection, error)
}
