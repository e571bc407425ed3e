package out

import (
	"context"

	"github.com/sanskarm7/JobCATGmail/core/domain"
	"golang.org/x/oauth2"
)

// MailboxSource reads raw messages from the user's mailbox.
// ListMessages returns newest first; a zero MaxResults lists the whole window.
// Revoked or under-scoped access is reported as *domain.AuthorizationError.
type MailboxSource interface {
	ListMessages(ctx context.Context, token *oauth2.Token, query domain.MailboxQuery) ([]domain.MessageRef, error)
	GetMessage(ctx context.Context, token *oauth2.Token, id string) (*domain.RawMessage, error)
}

// CredentialProvider resolves the mailbox token of a user.
type CredentialProvider interface {
	// TokenFor returns domain.ErrMailboxNotConnected when no grant exists.
	TokenFor(ctx context.Context, userID string) (*oauth2.Token, error)
}
