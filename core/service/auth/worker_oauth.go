// Package auth connects Gmail mailboxes and hands out fresh access tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/sanskarm7/JobCATGmail/core/domain"
	"github.com/sanskarm7/JobCATGmail/core/port/in"
	"github.com/sanskarm7/JobCATGmail/core/port/out"
	"github.com/sanskarm7/JobCATGmail/pkg/logger"
)

const (
	GmailReadonlyScope = "https://www.googleapis.com/auth/gmail.readonly"
	userInfoEmailScope = "https://www.googleapis.com/auth/userinfo.email"
	userInfoURL        = "https://www.googleapis.com/oauth2/v2/userinfo"

	// refreshLeeway refreshes tokens that expire within this window.
	refreshLeeway = 5 * time.Minute
)

// TokenCipher seals tokens before they reach the database.
type TokenCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// NewGoogleConfig returns the OAuth client config, read-only Gmail access only.
func NewGoogleConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{GmailReadonlyScope, userInfoEmailScope},
		Endpoint:     google.Endpoint,
	}
}

type MailboxService struct {
	repo     out.MailboxConnectionRepository
	cipher   TokenCipher
	config   *oauth2.Config
	producer out.MessageProducer
	realtime EventPusher
	userInfo string
}

func NewMailboxService(repo out.MailboxConnectionRepository, cipher TokenCipher, config *oauth2.Config) *MailboxService {
	return &MailboxService{repo: repo, cipher: cipher, config: config, userInfo: userInfoURL}
}

var (
	_ in.MailboxAuthService  = (*MailboxService)(nil)
	_ out.CredentialProvider = (*MailboxService)(nil)
)

// SetMessageProducer enables the initial sync job after a mailbox connects.
func (s *MailboxService) SetMessageProducer(producer out.MessageProducer) {
	s.producer = producer
}

// EventPusher delivers events to a user's live feed.
type EventPusher interface {
	Push(ctx context.Context, userID string, event *domain.RealtimeEvent) error
}

// SetRealtime enables token-expired notifications to connected clients.
func (s *MailboxService) SetRealtime(realtime EventPusher) {
	s.realtime = realtime
}

func (s *MailboxService) GetAuthURL(ctx context.Context, state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (s *MailboxService) HandleCallback(ctx context.Context, code string, userID uuid.UUID) (*domain.MailboxConnection, error) {
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}
	email, err := s.fetchEmail(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to get user email: %w", err)
	}

	access, err := s.cipher.Encrypt(token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("encrypt access token: %w", err)
	}
	// Google omits the refresh token on re-consent; the store keeps the old one
	var refresh string
	if token.RefreshToken != "" {
		if refresh, err = s.cipher.Encrypt(token.RefreshToken); err != nil {
			return nil, fmt.Errorf("encrypt refresh token: %w", err)
		}
	}

	now := time.Now().UTC()
	entity := &out.MailboxConnectionEntity{
		UserID:       userID.String(),
		Provider:     string(domain.ProviderGoogle),
		Email:        email,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    token.Expiry,
		IsConnected:  true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Upsert(ctx, entity); err != nil {
		return nil, fmt.Errorf("failed to save connection: %w", err)
	}
	logger.Info("[MailboxService.HandleCallback] connected %s for user %s", email, userID)

	if s.producer != nil {
		job := &out.SyncJob{
			JobID:       uuid.NewString(),
			UserID:      userID.String(),
			Trigger:     string(domain.SyncTriggerAsync),
			RequestedAt: now,
		}
		if err := s.producer.PublishSync(ctx, job); err != nil {
			logger.Warn("[MailboxService.HandleCallback] failed to queue initial sync: %v", err)
		}
	}

	return &domain.MailboxConnection{
		ID:          entity.ID,
		UserID:      userID,
		Provider:    domain.ProviderGoogle,
		Email:       email,
		ExpiresAt:   token.Expiry,
		IsConnected: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (s *MailboxService) fetchEmail(ctx context.Context, token *oauth2.Token) (string, error) {
	resp, err := s.config.Client(ctx, token).Get(s.userInfo)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("userinfo returned %s", resp.Status)
	}

	var info struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", err
	}
	return info.Email, nil
}

// Status returns the user's live connection, or nil when none exists.
func (s *MailboxService) Status(ctx context.Context, userID uuid.UUID) (*domain.MailboxConnection, error) {
	entity, err := s.repo.GetByUser(ctx, userID.String())
	if err != nil || entity == nil {
		return nil, err
	}
	return &domain.MailboxConnection{
		ID:          entity.ID,
		UserID:      userID,
		Provider:    domain.OAuthProvider(entity.Provider),
		Email:       entity.Email,
		ExpiresAt:   entity.ExpiresAt,
		IsConnected: entity.IsConnected,
		CreatedAt:   entity.CreatedAt,
		UpdatedAt:   entity.UpdatedAt,
	}, nil
}

func (s *MailboxService) Disconnect(ctx context.Context, userID uuid.UUID) error {
	return s.repo.Disconnect(ctx, userID.String())
}

// TokenFor returns a usable token, refreshing and persisting it when it is
// about to expire. A revoked grant disconnects the mailbox.
func (s *MailboxService) TokenFor(ctx context.Context, userID string) (*oauth2.Token, error) {
	entity, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load mailbox connection: %w", err)
	}
	if entity == nil || !entity.IsConnected {
		return nil, domain.ErrMailboxNotConnected
	}

	access, err := s.cipher.Decrypt(entity.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("decrypt access token: %w", err)
	}
	refresh, err := s.cipher.Decrypt(entity.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("decrypt refresh token: %w", err)
	}
	token := &oauth2.Token{AccessToken: access, RefreshToken: refresh, Expiry: entity.ExpiresAt, TokenType: "Bearer"}

	if time.Until(token.Expiry) >= refreshLeeway {
		return token, nil
	}

	// Force the token source to refresh inside the leeway window.
	stale := *token
	stale.Expiry = time.Unix(1, 0)
	fresh, err := s.config.TokenSource(ctx, &stale).Token()
	if err != nil {
		if isRevoked(err) {
			s.revoke(ctx, userID, err)
			return nil, &domain.AuthorizationError{Provider: "gmail", Reason: "refresh token expired or revoked", Err: err}
		}
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = refresh
	}

	sealedAccess, err := s.cipher.Encrypt(fresh.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("encrypt access token: %w", err)
	}
	sealedRefresh, err := s.cipher.Encrypt(fresh.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("encrypt refresh token: %w", err)
	}
	if err := s.repo.UpdateTokens(ctx, entity.ID, sealedAccess, sealedRefresh, fresh.Expiry); err != nil {
		logger.WithError(err).Warn("[MailboxService.TokenFor] failed to persist refreshed token for %s", userID)
	}
	logger.Debug("[MailboxService.TokenFor] refreshed token for %s", userID)
	return fresh, nil
}

func (s *MailboxService) revoke(ctx context.Context, userID string, cause error) {
	logger.Warn("[MailboxService.TokenFor] token revoked for %s, disconnecting: %v", userID, cause)
	if err := s.repo.Disconnect(ctx, userID); err != nil {
		logger.WithError(err).Error("[MailboxService.TokenFor] failed to mark %s disconnected", userID)
	}
	if s.realtime != nil {
		_ = s.realtime.Push(ctx, userID, &domain.RealtimeEvent{
			Type:      domain.EventTokenExpired,
			Data:      map[string]string{"provider": "gmail"},
			Timestamp: time.Now().UTC(),
		})
	}
}

func isRevoked(err error) bool {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && (re.ErrorCode == "invalid_grant" || re.ErrorCode == "invalid_client") {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "invalid_grant") ||
		strings.Contains(msg, "Token has been expired or revoked")
}
