package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sanskarm7/JobCATGmail/core/port/out"
)

// OAuthStateKey Redis key prefix for OAuth state
const OAuthStateKey = "jobcat:oauth:state:"

// RedisOAuthStateStore keeps single-use OAuth states for CSRF protection.
type RedisOAuthStateStore struct {
	client *redis.Client
}

func NewRedisOAuthStateStore(client *redis.Client) *RedisOAuthStateStore {
	return &RedisOAuthStateStore{client: client}
}

var _ out.OAuthStateStore = (*RedisOAuthStateStore)(nil)

func (s *RedisOAuthStateStore) StoreState(ctx context.Context, state string, userID uuid.UUID, ttl time.Duration) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if userID == uuid.Nil {
		return errors.New("userID cannot be nil")
	}

	if err := s.client.Set(ctx, OAuthStateKey+state, userID.String(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to store OAuth state: %w", err)
	}
	return nil
}

// ValidateState returns the owner of the state and deletes it in the same step.
func (s *RedisOAuthStateStore) ValidateState(ctx context.Context, state string) (uuid.UUID, error) {
	if state == "" {
		return uuid.Nil, errors.New("state cannot be empty")
	}

	userIDStr, err := s.client.GetDel(ctx, OAuthStateKey+state).Result()
	if err == redis.Nil {
		return uuid.Nil, errors.New("state not found or expired")
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to validate OAuth state: %w", err)
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid userID in state: %w", err)
	}
	return userID, nil
}
