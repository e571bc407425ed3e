package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sanskarm7/JobCATGmail/core/port/out"
)

// OAuthStateStore keeps one-shot OAuth states in process memory.
type OAuthStateStore struct {
	mu     sync.Mutex
	states map[string]stateEntry
}

type stateEntry struct {
	userID    uuid.UUID
	expiresAt time.Time
}

func NewOAuthStateStore() *OAuthStateStore {
	return &OAuthStateStore{states: make(map[string]stateEntry)}
}

var _ out.OAuthStateStore = (*OAuthStateStore)(nil)

func (s *OAuthStateStore) StoreState(ctx context.Context, state string, userID uuid.UUID, ttl time.Duration) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if userID == uuid.Nil {
		return errors.New("userID cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state] = stateEntry{userID: userID, expiresAt: time.Now().Add(ttl)}
	return nil
}

// ValidateState consumes the state; a second call with the same value fails.
func (s *OAuthStateStore) ValidateState(ctx context.Context, state string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.states[state]
	delete(s.states, state)
	if !ok || time.Now().After(e.expiresAt) {
		return uuid.Nil, errors.New("state not found or expired")
	}
	return e.userID, nil
}
