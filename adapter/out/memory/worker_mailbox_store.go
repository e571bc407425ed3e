package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sanskarm7/JobCATGmail/core/port/out"
)

// MailboxConnectionStore keeps one grant per user.
type MailboxConnectionStore struct {
	mu     sync.Mutex
	seq    int64
	byUser map[string]*out.MailboxConnectionEntity
}

func NewMailboxConnectionStore() *MailboxConnectionStore {
	return &MailboxConnectionStore{byUser: make(map[string]*out.MailboxConnectionEntity)}
}

var _ out.MailboxConnectionRepository = (*MailboxConnectionStore)(nil)

func (s *MailboxConnectionStore) GetByUser(ctx context.Context, userID string) (*out.MailboxConnectionEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byUser[userID]
	if !ok || !e.IsConnected {
		return nil, nil
	}
	c := *e
	return &c, nil
}

func (s *MailboxConnectionStore) ListConnected(ctx context.Context) ([]*out.MailboxConnectionEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []*out.MailboxConnectionEntity
	for _, e := range s.byUser {
		if e.IsConnected {
			c := *e
			list = append(list, &c)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

// Upsert marks the grant connected. An empty refresh token keeps the stored one.
func (s *MailboxConnectionStore) Upsert(ctx context.Context, entity *out.MailboxConnectionEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if cur, ok := s.byUser[entity.UserID]; ok {
		entity.ID = cur.ID
		entity.CreatedAt = cur.CreatedAt
		if entity.RefreshToken == "" {
			entity.RefreshToken = cur.RefreshToken
		}
	} else {
		s.seq++
		entity.ID = s.seq
		entity.CreatedAt = now
	}
	entity.IsConnected = true
	entity.UpdatedAt = now
	c := *entity
	s.byUser[entity.UserID] = &c
	return nil
}

func (s *MailboxConnectionStore) UpdateTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.byUser {
		if e.ID == id {
			e.AccessToken = accessToken
			e.RefreshToken = refreshToken
			e.ExpiresAt = expiresAt
			e.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return nil
}

func (s *MailboxConnectionStore) Disconnect(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.byUser[userID]; ok {
		e.IsConnected = false
		e.UpdatedAt = time.Now().UTC()
	}
	return nil
}
