// Package memory holds process-local adapters used when no external stores are
// configured and as fakes in service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sanskarm7/JobCATGmail/core/domain"
	"github.com/sanskarm7/JobCATGmail/core/port/out"
)

// ApplicationStore keeps applications per user. Commit swaps the whole user map
// under the lock so a batch is either fully visible or not at all.
type ApplicationStore struct {
	mu    sync.RWMutex
	users map[string]map[string]*domain.Application
	now   func() time.Time

	// FailCommit makes the next Commit fail without applying anything.
	FailCommit error
}

func NewApplicationStore() *ApplicationStore {
	return &ApplicationStore{
		users: make(map[string]map[string]*domain.Application),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

var _ out.ApplicationRepository = (*ApplicationStore)(nil)

// Seed stores applications as-is, bypassing the batch path.
func (s *ApplicationStore) Seed(userID string, apps ...*domain.Application) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.userMap(userID)
	for _, a := range apps {
		c := a.Clone()
		c.UserID = userID
		m[c.ID] = c
	}
}

func (s *ApplicationStore) userMap(userID string) map[string]*domain.Application {
	m, ok := s.users[userID]
	if !ok {
		m = make(map[string]*domain.Application)
		s.users[userID] = m
	}
	return m
}

func (s *ApplicationStore) List(ctx context.Context, userID string) ([]*domain.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := s.users[userID]
	apps := make([]*domain.Application, 0, len(m))
	for _, a := range m {
		apps = append(apps, a.Clone())
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].ID < apps[j].ID })
	return apps, nil
}

func (s *ApplicationStore) Get(ctx context.Context, userID, id string) (*domain.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.users[userID][id]
	if !ok {
		return nil, domain.NewApplicationNotFound(id)
	}
	return a.Clone(), nil
}

func (s *ApplicationStore) GetMany(ctx context.Context, userID string, ids []string) ([]*domain.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var apps []*domain.Application
	for _, id := range ids {
		if a, ok := s.users[userID][id]; ok {
			apps = append(apps, a.Clone())
		}
	}
	return apps, nil
}

func (s *ApplicationStore) Commit(ctx context.Context, userID string, batch *domain.WriteBatch) error {
	if batch.Empty() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailCommit != nil {
		err := s.FailCommit
		s.FailCommit = nil
		return &domain.StoreCommitError{Op: "commit", Err: err}
	}

	current := s.users[userID]
	if batch.Expect != nil {
		if err := checkRevisions(current, batch); err != nil {
			return err
		}
	}

	next := make(map[string]*domain.Application, len(current)+len(batch.Puts))
	for id, a := range current {
		next[id] = a
	}
	now := s.now()
	for _, a := range batch.Puts {
		c := a.Clone()
		c.UserID = userID
		c.UpdatedAt = now
		c.Revision = 1
		if prev, ok := current[c.ID]; ok {
			c.Revision = prev.Revision + 1
		}
		next[c.ID] = c
	}
	for _, id := range batch.Deletes {
		delete(next, id)
	}
	s.users[userID] = next
	return nil
}

func checkRevisions(current map[string]*domain.Application, batch *domain.WriteBatch) error {
	for _, a := range batch.Puts {
		prev, exists := current[a.ID]
		want, guarded := batch.Expect[a.ID]
		switch {
		case guarded && (!exists || prev.Revision != want):
			return fmt.Errorf("put %s: %w", a.ID, domain.ErrRevisionConflict)
		case !guarded && exists:
			return fmt.Errorf("create %s: %w", a.ID, domain.ErrRevisionConflict)
		}
	}
	for _, id := range batch.Deletes {
		prev, exists := current[id]
		want, guarded := batch.Expect[id]
		if !guarded {
			return fmt.Errorf("delete %s: no expected revision", id)
		}
		if !exists || prev.Revision != want {
			return fmt.Errorf("delete %s: %w", id, domain.ErrRevisionConflict)
		}
	}
	return nil
}

func (s *ApplicationStore) SetManualFields(ctx context.Context, userID, id string, patch out.ManualPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.users[userID][id]
	if !ok {
		return domain.NewApplicationNotFound(id)
	}
	c := a.Clone()
	if patch.Status != nil {
		c.Status = *patch.Status
	}
	if patch.Urgency != nil {
		c.Urgency = *patch.Urgency
	}
	c.ManuallyUpdated = true
	c.UpdatedAt = s.now()
	c.Revision++
	s.users[userID][id] = c
	return nil
}

func (s *ApplicationStore) Delete(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID][id]; !ok {
		return domain.NewApplicationNotFound(id)
	}
	delete(s.users[userID], id)
	return nil
}
