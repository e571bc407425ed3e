package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sanskarm7/JobCATGmail/core/domain"
	"github.com/sanskarm7/JobCATGmail/core/port/out"
)

type CheckpointStore struct {
	mu    sync.Mutex
	byUID map[string]domain.SyncCheckpoint
}

func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{byUID: make(map[string]domain.SyncCheckpoint)}
}

var _ out.CheckpointRepository = (*CheckpointStore)(nil)

func (s *CheckpointStore) Get(ctx context.Context, userID string) (*domain.SyncCheckpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, ok := s.byUID[userID]
	if !ok {
		return nil, nil
	}
	return &cp, nil
}

// Advance never moves a checkpoint backwards.
func (s *CheckpointStore) Advance(ctx context.Context, userID string, ts time.Time, partial bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cp, ok := s.byUID[userID]; ok && cp.Timestamp.After(ts) {
		return nil
	}
	s.byUID[userID] = domain.SyncCheckpoint{UserID: userID, Timestamp: ts.UTC(), Partial: partial, UpdatedAt: time.Now().UTC()}
	return nil
}

// SyncRunStore keeps run history newest first.
type SyncRunStore struct {
	mu   sync.Mutex
	seq  int64
	runs []*domain.SyncRun
}

func NewSyncRunStore() *SyncRunStore {
	return &SyncRunStore{}
}

var _ out.SyncRunRepository = (*SyncRunStore)(nil)

func (s *SyncRunStore) Record(ctx context.Context, run *domain.SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	run.ID = s.seq
	c := *run
	c.Warnings = append([]string(nil), run.Warnings...)
	s.runs = append(s.runs, &c)
	return nil
}

func (s *SyncRunStore) ListRecent(ctx context.Context, userID string, limit int) ([]*domain.SyncRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var runs []*domain.SyncRun
	for _, r := range s.runs {
		if r.UserID == userID {
			c := *r
			runs = append(runs, &c)
		}
	}
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].ID > runs[j].ID })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Locker is a process-local per-user lock.
type Locker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocker() *Locker {
	return &Locker{held: make(map[string]struct{})}
}

var _ out.SyncLocker = (*Locker)(nil)

func (l *Locker) Acquire(ctx context.Context, userID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[userID]; ok {
		return nil, domain.ErrSyncInProgress
	}
	l.held[userID] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, userID)
			l.mu.Unlock()
		})
	}, nil
}
