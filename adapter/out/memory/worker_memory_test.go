package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sanskarm7/JobCATGmail/core/domain"
	"github.com/sanskarm7/JobCATGmail/core/port/out"
)

func TestApplicationStoreCommitIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := NewApplicationStore()
	s.Seed("u1", &domain.Application{ID: "a"}, &domain.Application{ID: "b"})

	s.FailCommit = errors.New("boom")
	err := s.Commit(ctx, "u1", &domain.WriteBatch{Puts: []*domain.Application{{ID: "c"}}, Deletes: []string{"a"}})
	var sce *domain.StoreCommitError
	if !errors.As(err, &sce) {
		t.Fatalf("expected StoreCommitError, got %v", err)
	}
	apps, _ := s.List(ctx, "u1")
	if len(apps) != 2 {
		t.Fatalf("failed commit changed state: %d apps", len(apps))
	}

	if err := s.Commit(ctx, "u1", &domain.WriteBatch{Puts: []*domain.Application{{ID: "c"}}, Deletes: []string{"a"}}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	apps, _ = s.List(ctx, "u1")
	if len(apps) != 2 || apps[0].ID != "b" || apps[1].ID != "c" {
		t.Fatalf("unexpected state after commit: %+v", apps)
	}
	if apps[1].UserID != "u1" {
		t.Errorf("userId not stamped: %q", apps[1].UserID)
	}
}

func TestApplicationStoreIsolatesUsers(t *testing.T) {
	ctx := context.Background()
	s := NewApplicationStore()
	s.Seed("u1", &domain.Application{ID: "a"})

	if _, err := s.Get(ctx, "u2", "a"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found for other user, got %v", err)
	}
	if err := s.Delete(ctx, "u2", "a"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found on delete, got %v", err)
	}
}

func TestSetManualFields(t *testing.T) {
	ctx := context.Background()
	s := NewApplicationStore()
	s.Seed("u1", &domain.Application{ID: "a", Status: domain.StatusReceived, Urgency: domain.UrgencyLow})

	st := domain.StatusOffer
	if err := s.SetManualFields(ctx, "u1", "a", out.ManualPatch{Status: &st}); err != nil {
		t.Fatal(err)
	}
	a, _ := s.Get(ctx, "u1", "a")
	if a.Status != domain.StatusOffer || a.Urgency != domain.UrgencyLow || !a.ManuallyUpdated {
		t.Fatalf("unexpected record: %+v", a)
	}
	if a.UpdatedAt.IsZero() {
		t.Error("updatedAt not set")
	}
}

func TestLockerIsExclusivePerUser(t *testing.T) {
	l := NewLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.Acquire(ctx, "u1"); !errors.Is(err, domain.ErrSyncInProgress) {
		t.Fatalf("expected ErrSyncInProgress, got %v", err)
	}
	other, err := l.Acquire(ctx, "u2")
	if err != nil {
		t.Fatalf("other user blocked: %v", err)
	}
	other()

	release()
	release()
	again, err := l.Acquire(ctx, "u1")
	if err != nil {
		t.Fatalf("lock not released: %v", err)
	}
	again()
}

func TestCheckpointStore(t *testing.T) {
	ctx := context.Background()
	s := NewCheckpointStore()
	cp, err := s.Get(ctx, "u1")
	if err != nil || cp != nil {
		t.Fatalf("expected no checkpoint, got %v %v", cp, err)
	}
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := s.Advance(ctx, "u1", ts, true); err != nil {
		t.Fatal(err)
	}
	cp, _ = s.Get(ctx, "u1")
	if !cp.Timestamp.Equal(ts) || !cp.Partial {
		t.Fatalf("checkpoint = %+v", cp)
	}

	if err := s.Advance(ctx, "u1", ts.Add(-time.Hour), false); err != nil {
		t.Fatal(err)
	}
	cp, _ = s.Get(ctx, "u1")
	if !cp.Timestamp.Equal(ts) || !cp.Partial {
		t.Fatalf("older advance changed checkpoint: %+v", cp)
	}
}

func TestSyncRunStoreNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewSyncRunStore()
	for i := 0; i < 3; i++ {
		_ = s.Record(ctx, &domain.SyncRun{UserID: "u1", Scanned: i})
	}
	_ = s.Record(ctx, &domain.SyncRun{UserID: "u2"})

	runs, _ := s.ListRecent(ctx, "u1", 2)
	if len(runs) != 2 || runs[0].Scanned != 2 || runs[1].Scanned != 1 {
		t.Fatalf("unexpected runs: %+v", runs)
	}
}

func TestOAuthStateIsSingleUse(t *testing.T) {
	ctx := context.Background()
	s := NewOAuthStateStore()
	uid := uuid.New()
	if err := s.StoreState(ctx, "st", uid, time.Minute); err != nil {
		t.Fatal(err)
	}
	got, err := s.ValidateState(ctx, "st")
	if err != nil || got != uid {
		t.Fatalf("validate: %v %v", got, err)
	}
	if _, err := s.ValidateState(ctx, "st"); err == nil {
		t.Fatal("state accepted twice")
	}
}

func TestApplicationStoreConditionalCommit(t *testing.T) {
	ctx := context.Background()
	s := NewApplicationStore()
	s.Seed("u1", &domain.Application{ID: "a", Status: domain.StatusReceived}, &domain.Application{ID: "b"})

	snapshot, _ := s.Get(ctx, "u1", "a")
	st := domain.StatusRejected
	if err := s.SetManualFields(ctx, "u1", "a", out.ManualPatch{Status: &st}); err != nil {
		t.Fatal(err)
	}

	stale := snapshot.Clone()
	stale.Status = domain.StatusOffer
	batch := &domain.WriteBatch{Puts: []*domain.Application{stale}}
	batch.ExpectRevisions(snapshot)
	if err := s.Commit(ctx, "u1", batch); !errors.Is(err, domain.ErrRevisionConflict) {
		t.Fatalf("stale put: expected revision conflict, got %v", err)
	}
	a, _ := s.Get(ctx, "u1", "a")
	if a.Status != domain.StatusRejected || !a.ManuallyUpdated {
		t.Fatalf("manual edit overwritten: %+v", a)
	}

	tests := []struct {
		name  string
		batch func() *domain.WriteBatch
	}{
		{"create over existing", func() *domain.WriteBatch {
			return &domain.WriteBatch{Puts: []*domain.Application{{ID: "b"}}, Expect: map[string]int64{}}
		}},
		{"put of vanished record", func() *domain.WriteBatch {
			return &domain.WriteBatch{Puts: []*domain.Application{{ID: "gone"}}, Expect: map[string]int64{"gone": 0}}
		}},
		{"delete at old revision", func() *domain.WriteBatch {
			return &domain.WriteBatch{Deletes: []string{"a"}, Expect: map[string]int64{"a": snapshot.Revision}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Commit(ctx, "u1", tt.batch()); !errors.Is(err, domain.ErrRevisionConflict) {
				t.Fatalf("expected revision conflict, got %v", err)
			}
		})
	}

	fresh, _ := s.Get(ctx, "u1", "a")
	fresh.Urgency = domain.UrgencyHigh
	batch = &domain.WriteBatch{Puts: []*domain.Application{fresh, {ID: "c"}}}
	batch.ExpectRevisions(fresh)
	if err := s.Commit(ctx, "u1", batch); err != nil {
		t.Fatalf("current put: %v", err)
	}
	a, _ = s.Get(ctx, "u1", "a")
	if a.Revision != fresh.Revision+1 || a.Urgency != domain.UrgencyHigh {
		t.Fatalf("unexpected record after commit: %+v", a)
	}
	if c, _ := s.Get(ctx, "u1", "c"); c == nil || c.Revision != 1 {
		t.Fatalf("created record: %+v", c)
	}
}
