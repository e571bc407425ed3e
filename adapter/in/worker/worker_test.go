package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanskarm7/JobCATGmail/adapter/out/memory"
	"github.com/sanskarm7/JobCATGmail/core/domain"
	"github.com/sanskarm7/JobCATGmail/core/port/out"
)

type countingProcessor struct {
	mu       sync.Mutex
	calls    map[string]int
	failures map[string]int // remaining failures per message id
}

func newCountingProcessor() *countingProcessor {
	return &countingProcessor{calls: map[string]int{}, failures: map[string]int{}}
}

func (p *countingProcessor) Process(_ context.Context, msg *Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[msg.ID]++
	if p.failures[msg.ID] > 0 {
		p.failures[msg.ID]--
		return errors.New("transient")
	}
	return nil
}

func (p *countingProcessor) count(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[id]
}

func testPoolConfig() *PoolConfig {
	return &PoolConfig{Workers: 2, WorkerChanSize: 4, JobTimeout: time.Second, MaxRetries: 2, RetryBase: time.Millisecond}
}

func TestPoolProcessesSubmittedJobs(t *testing.T) {
	proc := newCountingProcessor()
	p := NewPool(proc, testPoolConfig(), zerolog.Nop())
	require.NoError(t, p.Start())

	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		msg := NewSyncMessage("u1", domain.SyncTriggerAsync)
		ids = append(ids, msg.ID)
		require.True(t, p.Submit(msg))
	}
	p.Stop()

	for _, id := range ids {
		assert.Equal(t, 1, proc.count(id))
	}
	assert.EqualValues(t, 5, p.Metrics().JobsProcessed)
	assert.False(t, p.Submit(NewSyncMessage("u1", domain.SyncTriggerAsync)), "stopped pool must reject")
}

func TestPoolRetriesTransientFailures(t *testing.T) {
	proc := newCountingProcessor()
	p := NewPool(proc, testPoolConfig(), zerolog.Nop())
	require.NoError(t, p.Start())
	defer p.Stop()

	msg := NewSyncMessage("u1", domain.SyncTriggerAsync)
	proc.failures[msg.ID] = 1
	require.True(t, p.Submit(msg))

	require.Eventually(t, func() bool { return p.Metrics().JobsProcessed == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, proc.count(msg.ID))
	assert.EqualValues(t, 1, p.Metrics().JobsRetried)
}

func TestPoolGivesUpAfterMaxRetries(t *testing.T) {
	proc := newCountingProcessor()
	p := NewPool(proc, testPoolConfig(), zerolog.Nop())
	require.NoError(t, p.Start())
	defer p.Stop()

	msg := NewSyncMessage("u1", domain.SyncTriggerAsync)
	proc.failures[msg.ID] = 10
	require.True(t, p.Submit(msg))

	require.Eventually(t, func() bool { return p.Metrics().JobsFailed == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, proc.count(msg.ID))
}

type captureSubmitter struct {
	msgs   []*Message
	refuse bool
}

func (s *captureSubmitter) Submit(msg *Message) bool {
	if s.refuse {
		return false
	}
	s.msgs = append(s.msgs, msg)
	return true
}

func TestStreamHandler(t *testing.T) {
	sub := &captureSubmitter{}
	h := NewStreamHandler(sub)
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, "jobcat:sync", []byte(`{"job_id":"j1","user_id":"u1","trigger":"scheduled"}`)))
	require.Len(t, sub.msgs, 1)
	assert.Equal(t, "j1", sub.msgs[0].ID)
	assert.Equal(t, domain.SyncTriggerScheduled, sub.msgs[0].Trigger)

	assert.Error(t, h.Handle(ctx, "jobcat:sync", []byte(`{nope`)))
	assert.Error(t, h.Handle(ctx, "jobcat:sync", []byte(`{"job_id":"j2"}`)))

	sub.refuse = true
	assert.Error(t, h.Handle(ctx, "jobcat:sync", []byte(`{"user_id":"u1"}`)))
}

func TestMessageFromJobDefaultsTrigger(t *testing.T) {
	msg := MessageFromJob(&out.SyncJob{UserID: "u1", Trigger: "bogus"})
	assert.Equal(t, domain.SyncTriggerAsync, msg.Trigger)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.CreatedAt.IsZero())
}

func TestLocalProducerSetsJobID(t *testing.T) {
	sub := &captureSubmitter{}
	job := &out.SyncJob{UserID: "u1", Trigger: "async"}
	require.NoError(t, NewLocalProducer(sub).PublishSync(context.Background(), job))
	assert.Equal(t, sub.msgs[0].ID, job.JobID)
}

type fakeSyncService struct {
	err     error
	trigger domain.SyncTrigger
}

func (f *fakeSyncService) Sync(_ context.Context, _ string, trigger domain.SyncTrigger, _ out.EventSink) (*domain.SyncResult, error) {
	f.trigger = trigger
	if f.err != nil {
		return nil, f.err
	}
	return &domain.SyncResult{CreatedCount: 1}, nil
}

func (f *fakeSyncService) RecentRuns(context.Context, string, int) ([]*domain.SyncRun, error) {
	return nil, nil
}

type capturePusher struct {
	types []domain.EventType
}

func (p *capturePusher) Push(_ context.Context, _ string, ev *domain.RealtimeEvent) error {
	p.types = append(p.types, ev.Type)
	return nil
}

func TestSyncProcessor(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantErr   bool
		wantEvent domain.EventType
	}{
		{"success", nil, false, domain.EventSyncCompleted},
		{"lock held", domain.ErrSyncInProgress, false, domain.EventSyncError},
		{"no mailbox", domain.ErrMailboxNotConnected, false, domain.EventSyncError},
		{"revoked", &domain.AuthorizationError{Provider: "gmail"}, false, domain.EventSyncError},
		{"transient", errors.New("network"), true, domain.EventSyncError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeSyncService{err: tt.err}
			pusher := &capturePusher{}
			p := NewSyncProcessor(svc, nil, pusher)

			err := p.ProcessSync(context.Background(), NewSyncMessage("u1", domain.SyncTriggerScheduled))
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, domain.SyncTriggerScheduled, svc.trigger)
			assert.Equal(t, []domain.EventType{tt.wantEvent}, pusher.types)
		})
	}
}

type captureProducer struct {
	jobs []*out.SyncJob
	fail string
}

func (p *captureProducer) PublishSync(_ context.Context, job *out.SyncJob) error {
	if job.UserID == p.fail {
		return errors.New("redis down")
	}
	p.jobs = append(p.jobs, job)
	return nil
}

func TestSchedulerTick(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMailboxConnectionStore()
	for _, uid := range []string{"u1", "u2", "u3"} {
		require.NoError(t, store.Upsert(ctx, &out.MailboxConnectionEntity{UserID: uid, Provider: "gmail"}))
	}
	require.NoError(t, store.Disconnect(ctx, "u3"))

	prod := &captureProducer{fail: "u2"}
	s := NewBackgroundSyncScheduler(store, prod, time.Hour)

	assert.Equal(t, 1, s.Tick(ctx))
	require.Len(t, prod.jobs, 1)
	assert.Equal(t, "u1", prod.jobs[0].UserID)
	assert.Equal(t, string(domain.SyncTriggerScheduled), prod.jobs[0].Trigger)
}
