package worker

import (
	"context"
	"sync"
	"time"

	"github.com/sanskarm7/JobCATGmail/core/domain"
	"github.com/sanskarm7/JobCATGmail/core/port/out"
	"github.com/sanskarm7/JobCATGmail/pkg/logger"
)

const (
	DefaultScheduleInterval = 15 * time.Minute
	scheduleStartDelay      = 30 * time.Second
)

// BackgroundSyncScheduler periodically enqueues a scheduled sync for every
// connected mailbox. The per-user lock drops a job that overlaps a running sync.
type BackgroundSyncScheduler struct {
	mailboxes  out.MailboxConnectionRepository
	producer   out.MessageProducer
	interval   time.Duration
	startDelay time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewBackgroundSyncScheduler(mailboxes out.MailboxConnectionRepository, producer out.MessageProducer, interval time.Duration) *BackgroundSyncScheduler {
	if interval <= 0 {
		interval = DefaultScheduleInterval
	}
	return &BackgroundSyncScheduler{
		mailboxes:  mailboxes,
		producer:   producer,
		interval:   interval,
		startDelay: scheduleStartDelay,
	}
}

func (s *BackgroundSyncScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	logger.Info("[BackgroundSyncScheduler] Starting, interval=%s", s.interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

func (s *BackgroundSyncScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	logger.Info("[BackgroundSyncScheduler] Stopped")
}

func (s *BackgroundSyncScheduler) run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(s.startDelay):
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.Tick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Tick publishes one scheduled job per connected mailbox and returns how many were queued.
func (s *BackgroundSyncScheduler) Tick(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	conns, err := s.mailboxes.ListConnected(ctx)
	if err != nil {
		logger.Error("[BackgroundSyncScheduler] Failed to list connected mailboxes: %v", err)
		return 0
	}

	queued := 0
	for _, conn := range conns {
		job := &out.SyncJob{
			UserID:      conn.UserID,
			Trigger:     string(domain.SyncTriggerScheduled),
			RequestedAt: time.Now().UTC(),
		}
		if err := s.producer.PublishSync(ctx, job); err != nil {
			logger.Error("[BackgroundSyncScheduler] Failed to publish sync for user %s: %v", conn.UserID, err)
			continue
		}
		queued++
	}
	if queued > 0 {
		logger.Info("[BackgroundSyncScheduler] Queued %d scheduled syncs", queued)
	}
	return queued
}
