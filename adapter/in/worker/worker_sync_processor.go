package worker

import (
	"context"
	"errors"
	"time"

	"github.com/sanskarm7/JobCATGmail/core/domain"
	"github.com/sanskarm7/JobCATGmail/core/port/in"
	"github.com/sanskarm7/JobCATGmail/core/port/out"
	"github.com/sanskarm7/JobCATGmail/core/service/ingest"
	"github.com/sanskarm7/JobCATGmail/pkg/logger"
)

// EventPusher delivers completion events to the user's live feed.
type EventPusher interface {
	Push(ctx context.Context, userID string, event *domain.RealtimeEvent) error
}

// SyncProcessor runs queued syncs.
type SyncProcessor struct {
	syncService in.SyncService
	sinks       out.SinkFactory
	pusher      EventPusher
}

func NewSyncProcessor(syncService in.SyncService, sinks out.SinkFactory, pusher EventPusher) *SyncProcessor {
	return &SyncProcessor{syncService: syncService, sinks: sinks, pusher: pusher}
}

// ProcessSync returns an error only for failures worth retrying. A busy lock,
// a missing mailbox and revoked access are final for this job.
func (p *SyncProcessor) ProcessSync(ctx context.Context, msg *Message) error {
	log := logger.WithFields(map[string]any{"user_id": msg.UserID, "job_id": msg.ID, "trigger": msg.Trigger})

	var sink out.EventSink = out.NopSink{}
	if p.sinks != nil {
		sink = p.sinks(msg.UserID)
	}

	result, err := p.syncService.Sync(ctx, msg.UserID, msg.Trigger, sink)
	if err != nil {
		code := ingest.ErrorCode(err)
		p.push(ctx, msg.UserID, domain.EventSyncError, map[string]any{"code": code, "message": err.Error()})

		if isFinal(err) {
			log.WithError(err).Warn("[SyncProcessor.ProcessSync] not retrying: %s", code)
			return nil
		}
		return err
	}

	p.push(ctx, msg.UserID, domain.EventSyncCompleted, result)
	log.Info("[SyncProcessor.ProcessSync] created=%d updated=%d skipped=%d",
		result.CreatedCount, result.UpdatedCount, result.SkippedCount)
	return nil
}

func isFinal(err error) bool {
	return errors.Is(err, domain.ErrSyncInProgress) ||
		errors.Is(err, domain.ErrMailboxNotConnected) ||
		domain.IsAuthorization(err)
}

func (p *SyncProcessor) push(ctx context.Context, userID string, typ domain.EventType, data any) {
	if p.pusher == nil {
		return
	}
	event := &domain.RealtimeEvent{Type: typ, UserID: userID, Data: data, Timestamp: time.Now().UTC()}
	if err := p.pusher.Push(context.WithoutCancel(ctx), userID, event); err != nil {
		logger.WithError(err).Warn("[SyncProcessor.push] user=%s type=%s", userID, typ)
	}
}
