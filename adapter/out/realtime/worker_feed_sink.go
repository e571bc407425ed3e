package realtime

import (
	"context"
	"time"

	"github.com/sanskarm7/JobCATGmail/core/domain"
	"github.com/sanskarm7/JobCATGmail/core/port/out"
	"github.com/sanskarm7/JobCATGmail/pkg/logger"
)

// Pusher is the delivery half of out.RealtimePort.
type Pusher interface {
	Push(ctx context.Context, userID string, event *domain.RealtimeEvent) error
}

// FeedSink turns sync log entries into realtime events for one user.
type FeedSink struct {
	userID  string
	pushers []Pusher
}

func NewFeedSink(userID string, pushers ...Pusher) *FeedSink {
	return &FeedSink{userID: userID, pushers: pushers}
}

var _ out.EventSink = (*FeedSink)(nil)

func (s *FeedSink) Emit(ctx context.Context, entry domain.SyncLogEvent) {
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	for _, p := range s.pushers {
		// each pusher gets its own copy because Push stamps Seq
		event := &domain.RealtimeEvent{
			Type:      eventTypeFor(entry.Level),
			UserID:    s.userID,
			Data:      entry,
			Timestamp: ts,
		}
		if err := p.Push(ctx, s.userID, event); err != nil {
			logger.WithError(err).Warn("[FeedSink.Emit] user=%s level=%s", s.userID, entry.Level)
		}
	}
}

func eventTypeFor(level domain.LogLevel) domain.EventType {
	if level == domain.LogError {
		return domain.EventSyncError
	}
	return domain.EventSyncLog
}

// SinkFactory builds FeedSinks that deliver to the given pushers.
func SinkFactory(pushers ...Pusher) out.SinkFactory {
	return func(userID string) out.EventSink {
		if len(pushers) == 0 {
			return out.NopSink{}
		}
		return NewFeedSink(userID, pushers...)
	}
}
