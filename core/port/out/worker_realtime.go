package out

import (
	"context"

	"github.com/sanskarm7/JobCATGmail/core/domain"
)

// RealtimePort delivers events to connected SSE clients.
type RealtimePort interface {
	Subscribe(userID string) <-chan *domain.RealtimeEvent
	Unsubscribe(userID string, ch <-chan *domain.RealtimeEvent)
	Push(ctx context.Context, userID string, event *domain.RealtimeEvent) error
	ConnectedCount() int
	IsConnected(userID string) bool
}

// EventSink receives the live sync feed of one invocation. Emit may be called
// concurrently and must not block.
type EventSink interface {
	Emit(ctx context.Context, event domain.SyncLogEvent)
}

// SinkFactory builds the sink for a user's sync.
type SinkFactory func(userID string) EventSink

// NopSink drops every event.
type NopSink struct{}

func (NopSink) Emit(context.Context, domain.SyncLogEvent) {}
