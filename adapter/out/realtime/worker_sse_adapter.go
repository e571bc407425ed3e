// Package realtime provides real-time communication adapters.
package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/sanskarm7/JobCATGmail/core/domain"
	"github.com/sanskarm7/JobCATGmail/core/port/out"
)

// subscriberBuffer is the per-connection backlog before events are dropped.
const subscriberBuffer = 256

// SSEAdapter implements out.RealtimePort with in-process fan-out to SSE connections.
type SSEAdapter struct {
	clients map[string]map[chan *domain.RealtimeEvent]struct{} // userID -> channels
	mu      sync.RWMutex
	log     zerolog.Logger

	messagesSent    atomic.Int64
	messagesDropped atomic.Int64
	seq             atomic.Uint64
}

func NewSSEAdapter(log zerolog.Logger) *SSEAdapter {
	return &SSEAdapter{
		clients: make(map[string]map[chan *domain.RealtimeEvent]struct{}),
		log:     log.With().Str("component", "sse_adapter").Logger(),
	}
}

var _ out.RealtimePort = (*SSEAdapter)(nil)

func (a *SSEAdapter) Subscribe(userID string) <-chan *domain.RealtimeEvent {
	a.mu.Lock()
	defer a.mu.Unlock()

	ch := make(chan *domain.RealtimeEvent, subscriberBuffer)
	if a.clients[userID] == nil {
		a.clients[userID] = make(map[chan *domain.RealtimeEvent]struct{})
	}
	a.clients[userID][ch] = struct{}{}

	a.log.Debug().
		Str("user_id", userID).
		Int("connections", len(a.clients[userID])).
		Msg("client subscribed")

	return ch
}

// Unsubscribe removes and closes the channel. Unknown channels are ignored.
func (a *SSEAdapter) Unsubscribe(userID string, ch <-chan *domain.RealtimeEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	channels, ok := a.clients[userID]
	if !ok {
		return
	}
	for c := range channels {
		if c == ch {
			delete(channels, c)
			close(c)
			break
		}
	}
	if len(channels) == 0 {
		delete(a.clients, userID)
	}

	a.log.Debug().Str("user_id", userID).Msg("client unsubscribed")
}

// Push delivers the event to every connection of the user without blocking.
// Connections whose buffer is full miss the event.
func (a *SSEAdapter) Push(ctx context.Context, userID string, event *domain.RealtimeEvent) error {
	event.Seq = a.seq.Add(1)
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	// hold the read lock while sending so Unsubscribe cannot close a channel mid-send
	a.mu.RLock()
	defer a.mu.RUnlock()

	for ch := range a.clients[userID] {
		select {
		case ch <- event:
			a.messagesSent.Add(1)
		default:
			a.messagesDropped.Add(1)
			a.log.Warn().
				Str("user_id", userID).
				Str("event_type", string(event.Type)).
				Uint64("seq", event.Seq).
				Msg("dropped event due to full buffer")
		}
	}
	return nil
}

func (a *SSEAdapter) ConnectedCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.clients)
}

func (a *SSEAdapter) IsConnected(userID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.clients[userID]) > 0
}

// SSEMetrics holds SSE adapter metrics.
type SSEMetrics struct {
	ConnectedUsers   int   `json:"connected_users"`
	TotalConnections int   `json:"total_connections"`
	MessagesSent     int64 `json:"messages_sent"`
	MessagesDropped  int64 `json:"messages_dropped"`
}

func (a *SSEAdapter) Metrics() SSEMetrics {
	a.mu.RLock()
	defer a.mu.RUnlock()

	total := 0
	for _, channels := range a.clients {
		total += len(channels)
	}
	return SSEMetrics{
		ConnectedUsers:   len(a.clients),
		TotalConnections: total,
		MessagesSent:     a.messagesSent.Load(),
		MessagesDropped:  a.messagesDropped.Load(),
	}
}

// SerializeEvent renders the data line of an SSE frame.
func SerializeEvent(event *domain.RealtimeEvent) ([]byte, error) {
	return json.Marshal(event)
}
