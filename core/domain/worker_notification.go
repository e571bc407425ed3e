package domain

import "time"

// RealtimeEvent is pushed to SSE subscribers.
type RealtimeEvent struct {
	Type      EventType `json:"type"`
	Seq       uint64    `json:"seq"`
	UserID    string    `json:"-"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

type EventType string

const (
	EventConnected     EventType = "connected"
	EventSyncLog       EventType = "sync.log"
	EventSyncCompleted EventType = "sync.completed"
	EventSyncError     EventType = "sync.error"
	EventTokenExpired  EventType = "oauth.token_expired"
)

// LogLevel classifies live-feed entries for display.
type LogLevel string

const (
	LogInfo     LogLevel = "info"
	LogStep     LogLevel = "step"
	LogProgress LogLevel = "progress"
	LogSuccess  LogLevel = "success"
	LogWarning  LogLevel = "warning"
	LogError    LogLevel = "error"
	LogCompany  LogLevel = "company"
	LogAI       LogLevel = "ai"
	LogEmail    LogLevel = "email"
)

// SyncLogEvent is one entry of the live sync feed.
type SyncLogEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     LogLevel       `json:"level"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
}
