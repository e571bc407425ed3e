package messaging

import (
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func TestMessageData(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]any
		want    string
		wantErr bool
	}{
		{"ok", map[string]any{"data": `{"user_id":"u1"}`}, `{"user_id":"u1"}`, false},
		{"missing", map[string]any{"other": "x"}, "", true},
		{"not a string", map[string]any{"data": 42}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := messageData(redis.XMessage{ID: "1-0", Values: tt.values})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q", got)
			}
		})
	}
}

func TestDLQStream(t *testing.T) {
	if got := dlqStream(StreamSync); got != "jobcat:sync:dlq" {
		t.Errorf("got %s", got)
	}
	if got := dlqStream("other"); got != "other:dlq" {
		t.Errorf("got %s", got)
	}
}

func TestNewConsumerDefaults(t *testing.T) {
	c := NewConsumer(nil, &ConsumerConfig{Consumer: "w1", Logger: zerolog.Nop()})
	if c.group != DefaultGroup || len(c.streams) != 1 || c.streams[0] != StreamSync {
		t.Errorf("group=%s streams=%v", c.group, c.streams)
	}
	if c.maxRetries != 3 || c.pendingIdleTime <= 0 || c.pendingCheckInterval <= 0 {
		t.Errorf("defaults not applied: %+v", c)
	}
}
