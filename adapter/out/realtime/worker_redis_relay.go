package realtime

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/sanskarm7/JobCATGmail/core/domain"
	"github.com/sanskarm7/JobCATGmail/pkg/logger"
)

// FeedChannel is the Redis pub/sub channel carrying live feed events between processes.
const FeedChannel = "jobcat:feed"

type relayEnvelope struct {
	UserID string                `json:"user_id"`
	Event  *domain.RealtimeEvent `json:"event"`
}

// RedisRelay forwards realtime events from worker processes to the API process
// that holds the SSE connections.
type RedisRelay struct {
	client  *redis.Client
	channel string
}

func NewRedisRelay(client *redis.Client) *RedisRelay {
	return &RedisRelay{client: client, channel: FeedChannel}
}

// Push publishes the event. Nobody listening is not an error.
func (r *RedisRelay) Push(ctx context.Context, userID string, event *domain.RealtimeEvent) error {
	payload, err := json.Marshal(relayEnvelope{UserID: userID, Event: event})
	if err != nil {
		return fmt.Errorf("marshal feed event: %w", err)
	}
	return r.client.Publish(ctx, r.channel, payload).Err()
}

// Run delivers relayed events to local until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context, local Pusher) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	logger.Info("[RedisRelay.Run] listening on %s", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.deliver(ctx, local, msg.Payload)
		}
	}
}

func (r *RedisRelay) deliver(ctx context.Context, local Pusher, payload string) {
	var env relayEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil || env.Event == nil {
		logger.Warn("[RedisRelay.deliver] malformed payload: %v", err)
		return
	}
	env.Event.UserID = env.UserID
	if err := local.Push(ctx, env.UserID, env.Event); err != nil {
		logger.WithError(err).Warn("[RedisRelay.deliver] user=%s", env.UserID)
	}
}
