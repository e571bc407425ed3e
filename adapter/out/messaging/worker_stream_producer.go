// Package messaging provides message queue adapters.
package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sanskarm7/JobCATGmail/core/port/out"
)

// Stream names
const (
	StreamSync    = "jobcat:sync"
	StreamSyncDLQ = "jobcat:sync:dlq"

	// DefaultGroup is the consumer group shared by every worker process.
	DefaultGroup = "jobcat-workers"

	// streamMaxLen caps the stream with approximate trimming.
	streamMaxLen = 10000
)

// RedisProducer implements out.MessageProducer using Redis Streams.
type RedisProducer struct {
	client *redis.Client
}

func NewRedisProducer(client *redis.Client) *RedisProducer {
	return &RedisProducer{client: client}
}

var _ out.MessageProducer = (*RedisProducer)(nil)

// PublishSync enqueues a sync job. Missing JobID and RequestedAt are filled in.
func (p *RedisProducer) PublishSync(ctx context.Context, job *out.SyncJob) error {
	if job.UserID == "" {
		return fmt.Errorf("sync job without user")
	}
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if job.RequestedAt.IsZero() {
		job.RequestedAt = time.Now().UTC()
	}
	return p.publish(ctx, StreamSync, job)
}

func (p *RedisProducer) publish(ctx context.Context, stream string, job any) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{"data": string(data)},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", stream, err)
	}
	return nil
}
