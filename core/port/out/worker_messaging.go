package out

import (
	"context"
	"time"
)

// MessageProducer publishes background jobs.
type MessageProducer interface {
	PublishSync(ctx context.Context, job *SyncJob) error
}

// SyncJob asks a worker to run a sync for one user.
type SyncJob struct {
	JobID       string    `json:"job_id"`
	UserID      string    `json:"user_id"`
	Trigger     string    `json:"trigger"`
	RequestedAt time.Time `json:"requested_at"`
}
