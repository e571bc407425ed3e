package worker

import (
	"time"

	"github.com/google/uuid"

	"github.com/sanskarm7/JobCATGmail/core/domain"
	"github.com/sanskarm7/JobCATGmail/core/port/out"
)

// JobType represents the type of a job.
type JobType = string

const (
	JobSyncRun JobType = "sync.run"
)

// Message is one unit of work inside the worker pool.
type Message struct {
	ID        string             `json:"id"`
	Type      JobType            `json:"type"`
	UserID    string             `json:"user_id"`
	Trigger   domain.SyncTrigger `json:"trigger"`
	CreatedAt time.Time          `json:"created_at"`
	Retries   int                `json:"retries"`
}

func NewSyncMessage(userID string, trigger domain.SyncTrigger) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Type:      JobSyncRun,
		UserID:    userID,
		Trigger:   trigger,
		CreatedAt: time.Now().UTC(),
	}
}

// MessageFromJob converts a queued sync job. Unknown triggers become async.
func MessageFromJob(job *out.SyncJob) *Message {
	msg := NewSyncMessage(job.UserID, parseTrigger(job.Trigger))
	if job.JobID != "" {
		msg.ID = job.JobID
	}
	if !job.RequestedAt.IsZero() {
		msg.CreatedAt = job.RequestedAt
	}
	return msg
}

func parseTrigger(s string) domain.SyncTrigger {
	switch t := domain.SyncTrigger(s); t {
	case domain.SyncTriggerManual, domain.SyncTriggerAsync, domain.SyncTriggerScheduled:
		return t
	default:
		return domain.SyncTriggerAsync
	}
}
