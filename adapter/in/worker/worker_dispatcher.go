package worker

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/sanskarm7/JobCATGmail/core/port/out"
	"github.com/sanskarm7/JobCATGmail/pkg/logger"
)

// Processor runs a single message.
type Processor interface {
	Process(ctx context.Context, msg *Message) error
}

// Handler routes messages to the processor for their type.
type Handler struct {
	syncProcessor *SyncProcessor
}

func NewHandler(syncProcessor *SyncProcessor) *Handler {
	return &Handler{syncProcessor: syncProcessor}
}

func (h *Handler) Process(ctx context.Context, msg *Message) error {
	logger.Debug("[Handler.Process] type=%s id=%s", msg.Type, msg.ID)

	switch msg.Type {
	case JobSyncRun:
		return h.syncProcessor.ProcessSync(ctx, msg)
	default:
		logger.Warn("[Handler.Process] unknown job type: %s", msg.Type)
		return nil
	}
}

// Submitter accepts messages for asynchronous processing.
type Submitter interface {
	Submit(msg *Message) bool
}

// StreamHandler feeds stream messages into the pool. It implements messaging.JobHandler.
type StreamHandler struct {
	pool Submitter
}

func NewStreamHandler(pool Submitter) *StreamHandler {
	return &StreamHandler{pool: pool}
}

// Handle returns an error when the job is malformed or the pool refuses it,
// which leaves the stream entry pending for redelivery.
func (h *StreamHandler) Handle(ctx context.Context, stream string, data []byte) error {
	var job out.SyncJob
	if err := json.Unmarshal(data, &job); err != nil {
		return fmt.Errorf("decode sync job from %s: %w", stream, err)
	}
	if job.UserID == "" {
		return fmt.Errorf("sync job %s from %s has no user", job.JobID, stream)
	}
	if !h.pool.Submit(MessageFromJob(&job)) {
		return fmt.Errorf("worker pool rejected job %s", job.JobID)
	}
	return nil
}

// LocalProducer implements out.MessageProducer by submitting straight to an
// in-process pool. It is used when no Redis stream is configured.
type LocalProducer struct {
	pool Submitter
}

func NewLocalProducer(pool Submitter) *LocalProducer {
	return &LocalProducer{pool: pool}
}

var _ out.MessageProducer = (*LocalProducer)(nil)

func (p *LocalProducer) PublishSync(ctx context.Context, job *out.SyncJob) error {
	msg := MessageFromJob(job)
	job.JobID = msg.ID
	if !p.pool.Submit(msg) {
		return fmt.Errorf("worker pool rejected job %s", msg.ID)
	}
	return nil
}
