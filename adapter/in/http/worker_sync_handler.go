package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/sanskarm7/JobCATGmail/core/domain"
	"github.com/sanskarm7/JobCATGmail/core/port/in"
	"github.com/sanskarm7/JobCATGmail/core/port/out"
	"github.com/sanskarm7/JobCATGmail/pkg/apperr"
	"github.com/sanskarm7/JobCATGmail/pkg/logger"
)

type SyncHandler struct {
	service  in.SyncService
	sinks    out.SinkFactory
	producer out.MessageProducer
	limiter  fiber.Handler
}

// NewSyncHandler wires the sync endpoints. producer may be nil, which disables
// the async endpoint; limiter may be nil.
func NewSyncHandler(service in.SyncService, sinks out.SinkFactory, producer out.MessageProducer, limiter fiber.Handler) *SyncHandler {
	return &SyncHandler{service: service, sinks: sinks, producer: producer, limiter: limiter}
}

func (h *SyncHandler) Register(router fiber.Router) {
	sync := router.Group("/sync")
	if h.limiter != nil {
		sync.Post("/", h.limiter, h.Sync)
		sync.Post("/async", h.limiter, h.SyncAsync)
	} else {
		sync.Post("/", h.Sync)
		sync.Post("/async", h.SyncAsync)
	}
	sync.Get("/runs", h.Runs)
}

// Sync runs the pipeline inside the request and returns its counters.
func (h *SyncHandler) Sync(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	var sink out.EventSink = out.NopSink{}
	if h.sinks != nil {
		sink = h.sinks(userID.String())
	}

	result, err := h.service.Sync(c.UserContext(), userID.String(), domain.SyncTriggerManual, sink)
	if err != nil {
		return toAppError(err)
	}
	return SuccessResponse(c, result)
}

func (h *SyncHandler) SyncAsync(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}
	if h.producer == nil {
		return apperr.New("ASYNC_UNAVAILABLE", "background sync is not configured", fiber.StatusServiceUnavailable)
	}

	job := &out.SyncJob{
		JobID:       uuid.NewString(),
		UserID:      userID.String(),
		Trigger:     string(domain.SyncTriggerAsync),
		RequestedAt: time.Now().UTC(),
	}
	if err := h.producer.PublishSync(c.UserContext(), job); err != nil {
		logger.WithError(err).Error("[SyncHandler.SyncAsync] publish failed for %s", userID)
		return apperr.ExternalError("job queue", err)
	}
	return respond(c, fiber.StatusAccepted, fiber.Map{"job_id": job.JobID, "status": "queued"})
}

func (h *SyncHandler) Runs(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}
	runs, err := h.service.RecentRuns(c.UserContext(), userID.String(), QueryLimit(c, 20, 100))
	if err != nil {
		return toAppError(err)
	}
	return SuccessResponse(c, fiber.Map{"runs": runs})
}
