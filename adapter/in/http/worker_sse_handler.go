package http

import (
	"bufio"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/sanskarm7/JobCATGmail/adapter/out/realtime"
	"github.com/sanskarm7/JobCATGmail/core/domain"
	"github.com/sanskarm7/JobCATGmail/core/port/out"
)

const defaultHeartbeat = 30 * time.Second

// SSEHandler streams the user's live sync feed.
type SSEHandler struct {
	realtime  out.RealtimePort
	heartbeat time.Duration
	log       zerolog.Logger
}

func NewSSEHandler(rt out.RealtimePort, log zerolog.Logger) *SSEHandler {
	return &SSEHandler{
		realtime:  rt,
		heartbeat: defaultHeartbeat,
		log:       log.With().Str("handler", "sse").Logger(),
	}
}

func (h *SSEHandler) Register(router fiber.Router) {
	router.Get("/sync-feed", h.Stream)
}

func (h *SSEHandler) Stream(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}
	uid := userID.String()
	events := h.realtime.Subscribe(uid)
	h.log.Info().Str("user_id", uid).Msg("SSE client connected")

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(h.heartbeat)
		defer ticker.Stop()
		defer func() {
			h.realtime.Unsubscribe(uid, events)
			h.log.Info().Str("user_id", uid).Msg("SSE client disconnected")
		}()

		hello := &domain.RealtimeEvent{
			Type:      domain.EventConnected,
			Data:      map[string]any{"status": "connected"},
			Timestamp: time.Now().UTC(),
		}
		if writeEvent(w, hello) != nil {
			return
		}

		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				if err := writeEvent(w, event); err != nil {
					h.log.Debug().Err(err).Msg("client disconnected during write")
					return
				}
			case <-ticker.C:
				w.WriteString(": heartbeat\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})
	return nil
}

func writeEvent(w *bufio.Writer, event *domain.RealtimeEvent) error {
	data, err := realtime.SerializeEvent(event)
	if err != nil {
		return err
	}
	w.WriteString("event: ")
	w.WriteString(string(event.Type))
	w.WriteString("\ndata: ")
	w.Write(data)
	w.WriteString("\n\n")
	return w.Flush()
}
