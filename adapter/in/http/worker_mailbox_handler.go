package http

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sanskarm7/JobCATGmail/core/port/in"
	"github.com/sanskarm7/JobCATGmail/core/port/out"
	"github.com/sanskarm7/JobCATGmail/pkg/apperr"
	"github.com/sanskarm7/JobCATGmail/pkg/logger"
)

// OAuthStateTTL is how long a connect attempt stays valid.
const OAuthStateTTL = 10 * time.Minute

type MailboxHandler struct {
	service     in.MailboxAuthService
	states      out.OAuthStateStore
	frontendURL string
}

func NewMailboxHandler(service in.MailboxAuthService, states out.OAuthStateStore, frontendURL string) *MailboxHandler {
	return &MailboxHandler{service: service, states: states, frontendURL: frontendURL}
}

// Register mounts the authenticated mailbox routes.
func (h *MailboxHandler) Register(router fiber.Router) {
	mb := router.Group("/mailbox")
	mb.Get("/", h.Status)
	mb.Get("/connect", h.Connect)
	mb.Delete("/", h.Disconnect)
}

// RegisterCallback mounts the public redirect target. Google calls it without our bearer token.
func (h *MailboxHandler) RegisterCallback(router fiber.Router) {
	router.Get("/oauth/google/callback", h.Callback)
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func (h *MailboxHandler) Connect(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}

	state, err := generateState()
	if err != nil {
		return apperr.InternalWithError(err)
	}
	if err := h.states.StoreState(c.UserContext(), state, userID, OAuthStateTTL); err != nil {
		logger.WithError(err).Error("[MailboxHandler.Connect] failed to store state")
		return apperr.InternalWithError(err)
	}

	return SuccessResponse(c, fiber.Map{
		"auth_url": h.service.GetAuthURL(c.UserContext(), state),
		"state":    state,
	})
}

func (h *MailboxHandler) Callback(c *fiber.Ctx) error {
	if e := c.Query("error"); e != "" {
		logger.Warn("[MailboxHandler.Callback] provider error: %s", e)
		return h.redirect(c, url.Values{"mailbox": {"error"}, "error": {e}})
	}

	code, state := c.Query("code"), c.Query("state")
	if code == "" || state == "" {
		return h.redirect(c, url.Values{"mailbox": {"error"}, "error": {"missing_code_or_state"}})
	}

	userID, err := h.states.ValidateState(c.UserContext(), state)
	if err != nil {
		logger.WithError(err).Warn("[MailboxHandler.Callback] state validation failed")
		return h.redirect(c, url.Values{"mailbox": {"error"}, "error": {"invalid_state"}})
	}

	conn, err := h.service.HandleCallback(c.UserContext(), code, userID)
	if err != nil {
		logger.WithError(err).Error("[MailboxHandler.Callback] connect failed for %s", userID)
		return h.redirect(c, url.Values{"mailbox": {"error"}, "error": {"oauth_failed"}})
	}

	logger.Info("[MailboxHandler.Callback] connected %s for %s", conn.Email, userID)
	return h.redirect(c, url.Values{"mailbox": {"connected"}})
}

func (h *MailboxHandler) redirect(c *fiber.Ctx, q url.Values) error {
	return c.Redirect(h.frontendURL+"/settings?"+q.Encode(), fiber.StatusFound)
}

func (h *MailboxHandler) Status(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}
	conn, err := h.service.Status(c.UserContext(), userID)
	if err != nil {
		return toAppError(err)
	}
	if conn == nil {
		return SuccessResponse(c, fiber.Map{"connected": false})
	}
	return SuccessResponse(c, fiber.Map{"connected": true, "connection": conn})
}

func (h *MailboxHandler) Disconnect(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}
	if err := h.service.Disconnect(c.UserContext(), userID); err != nil {
		return toAppError(err)
	}
	return SuccessResponse(c, fiber.Map{"connected": false})
}
