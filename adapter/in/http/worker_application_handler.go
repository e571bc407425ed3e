package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/sanskarm7/JobCATGmail/core/domain"
	"github.com/sanskarm7/JobCATGmail/core/port/in"
	"github.com/sanskarm7/JobCATGmail/pkg/apperr"
)

type ApplicationHandler struct {
	service in.ApplicationService
}

func NewApplicationHandler(service in.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{service: service}
}

func (h *ApplicationHandler) Register(router fiber.Router) {
	router.Get("/summary", h.Summary)

	apps := router.Group("/applications")
	apps.Get("/", h.List)
	apps.Post("/merge", h.Merge)
	apps.Get("/:id", h.Get)
	apps.Put("/:id/status", h.UpdateStatus)
	apps.Put("/:id/urgency", h.UpdateUrgency)
	apps.Delete("/:id", h.Delete)
}

func (h *ApplicationHandler) List(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}
	apps, err := h.service.List(c.UserContext(), userID.String())
	if err != nil {
		return toAppError(err)
	}
	return SuccessResponse(c, fiber.Map{"applications": apps, "total": len(apps)})
}

func (h *ApplicationHandler) Get(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}
	app, err := h.service.Get(c.UserContext(), userID.String(), c.Params("id"))
	if err != nil {
		return toAppError(err)
	}
	return SuccessResponse(c, app)
}

type statusRequest struct {
	Status string `json:"status"`
}

type urgencyRequest struct {
	Urgency string `json:"urgency"`
}

func (h *ApplicationHandler) UpdateStatus(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	status := domain.ApplicationStatus(strings.TrimSpace(req.Status))
	app, err := h.service.UpdateStatus(c.UserContext(), userID.String(), c.Params("id"), status)
	if err != nil {
		return toAppError(err)
	}
	return SuccessResponse(c, app)
}

func (h *ApplicationHandler) UpdateUrgency(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}
	var req urgencyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	urgency := domain.Urgency(strings.TrimSpace(req.Urgency))
	app, err := h.service.UpdateUrgency(c.UserContext(), userID.String(), c.Params("id"), urgency)
	if err != nil {
		return toAppError(err)
	}
	return SuccessResponse(c, app)
}

func (h *ApplicationHandler) Delete(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}
	id := c.Params("id")
	if err := h.service.Delete(c.UserContext(), userID.String(), id); err != nil {
		return toAppError(err)
	}
	return SuccessResponse(c, fiber.Map{"deleted": id})
}

type mergeRequest struct {
	ApplicationIDs []string `json:"applicationIds"`
	PrimaryID      string   `json:"primaryApplicationId"`
}

func (h *ApplicationHandler) Merge(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}
	var req mergeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	if len(req.ApplicationIDs) < 2 {
		return apperr.MergeValidation("at least two application ids are required", 0).
			WithDetail("requested", len(req.ApplicationIDs))
	}
	result, err := h.service.Merge(c.UserContext(), userID.String(), req.ApplicationIDs, req.PrimaryID)
	if err != nil {
		return toAppError(err)
	}
	return SuccessResponse(c, result)
}

func (h *ApplicationHandler) Summary(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return err
	}
	summary, err := h.service.Summary(c.UserContext(), userID.String())
	if err != nil {
		return toAppError(err)
	}
	return SuccessResponse(c, summary)
}
