// Package http exposes the JSON API over fiber.
package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/sanskarm7/JobCATGmail/core/domain"
	"github.com/sanskarm7/JobCATGmail/pkg/apperr"
)

// GetUserID extracts the authenticated user placed in Locals by the auth middleware.
func GetUserID(c *fiber.Ctx) (uuid.UUID, error) {
	userID, ok := c.Locals("user_id").(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, apperr.Unauthorized("")
	}
	return userID, nil
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

// SuccessResponse sends data in the standard envelope.
func SuccessResponse(c *fiber.Ctx, data any) error {
	return respond(c, fiber.StatusOK, data)
}

func respond(c *fiber.Ctx, status int, data any) error {
	requestID, _ := c.Locals("request_id").(string)
	return c.Status(status).JSON(APIResponse{
		Success:   true,
		Data:      data,
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// toAppError maps domain failures to their HTTP shape. The error handler renders the result.
func toAppError(err error) error {
	var (
		appErr   *apperr.AppError
		notFound *domain.NotFoundError
		mergeErr *domain.MergeValidationError
		commit   *domain.StoreCommitError
		invalid  *domain.ValidationError
	)
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return appErr
	case domain.IsAuthorization(err):
		return apperr.GmailAuth(err)
	case errors.Is(err, domain.ErrMailboxNotConnected):
		return apperr.MailboxNotConnected()
	case errors.Is(err, domain.ErrSyncInProgress):
		return apperr.SyncInProgress()
	case errors.As(err, &notFound):
		return apperr.NotFound(notFound.Resource).WithDetail("id", notFound.ID)
	case errors.As(err, &mergeErr):
		return apperr.MergeValidation(mergeErr.Error(), mergeErr.Found).WithDetail("requested", mergeErr.Requested)
	case errors.As(err, &commit):
		return apperr.StoreCommit(err)
	case errors.As(err, &invalid):
		return apperr.ValidationFailed(invalid.Error()).WithDetail("field", invalid.Field)
	default:
		return apperr.InternalWithError(err)
	}
}

// QueryLimit reads ?limit= clamped to [1, max].
func QueryLimit(c *fiber.Ctx, def, max int) int {
	limit := c.QueryInt("limit", def)
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
