package in

import (
	"context"

	"github.com/sanskarm7/JobCATGmail/core/domain"
)

// ApplicationService exposes the user operations on tracked applications.
type ApplicationService interface {
	List(ctx context.Context, userID string) ([]*domain.Application, error)
	Get(ctx context.Context, userID, id string) (*domain.Application, error)

	// Manual edits set manuallyUpdated and freeze automatic classification.
	UpdateStatus(ctx context.Context, userID, id string, status domain.ApplicationStatus) (*domain.Application, error)
	UpdateUrgency(ctx context.Context, userID, id string, urgency domain.Urgency) (*domain.Application, error)

	Delete(ctx context.Context, userID, id string) error
	Merge(ctx context.Context, userID string, ids []string, primaryID string) (*domain.MergeResult, error)

	// Summary is computed from the current application set on every call.
	Summary(ctx context.Context, userID string) (*domain.Summary, error)
}
