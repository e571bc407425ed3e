package out

import (
	"context"

	"github.com/sanskarm7/JobCATGmail/core/domain"
)

// ApplicationRepository is the per-user application document store.
type ApplicationRepository interface {
	// List returns every application of the user in canonical shape.
	List(ctx context.Context, userID string) ([]*domain.Application, error)

	// Get returns a single application or a *domain.NotFoundError.
	Get(ctx context.Context, userID, id string) (*domain.Application, error)

	// GetMany returns the applications that exist among ids, in the order of ids.
	GetMany(ctx context.Context, userID string, ids []string) ([]*domain.Application, error)

	// Commit applies puts and deletes atomically and bumps the revision of every
	// written record. A conditional batch that no longer matches the store fails
	// with domain.ErrRevisionConflict; other failures are *domain.StoreCommitError.
	Commit(ctx context.Context, userID string, batch *domain.WriteBatch) error

	// SetManualFields updates user-edited fields, sets manuallyUpdated and a
	// server updatedAt, and bumps the revision.
	SetManualFields(ctx context.Context, userID, id string, patch ManualPatch) error

	// Delete removes one application or returns a *domain.NotFoundError.
	Delete(ctx context.Context, userID, id string) error
}

// ManualPatch holds the fields a user may edit directly. Nil fields are left alone.
type ManualPatch struct {
	Status  *domain.ApplicationStatus
	Urgency *domain.Urgency
}
