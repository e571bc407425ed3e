package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSyncInProgress is returned when another sync holds the user's lock.
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrMailboxNotConnected is returned when the user has no mailbox grant.
	ErrMailboxNotConnected = errors.New("mailbox not connected")
	// ErrMessageGone is returned when a listed message no longer exists.
	ErrMessageGone = errors.New("message no longer exists")
	// ErrRevisionConflict is returned when a conditional batch finds a record
	// that changed, appeared or vanished since it was read.
	ErrRevisionConflict = errors.New("application changed since it was read")
)

// AuthorizationError means mailbox access was revoked or lacks scope.
type AuthorizationError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *AuthorizationError) Error() string {
	msg := fmt.Sprintf("%s authorization failed", e.Provider)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthorizationError) Unwrap() error { return e.Err }

// ClassificationError is absorbed inside the classifier and surfaces as Judgment.Failed.
type ClassificationError struct {
	Stage string
	Err   error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classification failed at %s: %v", e.Stage, e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// ExtractionError describes a malformed message part; extraction continues past it.
type ExtractionError struct {
	MessageID string
	Part      string
	Err       error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s (%s): %v", e.MessageID, e.Part, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func NewApplicationNotFound(id string) error {
	return &NotFoundError{Resource: "application", ID: id}
}

// MergeValidationError is returned before any write when a merge cannot proceed.
type MergeValidationError struct {
	Requested int
	Found     int
}

func (e *MergeValidationError) Error() string {
	return fmt.Sprintf("merge needs at least 2 existing applications, found %d of %d", e.Found, e.Requested)
}

// StoreCommitError wraps a failed atomic batch. None of the batch was applied.
type StoreCommitError struct {
	Op  string
	Err error
}

func (e *StoreCommitError) Error() string {
	return fmt.Sprintf("store commit %s: %v", e.Op, e.Err)
}

func (e *StoreCommitError) Unwrap() error { return e.Err }

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsAuthorization(err error) bool {
	var ae *AuthorizationError
	return errors.As(err, &ae)
}
