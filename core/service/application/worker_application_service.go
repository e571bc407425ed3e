// Package application implements the user operations on tracked applications.
package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sanskarm7/JobCATGmail/core/domain"
	"github.com/sanskarm7/JobCATGmail/core/port/in"
	"github.com/sanskarm7/JobCATGmail/core/port/out"
	"github.com/sanskarm7/JobCATGmail/pkg/logger"
)

type Service struct {
	repo out.ApplicationRepository
	now  func() time.Time
}

func NewService(repo out.ApplicationRepository) *Service {
	return &Service{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

var _ in.ApplicationService = (*Service)(nil)

func (s *Service) List(ctx context.Context, userID string) ([]*domain.Application, error) {
	apps, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	domain.SortByActivity(apps)
	return apps, nil
}

func (s *Service) Get(ctx context.Context, userID, id string) (*domain.Application, error) {
	return s.repo.Get(ctx, userID, id)
}

func (s *Service) UpdateStatus(ctx context.Context, userID, id string, status domain.ApplicationStatus) (*domain.Application, error) {
	if !status.IsValid() {
		return nil, &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
	}
	if err := s.repo.SetManualFields(ctx, userID, id, out.ManualPatch{Status: &status}); err != nil {
		return nil, err
	}
	logger.WithContext(ctx).Info("[ApplicationService.UpdateStatus] %s set to %s", id, status)
	return s.repo.Get(ctx, userID, id)
}

func (s *Service) UpdateUrgency(ctx context.Context, userID, id string, urgency domain.Urgency) (*domain.Application, error) {
	if !urgency.IsValid() {
		return nil, &domain.ValidationError{Field: "urgency", Reason: fmt.Sprintf("unknown urgency %q", urgency)}
	}
	if err := s.repo.SetManualFields(ctx, userID, id, out.ManualPatch{Urgency: &urgency}); err != nil {
		return nil, err
	}
	logger.WithContext(ctx).Info("[ApplicationService.UpdateUrgency] %s set to %s", id, urgency)
	return s.repo.Get(ctx, userID, id)
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}
	logger.WithContext(ctx).Info("[ApplicationService.Delete] deleted %s", id)
	return nil
}

// Merge folds several applications into one and deletes the rest in a single
// atomic batch. Nothing is written when fewer than two ids resolve.
// mergeAttempts bounds how often a merge is re-planned after one of its
// records changed between read and commit.
const mergeAttempts = 3

func (s *Service) Merge(ctx context.Context, userID string, ids []string, primaryID string) (*domain.MergeResult, error) {
	ids = dedupe(ids)
	for attempt := 1; ; attempt++ {
		found, err := s.repo.GetMany(ctx, userID, ids)
		if err != nil {
			return nil, fmt.Errorf("load merge candidates: %w", err)
		}
		if len(found) < 2 {
			return nil, &domain.MergeValidationError{Requested: len(ids), Found: len(found)}
		}

		rec := PlanMerge(found, primaryID, s.now())
		batch := &domain.WriteBatch{Puts: []*domain.Application{rec.Result}, Deletes: rec.AbsorbedIDs}
		batch.ExpectRevisions(found...)
		err = s.repo.Commit(ctx, userID, batch)
		if errors.Is(err, domain.ErrRevisionConflict) && attempt < mergeAttempts {
			logger.WithContext(ctx).Info("[ApplicationService.Merge] %v changed before commit, attempt %d", ids, attempt)
			continue
		}
		if err != nil {
			var sce *domain.StoreCommitError
			if !errors.As(err, &sce) {
				err = &domain.StoreCommitError{Op: "merge", Err: err}
			}
			return nil, err
		}

		logger.WithContext(ctx).Info("[ApplicationService.Merge] merged %v into %s", rec.AbsorbedIDs, rec.PrimaryID)
		return &domain.MergeResult{
			MergedApplicationID:   rec.PrimaryID,
			DeletedApplicationIDs: rec.AbsorbedIDs,
			MergedCount:           len(found),
			Application:           rec.Result,
		}, nil
	}
}

// Summary is recomputed from the store on every call.
func (s *Service) Summary(ctx context.Context, userID string) (*domain.Summary, error) {
	apps, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load applications: %w", err)
	}
	return domain.Summarize(apps), nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
