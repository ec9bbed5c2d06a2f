// Package service implements inspection scheduling.
package service

import (
	"context"
	"time"

	"claimtech_backend/internal/inspections/repository"
	"claimtech_backend/internal/numbering"
	"claimtech_backend/platform/apperr"

	"github.com/google/uuid"
)

// Store is the persistence surface the service depends on.
type Store interface {
	Create(ctx context.Context, i *repository.Inspection) error
	GetByID(ctx context.Context, id uuid.UUID) (*repository.Inspection, error)
	ListByAssessment(ctx context.Context, assessmentID uuid.UUID) ([]repository.Inspection, error)
	CountForYear(ctx context.Context, year int) (int, error)
	Reschedule(ctx context.Context, id uuid.UUID, scheduledAt time.Time, location string) error
}

type Service struct {
	repo Store
}

func New(repo Store) *Service {
	return &Service{repo: repo}
}

// Schedule creates an inspection with a minted INS number. The caller links
// it to the assessment through the stage transition endpoint afterwards.
func (s *Service) Schedule(ctx context.Context, assessmentID uuid.UUID, scheduledAt time.Time, location string, notes *string) (*repository.Inspection, error) {
	if location == "" {
		return nil, apperr.Validation("location is required")
	}
	if scheduledAt.Before(time.Now()) {
		return nil, apperr.Validation("scheduled time must be in the future")
	}

	var created *repository.Inspection
	year := time.Now().Year()

	err := numbering.InsertWithRetry(ctx, "inspection", func(ctx context.Context) error {
		count, err := s.repo.CountForYear(ctx, year)
		if err != nil {
			return err
		}

		now := time.Now()
		i := &repository.Inspection{
			ID:           uuid.New(),
			Number:       numbering.Format(numbering.PrefixInspection, year, count+1),
			AssessmentID: assessmentID,
			ScheduledAt:  scheduledAt,
			Location:     location,
			Notes:        notes,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.repo.Create(ctx, i); err != nil {
			return err
		}
		created = i
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*repository.Inspection, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByAssessment(ctx context.Context, assessmentID uuid.UUID) ([]repository.Inspection, error) {
	return s.repo.ListByAssessment(ctx, assessmentID)
}

func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, scheduledAt time.Time, location string) (*repository.Inspection, error) {
	if scheduledAt.Before(time.Now()) {
		return nil, apperr.Validation("scheduled time must be in the future")
	}
	if err := s.repo.Reschedule(ctx, id, scheduledAt, location); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}
