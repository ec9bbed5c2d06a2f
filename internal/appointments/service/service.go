// Package service implements appointment booking for engineer visits.
package service

import (
	"context"
	"time"

	"claimtech_backend/internal/appointments/repository"
	"claimtech_backend/internal/events"
	"claimtech_backend/internal/numbering"
	"claimtech_backend/internal/scheduler"
	"claimtech_backend/platform/apperr"
	"claimtech_backend/platform/logger"

	"github.com/google/uuid"
)

// reminderLead is how long before the visit the reminder fires.
const reminderLead = 24 * time.Hour

// Store is the persistence surface the service depends on.
type Store interface {
	Create(ctx context.Context, a *repository.Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*repository.Appointment, error)
	ListByEngineer(ctx context.Context, engineerID uuid.UUID, from time.Time) ([]repository.Appointment, error)
	ListByAssessment(ctx context.Context, assessmentID uuid.UUID) ([]repository.Appointment, error)
	CountForYear(ctx context.Context, year int) (int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Reschedule(ctx context.Context, id uuid.UUID, scheduledAt time.Time, location string) error
}

type Service struct {
	repo      Store
	bus       events.Bus
	reminders scheduler.ReminderScheduler
	log       *logger.Logger
}

func New(repo Store, bus events.Bus, reminders scheduler.ReminderScheduler, log *logger.Logger) *Service {
	return &Service{repo: repo, bus: bus, reminders: reminders, log: log}
}

// Book creates an appointment with a minted APT number, schedules its
// reminder, and announces it on the bus. Reminder scheduling is best-effort.
func (s *Service) Book(ctx context.Context, assessmentID, engineerID uuid.UUID, scheduledAt time.Time, location string, notes *string) (*repository.Appointment, error) {
	if location == "" {
		return nil, apperr.Validation("location is required")
	}
	if scheduledAt.Before(time.Now()) {
		return nil, apperr.Validation("scheduled time must be in the future")
	}
	if engineerID == uuid.Nil {
		return nil, apperr.Validation("engineer is required")
	}

	var created *repository.Appointment
	year := time.Now().Year()

	err := numbering.InsertWithRetry(ctx, "appointment", func(ctx context.Context) error {
		count, err := s.repo.CountForYear(ctx, year)
		if err != nil {
			return err
		}

		now := time.Now()
		a := &repository.Appointment{
			ID:           uuid.New(),
			Number:       numbering.Format(numbering.PrefixAppointment, year, count+1),
			AssessmentID: assessmentID,
			EngineerID:   engineerID,
			ScheduledAt:  scheduledAt,
			Location:     location,
			Notes:        notes,
			Status:       repository.StatusScheduled,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.repo.Create(ctx, a); err != nil {
			return err
		}
		created = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.scheduleReminder(ctx, created)

	if s.bus != nil {
		aid := created.AssessmentID
		s.bus.Publish(ctx, events.AppointmentScheduled{
			BaseEvent:         events.NewBaseEvent(),
			AppointmentID:     created.ID,
			AppointmentNumber: created.Number,
			AssessmentID:      &aid,
			EngineerID:        created.EngineerID,
			StartTime:         created.ScheduledAt,
			Location:          created.Location,
		})
	}

	return created, nil
}

func (s *Service) scheduleReminder(ctx context.Context, a *repository.Appointment) {
	if s.reminders == nil {
		return
	}
	runAt := a.ScheduledAt.Add(-reminderLead)
	if runAt.Before(time.Now()) {
		return
	}
	err := s.reminders.ScheduleAppointmentReminder(ctx, scheduler.AppointmentReminderPayload{
		AppointmentID: a.ID.String(),
	}, runAt)
	if err != nil && s.log != nil {
		s.log.BestEffortFailed("schedule appointment reminder", err)
	}
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*repository.Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByEngineer(ctx context.Context, engineerID uuid.UUID, from time.Time) ([]repository.Appointment, error) {
	return s.repo.ListByEngineer(ctx, engineerID, from)
}

func (s *Service) ListByAssessment(ctx context.Context, assessmentID uuid.UUID) ([]repository.Appointment, error) {
	return s.repo.ListByAssessment(ctx, assessmentID)
}

// Reschedule moves the appointment and schedules a fresh reminder for the
// new time.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, scheduledAt time.Time, location string) (*repository.Appointment, error) {
	if scheduledAt.Before(time.Now()) {
		return nil, apperr.Validation("scheduled time must be in the future")
	}
	if err := s.repo.Reschedule(ctx, id, scheduledAt, location); err != nil {
		return nil, err
	}
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.scheduleReminder(ctx, a)
	return a, nil
}

// UpdateStatus moves the appointment through its lifecycle.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	switch status {
	case repository.StatusScheduled, repository.StatusCompleted, repository.StatusNoShow, repository.StatusCancelled:
	default:
		return apperr.Validation("unknown appointment status")
	}
	return s.repo.UpdateStatus(ctx, id, status)
}
