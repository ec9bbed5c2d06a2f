// Package service implements request intake.
package service

import (
	"context"
	"time"

	"claimtech_backend/internal/events"
	"claimtech_backend/internal/numbering"
	"claimtech_backend/internal/requests/repository"
	"claimtech_backend/internal/requests/transport"
	"claimtech_backend/platform/apperr"
	"claimtech_backend/platform/logger"
	"claimtech_backend/platform/phone"

	"github.com/google/uuid"
)

// AssessmentCreator creates the assessment aggregate for a request.
// Implemented by an adapter over the assessments module.
type AssessmentCreator interface {
	CreateForRequest(ctx context.Context, requestID uuid.UUID, actorName string) (assessmentID uuid.UUID, err error)
}

// Store is the persistence surface the service depends on. Implemented by
// *repository.Repository; faked in tests.
type Store interface {
	Create(ctx context.Context, req *repository.Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*repository.Request, error)
	CountForYear(ctx context.Context, year int) (int, error)
	List(ctx context.Context, limit, offset int) ([]repository.Request, error)
	Update(ctx context.Context, req *repository.Request) error
}

type Service struct {
	repo        Store
	assessments AssessmentCreator
	bus         events.Bus
	log         *logger.Logger
}

func New(repo Store, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, bus: bus, log: log}
}

// SetAssessmentCreator wires the assessments port (injected by the
// composition root to break the module cycle).
func (s *Service) SetAssessmentCreator(creator AssessmentCreator) {
	s.assessments = creator
}

// Create registers a new damage request and opens its assessment. The phone
// number is normalized to E.164 before persistence; an unparseable number
// rejects the request.
func (s *Service) Create(ctx context.Context, req transport.CreateRequest, actorName string) (*repository.Request, error) {
	normalized, err := phone.ParseE164(req.ClientPhone)
	if err != nil {
		return nil, apperr.Validation("invalid phone number").WithDetails(err.Error())
	}

	var created *repository.Request
	year := time.Now().Year()

	err = numbering.InsertWithRetry(ctx, "request", func(ctx context.Context) error {
		count, err := s.repo.CountForYear(ctx, year)
		if err != nil {
			return err
		}

		now := time.Now()
		r := &repository.Request{
			ID:                  uuid.New(),
			Number:              numbering.Format(numbering.PrefixRequest, year, count+1),
			ClientName:          req.ClientName,
			ClientPhone:         normalized,
			ClientEmail:         req.ClientEmail,
			InsurerName:         req.InsurerName,
			PolicyNumber:        req.PolicyNumber,
			VehicleMake:         req.VehicleMake,
			VehicleModel:        req.VehicleModel,
			VehicleYear:         req.VehicleYear,
			VehicleRegistration: req.VehicleRegistration,
			IncidentDate:        req.IncidentDate,
			IncidentDescription: req.IncidentDescription,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := s.repo.Create(ctx, r); err != nil {
			return err
		}
		created = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	var assessmentID uuid.UUID
	if s.assessments != nil {
		assessmentID, err = s.assessments.CreateForRequest(ctx, created.ID, actorName)
		if err != nil {
			// The request row exists; surface the failure so the client can
			// retry opening the assessment rather than silently losing it.
			return nil, apperr.Wrap(apperr.KindInternal, "request saved but assessment creation failed", err)
		}
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.RequestCreated{
			BaseEvent:     events.NewBaseEvent(),
			RequestID:     created.ID,
			RequestNumber: created.Number,
			AssessmentID:  assessmentID,
			ClientName:    created.ClientName,
			ClientEmail:   created.ClientEmail,
		})
	}

	return created, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*repository.Request, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]repository.Request, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}

// Update modifies intake details. Nil fields are left unchanged; the phone
// number is re-normalized when it changes.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req transport.UpdateRequest) (*repository.Request, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.ClientPhone != nil && *req.ClientPhone != existing.ClientPhone {
		normalized, err := phone.ParseE164(*req.ClientPhone)
		if err != nil {
			return nil, apperr.Validation("invalid phone number").WithDetails(err.Error())
		}
		existing.ClientPhone = normalized
	}
	if req.ClientName != nil {
		existing.ClientName = *req.ClientName
	}
	if req.ClientEmail != nil {
		existing.ClientEmail = *req.ClientEmail
	}
	if req.InsurerName != nil {
		existing.InsurerName = req.InsurerName
	}
	if req.PolicyNumber != nil {
		existing.PolicyNumber = req.PolicyNumber
	}
	if req.VehicleMake != nil {
		existing.VehicleMake = *req.VehicleMake
	}
	if req.VehicleModel != nil {
		existing.VehicleModel = *req.VehicleModel
	}
	if req.VehicleYear != nil {
		existing.VehicleYear = *req.VehicleYear
	}
	if req.VehicleRegistration != nil {
		existing.VehicleRegistration = *req.VehicleRegistration
	}
	if req.IncidentDate != nil {
		existing.IncidentDate = req.IncidentDate
	}
	if req.IncidentDescription != nil {
		existing.IncidentDescription = req.IncidentDescription
	}

	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// GetClientContact resolves the client behind a request, for notification
// enrichment from sibling modules.
func (s *Service) GetClientContact(ctx context.Context, requestID uuid.UUID) (string, string, error) {
	r, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return "", "", err
	}
	return r.ClientName, r.ClientEmail, nil
}
