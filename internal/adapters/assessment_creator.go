package adapters

import (
	"context"

	"github.com/google/uuid"

	assessmentsvc "claimtech_backend/internal/assessments/service"
)

// AssessmentCreator adapts the assessments service to the requests module's
// creation port, so intake can open the workflow without importing the
// assessments packages.
type AssessmentCreator struct {
	svc *assessmentsvc.Service
}

func NewAssessmentCreator(svc *assessmentsvc.Service) *AssessmentCreator {
	return &AssessmentCreator{svc: svc}
}

func (a *AssessmentCreator) CreateForRequest(ctx context.Context, requestID uuid.UUID, actorName string) (uuid.UUID, error) {
	created, err := a.svc.CreateForRequest(ctx, requestID, assessmentsvc.Actor{Name: actorName})
	if err != nil {
		return uuid.Nil, err
	}
	return created.ID, nil
}
