package adapters

import (
	"context"

	"github.com/google/uuid"

	assessmentsvc "claimtech_backend/internal/assessments/service"
	requestsvc "claimtech_backend/internal/requests/service"
)

// ContactResolver resolves the client contact behind an assessment by
// chaining the assessments and requests services. Used by the scheduler
// worker and the notification module.
type ContactResolver struct {
	assessments *assessmentsvc.Service
	requests    *requestsvc.Service
}

func NewContactResolver(assessments *assessmentsvc.Service, requests *requestsvc.Service) *ContactResolver {
	return &ContactResolver{assessments: assessments, requests: requests}
}

func (a *ContactResolver) ResolveByAssessment(ctx context.Context, assessmentID uuid.UUID) (string, string, error) {
	assessment, err := a.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		return "", "", err
	}
	return a.requests.GetClientContact(ctx, assessment.RequestID)
}
