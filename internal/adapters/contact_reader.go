package adapters

import (
	"context"

	"github.com/google/uuid"

	requestsvc "claimtech_backend/internal/requests/service"
)

// ContactReader adapts the requests service to the assessments module's
// client-contact port.
type ContactReader struct {
	svc *requestsvc.Service
}

func NewContactReader(svc *requestsvc.Service) *ContactReader {
	return &ContactReader{svc: svc}
}

func (a *ContactReader) GetClientContact(ctx context.Context, requestID uuid.UUID) (string, string, error) {
	return a.svc.GetClientContact(ctx, requestID)
}
