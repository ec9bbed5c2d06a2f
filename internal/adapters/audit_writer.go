package adapters

import (
	"context"

	assessmentsvc "claimtech_backend/internal/assessments/service"
	auditsvc "claimtech_backend/internal/audit/service"
)

// AuditWriter adapts the audit service to the assessments module's
// audit port.
type AuditWriter struct {
	svc *auditsvc.Service
}

func NewAuditWriter(svc *auditsvc.Service) *AuditWriter {
	return &AuditWriter{svc: svc}
}

func (a *AuditWriter) Record(ctx context.Context, entry assessmentsvc.AuditEntry) error {
	return a.svc.Record(ctx, entry.EntityType, entry.EntityID, entry.Action, entry.Actor, entry.Metadata)
}
