// Package service implements the audit trail.
package service

import (
	"context"
	"time"

	"claimtech_backend/internal/audit/repository"
	"claimtech_backend/internal/events"
	"claimtech_backend/platform/apperr"

	"github.com/google/uuid"
)

const defaultListLimit = 200

// actorSystem marks entries written off the event bus rather than on behalf
// of an authenticated user.
const actorSystem = "system"

// Store is the persistence surface the service depends on.
type Store interface {
	Insert(ctx context.Context, e *repository.Entry) error
	ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit int) ([]repository.Entry, error)
}

type Service struct {
	repo Store
}

func New(repo Store) *Service {
	return &Service{repo: repo}
}

// Record appends an audit entry. Callers treat failures as best-effort; the
// service itself never retries.
func (s *Service) Record(ctx context.Context, entityType string, entityID uuid.UUID, action, actor string, metadata map[string]any) error {
	if entityType == "" || action == "" {
		return apperr.Validation("entity type and action are required")
	}
	return s.repo.Insert(ctx, &repository.Entry{
		ID:         uuid.New(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Actor:      actor,
		Metadata:   metadata,
		CreatedAt:  time.Now(),
	})
}

// RegisterHandlers subscribes the trail to workflow events published by
// other modules. Entries written here complement the synchronous audit
// writes made inside the stage transition itself.
func (s *Service) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.RequestCreated{}.EventName(), s)
	bus.Subscribe(events.ChildRecordCreated{}.EventName(), s)
	bus.Subscribe(events.AssessmentClosed{}.EventName(), s)
}

// Handle records a trail entry for each subscribed event.
func (s *Service) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.RequestCreated:
		return s.Record(ctx, "request", e.RequestID, "created", actorSystem, map[string]any{
			"number":        e.RequestNumber,
			"assessment_id": e.AssessmentID.String(),
		})
	case events.ChildRecordCreated:
		return s.Record(ctx, e.ChildKind, e.ChildID, "created", actorSystem, map[string]any{
			"assessment_id": e.AssessmentID.String(),
		})
	case events.AssessmentClosed:
		return s.Record(ctx, "assessment", e.AssessmentID, "closed", actorSystem, map[string]any{
			"number":      e.AssessmentNumber,
			"final_stage": e.FinalStage,
		})
	}
	return nil
}

// ListByEntity returns the trail for one entity, oldest first.
func (s *Service) ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]repository.Entry, error) {
	if entityType == "" {
		return nil, apperr.BadRequest("entity type is required")
	}
	return s.repo.ListByEntity(ctx, entityType, entityID, defaultListLimit)
}
