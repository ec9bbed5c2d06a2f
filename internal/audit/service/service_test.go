package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"

	"claimtech_backend/internal/audit/repository"
	"claimtech_backend/internal/events"
	"claimtech_backend/platform/apperr"
)

type fakeStore struct {
	mu      sync.Mutex
	entries []repository.Entry
}

func (f *fakeStore) Insert(_ context.Context, e *repository.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *e)
	return nil
}

func (f *fakeStore) ListByEntity(_ context.Context, entityType string, entityID uuid.UUID, _ int) ([]repository.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []repository.Entry{}
	for _, e := range f.entries {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestRecordRejectsMissingFields(t *testing.T) {
	svc := New(&fakeStore{})
	err := svc.Record(context.Background(), "", uuid.New(), "created", "tester", nil)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("error = %v, want validation error", err)
	}
}

func TestHandleRecordsWorkflowEvents(t *testing.T) {
	store := &fakeStore{}
	svc := New(store)
	ctx := context.Background()

	requestID := uuid.New()
	assessmentID := uuid.New()
	childID := uuid.New()

	tests := []struct {
		name       string
		event      events.Event
		entityType string
		entityID   uuid.UUID
		action     string
	}{
		{
			name: "request created",
			event: events.RequestCreated{
				BaseEvent:     events.NewBaseEvent(),
				RequestID:     requestID,
				RequestNumber: "REQ-2026-014",
				AssessmentID:  assessmentID,
			},
			entityType: "request",
			entityID:   requestID,
			action:     "created",
		},
		{
			name: "child record created",
			event: events.ChildRecordCreated{
				BaseEvent:    events.NewBaseEvent(),
				AssessmentID: assessmentID,
				ChildKind:    "damage_record",
				ChildID:      childID,
			},
			entityType: "damage_record",
			entityID:   childID,
			action:     "created",
		},
		{
			name: "assessment closed",
			event: events.AssessmentClosed{
				BaseEvent:        events.NewBaseEvent(),
				AssessmentID:     assessmentID,
				AssessmentNumber: "ASM-2026-014",
				FinalStage:       "cancelled",
			},
			entityType: "assessment",
			entityID:   assessmentID,
			action:     "closed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.Handle(ctx, tt.event); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			got, err := svc.ListByEntity(ctx, tt.entityType, tt.entityID)
			if err != nil {
				t.Fatalf("ListByEntity() error = %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("got %d entries, want 1", len(got))
			}
			if got[0].Action != tt.action {
				t.Errorf("action = %q, want %q", got[0].Action, tt.action)
			}
			if got[0].Actor != "system" {
				t.Errorf("actor = %q, want system", got[0].Actor)
			}
		})
	}
}

func TestHandleIgnoresUnknownEvents(t *testing.T) {
	store := &fakeStore{}
	svc := New(store)

	err := svc.Handle(context.Background(), events.AppointmentScheduled{BaseEvent: events.NewBaseEvent()})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(store.entries) != 0 {
		t.Errorf("unexpected entries: %d", len(store.entries))
	}
}
