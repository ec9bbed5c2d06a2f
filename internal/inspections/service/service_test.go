package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"claimtech_backend/internal/inspections/repository"
	"claimtech_backend/platform/apperr"
)

type fakeStore struct {
	mu          sync.Mutex
	inspections map[uuid.UUID]*repository.Inspection
}

func newFakeStore() *fakeStore {
	return &fakeStore{inspections: make(map[uuid.UUID]*repository.Inspection)}
}

func (f *fakeStore) Create(_ context.Context, i *repository.Inspection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *i
	f.inspections[i.ID] = &cp
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*repository.Inspection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.inspections[id]
	if !ok {
		return nil, apperr.NotFound("inspection not found")
	}
	cp := *i
	return &cp, nil
}

func (f *fakeStore) ListByAssessment(_ context.Context, assessmentID uuid.UUID) ([]repository.Inspection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Inspection
	for _, i := range f.inspections {
		if i.AssessmentID == assessmentID {
			out = append(out, *i)
		}
	}
	return out, nil
}

func (f *fakeStore) CountForYear(_ context.Context, year int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, i := range f.inspections {
		if i.CreatedAt.Year() == year {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) Reschedule(_ context.Context, id uuid.UUID, scheduledAt time.Time, location string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.inspections[id]
	if !ok {
		return apperr.NotFound("inspection not found")
	}
	i.ScheduledAt = scheduledAt
	i.Location = location
	i.UpdatedAt = time.Now()
	return nil
}

func TestScheduleMintsSequentialNumbers(t *testing.T) {
	store := newFakeStore()
	svc := New(store)
	assessmentID := uuid.New()
	when := time.Now().Add(48 * time.Hour)

	first, err := svc.Schedule(context.Background(), assessmentID, when, "12 Main Rd, Cape Town", nil)
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	second, err := svc.Schedule(context.Background(), assessmentID, when.Add(time.Hour), "12 Main Rd, Cape Town", nil)
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	if !strings.HasPrefix(first.Number, "INS-") {
		t.Errorf("number = %q, want INS- prefix", first.Number)
	}
	if first.Number == second.Number {
		t.Errorf("both inspections minted %q", first.Number)
	}
	if !strings.HasSuffix(second.Number, "-002") {
		t.Errorf("second number = %q, want -002 suffix", second.Number)
	}
}

func TestScheduleValidation(t *testing.T) {
	svc := New(newFakeStore())
	future := time.Now().Add(24 * time.Hour)

	tests := []struct {
		name        string
		scheduledAt time.Time
		location    string
	}{
		{"empty location", future, ""},
		{"past time", time.Now().Add(-time.Hour), "12 Main Rd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Schedule(context.Background(), uuid.New(), tt.scheduledAt, tt.location, nil)
			if !apperr.Is(err, apperr.KindValidation) {
				t.Errorf("Schedule() error = %v, want validation error", err)
			}
		})
	}
}

func TestRescheduleMovesInspection(t *testing.T) {
	store := newFakeStore()
	svc := New(store)
	created, err := svc.Schedule(context.Background(), uuid.New(), time.Now().Add(24*time.Hour), "12 Main Rd", nil)
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	newTime := time.Now().Add(72 * time.Hour)
	moved, err := svc.Reschedule(context.Background(), created.ID, newTime, "8 Church St")
	if err != nil {
		t.Fatalf("Reschedule() error = %v", err)
	}
	if !moved.ScheduledAt.Equal(newTime) {
		t.Errorf("ScheduledAt = %v, want %v", moved.ScheduledAt, newTime)
	}
	if moved.Location != "8 Church St" {
		t.Errorf("Location = %q, want %q", moved.Location, "8 Church St")
	}
}

func TestRescheduleRejectsPastTime(t *testing.T) {
	svc := New(newFakeStore())
	_, err := svc.Reschedule(context.Background(), uuid.New(), time.Now().Add(-time.Hour), "8 Church St")
	if !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("Reschedule() error = %v, want validation error", err)
	}
}

func TestListByAssessmentScopesResults(t *testing.T) {
	store := newFakeStore()
	svc := New(store)
	mine := uuid.New()
	other := uuid.New()
	when := time.Now().Add(24 * time.Hour)

	if _, err := svc.Schedule(context.Background(), mine, when, "12 Main Rd", nil); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if _, err := svc.Schedule(context.Background(), other, when, "8 Church St", nil); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	got, err := svc.ListByAssessment(context.Background(), mine)
	if err != nil {
		t.Fatalf("ListByAssessment() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].AssessmentID != mine {
		t.Errorf("AssessmentID = %v, want %v", got[0].AssessmentID, mine)
	}
}
