package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"claimtech_backend/internal/appointments/repository"
	"claimtech_backend/internal/scheduler"
	"claimtech_backend/platform/apperr"
)

type fakeStore struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]*repository.Appointment
}

func newFakeStore() *fakeStore {
	return &fakeStore{appointments: make(map[uuid.UUID]*repository.Appointment)}
}

func (f *fakeStore) Create(_ context.Context, a *repository.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *a
	f.appointments[a.ID] = &cp
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*repository.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok {
		return nil, apperr.NotFound("appointment not found")
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) ListByEngineer(_ context.Context, engineerID uuid.UUID, from time.Time) ([]repository.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Appointment
	for _, a := range f.appointments {
		if a.EngineerID == engineerID && !a.ScheduledAt.Before(from) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeStore) ListByAssessment(_ context.Context, assessmentID uuid.UUID) ([]repository.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Appointment
	for _, a := range f.appointments {
		if a.AssessmentID == assessmentID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeStore) CountForYear(_ context.Context, year int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, a := range f.appointments {
		if a.CreatedAt.Year() == year {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok {
		return apperr.NotFound("appointment not found")
	}
	a.Status = status
	return nil
}

func (f *fakeStore) Reschedule(_ context.Context, id uuid.UUID, scheduledAt time.Time, location string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok {
		return apperr.NotFound("appointment not found")
	}
	a.ScheduledAt = scheduledAt
	a.Location = location
	return nil
}

type fakeReminders struct {
	mu        sync.Mutex
	scheduled []time.Time
	fail      bool
}

func (f *fakeReminders) ScheduleAppointmentReminder(_ context.Context, _ scheduler.AppointmentReminderPayload, runAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return context.DeadlineExceeded
	}
	f.scheduled = append(f.scheduled, runAt)
	return nil
}

func (f *fakeReminders) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.scheduled)
}

func TestBookMintsNumberAndSchedulesReminder(t *testing.T) {
	store := newFakeStore()
	reminders := &fakeReminders{}
	svc := New(store, nil, reminders, nil)
	ctx := context.Background()

	visit := time.Now().Add(72 * time.Hour)
	a, err := svc.Book(ctx, uuid.New(), uuid.New(), visit, "12 Long St, Cape Town", nil)
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	if !strings.HasPrefix(a.Number, "APT-") {
		t.Errorf("number = %q, want APT- prefix", a.Number)
	}
	if a.Status != repository.StatusScheduled {
		t.Errorf("status = %q, want %q", a.Status, repository.StatusScheduled)
	}
	if reminders.count() != 1 {
		t.Fatalf("scheduled reminders = %d, want 1", reminders.count())
	}
	wantRunAt := visit.Add(-24 * time.Hour)
	if got := reminders.scheduled[0]; !got.Equal(wantRunAt) {
		t.Errorf("reminder runs at %v, want %v", got, wantRunAt)
	}
}

func TestBookValidation(t *testing.T) {
	svc := New(newFakeStore(), nil, nil, nil)
	ctx := context.Background()
	future := time.Now().Add(48 * time.Hour)

	tests := []struct {
		name        string
		engineerID  uuid.UUID
		scheduledAt time.Time
		location    string
	}{
		{"empty location", uuid.New(), future, ""},
		{"time in the past", uuid.New(), time.Now().Add(-time.Hour), "workshop"},
		{"missing engineer", uuid.Nil, future, "workshop"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Book(ctx, uuid.New(), tt.engineerID, tt.scheduledAt, tt.location, nil)
			if !apperr.Is(err, apperr.KindValidation) {
				t.Errorf("Book() error = %v, want validation error", err)
			}
		})
	}
}

func TestBookSucceedsWhenReminderSchedulingFails(t *testing.T) {
	store := newFakeStore()
	reminders := &fakeReminders{fail: true}
	svc := New(store, nil, reminders, nil)

	a, err := svc.Book(context.Background(), uuid.New(), uuid.New(), time.Now().Add(48*time.Hour), "workshop", nil)
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if _, err := store.GetByID(context.Background(), a.ID); err != nil {
		t.Errorf("appointment not persisted: %v", err)
	}
}

func TestBookSkipsReminderInsideLeadWindow(t *testing.T) {
	reminders := &fakeReminders{}
	svc := New(newFakeStore(), nil, reminders, nil)

	// Visit is in 2 hours; the 24h-ahead reminder slot is already past.
	_, err := svc.Book(context.Background(), uuid.New(), uuid.New(), time.Now().Add(2*time.Hour), "workshop", nil)
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if reminders.count() != 0 {
		t.Errorf("scheduled reminders = %d, want 0", reminders.count())
	}
}

func TestRescheduleMovesVisitAndReschedulesReminder(t *testing.T) {
	store := newFakeStore()
	reminders := &fakeReminders{}
	svc := New(store, nil, reminders, nil)
	ctx := context.Background()

	a, err := svc.Book(ctx, uuid.New(), uuid.New(), time.Now().Add(48*time.Hour), "workshop", nil)
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	newTime := time.Now().Add(96 * time.Hour)
	moved, err := svc.Reschedule(ctx, a.ID, newTime, "client premises")
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if !moved.ScheduledAt.Equal(newTime) {
		t.Errorf("scheduled_at = %v, want %v", moved.ScheduledAt, newTime)
	}
	if moved.Location != "client premises" {
		t.Errorf("location = %q, want %q", moved.Location, "client premises")
	}
	if reminders.count() != 2 {
		t.Errorf("scheduled reminders = %d, want 2 (original plus rescheduled)", reminders.count())
	}
}

func TestRescheduleRejectsPastTime(t *testing.T) {
	svc := New(newFakeStore(), nil, nil, nil)
	_, err := svc.Reschedule(context.Background(), uuid.New(), time.Now().Add(-time.Hour), "workshop")
	if !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("Reschedule() error = %v, want validation error", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil, nil, nil)
	ctx := context.Background()

	a, err := svc.Book(ctx, uuid.New(), uuid.New(), time.Now().Add(48*time.Hour), "workshop", nil)
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	if err := svc.UpdateStatus(ctx, a.ID, repository.StatusCompleted); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	got, err := svc.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != repository.StatusCompleted {
		t.Errorf("status = %q, want %q", got.Status, repository.StatusCompleted)
	}

	if err := svc.UpdateStatus(ctx, a.ID, "postponed"); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("UpdateStatus(postponed) error = %v, want validation error", err)
	}
}
