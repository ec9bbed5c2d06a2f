package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"claimtech_backend/internal/requests/repository"
	"claimtech_backend/internal/requests/transport"
	"claimtech_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeStore struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*repository.Request
	byNumber map[string]uuid.UUID

	failCreates int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		requests: make(map[uuid.UUID]*repository.Request),
		byNumber: make(map[string]uuid.UUID),
	}
}

func (f *fakeStore) Create(_ context.Context, req *repository.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreates > 0 {
		f.failCreates--
		return &pgconn.PgError{Code: "23505", ConstraintName: "requests_number_key"}
	}
	if _, exists := f.byNumber[req.Number]; exists {
		return &pgconn.PgError{Code: "23505", ConstraintName: "requests_number_key"}
	}
	cp := *req
	f.requests[req.ID] = &cp
	f.byNumber[req.Number] = req.ID
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*repository.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[id]
	if !ok {
		return nil, apperr.NotFound("request not found")
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) CountForYear(_ context.Context, year int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, r := range f.requests {
		if r.CreatedAt.Year() == year {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) List(_ context.Context, limit, offset int) ([]repository.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []repository.Request{}
	for _, r := range f.requests {
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeStore) Update(_ context.Context, req *repository.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.requests[req.ID]; !ok {
		return apperr.NotFound("request not found")
	}
	cp := *req
	f.requests[req.ID] = &cp
	return nil
}

type fakeAssessments struct {
	created []uuid.UUID
	fail    bool
}

func (f *fakeAssessments) CreateForRequest(_ context.Context, requestID uuid.UUID, _ string) (uuid.UUID, error) {
	if f.fail {
		return uuid.Nil, errors.New("assessments unavailable")
	}
	f.created = append(f.created, requestID)
	return uuid.New(), nil
}

func validIntake() transport.CreateRequest {
	return transport.CreateRequest{
		ClientName:          "Thandi Nkosi",
		ClientPhone:         "082 555 0147",
		ClientEmail:         "thandi@example.com",
		VehicleMake:         "Toyota",
		VehicleModel:        "Corolla",
		VehicleYear:         2019,
		VehicleRegistration: "CA 123-456",
	}
}

func TestCreateNormalizesPhoneToE164(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil, nil)

	created, err := svc.Create(context.Background(), validIntake(), "tester")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ClientPhone != "+27825550147" {
		t.Errorf("phone = %q, want +27825550147", created.ClientPhone)
	}
	wantNumber := fmt.Sprintf("REQ-%d-001", time.Now().Year())
	if created.Number != wantNumber {
		t.Errorf("number = %q, want %q", created.Number, wantNumber)
	}
}

func TestCreateRejectsBadPhone(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil, nil)

	intake := validIntake()
	intake.ClientPhone = "not a number"
	_, err := svc.Create(context.Background(), intake, "tester")
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("error = %v, want validation error", err)
	}
	if len(store.requests) != 0 {
		t.Error("request persisted despite invalid phone")
	}
}

func TestCreateOpensAssessment(t *testing.T) {
	store := newFakeStore()
	assessments := &fakeAssessments{}
	svc := New(store, nil, nil)
	svc.SetAssessmentCreator(assessments)

	created, err := svc.Create(context.Background(), validIntake(), "tester")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(assessments.created) != 1 || assessments.created[0] != created.ID {
		t.Errorf("assessment creations = %v, want [%s]", assessments.created, created.ID)
	}
}

func TestCreateSurfacesAssessmentFailure(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil, nil)
	svc.SetAssessmentCreator(&fakeAssessments{fail: true})

	_, err := svc.Create(context.Background(), validIntake(), "tester")
	if !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("error = %v, want internal error", err)
	}
	// The request row survives so the assessment can be opened on retry.
	if len(store.requests) != 1 {
		t.Errorf("request count = %d, want 1", len(store.requests))
	}
}

func TestCreateRetriesNumberCollision(t *testing.T) {
	store := newFakeStore()
	store.failCreates = 2
	svc := New(store, nil, nil)

	created, err := svc.Create(context.Background(), validIntake(), "tester")
	if err != nil {
		t.Fatalf("create after collisions: %v", err)
	}
	if created.Number == "" {
		t.Error("expected a minted number after retries")
	}
}

func TestUpdateRenormalizesChangedPhone(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil, nil)

	created, err := svc.Create(context.Background(), validIntake(), "tester")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	newPhone := "083 555 0199"
	updated, err := svc.Update(context.Background(), created.ID, transport.UpdateRequest{
		ClientPhone: &newPhone,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ClientPhone != "+27835550199" {
		t.Errorf("phone = %q, want +27835550199", updated.ClientPhone)
	}
	// Nil fields stay put.
	if updated.ClientName != "Thandi Nkosi" {
		t.Errorf("name changed unexpectedly: %q", updated.ClientName)
	}
}

func TestUpdateAppliesOnlySuppliedFields(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil, nil)

	created, err := svc.Create(context.Background(), validIntake(), "tester")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	year := 2021
	insurer := "Santam"
	updated, err := svc.Update(context.Background(), created.ID, transport.UpdateRequest{
		VehicleYear: &year,
		InsurerName: &insurer,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.VehicleYear != year {
		t.Errorf("vehicle year = %d, want %d", updated.VehicleYear, year)
	}
	if updated.InsurerName == nil || *updated.InsurerName != insurer {
		t.Errorf("insurer not applied: %v", updated.InsurerName)
	}
	if updated.VehicleMake != created.VehicleMake || updated.ClientEmail != created.ClientEmail {
		t.Error("nil fields mutated")
	}
}

func TestGetClientContact(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil, nil)

	created, err := svc.Create(context.Background(), validIntake(), "tester")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	name, email, err := svc.GetClientContact(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("contact: %v", err)
	}
	if name != "Thandi Nkosi" || email != "thandi@example.com" {
		t.Errorf("contact = %q, %q", name, email)
	}

	if _, _, err := svc.GetClientContact(context.Background(), uuid.New()); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("missing request error = %v, want not found", err)
	}
}
