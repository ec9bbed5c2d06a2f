package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"claimtech_backend/internal/assessments/domain"
	"claimtech_backend/internal/assessments/repository"
	"claimtech_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeStore is an in-memory Store with the same uniqueness and guard
// semantics as the Postgres repository.
type fakeStore struct {
	mu sync.Mutex

	assessments map[uuid.UUID]*repository.Assessment
	byNumber    map[string]uuid.UUID
	byRequest   map[uuid.UUID]uuid.UUID

	damage     map[uuid.UUID]*repository.DamageRecord
	valuations map[uuid.UUID]*repository.VehicleValuation
	estimates  map[string]*repository.Estimate // key: assessmentID|kind
	frc        map[uuid.UUID]*repository.FRCRecord
	tyres      map[string]*repository.Tyre // key: assessmentID|position
	photos     map[uuid.UUID]*repository.Photo

	// failCreates makes the next N assessment inserts fail with a number
	// collision, regardless of the actual number.
	failCreates int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		assessments: make(map[uuid.UUID]*repository.Assessment),
		byNumber:    make(map[string]uuid.UUID),
		byRequest:   make(map[uuid.UUID]uuid.UUID),
		damage:      make(map[uuid.UUID]*repository.DamageRecord),
		valuations:  make(map[uuid.UUID]*repository.VehicleValuation),
		estimates:   make(map[string]*repository.Estimate),
		frc:         make(map[uuid.UUID]*repository.FRCRecord),
		tyres:       make(map[string]*repository.Tyre),
		photos:      make(map[uuid.UUID]*repository.Photo),
	}
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

func (f *fakeStore) Create(_ context.Context, a *repository.Assessment) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failCreates > 0 {
		f.failCreates--
		return uniqueViolation("assessments_number_key")
	}
	if _, exists := f.byNumber[a.Number]; exists {
		return uniqueViolation("assessments_number_key")
	}
	if _, exists := f.byRequest[a.RequestID]; exists {
		return uniqueViolation("assessments_request_id_key")
	}

	cp := *a
	f.assessments[a.ID] = &cp
	f.byNumber[a.Number] = a.ID
	f.byRequest[a.RequestID] = a.ID
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*repository.Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assessments[id]
	if !ok {
		return nil, apperr.NotFound("assessment not found")
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) GetByRequestID(_ context.Context, requestID uuid.UUID) (*repository.Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byRequest[requestID]
	if !ok {
		return nil, apperr.NotFound("assessment not found")
	}
	cp := *f.assessments[id]
	return &cp, nil
}

func (f *fakeStore) CountForYear(_ context.Context, year int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, a := range f.assessments {
		if a.CreatedAt.Year() == year {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) SetInspection(_ context.Context, id, inspectionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assessments[id]
	if !ok {
		return apperr.NotFound("assessment not found")
	}
	v := inspectionID
	a.InspectionID = &v
	return nil
}

func (f *fakeStore) SetAppointment(_ context.Context, id, appointmentID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assessments[id]
	if !ok {
		return apperr.NotFound("assessment not found")
	}
	v := appointmentID
	a.AppointmentID = &v
	return nil
}

func (f *fakeStore) UpdateStage(_ context.Context, id uuid.UUID, from, to string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assessments[id]
	if !ok {
		return apperr.NotFound("assessment not found")
	}
	if a.Stage != from {
		return apperr.Conflict("assessment stage changed concurrently")
	}
	a.Stage = to
	a.UpdatedAt = time.Now()
	return nil
}

func (f *fakeStore) UpdateTabState(_ context.Context, id uuid.UUID, currentTab *string, tabsCompleted []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assessments[id]
	if !ok {
		return apperr.NotFound("assessment not found")
	}
	a.CurrentTab = currentTab
	a.TabsCompleted = tabsCompleted
	return nil
}

func (f *fakeStore) ListByStage(_ context.Context, params repository.ListParams) (*repository.ListResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	stageSet := make(map[string]bool, len(params.Stages))
	for _, s := range params.Stages {
		stageSet[s] = true
	}

	items := []repository.Assessment{}
	for _, a := range f.assessments {
		if stageSet[a.Stage] {
			items = append(items, *a)
		}
	}
	return &repository.ListResult{
		Items:    items,
		Total:    len(items),
		Page:     params.Page,
		PageSize: params.PageSize,
	}, nil
}

func estimateKey(assessmentID uuid.UUID, kind string) string {
	return assessmentID.String() + "|" + kind
}

func tyreKey(assessmentID uuid.UUID, position string) string {
	return assessmentID.String() + "|" + position
}

func (f *fakeStore) GetDamageRecord(_ context.Context, assessmentID uuid.UUID) (*repository.DamageRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.damage[assessmentID]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (f *fakeStore) CreateDamageRecord(_ context.Context, d *repository.DamageRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.damage[d.AssessmentID]; exists {
		return uniqueViolation("damage_records_assessment_id_key")
	}
	cp := *d
	f.damage[d.AssessmentID] = &cp
	return nil
}

func (f *fakeStore) UpdateDamageRecord(_ context.Context, d *repository.DamageRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.damage[d.AssessmentID]
	if !ok || existing.ID != d.ID {
		return apperr.NotFound("damage record not found")
	}
	cp := *d
	f.damage[d.AssessmentID] = &cp
	return nil
}

func (f *fakeStore) GetValuation(_ context.Context, assessmentID uuid.UUID) (*repository.VehicleValuation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.valuations[assessmentID]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (f *fakeStore) CreateValuation(_ context.Context, v *repository.VehicleValuation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.valuations[v.AssessmentID]; exists {
		return uniqueViolation("vehicle_valuations_assessment_id_key")
	}
	cp := *v
	f.valuations[v.AssessmentID] = &cp
	return nil
}

func (f *fakeStore) UpdateValuation(_ context.Context, v *repository.VehicleValuation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.valuations[v.AssessmentID]
	if !ok || existing.ID != v.ID {
		return apperr.NotFound("valuation not found")
	}
	cp := *v
	f.valuations[v.AssessmentID] = &cp
	return nil
}

func (f *fakeStore) GetEstimate(_ context.Context, assessmentID uuid.UUID, kind string) (*repository.Estimate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.estimates[estimateKey(assessmentID, kind)]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (f *fakeStore) CreateEstimate(_ context.Context, e *repository.Estimate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := estimateKey(e.AssessmentID, e.Kind)
	if _, exists := f.estimates[key]; exists {
		return uniqueViolation("estimates_assessment_id_kind_key")
	}
	cp := *e
	f.estimates[key] = &cp
	return nil
}

func (f *fakeStore) UpdateEstimate(_ context.Context, e *repository.Estimate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := estimateKey(e.AssessmentID, e.Kind)
	existing, ok := f.estimates[key]
	if !ok || existing.ID != e.ID {
		return apperr.NotFound("estimate not found")
	}
	cp := *e
	f.estimates[key] = &cp
	return nil
}

func (f *fakeStore) GetFRCRecord(_ context.Context, assessmentID uuid.UUID) (*repository.FRCRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.frc[assessmentID]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) CreateFRCRecord(_ context.Context, r *repository.FRCRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.frc[r.AssessmentID]; exists {
		return uniqueViolation("frc_records_assessment_id_key")
	}
	cp := *r
	f.frc[r.AssessmentID] = &cp
	return nil
}

func (f *fakeStore) UpdateFRCRecord(_ context.Context, r *repository.FRCRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.frc[r.AssessmentID]
	if !ok || existing.ID != r.ID {
		return apperr.NotFound("frc record not found")
	}
	cp := *r
	f.frc[r.AssessmentID] = &cp
	return nil
}

func (f *fakeStore) UpdateTyre(_ context.Context, t *repository.Tyre) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := tyreKey(t.AssessmentID, t.Position)
	if _, ok := f.tyres[key]; !ok {
		return apperr.NotFound("tyre not found")
	}
	cp := *t
	f.tyres[key] = &cp
	return nil
}

func (f *fakeStore) UpsertTyre(_ context.Context, t *repository.Tyre) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := tyreKey(t.AssessmentID, t.Position)
	if existing, ok := f.tyres[key]; ok {
		existing.UpdatedAt = t.UpdatedAt
		return nil
	}
	cp := *t
	f.tyres[key] = &cp
	return nil
}

func (f *fakeStore) ListTyres(_ context.Context, assessmentID uuid.UUID) ([]repository.Tyre, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []repository.Tyre{}
	for _, t := range f.tyres {
		if t.AssessmentID == assessmentID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeStore) CreatePhoto(_ context.Context, p *repository.Photo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.photos[p.ID] = &cp
	return nil
}

func (f *fakeStore) ListPhotos(_ context.Context, assessmentID uuid.UUID, category *string) ([]repository.Photo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []repository.Photo{}
	for _, p := range f.photos {
		if p.AssessmentID != assessmentID {
			continue
		}
		if category != nil && p.Category != *category {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeStore) DeletePhoto(_ context.Context, id, assessmentID uuid.UUID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.photos[id]
	if !ok || p.AssessmentID != assessmentID {
		return "", apperr.NotFound("photo not found")
	}
	delete(f.photos, id)
	return p.FileKey, nil
}

// fakeAudit records entries and can be told to fail.
type fakeAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
	fail    bool
}

func (f *fakeAudit) Record(_ context.Context, entry AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("audit store down")
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAudit) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

var testActor = Actor{UserID: uuid.New(), Role: RoleAdmin, Name: "tester"}

func newTestService(store Store) *Service {
	return New(store, nil, nil, nil)
}

func seedAssessment(t *testing.T, store *fakeStore, stage domain.Stage) *repository.Assessment {
	t.Helper()
	now := time.Now()
	a := &repository.Assessment{
		ID:            uuid.New(),
		Number:        fmt.Sprintf("ASM-%d-%03d", now.Year(), len(store.assessments)+1),
		RequestID:     uuid.New(),
		Stage:         string(stage),
		TabsCompleted: []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := store.Create(context.Background(), a); err != nil {
		t.Fatalf("seed assessment: %v", err)
	}
	return a
}

func TestCreateForRequestMintsSequentialNumbers(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()
	year := time.Now().Year()

	first, err := svc.CreateForRequest(ctx, uuid.New(), testActor)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := svc.CreateForRequest(ctx, uuid.New(), testActor)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	want1 := fmt.Sprintf("ASM-%d-001", year)
	want2 := fmt.Sprintf("ASM-%d-002", year)
	if first.Number != want1 {
		t.Errorf("first number = %q, want %q", first.Number, want1)
	}
	if second.Number != want2 {
		t.Errorf("second number = %q, want %q", second.Number, want2)
	}
	if first.Stage != string(domain.StageRequestSubmitted) {
		t.Errorf("initial stage = %q, want %q", first.Stage, domain.StageRequestSubmitted)
	}
}

func TestCreateForRequestIsIdempotentPerRequest(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()
	requestID := uuid.New()

	first, err := svc.CreateForRequest(ctx, requestID, testActor)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	again, err := svc.CreateForRequest(ctx, requestID, testActor)
	if err != nil {
		t.Fatalf("repeat create: %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("repeat create returned a different assessment: %s vs %s", again.ID, first.ID)
	}
	if len(store.assessments) != 1 {
		t.Errorf("assessment count = %d, want 1", len(store.assessments))
	}
}

func TestCreateForRequestRetriesNumberCollision(t *testing.T) {
	store := newFakeStore()
	store.failCreates = 1
	svc := newTestService(store)

	a, err := svc.CreateForRequest(context.Background(), uuid.New(), testActor)
	if err != nil {
		t.Fatalf("create after collision: %v", err)
	}
	if a == nil || a.Number == "" {
		t.Fatal("expected assessment with a number after retry")
	}
}

func TestCreateForRequestConcurrentNumbersAreUnique(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	const n = 8
	var wg sync.WaitGroup
	results := make([]*repository.Assessment, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.CreateForRequest(context.Background(), uuid.New(), testActor)
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			// Collisions that exhaust the retries surface as conflicts,
			// never as silent duplicates.
			if !apperr.Is(errs[i], apperr.KindConflict) {
				t.Errorf("goroutine %d: unexpected error %v", i, errs[i])
			}
			continue
		}
		if seen[results[i].Number] {
			t.Errorf("duplicate number allocated: %s", results[i].Number)
		}
		seen[results[i].Number] = true
	}
}

func TestTransitionHappyPathWalk(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()
	a := seedAssessment(t, store, domain.StageRequestSubmitted)

	inspectionID := uuid.New()
	appointmentID := uuid.New()

	steps := []struct {
		target  domain.Stage
		linkage *Linkage
	}{
		{domain.StageRequestReviewed, nil},
		{domain.StageInspectionScheduled, &Linkage{InspectionID: &inspectionID}},
		{domain.StageAppointmentScheduled, &Linkage{AppointmentID: &appointmentID}},
		{domain.StageAssessmentInProgress, nil},
		{domain.StageEstimateReview, nil},
		{domain.StageEstimateSent, nil},
		{domain.StageEstimateFinalized, nil},
		{domain.StageFRCInProgress, nil},
		{domain.StageArchived, nil},
	}

	for _, step := range steps {
		updated, err := svc.Transition(ctx, a.ID, step.target, step.linkage, testActor)
		if err != nil {
			t.Fatalf("transition to %s: %v", step.target, err)
		}
		if updated.Stage != string(step.target) {
			t.Fatalf("stage after transition = %q, want %q", updated.Stage, step.target)
		}
	}

	// Entering assessment_in_progress created the full child set.
	if store.damage[a.ID] == nil {
		t.Error("damage record not created")
	}
	if store.valuations[a.ID] == nil {
		t.Error("valuation not created")
	}
	if store.estimates[estimateKey(a.ID, repository.EstimateKindRepair)] == nil {
		t.Error("repair estimate not created")
	}
	if store.estimates[estimateKey(a.ID, repository.EstimateKindPreIncident)] == nil {
		t.Error("pre-incident estimate not created")
	}
	tyres, _ := store.ListTyres(ctx, a.ID)
	if len(tyres) != len(domain.TyrePositions) {
		t.Errorf("tyre count = %d, want %d", len(tyres), len(domain.TyrePositions))
	}
	if store.frc[a.ID] == nil {
		t.Error("frc record not created")
	}
}

func TestTransitionRejectsSkippedStage(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	a := seedAssessment(t, store, domain.StageRequestSubmitted)

	_, err := svc.Transition(context.Background(), a.ID, domain.StageAssessmentInProgress, nil, testActor)
	var invalid *domain.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("error = %v, want InvalidTransitionError", err)
	}
	if invalid.From != domain.StageRequestSubmitted || invalid.To != domain.StageAssessmentInProgress {
		t.Errorf("error names stages %q -> %q", invalid.From, invalid.To)
	}

	stored, _ := store.GetByID(context.Background(), a.ID)
	if stored.Stage != string(domain.StageRequestSubmitted) {
		t.Errorf("stage mutated on rejected transition: %q", stored.Stage)
	}
}

func TestTransitionGateBlocksWithoutInspection(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	a := seedAssessment(t, store, domain.StageRequestReviewed)

	_, err := svc.Transition(context.Background(), a.ID, domain.StageInspectionScheduled, nil, testActor)
	var gate *domain.GateViolation
	if !errors.As(err, &gate) {
		t.Fatalf("error = %v, want GateViolation", err)
	}
	if gate.Field != "inspection_id" {
		t.Errorf("gate field = %q, want inspection_id", gate.Field)
	}

	stored, _ := store.GetByID(context.Background(), a.ID)
	if stored.Stage != string(domain.StageRequestReviewed) {
		t.Errorf("stage mutated on gate violation: %q", stored.Stage)
	}
}

func TestTransitionPersistsLinkageBeforeGate(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	a := seedAssessment(t, store, domain.StageRequestReviewed)
	inspectionID := uuid.New()

	updated, err := svc.Transition(context.Background(), a.ID, domain.StageInspectionScheduled,
		&Linkage{InspectionID: &inspectionID}, testActor)
	if err != nil {
		t.Fatalf("transition with linkage: %v", err)
	}
	if updated.InspectionID == nil || *updated.InspectionID != inspectionID {
		t.Error("inspection linkage not persisted")
	}
}

func TestTransitionLinkageSurvivesGateFailure(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	a := seedAssessment(t, store, domain.StageRequestReviewed)
	inspectionID := uuid.New()

	// Supplying only the inspection while targeting appointment_scheduled
	// fails the appointment gate, but the inspection write already happened.
	_, err := svc.Transition(context.Background(), a.ID, domain.StageAppointmentScheduled,
		&Linkage{InspectionID: &inspectionID}, testActor)
	var gate *domain.GateViolation
	if !errors.As(err, &gate) {
		t.Fatalf("error = %v, want GateViolation", err)
	}
	if gate.Field != "appointment_id" {
		t.Errorf("gate field = %q, want appointment_id", gate.Field)
	}

	stored, _ := store.GetByID(context.Background(), a.ID)
	if stored.InspectionID == nil {
		t.Error("inspection linkage rolled back; linkage writes precede the gate and stick")
	}
	if stored.Stage != string(domain.StageRequestReviewed) {
		t.Errorf("stage mutated on gate violation: %q", stored.Stage)
	}
}

func TestTransitionLinkageIsImmutableOnceSet(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	a := seedAssessment(t, store, domain.StageRequestReviewed)

	original := uuid.New()
	replacement := uuid.New()

	if _, err := svc.Transition(context.Background(), a.ID, domain.StageInspectionScheduled,
		&Linkage{InspectionID: &original}, testActor); err != nil {
		t.Fatalf("first transition: %v", err)
	}

	appointmentID := uuid.New()
	updated, err := svc.Transition(context.Background(), a.ID, domain.StageAppointmentScheduled,
		&Linkage{InspectionID: &replacement, AppointmentID: &appointmentID}, testActor)
	if err != nil {
		t.Fatalf("second transition: %v", err)
	}
	if *updated.InspectionID != original {
		t.Errorf("inspection linkage overwritten: %s, want %s", *updated.InspectionID, original)
	}
}

func TestCancelFromAnyStageSkipsGatesAndChildren(t *testing.T) {
	for _, stage := range []domain.Stage{
		domain.StageRequestSubmitted,
		domain.StageInspectionScheduled,
		domain.StageEstimateReview,
		domain.StageFRCInProgress,
	} {
		t.Run(string(stage), func(t *testing.T) {
			store := newFakeStore()
			svc := newTestService(store)
			a := seedAssessment(t, store, stage)

			updated, err := svc.Transition(context.Background(), a.ID, domain.StageCancelled, nil, testActor)
			if err != nil {
				t.Fatalf("cancel from %s: %v", stage, err)
			}
			if updated.Stage != string(domain.StageCancelled) {
				t.Errorf("stage = %q, want cancelled", updated.Stage)
			}
			if store.damage[a.ID] != nil || store.frc[a.ID] != nil {
				t.Error("cancellation created child records")
			}
		})
	}
}

func TestArchiveWithoutLinkagePersists(t *testing.T) {
	for _, stage := range []domain.Stage{
		domain.StageRequestSubmitted,
		domain.StageRequestReviewed,
	} {
		t.Run(string(stage), func(t *testing.T) {
			store := newFakeStore()
			svc := newTestService(store)
			a := seedAssessment(t, store, stage)

			updated, err := svc.Transition(context.Background(), a.ID, domain.StageArchived, nil, testActor)
			if err != nil {
				t.Fatalf("archive from %s: %v", stage, err)
			}
			if updated.Stage != string(domain.StageArchived) {
				t.Errorf("stage = %q, want archived", updated.Stage)
			}
			if updated.InspectionID != nil || updated.AppointmentID != nil {
				t.Error("archiving invented linkage")
			}
		})
	}
}

func TestTransitionOutOfTerminalStageFails(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	a := seedAssessment(t, store, domain.StageArchived)

	_, err := svc.Transition(context.Background(), a.ID, domain.StageCancelled, nil, testActor)
	var invalid *domain.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("error = %v, want InvalidTransitionError", err)
	}
}

func TestTransitionUnknownStageRejected(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	a := seedAssessment(t, store, domain.StageRequestSubmitted)

	_, err := svc.Transition(context.Background(), a.ID, domain.Stage("reviewing"), nil, testActor)
	if !apperr.Is(err, apperr.KindBadRequest) {
		t.Fatalf("error = %v, want bad request", err)
	}
}

func TestTransitionConcurrentLoserGetsConflict(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	a := seedAssessment(t, store, domain.StageRequestSubmitted)
	ctx := context.Background()

	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := svc.Transition(ctx, a.ID, domain.StageRequestReviewed, nil, testActor)
			done <- err
		}()
	}

	var failures int
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			failures++
			// The loser either loses the guarded stage write or reads the
			// winner's committed stage first; both reject, neither
			// double-applies.
			var invalid *domain.InvalidTransitionError
			if !apperr.Is(err, apperr.KindConflict) && !errors.As(err, &invalid) {
				t.Errorf("loser error = %v, want conflict or invalid transition", err)
			}
		}
	}
	if failures != 1 {
		t.Errorf("failures = %d, want exactly 1 (one winner, one loser)", failures)
	}

	stored, _ := store.GetByID(ctx, a.ID)
	if stored.Stage != string(domain.StageRequestReviewed) {
		t.Errorf("final stage = %q, want request_reviewed", stored.Stage)
	}
}

func TestTransitionAuditFailureDoesNotAbort(t *testing.T) {
	store := newFakeStore()
	audit := &fakeAudit{fail: true}
	svc := New(store, audit, nil, nil)
	a := seedAssessment(t, store, domain.StageRequestSubmitted)

	updated, err := svc.Transition(context.Background(), a.ID, domain.StageRequestReviewed, nil, testActor)
	if err != nil {
		t.Fatalf("transition with failing audit: %v", err)
	}
	if updated.Stage != string(domain.StageRequestReviewed) {
		t.Errorf("stage = %q, want request_reviewed", updated.Stage)
	}
}

func TestTransitionWritesAuditEntry(t *testing.T) {
	store := newFakeStore()
	audit := &fakeAudit{}
	svc := New(store, audit, nil, nil)
	a := seedAssessment(t, store, domain.StageRequestSubmitted)

	if _, err := svc.Transition(context.Background(), a.ID, domain.StageRequestReviewed, nil, testActor); err != nil {
		t.Fatalf("transition: %v", err)
	}

	actions := audit.actions()
	if len(actions) != 1 || actions[0] != "stage_transition" {
		t.Errorf("audit actions = %v, want [stage_transition]", actions)
	}
	entry := audit.entries[0]
	if entry.Metadata["old_stage"] != string(domain.StageRequestSubmitted) ||
		entry.Metadata["new_stage"] != string(domain.StageRequestReviewed) {
		t.Errorf("audit metadata = %v", entry.Metadata)
	}
}

func TestEnsureChildrenIsIdempotent(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()
	a := seedAssessment(t, store, domain.StageAssessmentInProgress)

	first, err := svc.EnsureDamageRecord(ctx, a.ID)
	if err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	second, err := svc.EnsureDamageRecord(ctx, a.ID)
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("repeat ensure created a new record: %s vs %s", first.ID, second.ID)
	}

	if err := svc.ensureChildrenForStage(ctx, a.ID, domain.StageAssessmentInProgress); err != nil {
		t.Fatalf("ensure children: %v", err)
	}
	if err := svc.ensureChildrenForStage(ctx, a.ID, domain.StageAssessmentInProgress); err != nil {
		t.Fatalf("repeat ensure children: %v", err)
	}
	if len(store.damage) != 1 || len(store.valuations) != 1 {
		t.Errorf("duplicate children created: damage=%d valuations=%d", len(store.damage), len(store.valuations))
	}
	tyres, _ := store.ListTyres(ctx, a.ID)
	if len(tyres) != len(domain.TyrePositions) {
		t.Errorf("tyre count = %d, want %d", len(tyres), len(domain.TyrePositions))
	}
}

func TestEnsureEstimateKindsAreIndependent(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()
	a := seedAssessment(t, store, domain.StageAssessmentInProgress)

	repair, err := svc.EnsureEstimate(ctx, a.ID)
	if err != nil {
		t.Fatalf("ensure repair estimate: %v", err)
	}
	pre, err := svc.EnsurePreIncidentEstimate(ctx, a.ID)
	if err != nil {
		t.Fatalf("ensure pre-incident estimate: %v", err)
	}
	if repair.ID == pre.ID {
		t.Error("estimate kinds share a record")
	}
	if repair.Kind != repository.EstimateKindRepair || pre.Kind != repository.EstimateKindPreIncident {
		t.Errorf("kinds = %q, %q", repair.Kind, pre.Kind)
	}
}

func TestEnsureDamageRecordRecoversFromLostRace(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()
	a := seedAssessment(t, store, domain.StageAssessmentInProgress)

	// Another writer sneaks in between this service's check and create.
	winner := &repository.DamageRecord{ID: uuid.New(), AssessmentID: a.ID}
	raced := &racingStore{fakeStore: store, inject: func() {
		_ = store.CreateDamageRecord(ctx, winner)
	}}
	svcRaced := newTestService(raced)

	got, err := svcRaced.EnsureDamageRecord(ctx, a.ID)
	if err != nil {
		t.Fatalf("ensure after lost race: %v", err)
	}
	if got.ID != winner.ID {
		t.Errorf("expected the winner's record, got %s", got.ID)
	}
}

// racingStore injects a concurrent write after the existence check.
type racingStore struct {
	*fakeStore
	inject func()
	once   sync.Once
}

func (r *racingStore) GetDamageRecord(ctx context.Context, assessmentID uuid.UUID) (*repository.DamageRecord, error) {
	d, err := r.fakeStore.GetDamageRecord(ctx, assessmentID)
	if d == nil && err == nil {
		r.once.Do(r.inject)
	}
	return d, err
}

func TestAddSpareTyre(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()
	a := seedAssessment(t, store, domain.StageAssessmentInProgress)

	if _, err := svc.EnsureTyres(ctx, a.ID); err != nil {
		t.Fatalf("ensure tyres: %v", err)
	}
	tyres, err := svc.AddSpareTyre(ctx, a.ID)
	if err != nil {
		t.Fatalf("add spare: %v", err)
	}
	if len(tyres) != len(domain.TyrePositions)+1 {
		t.Errorf("tyre count = %d, want %d", len(tyres), len(domain.TyrePositions)+1)
	}

	// Repeating the spare upsert does not add a sixth row.
	tyres, err = svc.AddSpareTyre(ctx, a.ID)
	if err != nil {
		t.Fatalf("repeat add spare: %v", err)
	}
	if len(tyres) != len(domain.TyrePositions)+1 {
		t.Errorf("tyre count after repeat = %d, want %d", len(tyres), len(domain.TyrePositions)+1)
	}
}

func TestChildReadsReturnNotFoundBeforeStageEntry(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	a := seedAssessment(t, store, domain.StageRequestSubmitted)

	if _, err := svc.DamageRecord(context.Background(), a.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("damage record error = %v, want not found", err)
	}
	if _, err := svc.FRCRecord(context.Background(), a.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("frc error = %v, want not found", err)
	}
	if _, err := svc.Estimate(context.Background(), a.ID, "total"); !apperr.Is(err, apperr.KindBadRequest) {
		t.Errorf("unknown kind error = %v, want bad request", err)
	}
}

func TestUpdateDamageRecordAppliesPatchAndAudits(t *testing.T) {
	store := newFakeStore()
	audit := &fakeAudit{}
	svc := New(store, audit, nil, nil)
	ctx := context.Background()
	a := seedAssessment(t, store, domain.StageAssessmentInProgress)

	if _, err := svc.EnsureDamageRecord(ctx, a.ID); err != nil {
		t.Fatalf("ensure damage record: %v", err)
	}

	severity := "severe"
	area := "front bumper"
	d, err := svc.UpdateDamageRecord(ctx, a.ID, DamageRecordUpdate{Severity: &severity, AffectedArea: &area}, testActor)
	if err != nil {
		t.Fatalf("update damage record: %v", err)
	}
	if d.Severity == nil || *d.Severity != severity {
		t.Errorf("severity not applied: %v", d.Severity)
	}
	if d.AffectedArea == nil || *d.AffectedArea != area {
		t.Errorf("affected area not applied: %v", d.AffectedArea)
	}

	var entry *AuditEntry
	for i := range audit.entries {
		if audit.entries[i].EntityType == "damage_record" && audit.entries[i].Action == "updated" {
			entry = &audit.entries[i]
		}
	}
	if entry == nil {
		t.Fatal("no audit entry for the damage record update")
	}
	if entry.Metadata["severity"] != severity {
		t.Errorf("audit metadata severity = %v", entry.Metadata["severity"])
	}
	if entry.Actor != testActor.Name {
		t.Errorf("audit actor = %q", entry.Actor)
	}
}

func TestUpdateDamageRecordBeforeCreationIsNotFound(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	a := seedAssessment(t, store, domain.StageRequestSubmitted)

	severity := "minor"
	_, err := svc.UpdateDamageRecord(context.Background(), a.ID, DamageRecordUpdate{Severity: &severity}, testActor)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestUpdateValuationRejectsNegativeAmounts(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()
	a := seedAssessment(t, store, domain.StageAssessmentInProgress)

	if _, err := svc.EnsureValuation(ctx, a.ID); err != nil {
		t.Fatalf("ensure valuation: %v", err)
	}

	bad := int64(-100)
	if _, err := svc.UpdateValuation(ctx, a.ID, ValuationUpdate{MarketValueCents: &bad}, testActor); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("error = %v, want validation error", err)
	}

	good := int64(2_500_000)
	v, err := svc.UpdateValuation(ctx, a.ID, ValuationUpdate{MarketValueCents: &good}, testActor)
	if err != nil {
		t.Fatalf("update valuation: %v", err)
	}
	if v.MarketValueCents != good {
		t.Errorf("market value = %d, want %d", v.MarketValueCents, good)
	}
}

func TestUpdateEstimateKeepsKindsSeparate(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()
	a := seedAssessment(t, store, domain.StageAssessmentInProgress)

	if _, err := svc.EnsureEstimate(ctx, a.ID); err != nil {
		t.Fatalf("ensure estimate: %v", err)
	}
	if _, err := svc.EnsurePreIncidentEstimate(ctx, a.ID); err != nil {
		t.Fatalf("ensure pre-incident estimate: %v", err)
	}

	total := int64(480_000)
	e, err := svc.UpdateEstimate(ctx, a.ID, repository.EstimateKindRepair, EstimateUpdate{TotalCents: &total}, testActor)
	if err != nil {
		t.Fatalf("update estimate: %v", err)
	}
	if e.TotalCents != total {
		t.Errorf("total = %d, want %d", e.TotalCents, total)
	}

	pre, err := svc.Estimate(ctx, a.ID, repository.EstimateKindPreIncident)
	if err != nil {
		t.Fatalf("read pre-incident estimate: %v", err)
	}
	if pre.TotalCents != 0 {
		t.Errorf("pre-incident total mutated to %d", pre.TotalCents)
	}
}

func TestUpdateFRCRecordCompletesAndLocks(t *testing.T) {
	store := newFakeStore()
	audit := &fakeAudit{}
	svc := New(store, audit, nil, nil)
	ctx := context.Background()
	a := seedAssessment(t, store, domain.StageFRCInProgress)

	if _, err := svc.EnsureFRCRecord(ctx, a.ID); err != nil {
		t.Fatalf("ensure frc record: %v", err)
	}

	cost := int64(350_000)
	done := repository.FRCStatusCompleted
	f, err := svc.UpdateFRCRecord(ctx, a.ID, FRCUpdate{AgreedCostCents: &cost, Status: &done}, testActor)
	if err != nil {
		t.Fatalf("complete frc: %v", err)
	}
	if f.Status != repository.FRCStatusCompleted || f.AgreedCostCents != cost {
		t.Errorf("frc = %q/%d, want completed/%d", f.Status, f.AgreedCostCents, cost)
	}

	newCost := int64(1)
	if _, err := svc.UpdateFRCRecord(ctx, a.ID, FRCUpdate{AgreedCostCents: &newCost}, testActor); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("edit after completion error = %v, want validation error", err)
	}

	bogus := "postponed"
	if _, err := svc.UpdateFRCRecord(ctx, a.ID, FRCUpdate{Status: &bogus}, testActor); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("unknown status error = %v, want validation error", err)
	}
}

func TestUpdateTyreByPosition(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()
	a := seedAssessment(t, store, domain.StageAssessmentInProgress)

	if _, err := svc.EnsureTyres(ctx, a.ID); err != nil {
		t.Fatalf("ensure tyres: %v", err)
	}

	make_ := "Michelin"
	depth := 5.5
	tyres, err := svc.UpdateTyre(ctx, a.ID, "front_left", TyreUpdate{Make: &make_, TreadDepthMM: &depth}, testActor)
	if err != nil {
		t.Fatalf("update tyre: %v", err)
	}
	var found bool
	for _, ty := range tyres {
		if ty.Position == "front_left" {
			found = true
			if ty.Make == nil || *ty.Make != make_ {
				t.Errorf("make not applied: %v", ty.Make)
			}
			if ty.TreadDepthMM == nil || *ty.TreadDepthMM != depth {
				t.Errorf("tread depth not applied: %v", ty.TreadDepthMM)
			}
		}
	}
	if !found {
		t.Fatal("front_left missing from result")
	}

	if _, err := svc.UpdateTyre(ctx, a.ID, "middle", TyreUpdate{Make: &make_}, testActor); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("unknown position error = %v, want validation error", err)
	}
	if _, err := svc.UpdateTyre(ctx, a.ID, domain.TyrePositionSpare, TyreUpdate{Make: &make_}, testActor); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("unfitted spare error = %v, want not found", err)
	}
}

func TestListByStageScopesEngineers(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()
	seedAssessment(t, store, domain.StageAssessmentInProgress)

	engineerID := uuid.New()
	engineer := Actor{UserID: engineerID, Role: RoleEngineer, Name: "engineer"}

	captured := &paramCapturingStore{fakeStore: store}
	svcCapture := newTestService(captured)

	if _, err := svcCapture.ListByStage(ctx, []domain.Stage{domain.StageAssessmentInProgress}, engineer, 1, 20); err != nil {
		t.Fatalf("engineer list: %v", err)
	}
	if captured.last.EngineerID == nil || *captured.last.EngineerID != engineerID {
		t.Error("engineer scoping not applied to query params")
	}

	if _, err := svcCapture.ListByStage(ctx, []domain.Stage{domain.StageAssessmentInProgress}, testActor, 1, 20); err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if captured.last.EngineerID != nil {
		t.Error("admin list unexpectedly scoped")
	}

	if _, err := svc.ListByStage(ctx, nil, testActor, 1, 20); !apperr.Is(err, apperr.KindBadRequest) {
		t.Errorf("empty stage list error = %v, want bad request", err)
	}
	if _, err := svc.ListByStage(ctx, []domain.Stage{"wip"}, testActor, 1, 20); !apperr.Is(err, apperr.KindBadRequest) {
		t.Errorf("unknown stage error = %v, want bad request", err)
	}
}

type paramCapturingStore struct {
	*fakeStore
	last repository.ListParams
}

func (p *paramCapturingStore) ListByStage(ctx context.Context, params repository.ListParams) (*repository.ListResult, error) {
	p.last = params
	return p.fakeStore.ListByStage(ctx, params)
}

func TestListViewResolvesStageSets(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()
	seedAssessment(t, store, domain.StageArchived)
	seedAssessment(t, store, domain.StageCancelled)
	seedAssessment(t, store, domain.StageEstimateReview)

	svc := newTestService(store)

	result, err := svc.ListView(ctx, "archive", testActor, 1, 20)
	if err != nil {
		t.Fatalf("archive view: %v", err)
	}
	if result.Total != 2 {
		t.Errorf("archive total = %d, want 2 (archived + cancelled)", result.Total)
	}

	result, err = svc.ListView(ctx, "open", testActor, 1, 20)
	if err != nil {
		t.Fatalf("open view: %v", err)
	}
	if result.Total != 1 {
		t.Errorf("open total = %d, want 1", result.Total)
	}

	if _, err := svc.ListView(ctx, "everything", testActor, 1, 20); !apperr.Is(err, apperr.KindBadRequest) {
		t.Errorf("unknown view error = %v, want bad request", err)
	}
}
