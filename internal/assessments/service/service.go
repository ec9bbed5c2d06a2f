package service

import (
	"context"
	"time"

	"claimtech_backend/internal/assessments/domain"
	"claimtech_backend/internal/assessments/repository"
	"claimtech_backend/internal/events"
	"claimtech_backend/internal/numbering"
	"claimtech_backend/platform/apperr"
	"claimtech_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the persistence surface the service depends on. Implemented by
// *repository.Repository; faked in tests.
type Store interface {
	Create(ctx context.Context, a *repository.Assessment) error
	GetByID(ctx context.Context, id uuid.UUID) (*repository.Assessment, error)
	GetByRequestID(ctx context.Context, requestID uuid.UUID) (*repository.Assessment, error)
	CountForYear(ctx context.Context, year int) (int, error)
	SetInspection(ctx context.Context, id, inspectionID uuid.UUID) error
	SetAppointment(ctx context.Context, id, appointmentID uuid.UUID) error
	UpdateStage(ctx context.Context, id uuid.UUID, from, to string) error
	UpdateTabState(ctx context.Context, id uuid.UUID, currentTab *string, tabsCompleted []string) error
	ListByStage(ctx context.Context, params repository.ListParams) (*repository.ListResult, error)

	GetDamageRecord(ctx context.Context, assessmentID uuid.UUID) (*repository.DamageRecord, error)
	CreateDamageRecord(ctx context.Context, d *repository.DamageRecord) error
	UpdateDamageRecord(ctx context.Context, d *repository.DamageRecord) error
	GetValuation(ctx context.Context, assessmentID uuid.UUID) (*repository.VehicleValuation, error)
	CreateValuation(ctx context.Context, v *repository.VehicleValuation) error
	UpdateValuation(ctx context.Context, v *repository.VehicleValuation) error
	GetEstimate(ctx context.Context, assessmentID uuid.UUID, kind string) (*repository.Estimate, error)
	CreateEstimate(ctx context.Context, e *repository.Estimate) error
	UpdateEstimate(ctx context.Context, e *repository.Estimate) error
	GetFRCRecord(ctx context.Context, assessmentID uuid.UUID) (*repository.FRCRecord, error)
	CreateFRCRecord(ctx context.Context, f *repository.FRCRecord) error
	UpdateFRCRecord(ctx context.Context, f *repository.FRCRecord) error
	UpsertTyre(ctx context.Context, t *repository.Tyre) error
	UpdateTyre(ctx context.Context, t *repository.Tyre) error
	ListTyres(ctx context.Context, assessmentID uuid.UUID) ([]repository.Tyre, error)
	CreatePhoto(ctx context.Context, p *repository.Photo) error
	ListPhotos(ctx context.Context, assessmentID uuid.UUID, category *string) ([]repository.Photo, error)
	DeletePhoto(ctx context.Context, id, assessmentID uuid.UUID) (string, error)
}

// AuditEntry is the audit payload this service emits.
type AuditEntry struct {
	EntityType string
	EntityID   uuid.UUID
	Action     string
	Actor      string
	Metadata   map[string]any
}

// AuditWriter records immutable audit entries. Writes from this service are
// best-effort: a failed audit write is logged and never aborts the primary
// operation.
type AuditWriter interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// ContactReader resolves the client contact behind an assessment's request,
// used to enrich notification events.
type ContactReader interface {
	GetClientContact(ctx context.Context, requestID uuid.UUID) (name, email string, err error)
}

// ObjectRemover deletes stored photo binaries when their metadata row is
// removed. Removal is best-effort.
type ObjectRemover interface {
	RemoveObject(ctx context.Context, fileKey string) error
}

// Actor identifies who is performing an operation, for audit trails and
// engineer scoping of list views.
type Actor struct {
	UserID uuid.UUID
	Role   string
	Name   string
}

// Roles recognised by the list projections.
const (
	RoleAdmin    = "admin"
	RoleEngineer = "engineer"
)

// Service is the only sanctioned mutator of assessment stage.
type Service struct {
	store    Store
	audit    AuditWriter
	contacts ContactReader
	objects  ObjectRemover
	bus      events.Bus
	log      *logger.Logger
}

// New creates a new assessments service.
func New(store Store, audit AuditWriter, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		store: store,
		audit: audit,
		bus:   bus,
		log:   log,
	}
}

// SetContactReader wires the client-contact port (breaks the circular
// dependency with the requests module).
func (s *Service) SetContactReader(contacts ContactReader) {
	s.contacts = contacts
}

// SetAuditWriter wires the audit trail port.
func (s *Service) SetAuditWriter(audit AuditWriter) {
	s.audit = audit
}

// SetObjectRemover wires object-storage cleanup for deleted photos.
func (s *Service) SetObjectRemover(objects ObjectRemover) {
	s.objects = objects
}

// CreateForRequest creates the assessment aggregate for a newly submitted
// request. Exactly one assessment exists per request: a repeat call returns
// the existing row. The business number is minted with the bounded
// retry-on-conflict discipline.
func (s *Service) CreateForRequest(ctx context.Context, requestID uuid.UUID, actor Actor) (*repository.Assessment, error) {
	existing, err := s.store.GetByRequestID(ctx, requestID)
	if err == nil {
		return existing, nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}

	var created *repository.Assessment
	year := time.Now().Year()

	err = numbering.InsertWithRetry(ctx, "assessment", func(ctx context.Context) error {
		count, err := s.store.CountForYear(ctx, year)
		if err != nil {
			return err
		}

		now := time.Now()
		a := &repository.Assessment{
			ID:            uuid.New(),
			Number:        numbering.Format(numbering.PrefixAssessment, year, count+1),
			RequestID:     requestID,
			Stage:         string(domain.StageRequestSubmitted),
			TabsCompleted: []string{},
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.store.Create(ctx, a); err != nil {
			return err
		}
		created = a
		return nil
	})
	if err != nil {
		// A concurrent create for the same request loses on the request_id
		// unique constraint; resolve to the winner's row.
		if apperr.Is(err, apperr.KindConflict) {
			if winner, getErr := s.store.GetByRequestID(ctx, requestID); getErr == nil {
				return winner, nil
			}
		}
		return nil, err
	}

	s.recordAudit(ctx, AuditEntry{
		EntityType: "assessment",
		EntityID:   created.ID,
		Action:     "created",
		Actor:      actor.Name,
		Metadata:   map[string]any{"number": created.Number, "stage": created.Stage},
	})

	return created, nil
}

// Linkage carries an optional foreign-key reference supplied alongside a
// transition. The reference is persisted before the stage write.
type Linkage struct {
	InspectionID  *uuid.UUID
	AppointmentID *uuid.UUID
}

// Transition moves an assessment to the target stage. Step order is strict:
// fresh read, linkage write, legality check, gate check, stage write,
// first-entry child creation, audit entry. An illegal stage jump is reported
// as an invalid transition even when linkage is also missing; the gate runs
// only for jumps that are otherwise legal, and always before the stage
// write. The stage is untouched when any step before the stage write fails.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, target domain.Stage, linkage *Linkage, actor Actor) (*repository.Assessment, error) {
	if !domain.IsKnown(target) {
		return nil, apperr.BadRequest("unknown target stage")
	}

	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.applyLinkage(ctx, a, linkage); err != nil {
		return nil, err
	}

	oldStage := a.StageOf()
	if err := domain.ValidateTransition(oldStage, target); err != nil {
		return nil, err
	}

	if err := domain.ValidateGate(a.InspectionID, a.AppointmentID, target); err != nil {
		var violation *domain.GateViolation
		if gv, ok := err.(*domain.GateViolation); ok {
			violation = gv
		}
		if s.log != nil && violation != nil {
			s.log.GateViolation(a.ID.String(), string(target), violation.Field)
		}
		return nil, err
	}

	if err := s.store.UpdateStage(ctx, a.ID, string(oldStage), string(target)); err != nil {
		return nil, err
	}

	// The from-guard on the stage write means exactly one transition into
	// this stage succeeds, so child creation runs once per entry; the
	// factory is idempotent regardless.
	if err := s.ensureChildrenForStage(ctx, a.ID, target); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, AuditEntry{
		EntityType: "assessment",
		EntityID:   a.ID,
		Action:     "stage_transition",
		Actor:      actor.Name,
		Metadata:   map[string]any{"old_stage": string(oldStage), "new_stage": string(target)},
	})
	if s.log != nil {
		s.log.StageTransition(a.ID.String(), string(oldStage), string(target), actor.Name)
	}

	s.publishStageEvents(ctx, a, target)

	return s.store.GetByID(ctx, a.ID)
}

// applyLinkage persists supplied references that are not yet set, each in
// its own write, before any stage mutation.
func (s *Service) applyLinkage(ctx context.Context, a *repository.Assessment, linkage *Linkage) error {
	if linkage == nil {
		return nil
	}

	if linkage.InspectionID != nil && a.InspectionID == nil {
		if err := s.store.SetInspection(ctx, a.ID, *linkage.InspectionID); err != nil {
			return err
		}
		a.InspectionID = linkage.InspectionID
	}

	if linkage.AppointmentID != nil && a.AppointmentID == nil {
		if err := s.store.SetAppointment(ctx, a.ID, *linkage.AppointmentID); err != nil {
			return err
		}
		a.AppointmentID = linkage.AppointmentID
	}

	return nil
}

// publishStageEvents announces the transitions other modules react to. The
// full stage history lives in the audit trail, not on the bus.
func (s *Service) publishStageEvents(ctx context.Context, a *repository.Assessment, to domain.Stage) {
	if s.bus == nil {
		return
	}

	if to == domain.StageEstimateSent {
		name, email := s.clientContact(ctx, a.RequestID)
		s.bus.Publish(ctx, events.EstimateSentToClient{
			BaseEvent:        events.NewBaseEvent(),
			AssessmentID:     a.ID,
			AssessmentNumber: a.Number,
			ClientName:       name,
			ClientEmail:      email,
		})
	}

	if domain.IsTerminal(to) {
		s.bus.Publish(ctx, events.AssessmentClosed{
			BaseEvent:        events.NewBaseEvent(),
			AssessmentID:     a.ID,
			AssessmentNumber: a.Number,
			FinalStage:       string(to),
		})
	}
}

func (s *Service) clientContact(ctx context.Context, requestID uuid.UUID) (string, string) {
	if s.contacts == nil {
		return "", ""
	}
	name, email, err := s.contacts.GetClientContact(ctx, requestID)
	if err != nil {
		if s.log != nil {
			s.log.BestEffortFailed("resolve client contact", err)
		}
		return "", ""
	}
	return name, email
}

// recordAudit writes an audit entry, logging failures without failing the caller.
func (s *Service) recordAudit(ctx context.Context, entry AuditEntry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, entry); err != nil && s.log != nil {
		s.log.BestEffortFailed("audit write", err)
	}
}

// GetByID retrieves an assessment.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*repository.Assessment, error) {
	return s.store.GetByID(ctx, id)
}

// UpdateTabState persists UI tab bookkeeping.
func (s *Service) UpdateTabState(ctx context.Context, id uuid.UUID, currentTab *string, tabsCompleted []string) error {
	if tabsCompleted == nil {
		tabsCompleted = []string{}
	}
	return s.store.UpdateTabState(ctx, id, currentTab, tabsCompleted)
}

// ListByStage returns the stage-filtered projection backing a workflow list
// screen. Engineers only see assessments whose linked appointment is
// assigned to them; the scoping is pushed into SQL.
func (s *Service) ListByStage(ctx context.Context, stages []domain.Stage, actor Actor, page, pageSize int) (*repository.ListResult, error) {
	if len(stages) == 0 {
		return nil, apperr.BadRequest("at least one stage is required")
	}

	values := make([]string, 0, len(stages))
	for _, st := range stages {
		if !domain.IsKnown(st) {
			return nil, apperr.BadRequest("unknown stage: " + string(st))
		}
		values = append(values, string(st))
	}

	params := repository.ListParams{
		Stages:   values,
		Page:     page,
		PageSize: pageSize,
	}
	if actor.Role != RoleAdmin {
		engineerID := actor.UserID
		params.EngineerID = &engineerID
	}

	return s.store.ListByStage(ctx, params)
}

// ListView resolves a named workflow screen to its stage set and lists it.
func (s *Service) ListView(ctx context.Context, view string, actor Actor, page, pageSize int) (*repository.ListResult, error) {
	stages, ok := domain.ViewStages(view)
	if !ok {
		return nil, apperr.BadRequest("unknown view: " + view)
	}
	return s.ListByStage(ctx, stages, actor, page, pageSize)
}
