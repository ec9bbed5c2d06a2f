package service

import (
	"context"
	"time"

	"claimtech_backend/internal/assessments/domain"
	"claimtech_backend/internal/assessments/repository"
	"claimtech_backend/internal/events"
	"claimtech_backend/internal/numbering"
	"claimtech_backend/platform/apperr"

	"github.com/google/uuid"
)

// ensureChildrenForStage creates the working records an assessment needs when
// it first enters a stage. Safe to call more than once: every Ensure method
// is check-then-create with a unique constraint as backstop.
func (s *Service) ensureChildrenForStage(ctx context.Context, assessmentID uuid.UUID, stage domain.Stage) error {
	for _, kind := range domain.RequiredChildren(stage) {
		var err error
		switch kind {
		case domain.ChildDamageRecord:
			_, err = s.EnsureDamageRecord(ctx, assessmentID)
		case domain.ChildVehicleValuation:
			_, err = s.EnsureValuation(ctx, assessmentID)
		case domain.ChildEstimate:
			_, err = s.EnsureEstimate(ctx, assessmentID)
		case domain.ChildPreIncidentEstimate:
			_, err = s.EnsurePreIncidentEstimate(ctx, assessmentID)
		case domain.ChildTyres:
			_, err = s.EnsureTyres(ctx, assessmentID)
		case domain.ChildFRCRecord:
			_, err = s.EnsureFRCRecord(ctx, assessmentID)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// publishChildCreated announces the first creation of a dependent record.
// Idempotent re-entries take the re-read path and never refire it.
func (s *Service) publishChildCreated(ctx context.Context, assessmentID uuid.UUID, kind string, childID uuid.UUID) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, events.ChildRecordCreated{
		BaseEvent:    events.NewBaseEvent(),
		AssessmentID: assessmentID,
		ChildKind:    kind,
		ChildID:      childID,
	})
}

// EnsureDamageRecord returns the assessment's damage record, creating an
// empty one if none exists yet.
func (s *Service) EnsureDamageRecord(ctx context.Context, assessmentID uuid.UUID) (*repository.DamageRecord, error) {
	existing, err := s.store.GetDamageRecord(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now()
	d := &repository.DamageRecord{
		ID:           uuid.New(),
		AssessmentID: assessmentID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateDamageRecord(ctx, d); err != nil {
		if numbering.IsUniqueViolation(err) {
			return s.store.GetDamageRecord(ctx, assessmentID)
		}
		return nil, err
	}
	s.publishChildCreated(ctx, assessmentID, string(domain.ChildDamageRecord), d.ID)
	return d, nil
}

// EnsureValuation returns the assessment's vehicle valuation, creating an
// empty one if none exists yet.
func (s *Service) EnsureValuation(ctx context.Context, assessmentID uuid.UUID) (*repository.VehicleValuation, error) {
	existing, err := s.store.GetValuation(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now()
	v := &repository.VehicleValuation{
		ID:           uuid.New(),
		AssessmentID: assessmentID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateValuation(ctx, v); err != nil {
		if numbering.IsUniqueViolation(err) {
			return s.store.GetValuation(ctx, assessmentID)
		}
		return nil, err
	}
	s.publishChildCreated(ctx, assessmentID, string(domain.ChildVehicleValuation), v.ID)
	return v, nil
}

// EnsureEstimate returns the assessment's repair estimate, creating an empty
// one if none exists yet.
func (s *Service) EnsureEstimate(ctx context.Context, assessmentID uuid.UUID) (*repository.Estimate, error) {
	return s.ensureEstimate(ctx, assessmentID, repository.EstimateKindRepair)
}

// EnsurePreIncidentEstimate returns the assessment's pre-incident estimate,
// creating an empty one if none exists yet.
func (s *Service) EnsurePreIncidentEstimate(ctx context.Context, assessmentID uuid.UUID) (*repository.Estimate, error) {
	return s.ensureEstimate(ctx, assessmentID, repository.EstimateKindPreIncident)
}

func (s *Service) ensureEstimate(ctx context.Context, assessmentID uuid.UUID, kind string) (*repository.Estimate, error) {
	existing, err := s.store.GetEstimate(ctx, assessmentID, kind)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now()
	e := &repository.Estimate{
		ID:           uuid.New(),
		AssessmentID: assessmentID,
		Kind:         kind,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateEstimate(ctx, e); err != nil {
		if numbering.IsUniqueViolation(err) {
			return s.store.GetEstimate(ctx, assessmentID, kind)
		}
		return nil, err
	}
	childKind := domain.ChildEstimate
	if kind == repository.EstimateKindPreIncident {
		childKind = domain.ChildPreIncidentEstimate
	}
	s.publishChildCreated(ctx, assessmentID, string(childKind), e.ID)
	return e, nil
}

// EnsureFRCRecord returns the assessment's final repair costing record,
// creating an empty one if none exists yet.
func (s *Service) EnsureFRCRecord(ctx context.Context, assessmentID uuid.UUID) (*repository.FRCRecord, error) {
	existing, err := s.store.GetFRCRecord(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now()
	f := &repository.FRCRecord{
		ID:           uuid.New(),
		AssessmentID: assessmentID,
		Status:       repository.FRCStatusInProgress,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateFRCRecord(ctx, f); err != nil {
		if numbering.IsUniqueViolation(err) {
			return s.store.GetFRCRecord(ctx, assessmentID)
		}
		return nil, err
	}
	s.publishChildCreated(ctx, assessmentID, string(domain.ChildFRCRecord), f.ID)
	return f, nil
}

// EnsureTyres upserts one tyre row per standard position and returns the
// full set. Existing rows keep their recorded data.
func (s *Service) EnsureTyres(ctx context.Context, assessmentID uuid.UUID) ([]repository.Tyre, error) {
	now := time.Now()
	for _, pos := range domain.TyrePositions {
		t := &repository.Tyre{
			ID:           uuid.New(),
			AssessmentID: assessmentID,
			Position:     pos,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.store.UpsertTyre(ctx, t); err != nil {
			return nil, err
		}
	}
	return s.store.ListTyres(ctx, assessmentID)
}

// AddSpareTyre records the optional spare position for an assessment.
func (s *Service) AddSpareTyre(ctx context.Context, assessmentID uuid.UUID) ([]repository.Tyre, error) {
	now := time.Now()
	t := &repository.Tyre{
		ID:           uuid.New(),
		AssessmentID: assessmentID,
		Position:     domain.TyrePositionSpare,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.UpsertTyre(ctx, t); err != nil {
		return nil, err
	}
	return s.store.ListTyres(ctx, assessmentID)
}

// DamageRecord reads the damage record, or NotFound if the assessment has
// not reached the stage that creates it.
func (s *Service) DamageRecord(ctx context.Context, assessmentID uuid.UUID) (*repository.DamageRecord, error) {
	d, err := s.store.GetDamageRecord(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, apperr.NotFound("damage record not found")
	}
	return d, nil
}

// Valuation reads the vehicle valuation, or NotFound if absent.
func (s *Service) Valuation(ctx context.Context, assessmentID uuid.UUID) (*repository.VehicleValuation, error) {
	v, err := s.store.GetValuation(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, apperr.NotFound("valuation not found")
	}
	return v, nil
}

// Estimate reads the estimate of the given kind, or NotFound if absent.
func (s *Service) Estimate(ctx context.Context, assessmentID uuid.UUID, kind string) (*repository.Estimate, error) {
	if kind != repository.EstimateKindRepair && kind != repository.EstimateKindPreIncident {
		return nil, apperr.BadRequest("unknown estimate kind")
	}
	e, err := s.store.GetEstimate(ctx, assessmentID, kind)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, apperr.NotFound("estimate not found")
	}
	return e, nil
}

// FRCRecord reads the final repair costing record, or NotFound if absent.
func (s *Service) FRCRecord(ctx context.Context, assessmentID uuid.UUID) (*repository.FRCRecord, error) {
	f, err := s.store.GetFRCRecord(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, apperr.NotFound("final repair costing record not found")
	}
	return f, nil
}

// DamageRecordUpdate carries engineer edits to a damage record. Nil fields
// are left untouched.
type DamageRecordUpdate struct {
	Severity     *string
	AffectedArea *string
	Notes        *string
}

// UpdateDamageRecord applies engineer edits to the damage record and writes
// an audit entry naming the changed fields.
func (s *Service) UpdateDamageRecord(ctx context.Context, assessmentID uuid.UUID, patch DamageRecordUpdate, actor Actor) (*repository.DamageRecord, error) {
	d, err := s.DamageRecord(ctx, assessmentID)
	if err != nil {
		return nil, err
	}

	changed := map[string]any{}
	if patch.Severity != nil {
		d.Severity = patch.Severity
		changed["severity"] = *patch.Severity
	}
	if patch.AffectedArea != nil {
		d.AffectedArea = patch.AffectedArea
		changed["affected_area"] = *patch.AffectedArea
	}
	if patch.Notes != nil {
		d.Notes = patch.Notes
		changed["notes"] = *patch.Notes
	}
	if len(changed) == 0 {
		return d, nil
	}

	d.UpdatedAt = time.Now()
	if err := s.store.UpdateDamageRecord(ctx, d); err != nil {
		return nil, err
	}
	s.auditChildUpdated(ctx, "damage_record", d.ID, actor, changed)
	return d, nil
}

// ValuationUpdate carries revised valuation figures. Nil fields are left
// untouched; amounts are cents and must be non-negative.
type ValuationUpdate struct {
	MarketValueCents *int64
	TradeValueCents  *int64
	RetailValueCents *int64
}

// UpdateValuation applies revised valuation figures.
func (s *Service) UpdateValuation(ctx context.Context, assessmentID uuid.UUID, patch ValuationUpdate, actor Actor) (*repository.VehicleValuation, error) {
	for _, v := range []*int64{patch.MarketValueCents, patch.TradeValueCents, patch.RetailValueCents} {
		if v != nil && *v < 0 {
			return nil, apperr.Validation("valuation amounts must be non-negative")
		}
	}

	v, err := s.Valuation(ctx, assessmentID)
	if err != nil {
		return nil, err
	}

	changed := map[string]any{}
	if patch.MarketValueCents != nil {
		v.MarketValueCents = *patch.MarketValueCents
		changed["market_value_cents"] = *patch.MarketValueCents
	}
	if patch.TradeValueCents != nil {
		v.TradeValueCents = *patch.TradeValueCents
		changed["trade_value_cents"] = *patch.TradeValueCents
	}
	if patch.RetailValueCents != nil {
		v.RetailValueCents = *patch.RetailValueCents
		changed["retail_value_cents"] = *patch.RetailValueCents
	}
	if len(changed) == 0 {
		return v, nil
	}

	v.UpdatedAt = time.Now()
	if err := s.store.UpdateValuation(ctx, v); err != nil {
		return nil, err
	}
	s.auditChildUpdated(ctx, "vehicle_valuation", v.ID, actor, changed)
	return v, nil
}

// EstimateUpdate carries revised estimate amounts, in cents. Nil fields are
// left untouched.
type EstimateUpdate struct {
	SubtotalCents *int64
	VATCents      *int64
	TotalCents    *int64
}

// UpdateEstimate applies revised amounts to the estimate of the given kind.
func (s *Service) UpdateEstimate(ctx context.Context, assessmentID uuid.UUID, kind string, patch EstimateUpdate, actor Actor) (*repository.Estimate, error) {
	for _, v := range []*int64{patch.SubtotalCents, patch.VATCents, patch.TotalCents} {
		if v != nil && *v < 0 {
			return nil, apperr.Validation("estimate amounts must be non-negative")
		}
	}

	e, err := s.Estimate(ctx, assessmentID, kind)
	if err != nil {
		return nil, err
	}

	changed := map[string]any{}
	if patch.SubtotalCents != nil {
		e.SubtotalCents = *patch.SubtotalCents
		changed["subtotal_cents"] = *patch.SubtotalCents
	}
	if patch.VATCents != nil {
		e.VATCents = *patch.VATCents
		changed["vat_cents"] = *patch.VATCents
	}
	if patch.TotalCents != nil {
		e.TotalCents = *patch.TotalCents
		changed["total_cents"] = *patch.TotalCents
	}
	if len(changed) == 0 {
		return e, nil
	}

	e.UpdatedAt = time.Now()
	if err := s.store.UpdateEstimate(ctx, e); err != nil {
		return nil, err
	}
	s.auditChildUpdated(ctx, "estimate", e.ID, actor, changed)
	return e, nil
}

// FRCUpdate carries the agreed cost and lifecycle status of the final
// repair costing. Nil fields are left untouched.
type FRCUpdate struct {
	AgreedCostCents *int64
	Status          *string
}

// UpdateFRCRecord applies the agreed cost and status. A completed record is
// final: once the status reaches completed no further edits are accepted.
func (s *Service) UpdateFRCRecord(ctx context.Context, assessmentID uuid.UUID, patch FRCUpdate, actor Actor) (*repository.FRCRecord, error) {
	if patch.AgreedCostCents != nil && *patch.AgreedCostCents < 0 {
		return nil, apperr.Validation("agreed cost must be non-negative")
	}
	if patch.Status != nil && *patch.Status != repository.FRCStatusInProgress && *patch.Status != repository.FRCStatusCompleted {
		return nil, apperr.Validation("unknown frc status")
	}

	f, err := s.FRCRecord(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	if f.Status == repository.FRCStatusCompleted {
		return nil, apperr.Validation("final repair costing is already completed")
	}

	changed := map[string]any{}
	if patch.AgreedCostCents != nil {
		f.AgreedCostCents = *patch.AgreedCostCents
		changed["agreed_cost_cents"] = *patch.AgreedCostCents
	}
	if patch.Status != nil {
		f.Status = *patch.Status
		changed["status"] = *patch.Status
	}
	if len(changed) == 0 {
		return f, nil
	}

	f.UpdatedAt = time.Now()
	if err := s.store.UpdateFRCRecord(ctx, f); err != nil {
		return nil, err
	}
	s.auditChildUpdated(ctx, "frc_record", f.ID, actor, changed)
	return f, nil
}

// TyreUpdate carries engineer-recorded condition for one tyre position.
// Nil fields are left untouched.
type TyreUpdate struct {
	Make         *string
	TreadDepthMM *float64
	Condition    *string
}

// UpdateTyre applies condition data to the tyre at the given position.
func (s *Service) UpdateTyre(ctx context.Context, assessmentID uuid.UUID, position string, patch TyreUpdate, actor Actor) ([]repository.Tyre, error) {
	if !domain.IsTyrePosition(position) {
		return nil, apperr.Validation("unknown tyre position")
	}
	if patch.TreadDepthMM != nil && *patch.TreadDepthMM < 0 {
		return nil, apperr.Validation("tread depth must be non-negative")
	}

	tyres, err := s.store.ListTyres(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	var current *repository.Tyre
	for i := range tyres {
		if tyres[i].Position == position {
			current = &tyres[i]
			break
		}
	}
	if current == nil {
		return nil, apperr.NotFound("tyre not found")
	}

	changed := map[string]any{}
	if patch.Make != nil {
		current.Make = patch.Make
		changed["make"] = *patch.Make
	}
	if patch.TreadDepthMM != nil {
		current.TreadDepthMM = patch.TreadDepthMM
		changed["tread_depth_mm"] = *patch.TreadDepthMM
	}
	if patch.Condition != nil {
		current.Condition = patch.Condition
		changed["condition"] = *patch.Condition
	}
	if len(changed) == 0 {
		return tyres, nil
	}

	current.UpdatedAt = time.Now()
	if err := s.store.UpdateTyre(ctx, current); err != nil {
		return nil, err
	}
	changed["position"] = position
	s.auditChildUpdated(ctx, "tyre", current.ID, actor, changed)
	return s.store.ListTyres(ctx, assessmentID)
}

// auditChildUpdated records a best-effort audit entry for an engineer edit
// to a dependent record.
func (s *Service) auditChildUpdated(ctx context.Context, entityType string, id uuid.UUID, actor Actor, changed map[string]any) {
	s.recordAudit(ctx, AuditEntry{
		EntityType: entityType,
		EntityID:   id,
		Action:     "updated",
		Actor:      actor.Name,
		Metadata:   changed,
	})
}

// Tyres lists the recorded tyre rows for an assessment.
func (s *Service) Tyres(ctx context.Context, assessmentID uuid.UUID) ([]repository.Tyre, error) {
	return s.store.ListTyres(ctx, assessmentID)
}

// AddPhoto stores photo metadata for an assessment. The binary itself lives
// in object storage under FileKey.
func (s *Service) AddPhoto(ctx context.Context, p *repository.Photo) (*repository.Photo, error) {
	if p.AssessmentID == uuid.Nil {
		return nil, apperr.BadRequest("assessment id is required")
	}
	if p.FileKey == "" {
		return nil, apperr.BadRequest("file key is required")
	}
	p.ID = uuid.New()
	now := time.Now()
	p.CreatedAt = now
	if err := s.store.CreatePhoto(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListPhotos lists photo metadata, optionally filtered by category.
func (s *Service) ListPhotos(ctx context.Context, assessmentID uuid.UUID, category *string) ([]repository.Photo, error) {
	return s.store.ListPhotos(ctx, assessmentID, category)
}

// DeletePhoto removes photo metadata, then deletes the stored object
// best-effort. A dangling object is preferable to a dangling DB row.
func (s *Service) DeletePhoto(ctx context.Context, id, assessmentID uuid.UUID) error {
	fileKey, err := s.store.DeletePhoto(ctx, id, assessmentID)
	if err != nil {
		return err
	}
	if s.objects != nil {
		if err := s.objects.RemoveObject(ctx, fileKey); err != nil && s.log != nil {
			s.log.BestEffortFailed("delete photo object", err)
		}
	}
	return nil
}
