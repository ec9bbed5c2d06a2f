package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"claimtech_backend/platform/apperr"
)

// DamageRecord captures observed vehicle damage for an assessment. 1:1.
type DamageRecord struct {
	ID           uuid.UUID `db:"id"`
	AssessmentID uuid.UUID `db:"assessment_id"`
	Severity     *string   `db:"severity"`
	AffectedArea *string   `db:"affected_area"`
	Notes        *string   `db:"notes"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// VehicleValuation holds market/trade/retail values. 1:1.
type VehicleValuation struct {
	ID               uuid.UUID `db:"id"`
	AssessmentID     uuid.UUID `db:"assessment_id"`
	MarketValueCents int64     `db:"market_value_cents"`
	TradeValueCents  int64     `db:"trade_value_cents"`
	RetailValueCents int64     `db:"retail_value_cents"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// Estimate is the repair cost estimate. Kind distinguishes the main
// estimate from the pre-incident one; each kind is 1:1 per assessment.
type Estimate struct {
	ID            uuid.UUID `db:"id"`
	AssessmentID  uuid.UUID `db:"assessment_id"`
	Kind          string    `db:"kind"` // "repair" or "pre_incident"
	SubtotalCents int64     `db:"subtotal_cents"`
	VATCents      int64     `db:"vat_cents"`
	TotalCents    int64     `db:"total_cents"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// Estimate kinds.
const (
	EstimateKindRepair      = "repair"
	EstimateKindPreIncident = "pre_incident"
)

// FRC statuses.
const (
	FRCStatusInProgress = "in_progress"
	FRCStatusCompleted  = "completed"
)

// FRCRecord tracks final repair costing. 1:1.
type FRCRecord struct {
	ID              uuid.UUID `db:"id"`
	AssessmentID    uuid.UUID `db:"assessment_id"`
	AgreedCostCents int64     `db:"agreed_cost_cents"`
	Status          string    `db:"status"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// Tyre is a per-position tyre condition record. 1:N with fixed cardinality,
// keyed on (assessment_id, position).
type Tyre struct {
	ID           uuid.UUID `db:"id"`
	AssessmentID uuid.UUID `db:"assessment_id"`
	Position     string    `db:"position"`
	Make         *string   `db:"make"`
	TreadDepthMM *float64  `db:"tread_depth_mm"`
	Condition    *string   `db:"condition"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// Photo is category-tagged photo metadata; the object itself lives in
// blob storage under FileKey.
type Photo struct {
	ID           uuid.UUID `db:"id"`
	AssessmentID uuid.UUID `db:"assessment_id"`
	Category     string    `db:"category"`
	FileKey      string    `db:"file_key"`
	FileName     string    `db:"file_name"`
	ContentType  string    `db:"content_type"`
	SizeBytes    int64     `db:"size_bytes"`
	CreatedAt    time.Time `db:"created_at"`
}

// ---------------------------------------------------------------------------
// 1:1 children: check-then-create. The SELECT avoids relying on constraint
// violations as the normal path; the unique index on assessment_id remains
// the backstop under races.
// ---------------------------------------------------------------------------

// GetDamageRecord returns the damage record for an assessment, or nil.
func (r *Repository) GetDamageRecord(ctx context.Context, assessmentID uuid.UUID) (*DamageRecord, error) {
	var d DamageRecord
	query := `SELECT id, assessment_id, severity, affected_area, notes, created_at, updated_at
		FROM damage_records WHERE assessment_id = $1`

	err := r.pool.QueryRow(ctx, query, assessmentID).Scan(
		&d.ID, &d.AssessmentID, &d.Severity, &d.AffectedArea, &d.Notes, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get damage record: %w", err)
	}
	return &d, nil
}

// CreateDamageRecord inserts a damage record. Unique violations propagate
// unwrapped for the factory to resolve with a re-read.
func (r *Repository) CreateDamageRecord(ctx context.Context, d *DamageRecord) error {
	query := `INSERT INTO damage_records (id, assessment_id, severity, affected_area, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query, d.ID, d.AssessmentID, d.Severity, d.AffectedArea, d.Notes, d.CreatedAt, d.UpdatedAt)
	return err
}

// UpdateDamageRecord persists engineer-entered damage fields.
func (r *Repository) UpdateDamageRecord(ctx context.Context, d *DamageRecord) error {
	query := `UPDATE damage_records SET severity = $1, affected_area = $2, notes = $3, updated_at = $4
		WHERE id = $5 AND assessment_id = $6`

	tag, err := r.pool.Exec(ctx, query, d.Severity, d.AffectedArea, d.Notes, d.UpdatedAt, d.ID, d.AssessmentID)
	if err != nil {
		return fmt.Errorf("failed to update damage record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("damage record not found")
	}
	return nil
}

// GetValuation returns the vehicle valuation for an assessment, or nil.
func (r *Repository) GetValuation(ctx context.Context, assessmentID uuid.UUID) (*VehicleValuation, error) {
	var v VehicleValuation
	query := `SELECT id, assessment_id, market_value_cents, trade_value_cents, retail_value_cents, created_at, updated_at
		FROM vehicle_valuations WHERE assessment_id = $1`

	err := r.pool.QueryRow(ctx, query, assessmentID).Scan(
		&v.ID, &v.AssessmentID, &v.MarketValueCents, &v.TradeValueCents, &v.RetailValueCents, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get valuation: %w", err)
	}
	return &v, nil
}

// CreateValuation inserts a vehicle valuation.
func (r *Repository) CreateValuation(ctx context.Context, v *VehicleValuation) error {
	query := `INSERT INTO vehicle_valuations (id, assessment_id, market_value_cents, trade_value_cents, retail_value_cents, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query, v.ID, v.AssessmentID, v.MarketValueCents, v.TradeValueCents, v.RetailValueCents, v.CreatedAt, v.UpdatedAt)
	return err
}

// UpdateValuation persists revised valuation figures.
func (r *Repository) UpdateValuation(ctx context.Context, v *VehicleValuation) error {
	query := `UPDATE vehicle_valuations SET market_value_cents = $1, trade_value_cents = $2, retail_value_cents = $3, updated_at = $4
		WHERE id = $5 AND assessment_id = $6`

	tag, err := r.pool.Exec(ctx, query, v.MarketValueCents, v.TradeValueCents, v.RetailValueCents, v.UpdatedAt, v.ID, v.AssessmentID)
	if err != nil {
		return fmt.Errorf("failed to update valuation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("valuation not found")
	}
	return nil
}

// GetEstimate returns the estimate of the given kind for an assessment, or nil.
func (r *Repository) GetEstimate(ctx context.Context, assessmentID uuid.UUID, kind string) (*Estimate, error) {
	var e Estimate
	query := `SELECT id, assessment_id, kind, subtotal_cents, vat_cents, total_cents, created_at, updated_at
		FROM estimates WHERE assessment_id = $1 AND kind = $2`

	err := r.pool.QueryRow(ctx, query, assessmentID, kind).Scan(
		&e.ID, &e.AssessmentID, &e.Kind, &e.SubtotalCents, &e.VATCents, &e.TotalCents, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get estimate: %w", err)
	}
	return &e, nil
}

// CreateEstimate inserts an estimate.
func (r *Repository) CreateEstimate(ctx context.Context, e *Estimate) error {
	query := `INSERT INTO estimates (id, assessment_id, kind, subtotal_cents, vat_cents, total_cents, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query, e.ID, e.AssessmentID, e.Kind, e.SubtotalCents, e.VATCents, e.TotalCents, e.CreatedAt, e.UpdatedAt)
	return err
}

// UpdateEstimate persists revised estimate amounts. Kind never changes.
func (r *Repository) UpdateEstimate(ctx context.Context, e *Estimate) error {
	query := `UPDATE estimates SET subtotal_cents = $1, vat_cents = $2, total_cents = $3, updated_at = $4
		WHERE id = $5 AND assessment_id = $6`

	tag, err := r.pool.Exec(ctx, query, e.SubtotalCents, e.VATCents, e.TotalCents, e.UpdatedAt, e.ID, e.AssessmentID)
	if err != nil {
		return fmt.Errorf("failed to update estimate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("estimate not found")
	}
	return nil
}

// GetFRCRecord returns the FRC record for an assessment, or nil.
func (r *Repository) GetFRCRecord(ctx context.Context, assessmentID uuid.UUID) (*FRCRecord, error) {
	var f FRCRecord
	query := `SELECT id, assessment_id, agreed_cost_cents, status, created_at, updated_at
		FROM frc_records WHERE assessment_id = $1`

	err := r.pool.QueryRow(ctx, query, assessmentID).Scan(
		&f.ID, &f.AssessmentID, &f.AgreedCostCents, &f.Status, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get frc record: %w", err)
	}
	return &f, nil
}

// CreateFRCRecord inserts an FRC record.
func (r *Repository) CreateFRCRecord(ctx context.Context, f *FRCRecord) error {
	query := `INSERT INTO frc_records (id, assessment_id, agreed_cost_cents, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query, f.ID, f.AssessmentID, f.AgreedCostCents, f.Status, f.CreatedAt, f.UpdatedAt)
	return err
}

// UpdateFRCRecord persists the agreed cost and lifecycle status.
func (r *Repository) UpdateFRCRecord(ctx context.Context, f *FRCRecord) error {
	query := `UPDATE frc_records SET agreed_cost_cents = $1, status = $2, updated_at = $3
		WHERE id = $4 AND assessment_id = $5`

	tag, err := r.pool.Exec(ctx, query, f.AgreedCostCents, f.Status, f.UpdatedAt, f.ID, f.AssessmentID)
	if err != nil {
		return fmt.Errorf("failed to update frc record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("frc record not found")
	}
	return nil
}

// ---------------------------------------------------------------------------
// 1:N tyres: upsert on (assessment_id, position), safe under concurrent
// invocation by construction.
// ---------------------------------------------------------------------------

// UpsertTyre inserts a tyre row or leaves the existing one untouched apart
// from updated_at. The compound key makes duplicate invocations a no-op.
func (r *Repository) UpsertTyre(ctx context.Context, t *Tyre) error {
	query := `
		INSERT INTO tyres (id, assessment_id, position, make, tread_depth_mm, condition, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (assessment_id, position) DO UPDATE SET updated_at = EXCLUDED.updated_at`

	_, err := r.pool.Exec(ctx, query, t.ID, t.AssessmentID, t.Position, t.Make, t.TreadDepthMM, t.Condition, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert tyre: %w", err)
	}
	return nil
}

// UpdateTyre persists engineer-entered tyre condition for one position.
func (r *Repository) UpdateTyre(ctx context.Context, t *Tyre) error {
	query := `UPDATE tyres SET make = $1, tread_depth_mm = $2, condition = $3, updated_at = $4
		WHERE assessment_id = $5 AND position = $6`

	tag, err := r.pool.Exec(ctx, query, t.Make, t.TreadDepthMM, t.Condition, t.UpdatedAt, t.AssessmentID, t.Position)
	if err != nil {
		return fmt.Errorf("failed to update tyre: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("tyre not found")
	}
	return nil
}

// ListTyres returns all tyre rows for an assessment ordered by position.
func (r *Repository) ListTyres(ctx context.Context, assessmentID uuid.UUID) ([]Tyre, error) {
	query := `SELECT id, assessment_id, position, make, tread_depth_mm, condition, created_at, updated_at
		FROM tyres WHERE assessment_id = $1 ORDER BY position`

	rows, err := r.pool.Query(ctx, query, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tyres: %w", err)
	}
	defer rows.Close()

	items := []Tyre{}
	for rows.Next() {
		var t Tyre
		if err := rows.Scan(&t.ID, &t.AssessmentID, &t.Position, &t.Make, &t.TreadDepthMM, &t.Condition, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tyre: %w", err)
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

// ---------------------------------------------------------------------------
// Photos
// ---------------------------------------------------------------------------

// CreatePhoto inserts photo metadata after the object landed in storage.
func (r *Repository) CreatePhoto(ctx context.Context, p *Photo) error {
	query := `INSERT INTO assessment_photos (id, assessment_id, category, file_key, file_name, content_type, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query, p.ID, p.AssessmentID, p.Category, p.FileKey, p.FileName, p.ContentType, p.SizeBytes, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create photo: %w", err)
	}
	return nil
}

// ListPhotos returns photo metadata for an assessment, optionally filtered
// by category. The client re-fetches this list after every mutation; the
// server is the source of truth.
func (r *Repository) ListPhotos(ctx context.Context, assessmentID uuid.UUID, category *string) ([]Photo, error) {
	query := `SELECT id, assessment_id, category, file_key, file_name, content_type, size_bytes, created_at
		FROM assessment_photos WHERE assessment_id = $1`
	args := []interface{}{assessmentID}
	if category != nil {
		query += ` AND category = $2`
		args = append(args, *category)
	}
	query += ` ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	defer rows.Close()

	items := []Photo{}
	for rows.Next() {
		var p Photo
		if err := rows.Scan(&p.ID, &p.AssessmentID, &p.Category, &p.FileKey, &p.FileName, &p.ContentType, &p.SizeBytes, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// DeletePhoto removes photo metadata and returns the file key of the
// deleted row so the caller can clean up object storage.
func (r *Repository) DeletePhoto(ctx context.Context, id, assessmentID uuid.UUID) (string, error) {
	var fileKey string
	err := r.pool.QueryRow(ctx,
		`DELETE FROM assessment_photos WHERE id = $1 AND assessment_id = $2 RETURNING file_key`,
		id, assessmentID).Scan(&fileKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperr.NotFound("photo not found")
		}
		return "", fmt.Errorf("failed to delete photo: %w", err)
	}
	return fileKey, nil
}
