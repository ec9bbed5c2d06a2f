package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"claimtech_backend/internal/assessments/domain"
	"claimtech_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Assessment represents the assessment database model. Stage is the
// authoritative workflow position; LegacyStatus mirrors the historical
// free-text column and is never used for filtering.
type Assessment struct {
	ID            uuid.UUID  `db:"id"`
	Number        string     `db:"number"`
	RequestID     uuid.UUID  `db:"request_id"`
	InspectionID  *uuid.UUID `db:"inspection_id"`
	AppointmentID *uuid.UUID `db:"appointment_id"`
	Stage         string     `db:"stage"`
	LegacyStatus  *string    `db:"legacy_status"`
	CurrentTab    *string    `db:"current_tab"`
	TabsCompleted []string   `db:"tabs_completed"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

// Repository provides database operations for assessments.
type Repository struct {
	pool *pgxpool.Pool
}

const assessmentNotFoundMsg = "assessment not found"

const assessmentColumns = `id, number, request_id, inspection_id, appointment_id, stage,
	legacy_status, current_tab, tabs_completed, created_at, updated_at`

// New creates a new assessments repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanAssessment(row pgx.Row) (*Assessment, error) {
	var a Assessment
	err := row.Scan(
		&a.ID, &a.Number, &a.RequestID, &a.InspectionID, &a.AppointmentID, &a.Stage,
		&a.LegacyStatus, &a.CurrentTab, &a.TabsCompleted, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts a new assessment. A unique violation (duplicate number or
// duplicate request_id) is returned unwrapped so callers can drive the
// number-retry loop.
func (r *Repository) Create(ctx context.Context, a *Assessment) error {
	query := `
		INSERT INTO assessments (
			id, number, request_id, inspection_id, appointment_id, stage,
			legacy_status, current_tab, tabs_completed, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		a.ID, a.Number, a.RequestID, a.InspectionID, a.AppointmentID, a.Stage,
		a.LegacyStatus, a.CurrentTab, a.TabsCompleted, a.CreatedAt, a.UpdatedAt,
	)
	return err
}

// GetByID retrieves an assessment by its ID. Always a fresh read; the
// transition service depends on this never being served from a cache.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Assessment, error) {
	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE id = $1`

	a, err := scanAssessment(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(assessmentNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}
	return a, nil
}

// GetByRequestID retrieves the assessment owned by a request.
func (r *Repository) GetByRequestID(ctx context.Context, requestID uuid.UUID) (*Assessment, error) {
	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE request_id = $1`

	a, err := scanAssessment(r.pool.QueryRow(ctx, query, requestID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(assessmentNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get assessment by request: %w", err)
	}
	return a, nil
}

// CountForYear returns how many assessments were created in the given year,
// used to derive the next candidate sequence number.
func (r *Repository) CountForYear(ctx context.Context, year int) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM assessments WHERE date_part('year', created_at) = $1`
	if err := r.pool.QueryRow(ctx, query, year).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count assessments: %w", err)
	}
	return count, nil
}

// SetInspection persists the inspection linkage. This write must land
// before any stage write that requires it.
func (r *Repository) SetInspection(ctx context.Context, id, inspectionID uuid.UUID) error {
	query := `UPDATE assessments SET inspection_id = $2, updated_at = $3 WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, inspectionID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set inspection linkage: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(assessmentNotFoundMsg)
	}
	return nil
}

// SetAppointment persists the appointment linkage.
func (r *Repository) SetAppointment(ctx context.Context, id, appointmentID uuid.UUID) error {
	query := `UPDATE assessments SET appointment_id = $2, updated_at = $3 WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, appointmentID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set appointment linkage: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(assessmentNotFoundMsg)
	}
	return nil
}

// UpdateStage writes the new stage, guarded by the expected current stage so
// a concurrent transition loses cleanly instead of double-applying.
func (r *Repository) UpdateStage(ctx context.Context, id uuid.UUID, from, to string) error {
	query := `UPDATE assessments SET stage = $3, updated_at = $4 WHERE id = $1 AND stage = $2`

	result, err := r.pool.Exec(ctx, query, id, from, to, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update assessment stage: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.Conflict("assessment stage changed concurrently")
	}
	return nil
}

// UpdateTabState persists the UI bookkeeping columns. Not invariant-bearing.
func (r *Repository) UpdateTabState(ctx context.Context, id uuid.UUID, currentTab *string, tabsCompleted []string) error {
	query := `UPDATE assessments SET current_tab = $2, tabs_completed = $3, updated_at = $4 WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, currentTab, tabsCompleted, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update tab state: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(assessmentNotFoundMsg)
	}
	return nil
}

// ListParams contains parameters for the stage-filtered list projection.
type ListParams struct {
	Stages []string
	// EngineerID scopes results to assessments whose linked appointment is
	// assigned to this engineer. Applied in SQL, never as a post-filter, so
	// counts match what row-level security would expose.
	EngineerID *uuid.UUID
	Page       int
	PageSize   int
}

// ListResult contains one page of the stage projection.
type ListResult struct {
	Items      []Assessment
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// ListByStage retrieves assessments filtered by stage (the indexed column;
// never the legacy status field) with optional engineer scoping.
func (r *Repository) ListByStage(ctx context.Context, params ListParams) (*ListResult, error) {
	if len(params.Stages) == 0 {
		return &ListResult{Items: []Assessment{}, Page: params.Page, PageSize: params.PageSize}, nil
	}

	baseQuery := ` FROM assessments a WHERE a.stage = ANY($1)`
	args := []interface{}{params.Stages}

	if params.EngineerID != nil {
		baseQuery += ` AND EXISTS (
			SELECT 1 FROM appointments ap
			WHERE ap.id = a.appointment_id AND ap.engineer_id = $2
		)`
		args = append(args, *params.EngineerID)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+baseQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count assessments: %w", err)
	}

	pageSize := params.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 50
	}
	page := params.Page
	if page < 1 {
		page = 1
	}
	totalPages := (total + pageSize - 1) / pageSize
	offset := (page - 1) * pageSize

	query := `SELECT ` + prefixColumns("a") + baseQuery +
		fmt.Sprintf(` ORDER BY a.created_at DESC LIMIT %d OFFSET %d`, pageSize, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	defer rows.Close()

	items := []Assessment{}
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assessment: %w", err)
		}
		items = append(items, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read assessments: %w", err)
	}

	return &ListResult{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// prefixColumns qualifies the assessment column list with a table alias.
func prefixColumns(alias string) string {
	return fmt.Sprintf(`%[1]s.id, %[1]s.number, %[1]s.request_id, %[1]s.inspection_id,
	%[1]s.appointment_id, %[1]s.stage, %[1]s.legacy_status, %[1]s.current_tab,
	%[1]s.tabs_completed, %[1]s.created_at, %[1]s.updated_at`, alias)
}

// StageOf is a convenience for converting the stored stage string.
func (a *Assessment) StageOf() domain.Stage {
	return domain.Stage(a.Stage)
}
