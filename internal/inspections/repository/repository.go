// Package repository provides data access for inspections.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"claimtech_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Inspection is a scheduled vehicle inspection for an assessment.
type Inspection struct {
	ID           uuid.UUID `db:"id"`
	Number       string    `db:"number"`
	AssessmentID uuid.UUID `db:"assessment_id"`
	ScheduledAt  time.Time `db:"scheduled_at"`
	Location     string    `db:"location"`
	Notes        *string   `db:"notes"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

const inspectionColumns = `id, number, assessment_id, scheduled_at, location, notes, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanInspection(row pgx.Row) (*Inspection, error) {
	var i Inspection
	err := row.Scan(&i.ID, &i.Number, &i.AssessmentID, &i.ScheduledAt, &i.Location, &i.Notes, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

// Create inserts a new inspection. Number collisions propagate raw for the
// retry loop.
func (r *Repository) Create(ctx context.Context, i *Inspection) error {
	query := `
		INSERT INTO inspections (id, number, assessment_id, scheduled_at, location, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		i.ID, i.Number, i.AssessmentID, i.ScheduledAt, i.Location, i.Notes, i.CreatedAt, i.UpdatedAt)
	return err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Inspection, error) {
	query := fmt.Sprintf(`SELECT %s FROM inspections WHERE id = $1`, inspectionColumns)
	i, err := scanInspection(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("inspection not found")
		}
		return nil, err
	}
	return i, nil
}

func (r *Repository) ListByAssessment(ctx context.Context, assessmentID uuid.UUID) ([]Inspection, error) {
	query := fmt.Sprintf(`SELECT %s FROM inspections WHERE assessment_id = $1 ORDER BY scheduled_at`, inspectionColumns)
	rows, err := r.pool.Query(ctx, query, assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Inspection{}
	for rows.Next() {
		i, err := scanInspection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *i)
	}
	return out, rows.Err()
}

func (r *Repository) CountForYear(ctx context.Context, year int) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM inspections WHERE EXTRACT(YEAR FROM created_at) = $1`
	if err := r.pool.QueryRow(ctx, query, year).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Reschedule moves an inspection to a new time and place.
func (r *Repository) Reschedule(ctx context.Context, id uuid.UUID, scheduledAt time.Time, location string) error {
	query := `UPDATE inspections SET scheduled_at = $2, location = $3, updated_at = NOW() WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, id, scheduledAt, location)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("inspection not found")
	}
	return nil
}
