// Package repository provides data access for appointments.
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

// Appointment statuses.
const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusNoShow    = "no_show"
	StatusCancelled = "cancelled"
)

// Appointment is an engineer visit booked for an assessment. The engineer_id
// column drives the row scoping of assessment list views.
type Appointment struct {
	ID           uuid.UUID `db:"id"`
	Number       string    `db:"number"`
	AssessmentID uuid.UUID `db:"assessment_id"`
	EngineerID   uuid.UUID `db:"engineer_id"`
	ScheduledAt  time.Time `db:"scheduled_at"`
	Location     string    `db:"location"`
	Notes        *string   `db:"notes"`
	Status       string    `db:"status"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

const appointmentColumns = `id, number, assessment_id, engineer_id, scheduled_at, location, notes, status, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.Number, &a.AssessmentID, &a.EngineerID, &a.ScheduledAt,
		&a.Location, &a.Notes, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts a new appointment. Number collisions propagate raw for the
// retry loop.
func (r *Repository) Create(ctx context.Context, a *Appointment) error {
	query := `
		INSERT INTO appointments (id, number, assessment_id, engineer_id, scheduled_at, location, notes, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		a.ID, a.Number, a.AssessmentID, a.EngineerID, a.ScheduledAt,
		a.Location, a.Notes, a.Status, a.CreatedAt, a.UpdatedAt)
	return err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	query := fmt.Sprintf(`SELECT %s FROM appointments WHERE id = $1`, appointmentColumns)
	a, err := scanAppointment(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("appointment not found")
		}
		return nil, err
	}
	return a, nil
}

func (r *Repository) ListByEngineer(ctx context.Context, engineerID uuid.UUID, from time.Time) ([]Appointment, error) {
	query := fmt.Sprintf(`SELECT %s FROM appointments
		WHERE engineer_id = $1 AND scheduled_at >= $2
		ORDER BY scheduled_at`, appointmentColumns)
	rows, err := r.pool.Query(ctx, query, engineerID, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *Repository) ListByAssessment(ctx context.Context, assessmentID uuid.UUID) ([]Appointment, error) {
	query := fmt.Sprintf(`SELECT %s FROM appointments WHERE assessment_id = $1 ORDER BY scheduled_at`, appointmentColumns)
	rows, err := r.pool.Query(ctx, query, assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *Repository) CountForYear(ctx context.Context, year int) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM appointments WHERE EXTRACT(YEAR FROM created_at) = $1`
	if err := r.pool.QueryRow(ctx, query, year).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// UpdateStatus moves the appointment through its lifecycle.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	query := `UPDATE appointments SET status = $2, updated_at = NOW() WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, id, status)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("appointment not found")
	}
	return nil
}

// Reschedule moves an appointment to a new time and place.
func (r *Repository) Reschedule(ctx context.Context, id uuid.UUID, scheduledAt time.Time, location string) error {
	query := `UPDATE appointments SET scheduled_at = $2, location = $3, updated_at = NOW() WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, id, scheduledAt, location)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("appointment not found")
	}
	return nil
}
