// Package repository provides data access for vehicle-damage requests.
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

// Request is an intake record: the client, the vehicle, and what happened.
type Request struct {
	ID                  uuid.UUID  `db:"id"`
	Number              string     `db:"number"`
	ClientName          string     `db:"client_name"`
	ClientPhone         string     `db:"client_phone"`
	ClientEmail         string     `db:"client_email"`
	InsurerName         *string    `db:"insurer_name"`
	PolicyNumber        *string    `db:"policy_number"`
	VehicleMake         string     `db:"vehicle_make"`
	VehicleModel        string     `db:"vehicle_model"`
	VehicleYear         int        `db:"vehicle_year"`
	VehicleRegistration string     `db:"vehicle_registration"`
	IncidentDate        *time.Time `db:"incident_date"`
	IncidentDescription *string    `db:"incident_description"`
	CreatedAt           time.Time  `db:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"`
}

const requestColumns = `id, number, client_name, client_phone, client_email,
	insurer_name, policy_number, vehicle_make, vehicle_model, vehicle_year,
	vehicle_registration, incident_date, incident_description, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRequest(row pgx.Row) (*Request, error) {
	var r Request
	err := row.Scan(
		&r.ID, &r.Number, &r.ClientName, &r.ClientPhone, &r.ClientEmail,
		&r.InsurerName, &r.PolicyNumber, &r.VehicleMake, &r.VehicleModel, &r.VehicleYear,
		&r.VehicleRegistration, &r.IncidentDate, &r.IncidentDescription, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Create inserts a new request. Unique violations on the number column
// propagate raw so the numbering retry loop can detect them.
func (r *Repository) Create(ctx context.Context, req *Request) error {
	query := `
		INSERT INTO requests (id, number, client_name, client_phone, client_email,
			insurer_name, policy_number, vehicle_make, vehicle_model, vehicle_year,
			vehicle_registration, incident_date, incident_description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.pool.Exec(ctx, query,
		req.ID, req.Number, req.ClientName, req.ClientPhone, req.ClientEmail,
		req.InsurerName, req.PolicyNumber, req.VehicleMake, req.VehicleModel, req.VehicleYear,
		req.VehicleRegistration, req.IncidentDate, req.IncidentDescription, req.CreatedAt, req.UpdatedAt,
	)
	return err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	query := fmt.Sprintf(`SELECT %s FROM requests WHERE id = $1`, requestColumns)
	req, err := scanRequest(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("request not found")
		}
		return nil, err
	}
	return req, nil
}

// CountForYear returns the number of requests created in the given year,
// feeding business number generation.
func (r *Repository) CountForYear(ctx context.Context, year int) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM requests WHERE EXTRACT(YEAR FROM created_at) = $1`
	if err := r.pool.QueryRow(ctx, query, year).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// List returns requests newest first.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Request, error) {
	query := fmt.Sprintf(`SELECT %s FROM requests ORDER BY created_at DESC LIMIT $1 OFFSET $2`, requestColumns)
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Request{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

// Update modifies the mutable intake fields.
func (r *Repository) Update(ctx context.Context, req *Request) error {
	query := `
		UPDATE requests
		SET client_name = $2, client_phone = $3, client_email = $4,
			insurer_name = $5, policy_number = $6, vehicle_make = $7,
			vehicle_model = $8, vehicle_year = $9, vehicle_registration = $10,
			incident_date = $11, incident_description = $12, updated_at = NOW()
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query,
		req.ID, req.ClientName, req.ClientPhone, req.ClientEmail,
		req.InsurerName, req.PolicyNumber, req.VehicleMake,
		req.VehicleModel, req.VehicleYear, req.VehicleRegistration,
		req.IncidentDate, req.IncidentDescription,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("request not found")
	}
	return nil
}
