// Package transport defines request/response DTOs for the requests HTTP API.
package transport

import (
	"time"

	"claimtech_backend/internal/requests/repository"

	"github.com/google/uuid"
)

// CreateRequest is the intake payload for a new damage request.
type CreateRequest struct {
	ClientName          string     `json:"client_name" validate:"required"`
	ClientPhone         string     `json:"client_phone" validate:"required"`
	ClientEmail         string     `json:"client_email" validate:"required,email"`
	InsurerName         *string    `json:"insurer_name,omitempty"`
	PolicyNumber        *string    `json:"policy_number,omitempty"`
	VehicleMake         string     `json:"vehicle_make" validate:"required"`
	VehicleModel        string     `json:"vehicle_model" validate:"required"`
	VehicleYear         int        `json:"vehicle_year" validate:"required,gte=1950"`
	VehicleRegistration string     `json:"vehicle_registration" validate:"required"`
	IncidentDate        *time.Time `json:"incident_date,omitempty"`
	IncidentDescription *string    `json:"incident_description,omitempty"`
}

// UpdateRequest modifies intake details. Absent fields are nil and leave
// the stored values unchanged; a supplied empty string on a mandatory field
// is a validation error.
type UpdateRequest struct {
	ClientName          *string    `json:"client_name,omitempty" validate:"omitempty,min=1"`
	ClientPhone         *string    `json:"client_phone,omitempty" validate:"omitempty,min=1"`
	ClientEmail         *string    `json:"client_email,omitempty" validate:"omitempty,email"`
	InsurerName         *string    `json:"insurer_name,omitempty"`
	PolicyNumber        *string    `json:"policy_number,omitempty"`
	VehicleMake         *string    `json:"vehicle_make,omitempty" validate:"omitempty,min=1"`
	VehicleModel        *string    `json:"vehicle_model,omitempty" validate:"omitempty,min=1"`
	VehicleYear         *int       `json:"vehicle_year,omitempty" validate:"omitempty,gte=1950"`
	VehicleRegistration *string    `json:"vehicle_registration,omitempty" validate:"omitempty,min=1"`
	IncidentDate        *time.Time `json:"incident_date,omitempty"`
	IncidentDescription *string    `json:"incident_description,omitempty"`
}

// Response is the API shape of a request.
type Response struct {
	ID                  uuid.UUID  `json:"id"`
	Number              string     `json:"number"`
	ClientName          string     `json:"client_name"`
	ClientPhone         string     `json:"client_phone"`
	ClientEmail         string     `json:"client_email"`
	InsurerName         *string    `json:"insurer_name,omitempty"`
	PolicyNumber        *string    `json:"policy_number,omitempty"`
	VehicleMake         string     `json:"vehicle_make"`
	VehicleModel        string     `json:"vehicle_model"`
	VehicleYear         int        `json:"vehicle_year"`
	VehicleRegistration string     `json:"vehicle_registration"`
	IncidentDate        *time.Time `json:"incident_date,omitempty"`
	IncidentDescription *string    `json:"incident_description,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// ToResponse maps the storage model to the API shape.
func ToResponse(r *repository.Request) Response {
	return Response{
		ID:                  r.ID,
		Number:              r.Number,
		ClientName:          r.ClientName,
		ClientPhone:         r.ClientPhone,
		ClientEmail:         r.ClientEmail,
		InsurerName:         r.InsurerName,
		PolicyNumber:        r.PolicyNumber,
		VehicleMake:         r.VehicleMake,
		VehicleModel:        r.VehicleModel,
		VehicleYear:         r.VehicleYear,
		VehicleRegistration: r.VehicleRegistration,
		IncidentDate:        r.IncidentDate,
		IncidentDescription: r.IncidentDescription,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

// ToResponses maps a slice of storage models.
func ToResponses(rs []repository.Request) []Response {
	out := make([]Response, 0, len(rs))
	for i := range rs {
		out = append(out, ToResponse(&rs[i]))
	}
	return out
}
