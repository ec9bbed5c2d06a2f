// Package transport defines the request/response DTOs for the assessments
// HTTP API. Handlers bind and validate these; services never see gin types.
package transport

import (
	"time"

	"claimtech_backend/internal/assessments/repository"

	"github.com/google/uuid"
)

// TransitionRequest asks for a stage change, optionally carrying the
// reference that enables the target stage.
type TransitionRequest struct {
	TargetStage   string     `json:"target_stage" validate:"required"`
	InspectionID  *uuid.UUID `json:"inspection_id,omitempty"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
}

// TabStateRequest updates the UI tab bookkeeping on an assessment.
type TabStateRequest struct {
	CurrentTab    *string  `json:"current_tab,omitempty"`
	TabsCompleted []string `json:"tabs_completed"`
}

// UpdateDamageRecordRequest patches engineer-entered damage fields. All
// fields are optional; absent means the field is left untouched.
type UpdateDamageRecordRequest struct {
	Severity     *string `json:"severity,omitempty"`
	AffectedArea *string `json:"affected_area,omitempty"`
	Notes        *string `json:"notes,omitempty"`
}

// UpdateValuationRequest patches valuation figures, in cents.
type UpdateValuationRequest struct {
	MarketValueCents *int64 `json:"market_value_cents,omitempty" validate:"omitempty,gte=0"`
	TradeValueCents  *int64 `json:"trade_value_cents,omitempty" validate:"omitempty,gte=0"`
	RetailValueCents *int64 `json:"retail_value_cents,omitempty" validate:"omitempty,gte=0"`
}

// UpdateEstimateRequest patches estimate amounts, in cents.
type UpdateEstimateRequest struct {
	SubtotalCents *int64 `json:"subtotal_cents,omitempty" validate:"omitempty,gte=0"`
	VATCents      *int64 `json:"vat_cents,omitempty" validate:"omitempty,gte=0"`
	TotalCents    *int64 `json:"total_cents,omitempty" validate:"omitempty,gte=0"`
}

// UpdateFRCRequest patches the final repair costing record.
type UpdateFRCRequest struct {
	AgreedCostCents *int64  `json:"agreed_cost_cents,omitempty" validate:"omitempty,gte=0"`
	Status          *string `json:"status,omitempty" validate:"omitempty,oneof=in_progress completed"`
}

// UpdateTyreRequest patches the tyre at one position.
type UpdateTyreRequest struct {
	Make         *string  `json:"make,omitempty"`
	TreadDepthMM *float64 `json:"tread_depth_mm,omitempty" validate:"omitempty,gte=0"`
	Condition    *string  `json:"condition,omitempty"`
}

// PhotoUploadURLRequest asks for a presigned upload slot for a new photo.
type PhotoUploadURLRequest struct {
	FileName    string `json:"file_name" validate:"required"`
	ContentType string `json:"content_type" validate:"required"`
	SizeBytes   int64  `json:"size_bytes" validate:"gt=0"`
}

// AddPhotoRequest registers photo metadata after an upload.
type AddPhotoRequest struct {
	Category    string `json:"category" validate:"required"`
	FileKey     string `json:"file_key" validate:"required"`
	FileName    string `json:"file_name" validate:"required"`
	ContentType string `json:"content_type" validate:"required"`
	SizeBytes   int64  `json:"size_bytes" validate:"gte=0"`
}

// AssessmentResponse is the API shape of an assessment.
type AssessmentResponse struct {
	ID            uuid.UUID  `json:"id"`
	Number        string     `json:"number"`
	RequestID     uuid.UUID  `json:"request_id"`
	InspectionID  *uuid.UUID `json:"inspection_id,omitempty"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	Stage         string     `json:"stage"`
	CurrentTab    *string    `json:"current_tab,omitempty"`
	TabsCompleted []string   `json:"tabs_completed"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ToAssessmentResponse maps the storage model to the API shape.
func ToAssessmentResponse(a *repository.Assessment) AssessmentResponse {
	tabs := a.TabsCompleted
	if tabs == nil {
		tabs = []string{}
	}
	return AssessmentResponse{
		ID:            a.ID,
		Number:        a.Number,
		RequestID:     a.RequestID,
		InspectionID:  a.InspectionID,
		AppointmentID: a.AppointmentID,
		Stage:         a.Stage,
		CurrentTab:    a.CurrentTab,
		TabsCompleted: tabs,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

// ListResponse is a paginated page of assessments.
type ListResponse struct {
	Items      []AssessmentResponse `json:"items"`
	Total      int                  `json:"total"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"page_size"`
	TotalPages int                  `json:"total_pages"`
}

// ToListResponse maps a repository page to the API shape.
func ToListResponse(r *repository.ListResult) ListResponse {
	items := make([]AssessmentResponse, 0, len(r.Items))
	for i := range r.Items {
		items = append(items, ToAssessmentResponse(&r.Items[i]))
	}
	return ListResponse{
		Items:      items,
		Total:      r.Total,
		Page:       r.Page,
		PageSize:   r.PageSize,
		TotalPages: r.TotalPages,
	}
}
