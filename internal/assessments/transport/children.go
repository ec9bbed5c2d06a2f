package transport

import (
	"time"

	"claimtech_backend/internal/assessments/repository"

	"github.com/google/uuid"
)

// DamageRecordResponse is the API shape of a damage record.
type DamageRecordResponse struct {
	ID           uuid.UUID `json:"id"`
	AssessmentID uuid.UUID `json:"assessment_id"`
	Severity     *string   `json:"severity,omitempty"`
	AffectedArea *string   `json:"affected_area,omitempty"`
	Notes        *string   `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func ToDamageRecordResponse(d *repository.DamageRecord) DamageRecordResponse {
	return DamageRecordResponse{
		ID:           d.ID,
		AssessmentID: d.AssessmentID,
		Severity:     d.Severity,
		AffectedArea: d.AffectedArea,
		Notes:        d.Notes,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// ValuationResponse is the API shape of a vehicle valuation.
type ValuationResponse struct {
	ID               uuid.UUID `json:"id"`
	AssessmentID     uuid.UUID `json:"assessment_id"`
	MarketValueCents int64     `json:"market_value_cents"`
	TradeValueCents  int64     `json:"trade_value_cents"`
	RetailValueCents int64     `json:"retail_value_cents"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func ToValuationResponse(v *repository.VehicleValuation) ValuationResponse {
	return ValuationResponse{
		ID:               v.ID,
		AssessmentID:     v.AssessmentID,
		MarketValueCents: v.MarketValueCents,
		TradeValueCents:  v.TradeValueCents,
		RetailValueCents: v.RetailValueCents,
		CreatedAt:        v.CreatedAt,
		UpdatedAt:        v.UpdatedAt,
	}
}

// EstimateResponse is the API shape of an estimate.
type EstimateResponse struct {
	ID            uuid.UUID `json:"id"`
	AssessmentID  uuid.UUID `json:"assessment_id"`
	Kind          string    `json:"kind"`
	SubtotalCents int64     `json:"subtotal_cents"`
	VATCents      int64     `json:"vat_cents"`
	TotalCents    int64     `json:"total_cents"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func ToEstimateResponse(e *repository.Estimate) EstimateResponse {
	return EstimateResponse{
		ID:            e.ID,
		AssessmentID:  e.AssessmentID,
		Kind:          e.Kind,
		SubtotalCents: e.SubtotalCents,
		VATCents:      e.VATCents,
		TotalCents:    e.TotalCents,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

// FRCRecordResponse is the API shape of a final repair costing record.
type FRCRecordResponse struct {
	ID              uuid.UUID `json:"id"`
	AssessmentID    uuid.UUID `json:"assessment_id"`
	AgreedCostCents int64     `json:"agreed_cost_cents"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func ToFRCRecordResponse(f *repository.FRCRecord) FRCRecordResponse {
	return FRCRecordResponse{
		ID:              f.ID,
		AssessmentID:    f.AssessmentID,
		AgreedCostCents: f.AgreedCostCents,
		Status:          f.Status,
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.UpdatedAt,
	}
}

// TyreResponse is the API shape of a tyre record.
type TyreResponse struct {
	ID           uuid.UUID `json:"id"`
	AssessmentID uuid.UUID `json:"assessment_id"`
	Position     string    `json:"position"`
	Make         *string   `json:"make,omitempty"`
	TreadDepthMM *float64  `json:"tread_depth_mm,omitempty"`
	Condition    *string   `json:"condition,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func ToTyreResponses(tyres []repository.Tyre) []TyreResponse {
	out := make([]TyreResponse, 0, len(tyres))
	for i := range tyres {
		t := &tyres[i]
		out = append(out, TyreResponse{
			ID:           t.ID,
			AssessmentID: t.AssessmentID,
			Position:     t.Position,
			Make:         t.Make,
			TreadDepthMM: t.TreadDepthMM,
			Condition:    t.Condition,
			CreatedAt:    t.CreatedAt,
			UpdatedAt:    t.UpdatedAt,
		})
	}
	return out
}

// PhotoResponse is the API shape of photo metadata.
type PhotoResponse struct {
	ID           uuid.UUID `json:"id"`
	AssessmentID uuid.UUID `json:"assessment_id"`
	Category     string    `json:"category"`
	FileKey      string    `json:"file_key"`
	FileName     string    `json:"file_name"`
	ContentType  string    `json:"content_type"`
	SizeBytes    int64     `json:"size_bytes"`
	URL          string    `json:"url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func ToPhotoResponse(p *repository.Photo, url string) PhotoResponse {
	return PhotoResponse{
		ID:           p.ID,
		AssessmentID: p.AssessmentID,
		Category:     p.Category,
		FileKey:      p.FileKey,
		FileName:     p.FileName,
		ContentType:  p.ContentType,
		SizeBytes:    p.SizeBytes,
		URL:          url,
		CreatedAt:    p.CreatedAt,
	}
}
