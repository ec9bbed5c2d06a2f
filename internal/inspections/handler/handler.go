// Package handler exposes the inspections HTTP API.
package handler

import (
	"net/http"
	"time"

	"claimtech_backend/internal/inspections/repository"
	"claimtech_backend/internal/inspections/service"
	"claimtech_backend/platform/httpkit"
	"claimtech_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type scheduleRequest struct {
	AssessmentID uuid.UUID `json:"assessment_id" validate:"required"`
	ScheduledAt  time.Time `json:"scheduled_at" validate:"required"`
	Location     string    `json:"location" validate:"required"`
	Notes        *string   `json:"notes,omitempty"`
}

type rescheduleRequest struct {
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
	Location    string    `json:"location" validate:"required"`
}

type response struct {
	ID           uuid.UUID `json:"id"`
	Number       string    `json:"number"`
	AssessmentID uuid.UUID `json:"assessment_id"`
	ScheduledAt  time.Time `json:"scheduled_at"`
	Location     string    `json:"location"`
	Notes        *string   `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toResponse(i *repository.Inspection) response {
	return response{
		ID:           i.ID,
		Number:       i.Number,
		AssessmentID: i.AssessmentID,
		ScheduledAt:  i.ScheduledAt,
		Location:     i.Location,
		Notes:        i.Notes,
		CreatedAt:    i.CreatedAt,
		UpdatedAt:    i.UpdatedAt,
	}
}

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Schedule)
	rg.GET("/:id", h.GetByID)
	rg.PUT("/:id/reschedule", h.Reschedule)
	rg.GET("/by-assessment/:assessmentId", h.ListByAssessment)
}

func (h *Handler) Schedule(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	created, err := h.svc.Schedule(c.Request.Context(), req.AssessmentID, req.ScheduledAt, req.Location, req.Notes)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, toResponse(created))
}

func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	i, err := h.svc.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(i))
}

func (h *Handler) Reschedule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req rescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	updated, err := h.svc.Reschedule(c.Request.Context(), id, req.ScheduledAt, req.Location)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(updated))
}

func (h *Handler) ListByAssessment(c *gin.Context) {
	assessmentID, err := uuid.Parse(c.Param("assessmentId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	items, err := h.svc.ListByAssessment(c.Request.Context(), assessmentID)
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]response, 0, len(items))
	for i := range items {
		out = append(out, toResponse(&items[i]))
	}
	httpkit.OK(c, gin.H{"items": out})
}
