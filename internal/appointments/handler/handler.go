// Package handler exposes the appointments HTTP API.
package handler

import (
	"net/http"
	"time"

	"claimtech_backend/internal/appointments/repository"
	"claimtech_backend/internal/appointments/service"
	"claimtech_backend/platform/httpkit"
	"claimtech_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type bookRequest struct {
	AssessmentID uuid.UUID `json:"assessment_id" validate:"required"`
	EngineerID   uuid.UUID `json:"engineer_id" validate:"required"`
	ScheduledAt  time.Time `json:"scheduled_at" validate:"required"`
	Location     string    `json:"location" validate:"required"`
	Notes        *string   `json:"notes,omitempty"`
}

type rescheduleRequest struct {
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
	Location    string    `json:"location" validate:"required"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type response struct {
	ID           uuid.UUID `json:"id"`
	Number       string    `json:"number"`
	AssessmentID uuid.UUID `json:"assessment_id"`
	EngineerID   uuid.UUID `json:"engineer_id"`
	ScheduledAt  time.Time `json:"scheduled_at"`
	Location     string    `json:"location"`
	Notes        *string   `json:"notes,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toResponse(a *repository.Appointment) response {
	return response{
		ID:           a.ID,
		Number:       a.Number,
		AssessmentID: a.AssessmentID,
		EngineerID:   a.EngineerID,
		ScheduledAt:  a.ScheduledAt,
		Location:     a.Location,
		Notes:        a.Notes,
		Status:       a.Status,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func toResponses(items []repository.Appointment) []response {
	out := make([]response, 0, len(items))
	for i := range items {
		out = append(out, toResponse(&items[i]))
	}
	return out
}

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Book)
	rg.GET("/mine", h.ListMine)
	rg.GET("/:id", h.GetByID)
	rg.PUT("/:id/reschedule", h.Reschedule)
	rg.PATCH("/:id/status", h.UpdateStatus)
	rg.GET("/by-assessment/:assessmentId", h.ListByAssessment)
}

func (h *Handler) Book(c *gin.Context) {
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	created, err := h.svc.Book(c.Request.Context(), req.AssessmentID, req.EngineerID, req.ScheduledAt, req.Location, req.Notes)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, toResponse(created))
}

// ListMine returns the authenticated engineer's upcoming appointments.
func (h *Handler) ListMine(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	items, err := h.svc.ListByEngineer(c.Request.Context(), id.UserID(), time.Now().AddDate(0, 0, -1))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": toResponses(items)})
}

func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	a, err := h.svc.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(a))
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

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if err := h.svc.UpdateStatus(c.Request.Context(), id, req.Status); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
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
	httpkit.OK(c, gin.H{"items": toResponses(items)})
}
