// Package handler exposes the assessments HTTP API.
package handler

import (
	"net/http"
	"strconv"

	"claimtech_backend/internal/assessments/domain"
	"claimtech_backend/internal/assessments/repository"
	"claimtech_backend/internal/assessments/service"
	"claimtech_backend/internal/assessments/transport"
	"claimtech_backend/internal/storage"
	"claimtech_backend/platform/httpkit"
	"claimtech_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"

	defaultPageSize = 20
	maxPageSize     = 100
)

// PhotoURLSigner produces short-lived URLs against object storage: download
// URLs for stored photos and upload URLs for new ones.
type PhotoURLSigner interface {
	SignedURL(c *gin.Context, fileKey string) (string, error)
	UploadURL(c *gin.Context, assessmentID uuid.UUID, fileName, contentType string, sizeBytes int64) (*storage.PresignedURL, error)
}

type Handler struct {
	svc    *service.Service
	val    *validator.Validator
	signer PhotoURLSigner
}

func New(svc *service.Service, val *validator.Validator, signer PhotoURLSigner) *Handler {
	return &Handler{svc: svc, val: val, signer: signer}
}

// SetPhotoURLSigner wires the signed-URL generator, injected after module
// construction because it comes from the storage module.
func (h *Handler) SetPhotoURLSigner(signer PhotoURLSigner) {
	h.signer = signer
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/views/:view", h.ListView)
	rg.GET("/stages", h.ListStages)
	rg.GET("/:id", h.GetByID)
	rg.POST("/:id/transition", h.Transition)
	rg.PATCH("/:id/tabs", h.UpdateTabState)

	rg.GET("/:id/damage-record", h.GetDamageRecord)
	rg.PATCH("/:id/damage-record", h.UpdateDamageRecord)
	rg.GET("/:id/valuation", h.GetValuation)
	rg.PATCH("/:id/valuation", h.UpdateValuation)
	rg.GET("/:id/estimate", h.GetEstimate)
	rg.PATCH("/:id/estimate", h.UpdateEstimate)
	rg.GET("/:id/pre-incident-estimate", h.GetPreIncidentEstimate)
	rg.PATCH("/:id/pre-incident-estimate", h.UpdatePreIncidentEstimate)
	rg.GET("/:id/frc", h.GetFRCRecord)
	rg.PATCH("/:id/frc", h.UpdateFRCRecord)
	rg.GET("/:id/tyres", h.ListTyres)
	rg.POST("/:id/tyres/spare", h.AddSpareTyre)
	rg.PATCH("/:id/tyres/:position", h.UpdateTyre)
	rg.GET("/:id/photos", h.ListPhotos)
	rg.POST("/:id/photos", h.AddPhoto)
	rg.POST("/:id/photos/upload-url", h.CreatePhotoUploadURL)
	rg.DELETE("/:id/photos/:photoId", h.DeletePhoto)
}

func (h *Handler) actor(c *gin.Context) (service.Actor, bool) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return service.Actor{}, false
	}
	role := service.RoleEngineer
	if id.HasRole(service.RoleAdmin) {
		role = service.RoleAdmin
	}
	return service.Actor{
		UserID: id.UserID(),
		Role:   role,
		Name:   id.UserID().String(),
	}, true
}

func paramID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return uuid.Nil, false
	}
	return id, true
}

func pagination(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	return page, pageSize
}

// ListStages returns the ordered stage enumeration, for clients rendering
// workflow progress.
func (h *Handler) ListStages(c *gin.Context) {
	stages := domain.Stages()
	out := make([]string, 0, len(stages))
	for _, s := range stages {
		out = append(out, string(s))
	}
	httpkit.OK(c, gin.H{"stages": out, "terminal": []string{string(domain.StageArchived), string(domain.StageCancelled)}})
}

// ListView serves a named workflow screen (requests, inspections,
// appointments, open, finalized, frc, archive).
func (h *Handler) ListView(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	page, pageSize := pagination(c)

	result, err := h.svc.ListView(c.Request.Context(), c.Param("view"), actor, page, pageSize)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToListResponse(result))
}

func (h *Handler) GetByID(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	a, err := h.svc.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToAssessmentResponse(a))
}

func (h *Handler) Transition(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req transport.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	linkage := &service.Linkage{
		InspectionID:  req.InspectionID,
		AppointmentID: req.AppointmentID,
	}
	a, err := h.svc.Transition(c.Request.Context(), id, domain.Stage(req.TargetStage), linkage, actor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToAssessmentResponse(a))
}

func (h *Handler) UpdateTabState(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req transport.TabStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if err := h.svc.UpdateTabState(c.Request.Context(), id, req.CurrentTab, req.TabsCompleted); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

// Child record reads return 404 until the assessment has entered the stage
// that creates them.

func (h *Handler) GetDamageRecord(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	d, err := h.svc.DamageRecord(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToDamageRecordResponse(d))
}

func (h *Handler) GetValuation(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	v, err := h.svc.Valuation(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToValuationResponse(v))
}

func (h *Handler) GetEstimate(c *gin.Context) {
	h.getEstimate(c, repository.EstimateKindRepair)
}

func (h *Handler) GetPreIncidentEstimate(c *gin.Context) {
	h.getEstimate(c, repository.EstimateKindPreIncident)
}

func (h *Handler) getEstimate(c *gin.Context, kind string) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	e, err := h.svc.Estimate(c.Request.Context(), id, kind)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToEstimateResponse(e))
}

func (h *Handler) GetFRCRecord(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	f, err := h.svc.FRCRecord(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToFRCRecordResponse(f))
}

func (h *Handler) ListTyres(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	tyres, err := h.svc.Tyres(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": transport.ToTyreResponses(tyres)})
}

func (h *Handler) AddSpareTyre(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	tyres, err := h.svc.AddSpareTyre(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, gin.H{"items": transport.ToTyreResponses(tyres)})
}

// Engineer edits to child records. Each PATCH applies only the supplied
// fields and records an audit entry.

func (h *Handler) UpdateDamageRecord(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req transport.UpdateDamageRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	d, err := h.svc.UpdateDamageRecord(c.Request.Context(), id, service.DamageRecordUpdate{
		Severity:     req.Severity,
		AffectedArea: req.AffectedArea,
		Notes:        req.Notes,
	}, actor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToDamageRecordResponse(d))
}

func (h *Handler) UpdateValuation(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req transport.UpdateValuationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	v, err := h.svc.UpdateValuation(c.Request.Context(), id, service.ValuationUpdate{
		MarketValueCents: req.MarketValueCents,
		TradeValueCents:  req.TradeValueCents,
		RetailValueCents: req.RetailValueCents,
	}, actor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToValuationResponse(v))
}

func (h *Handler) UpdateEstimate(c *gin.Context) {
	h.updateEstimate(c, repository.EstimateKindRepair)
}

func (h *Handler) UpdatePreIncidentEstimate(c *gin.Context) {
	h.updateEstimate(c, repository.EstimateKindPreIncident)
}

func (h *Handler) updateEstimate(c *gin.Context, kind string) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req transport.UpdateEstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	e, err := h.svc.UpdateEstimate(c.Request.Context(), id, kind, service.EstimateUpdate{
		SubtotalCents: req.SubtotalCents,
		VATCents:      req.VATCents,
		TotalCents:    req.TotalCents,
	}, actor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToEstimateResponse(e))
}

func (h *Handler) UpdateFRCRecord(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req transport.UpdateFRCRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	f, err := h.svc.UpdateFRCRecord(c.Request.Context(), id, service.FRCUpdate{
		AgreedCostCents: req.AgreedCostCents,
		Status:          req.Status,
	}, actor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToFRCRecordResponse(f))
}

func (h *Handler) UpdateTyre(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req transport.UpdateTyreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	tyres, err := h.svc.UpdateTyre(c.Request.Context(), id, c.Param("position"), service.TyreUpdate{
		Make:         req.Make,
		TreadDepthMM: req.TreadDepthMM,
		Condition:    req.Condition,
	}, actor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": transport.ToTyreResponses(tyres)})
}

func (h *Handler) ListPhotos(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var category *string
	if v := c.Query("category"); v != "" {
		category = &v
	}

	photos, err := h.svc.ListPhotos(c.Request.Context(), id, category)
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]transport.PhotoResponse, 0, len(photos))
	for i := range photos {
		url := ""
		if h.signer != nil {
			if signed, err := h.signer.SignedURL(c, photos[i].FileKey); err == nil {
				url = signed
			}
		}
		items = append(items, transport.ToPhotoResponse(&photos[i], url))
	}
	httpkit.OK(c, gin.H{"items": items})
}

// CreatePhotoUploadURL hands out a presigned PUT URL. The client uploads the
// binary directly to object storage, then registers the metadata via AddPhoto
// with the returned file key.
func (h *Handler) CreatePhotoUploadURL(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if h.signer == nil {
		httpkit.Error(c, http.StatusServiceUnavailable, "photo storage is not configured", nil)
		return
	}

	var req transport.PhotoUploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	presigned, err := h.signer.UploadURL(c, id, req.FileName, req.ContentType, req.SizeBytes)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	httpkit.OK(c, presigned)
}

func (h *Handler) AddPhoto(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req transport.AddPhotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	p, err := h.svc.AddPhoto(c.Request.Context(), &repository.Photo{
		AssessmentID: id,
		Category:     req.Category,
		FileKey:      req.FileKey,
		FileName:     req.FileName,
		ContentType:  req.ContentType,
		SizeBytes:    req.SizeBytes,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.ToPhotoResponse(p, ""))
}

func (h *Handler) DeletePhoto(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	photoID, err := uuid.Parse(c.Param("photoId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if err := h.svc.DeletePhoto(c.Request.Context(), photoID, id); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}
