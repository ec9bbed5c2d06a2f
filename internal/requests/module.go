// Package requests provides the damage-request intake domain module.
package requests

import (
	"claimtech_backend/internal/events"
	apphttp "claimtech_backend/internal/http"
	"claimtech_backend/internal/requests/handler"
	"claimtech_backend/internal/requests/repository"
	"claimtech_backend/internal/requests/service"
	"claimtech_backend/platform/logger"
	"claimtech_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the requests domain module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates a new requests module with all dependencies wired.
func NewModule(pool *pgxpool.Pool, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, bus, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
	}
}

// Service exposes the request service for adapters.
func (m *Module) Service() *service.Service {
	return m.service
}

// SetAssessmentCreator wires the assessments port.
func (m *Module) SetAssessmentCreator(creator service.AssessmentCreator) {
	m.service.SetAssessmentCreator(creator)
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "requests"
}

// RegisterRoutes registers the module's routes under /api/v1/requests.
// Creation is open to the public intake form; reads and updates require auth.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	public := ctx.V1.Group("/requests")
	public.POST("", m.handler.Create)

	protected := ctx.Protected.Group("/requests")
	protected.GET("", m.handler.List)
	protected.GET("/:id", m.handler.GetByID)
	protected.PUT("/:id", m.handler.Update)
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
