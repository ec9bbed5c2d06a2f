// Package inspections provides the inspection scheduling domain module.
package inspections

import (
	apphttp "claimtech_backend/internal/http"
	"claimtech_backend/internal/inspections/handler"
	"claimtech_backend/internal/inspections/repository"
	"claimtech_backend/internal/inspections/service"
	"claimtech_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the inspections domain module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates a new inspections module with all dependencies wired.
func NewModule(pool *pgxpool.Pool, val *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := service.New(repo)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
	}
}

// Service exposes the inspection service for adapters.
func (m *Module) Service() *service.Service {
	return m.service
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "inspections"
}

// RegisterRoutes registers the module's routes under /api/v1/inspections.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	inspections := ctx.Protected.Group("/inspections")
	m.handler.RegisterRoutes(inspections)
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
