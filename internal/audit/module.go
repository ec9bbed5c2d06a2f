// Package audit provides the immutable audit-trail domain module.
package audit

import (
	"claimtech_backend/internal/audit/handler"
	"claimtech_backend/internal/audit/repository"
	"claimtech_backend/internal/audit/service"
	"claimtech_backend/internal/events"
	apphttp "claimtech_backend/internal/http"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the audit domain module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates a new audit module.
func NewModule(pool *pgxpool.Pool) *Module {
	repo := repository.New(pool)
	svc := service.New(repo)
	h := handler.New(svc)

	return &Module{
		handler: h,
		service: svc,
	}
}

// Service exposes the audit service for adapters.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterHandlers subscribes the trail to workflow events on the bus.
func (m *Module) RegisterHandlers(bus events.Bus) {
	m.service.RegisterHandlers(bus)
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "audit"
}

// RegisterRoutes registers the trail read endpoint for admins only.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	trail := ctx.Admin.Group("/audit")
	m.handler.RegisterRoutes(trail)
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
