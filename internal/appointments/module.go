// Package appointments provides the engineer appointment domain module.
package appointments

import (
	"claimtech_backend/internal/appointments/handler"
	"claimtech_backend/internal/appointments/repository"
	"claimtech_backend/internal/appointments/service"
	"claimtech_backend/internal/events"
	apphttp "claimtech_backend/internal/http"
	"claimtech_backend/internal/scheduler"
	"claimtech_backend/platform/logger"
	"claimtech_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the appointments domain module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates a new appointments module with all dependencies wired.
// A nil reminder scheduler disables reminders.
func NewModule(pool *pgxpool.Pool, bus events.Bus, reminders scheduler.ReminderScheduler, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, bus, reminders, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
	}
}

// Service exposes the appointment service for adapters and the worker.
func (m *Module) Service() *service.Service {
	return m.service
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "appointments"
}

// RegisterRoutes registers the module's routes under /api/v1/appointments.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	appointments := ctx.Protected.Group("/appointments")
	m.handler.RegisterRoutes(appointments)
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
