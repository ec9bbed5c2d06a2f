// Package assessments provides the assessment workflow domain module.
package assessments

import (
	"claimtech_backend/internal/assessments/handler"
	"claimtech_backend/internal/assessments/repository"
	"claimtech_backend/internal/assessments/service"
	"claimtech_backend/internal/events"
	apphttp "claimtech_backend/internal/http"
	"claimtech_backend/platform/logger"
	"claimtech_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the assessments domain module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates a new assessments module with all dependencies wired.
// The audit writer, contact reader, and photo URL signer are injected later
// through setters because they come from sibling modules.
func NewModule(pool *pgxpool.Pool, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, nil, bus, log)
	h := handler.New(svc, val, nil)

	return &Module{
		handler: h,
		service: svc,
	}
}

// Service exposes the assessment service for adapters and sibling modules.
func (m *Module) Service() *service.Service {
	return m.service
}

// SetAuditWriter wires the audit trail port.
func (m *Module) SetAuditWriter(audit service.AuditWriter) {
	m.service.SetAuditWriter(audit)
}

// SetContactReader wires the client-contact port.
func (m *Module) SetContactReader(contacts service.ContactReader) {
	m.service.SetContactReader(contacts)
}

// SetPhotoURLSigner wires the signed-URL generator for photo downloads.
func (m *Module) SetPhotoURLSigner(signer handler.PhotoURLSigner) {
	m.handler.SetPhotoURLSigner(signer)
}

// SetObjectRemover wires object-storage cleanup for deleted photos.
func (m *Module) SetObjectRemover(objects service.ObjectRemover) {
	m.service.SetObjectRemover(objects)
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "assessments"
}

// RegisterRoutes registers the module's routes under /api/v1/assessments.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	assessments := ctx.Protected.Group("/assessments")
	m.handler.RegisterRoutes(assessments)
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
