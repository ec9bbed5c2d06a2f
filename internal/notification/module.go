// Package notification sends client-facing emails in response to domain
// events. It inverts the dependency: the assessments and appointments
// modules publish events without knowing about mail providers or templates.
package notification

import (
	"context"
	"time"

	"github.com/google/uuid"

	"claimtech_backend/internal/email"
	"claimtech_backend/internal/events"
	"claimtech_backend/platform/logger"
)

// ContactResolver looks up the client contact behind an assessment so
// notifications can be addressed without the publisher carrying contact data.
type ContactResolver interface {
	ResolveByAssessment(ctx context.Context, assessmentID uuid.UUID) (name, emailAddr string, err error)
}

// Module wires domain events to the email sender.
type Module struct {
	sender   email.Sender
	contacts ContactResolver
	log      *logger.Logger
}

func New(sender email.Sender, log *logger.Logger) *Module {
	return &Module{sender: sender, log: log}
}

func (m *Module) Name() string { return "notification" }

// SetContactResolver injects the contact lookup used to address emails.
func (m *Module) SetContactResolver(r ContactResolver) { m.contacts = r }

// RegisterHandlers subscribes the module to the events it acts on.
func (m *Module) RegisterHandlers(bus *events.InMemoryBus) {
	bus.Subscribe(events.EstimateSentToClient{}.EventName(), m)
	bus.Subscribe(events.AppointmentScheduled{}.EventName(), m)
	bus.Subscribe(events.AppointmentReminderDue{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.EstimateSentToClient:
		return m.handleEstimateSent(ctx, e)
	case events.AppointmentScheduled:
		return m.handleAppointmentScheduled(ctx, e)
	case events.AppointmentReminderDue:
		return m.handleAppointmentReminderDue(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

func (m *Module) handleEstimateSent(ctx context.Context, e events.EstimateSentToClient) error {
	name, addr := e.ClientName, e.ClientEmail
	if addr == "" {
		name, addr = m.resolveContact(ctx, e.AssessmentID)
	}
	if addr == "" {
		m.log.Warn("estimate email skipped, no client email",
			"assessment_id", e.AssessmentID)
		return nil
	}

	if err := m.sender.SendEstimateEmail(ctx, addr, name, e.AssessmentNumber); err != nil {
		m.log.Error("failed to send estimate email",
			"assessment_id", e.AssessmentID, "error", err)
		return err
	}

	m.log.Info("estimate email sent",
		"assessment_id", e.AssessmentID, "assessment_number", e.AssessmentNumber)
	return nil
}

func (m *Module) handleAppointmentScheduled(ctx context.Context, e events.AppointmentScheduled) error {
	name, addr := "", e.ClientEmail
	if addr == "" && e.AssessmentID != nil {
		name, addr = m.resolveContact(ctx, *e.AssessmentID)
	}
	if addr == "" {
		m.log.Warn("appointment email skipped, no client email",
			"appointment_id", e.AppointmentID)
		return nil
	}

	err := m.sender.SendAppointmentEmail(ctx, addr, name,
		e.AppointmentNumber, formatScheduledAt(e.StartTime), e.Location)
	if err != nil {
		m.log.Error("failed to send appointment email",
			"appointment_id", e.AppointmentID, "error", err)
		return err
	}

	m.log.Info("appointment email sent",
		"appointment_id", e.AppointmentID, "appointment_number", e.AppointmentNumber)
	return nil
}

func (m *Module) handleAppointmentReminderDue(ctx context.Context, e events.AppointmentReminderDue) error {
	if e.ClientEmail == "" {
		m.log.Warn("reminder email skipped, no client email",
			"appointment_id", e.AppointmentID)
		return nil
	}

	err := m.sender.SendReminderEmail(ctx, e.ClientEmail, e.ClientName,
		e.AppointmentNumber, formatScheduledAt(e.StartTime), e.Location)
	if err != nil {
		m.log.Error("failed to send reminder email",
			"appointment_id", e.AppointmentID, "error", err)
		return err
	}

	m.log.Info("reminder email sent",
		"appointment_id", e.AppointmentID, "appointment_number", e.AppointmentNumber)
	return nil
}

func (m *Module) resolveContact(ctx context.Context, assessmentID uuid.UUID) (string, string) {
	if m.contacts == nil {
		return "", ""
	}
	name, addr, err := m.contacts.ResolveByAssessment(ctx, assessmentID)
	if err != nil {
		m.log.Warn("failed to resolve client contact",
			"assessment_id", assessmentID, "error", err)
		return "", ""
	}
	return name, addr
}

func formatScheduledAt(t time.Time) string {
	return t.Format("Monday, 2 January 2006 at 15:04")
}
