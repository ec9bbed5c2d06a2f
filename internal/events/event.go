package events

import (
	"time"

	"github.com/google/uuid"
)

// Event names, matched by Subscribe calls.
const (
	EventNameRequestCreated         = "request.created"
	EventNameAppointmentScheduled   = "appointment.scheduled"
	EventNameAppointmentReminderDue = "appointment.reminder_due"
	EventNameChildRecordCreated     = "assessment.child_created"
	EventNameEstimateSentToClient   = "assessment.estimate_sent"
	EventNameAssessmentClosed       = "assessment.closed"
)

// RequestCreated fires when a new vehicle-damage request is submitted.
type RequestCreated struct {
	BaseEvent
	RequestID     uuid.UUID
	RequestNumber string
	AssessmentID  uuid.UUID
	ClientName    string
	ClientEmail   string
}

func (RequestCreated) EventName() string { return EventNameRequestCreated }

// AppointmentScheduled fires when an appointment is booked for an assessment.
type AppointmentScheduled struct {
	BaseEvent
	AppointmentID     uuid.UUID
	AppointmentNumber string
	AssessmentID      *uuid.UUID
	EngineerID        uuid.UUID
	StartTime         time.Time
	Location          string
	ClientEmail       string
}

func (AppointmentScheduled) EventName() string { return EventNameAppointmentScheduled }

// AppointmentReminderDue fires when a scheduled reminder task comes due;
// published by the scheduler worker, consumed by the notification module.
type AppointmentReminderDue struct {
	BaseEvent
	AppointmentID     uuid.UUID
	AppointmentNumber string
	StartTime         time.Time
	Location          string
	ClientEmail       string
	ClientName        string
}

func (AppointmentReminderDue) EventName() string { return EventNameAppointmentReminderDue }

// ChildRecordCreated fires the first time a dependent record is created for
// an assessment; idempotent re-invocations of the factory do not refire it.
type ChildRecordCreated struct {
	BaseEvent
	AssessmentID uuid.UUID
	ChildKind    string
	ChildID      uuid.UUID
}

func (ChildRecordCreated) EventName() string { return EventNameChildRecordCreated }

// EstimateSentToClient fires when an assessment enters estimate_sent.
type EstimateSentToClient struct {
	BaseEvent
	AssessmentID     uuid.UUID
	AssessmentNumber string
	ClientEmail      string
	ClientName       string
}

func (EstimateSentToClient) EventName() string { return EventNameEstimateSentToClient }

// AssessmentClosed fires when an assessment enters a terminal stage.
type AssessmentClosed struct {
	BaseEvent
	AssessmentID     uuid.UUID
	AssessmentNumber string
	FinalStage       string
}

func (AssessmentClosed) EventName() string { return EventNameAssessmentClosed }
