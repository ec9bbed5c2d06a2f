package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// GateViolation reports a transition attempted without the linkage the
// target stage requires. The UI is expected to make these unreachable, so a
// surfaced violation indicates a client/state desync and is logged loudly.
type GateViolation struct {
	Field    string // "inspection_id" or "appointment_id"
	Expected string // human-readable expectation, e.g. "set"
}

func (e *GateViolation) Error() string {
	return fmt.Sprintf("stage gate violation: %s must be %s", e.Field, e.Expected)
}

// RequiresInspection reports whether the stage requires inspection_id to be set.
func RequiresInspection(s Stage) bool {
	idx, ok := Order(s)
	if !ok {
		return false
	}
	min, _ := Order(StageInspectionScheduled)
	return idx >= min
}

// RequiresAppointment reports whether the stage requires appointment_id to be set.
func RequiresAppointment(s Stage) bool {
	idx, ok := Order(s)
	if !ok {
		return false
	}
	min, _ := Order(StageAppointmentScheduled)
	return idx >= min
}

// ValidateGate checks that the assessment already carries every linkage the
// target stage requires. It must run AFTER linkage writes and BEFORE the
// stage write, never the other way around: writing the stage first trips the
// database CHECK constraint instead of failing fast with a clear error.
//
// Terminal stages are exempt: an assessment may be archived or cancelled
// from any point, with whatever linkage it has.
func ValidateGate(inspectionID, appointmentID *uuid.UUID, target Stage) error {
	if IsTerminal(target) {
		return nil
	}
	if RequiresInspection(target) && inspectionID == nil {
		return &GateViolation{Field: "inspection_id", Expected: "set"}
	}
	if RequiresAppointment(target) && appointmentID == nil {
		return &GateViolation{Field: "appointment_id", Expected: "set"}
	}
	return nil
}
