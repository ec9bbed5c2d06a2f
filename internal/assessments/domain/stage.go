// Package domain provides core workflow rules for the assessments bounded context.
package domain

import "fmt"

// Stage is the canonical workflow position of an assessment. It is the single
// source of truth for pipeline state and supersedes the legacy free-text
// status column, which is retained for backward compatibility only.
type Stage string

const (
	StageRequestSubmitted     Stage = "request_submitted"
	StageRequestReviewed      Stage = "request_reviewed"
	StageInspectionScheduled  Stage = "inspection_scheduled"
	StageAppointmentScheduled Stage = "appointment_scheduled"
	StageAssessmentInProgress Stage = "assessment_in_progress"
	StageEstimateReview       Stage = "estimate_review"
	StageEstimateSent         Stage = "estimate_sent"
	StageEstimateFinalized    Stage = "estimate_finalized"
	StageFRCInProgress        Stage = "frc_in_progress"
	StageArchived             Stage = "archived"
	StageCancelled            Stage = "cancelled"
)

// happyPath is the linear stage progression. archived terminates it;
// cancelled sits outside the path and is reachable from any non-terminal stage.
var happyPath = []Stage{
	StageRequestSubmitted,
	StageRequestReviewed,
	StageInspectionScheduled,
	StageAppointmentScheduled,
	StageAssessmentInProgress,
	StageEstimateReview,
	StageEstimateSent,
	StageEstimateFinalized,
	StageFRCInProgress,
	StageArchived,
}

// stageOrder maps each happy-path stage to its position for ordering checks.
var stageOrder = func() map[Stage]int {
	m := make(map[Stage]int, len(happyPath))
	for i, s := range happyPath {
		m[s] = i
	}
	return m
}()

// Stages returns every known stage, happy path first, cancelled last.
func Stages() []Stage {
	return append(append([]Stage(nil), happyPath...), StageCancelled)
}

// IsKnown reports whether s is a recognised stage value.
func IsKnown(s Stage) bool {
	if s == StageCancelled {
		return true
	}
	_, ok := stageOrder[s]
	return ok
}

// IsTerminal reports whether s is an absorbing state. No transition may
// leave a terminal stage.
func IsTerminal(s Stage) bool {
	return s == StageArchived || s == StageCancelled
}

// Next returns the immediate happy-path successor of s, or "" when s has
// none (terminal stages and cancelled).
func Next(s Stage) Stage {
	idx, ok := stageOrder[s]
	if !ok || idx == len(happyPath)-1 {
		return ""
	}
	return happyPath[idx+1]
}

// Order returns the happy-path position of s, used for monotonicity checks.
// Cancelled has no position; the second return is false for it and for
// unknown stages.
func Order(s Stage) (int, bool) {
	idx, ok := stageOrder[s]
	return idx, ok
}

// InvalidTransitionError reports an attempted transition that is not a
// forward step on the happy path nor an archival/cancellation.
type InvalidTransitionError struct {
	From Stage
	To   Stage
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid stage transition from %q to %q", e.From, e.To)
}

// IsValidTransition reports whether moving from one stage to another is
// legal: either to is from's immediate successor, or to is a terminal stage
// and from is not already terminal.
func IsValidTransition(from, to Stage) bool {
	if !IsKnown(from) || !IsKnown(to) {
		return false
	}
	if IsTerminal(from) {
		return false
	}
	if to == StageArchived || to == StageCancelled {
		return true
	}
	return Next(from) == to
}

// ValidateTransition returns an *InvalidTransitionError when the transition
// is illegal, nil otherwise.
func ValidateTransition(from, to Stage) error {
	if !IsValidTransition(from, to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}
