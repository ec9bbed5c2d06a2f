package domain

// Workflow list screens. Each view is a read-only projection filtering
// assessments by one or more stages.
const (
	ViewRequests     = "requests"
	ViewInspections  = "inspections"
	ViewAppointments = "appointments"
	ViewOpen         = "open"
	ViewFinalized    = "finalized"
	ViewFRC          = "frc"
	ViewArchive      = "archive"
)

var viewStages = map[string][]Stage{
	ViewRequests:     {StageRequestSubmitted, StageRequestReviewed},
	ViewInspections:  {StageInspectionScheduled},
	ViewAppointments: {StageAppointmentScheduled},
	ViewOpen:         {StageAssessmentInProgress, StageEstimateReview},
	ViewFinalized:    {StageEstimateSent, StageEstimateFinalized},
	ViewFRC:          {StageFRCInProgress},
	ViewArchive:      {StageArchived, StageCancelled},
}

// ViewStages returns the stage set backing a workflow list screen.
func ViewStages(view string) ([]Stage, bool) {
	stages, ok := viewStages[view]
	return stages, ok
}
