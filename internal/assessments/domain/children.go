package domain

// ChildKind identifies a dependent record type owned by an assessment.
type ChildKind string

const (
	ChildDamageRecord        ChildKind = "damage_record"
	ChildVehicleValuation    ChildKind = "vehicle_valuation"
	ChildEstimate            ChildKind = "estimate"
	ChildPreIncidentEstimate ChildKind = "pre_incident_estimate"
	ChildTyres               ChildKind = "tyres"
	ChildFRCRecord           ChildKind = "frc_record"
)

// TyrePositions are the canonical tyre positions upserted for every
// assessment entering the in-progress stage. A spare can be added on demand.
var TyrePositions = []string{"front_left", "front_right", "rear_left", "rear_right"}

// TyrePositionSpare is the optional fifth position.
const TyrePositionSpare = "spare"

// IsTyrePosition reports whether pos is a canonical position or the spare.
func IsTyrePosition(pos string) bool {
	if pos == TyrePositionSpare {
		return true
	}
	for _, p := range TyrePositions {
		if p == pos {
			return true
		}
	}
	return false
}

// RequiredChildren returns the dependent records that must exist once an
// assessment enters the given stage. The factory creating them is
// idempotent, so invoking it on re-entry or retry is harmless.
func RequiredChildren(s Stage) []ChildKind {
	switch s {
	case StageAssessmentInProgress:
		return []ChildKind{
			ChildDamageRecord,
			ChildVehicleValuation,
			ChildEstimate,
			ChildPreIncidentEstimate,
			ChildTyres,
		}
	case StageFRCInProgress:
		return []ChildKind{ChildFRCRecord}
	default:
		return nil
	}
}
