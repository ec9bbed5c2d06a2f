package domain

import (
	"errors"
	"testing"
)

func TestIsValidTransitionHappyPath(t *testing.T) {
	path := []Stage{
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

	for i := 0; i < len(path)-1; i++ {
		if !IsValidTransition(path[i], path[i+1]) {
			t.Errorf("IsValidTransition(%q, %q) = false, want true", path[i], path[i+1])
		}
	}
}

func TestIsValidTransitionExhaustive(t *testing.T) {
	// For every (from, to) pair, the only legal moves are the immediate
	// successor and the two terminal stages (from a non-terminal from).
	for _, from := range Stages() {
		for _, to := range Stages() {
			want := false
			if !IsTerminal(from) {
				if to == StageArchived || to == StageCancelled {
					want = true
				}
				if Next(from) == to {
					want = true
				}
			}
			if got := IsValidTransition(from, to); got != want {
				t.Errorf("IsValidTransition(%q, %q) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestIsValidTransitionRejectsUnknownStages(t *testing.T) {
	if IsValidTransition("request_submitted", "shipped") {
		t.Error("unknown target stage should be rejected")
	}
	if IsValidTransition("limbo", StageArchived) {
		t.Error("unknown source stage should be rejected")
	}
}

func TestTerminalStagesAbsorb(t *testing.T) {
	for _, terminal := range []Stage{StageArchived, StageCancelled} {
		for _, to := range Stages() {
			if IsValidTransition(terminal, to) {
				t.Errorf("transition out of terminal stage %q to %q should be illegal", terminal, to)
			}
		}
	}
}

func TestValidateTransitionErrorNamesBothStages(t *testing.T) {
	err := ValidateTransition(StageRequestSubmitted, StageEstimateSent)
	if err == nil {
		t.Fatal("expected error for non-adjacent jump")
	}

	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected *InvalidTransitionError, got %T", err)
	}
	if invalid.From != StageRequestSubmitted || invalid.To != StageEstimateSent {
		t.Errorf("error carries (%q, %q), want (%q, %q)", invalid.From, invalid.To, StageRequestSubmitted, StageEstimateSent)
	}
}

func TestHappyPathOrderingIsStrictlyIncreasing(t *testing.T) {
	prev := -1
	for _, s := range Stages() {
		if s == StageCancelled {
			if _, ok := Order(s); ok {
				t.Error("cancelled must not have a happy-path position")
			}
			continue
		}
		idx, ok := Order(s)
		if !ok {
			t.Fatalf("stage %q has no order", s)
		}
		if idx <= prev {
			t.Errorf("stage %q order %d not increasing (prev %d)", s, idx, prev)
		}
		prev = idx
	}
}
