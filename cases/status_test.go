package cases

import "testing"

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusFiled, StatusEvidenceCollection},
		{StatusEvidenceCollection, StatusHearingScheduled},
		{StatusHearingScheduled, StatusInHearing},
		{StatusInHearing, StatusVoting},
		{StatusVoting, StatusDecided},
		{StatusDecided, StatusEnforcing},
		{StatusDecided, StatusAppealed},
		{StatusEnforcing, StatusClosed},
		{StatusClosed, StatusAppealed},
		{StatusAppealed, StatusHearingScheduled},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to Status }{
		{StatusFiled, StatusVoting},
		{StatusFiled, StatusClosed},
		{StatusVoting, StatusFiled},
		{StatusDecided, StatusVoting},
		{StatusClosed, StatusEnforcing},
		{StatusAppealed, StatusDecided},
		{StatusVoting, StatusVoting},
	}
	for _, tc := range denied {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be rejected", tc.from, tc.to)
		}
	}
}

func TestCanAdvancePhase(t *testing.T) {
	forward := []struct{ from, to Phase }{
		{PhasePreliminary, PhaseDiscovery},
		{PhaseDiscovery, PhaseHearing},
		{PhaseHearing, PhaseDeliberation},
		{PhaseDeliberation, PhaseDecision},
		{PhaseDecision, PhaseEnforcement},
		{PhasePreliminary, PhaseEnforcement},
	}
	for _, tc := range forward {
		if !CanAdvancePhase(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	backward := []struct{ from, to Phase }{
		{PhaseDiscovery, PhasePreliminary},
		{PhaseDecision, PhaseHearing},
		{PhaseHearing, PhaseHearing},
	}
	for _, tc := range backward {
		if CanAdvancePhase(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be rejected", tc.from, tc.to)
		}
	}

	if CanAdvancePhase("limbo", PhaseDecision) || CanAdvancePhase(PhaseHearing, "limbo") {
		t.Error("unknown phases must be rejected")
	}
}

func TestValidStatusAndPhase(t *testing.T) {
	for _, s := range []Status{
		StatusFiled, StatusEvidenceCollection, StatusHearingScheduled,
		StatusInHearing, StatusVoting, StatusDecided, StatusAppealed,
		StatusEnforcing, StatusClosed,
	} {
		if !ValidStatus(s) {
			t.Errorf("%s should be a valid status", s)
		}
	}
	if ValidStatus("archived") {
		t.Error("archived is not a status")
	}

	for _, p := range []Phase{
		PhasePreliminary, PhaseDiscovery, PhaseHearing,
		PhaseDeliberation, PhaseDecision, PhaseEnforcement,
	} {
		if !ValidPhase(p) {
			t.Errorf("%s should be a valid phase", p)
		}
	}
	if ValidPhase("review") {
		t.Error("review is not a phase")
	}
}
