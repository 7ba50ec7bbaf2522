package decision

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestBuildMajorityPercentage(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d, err := Build(FinalizeParams{
		CaseID:   "case-1",
		Ruling:   RulingRespondentFavor,
		Counts:   map[string]int{"respondent": 2, "claimant": 1},
		IssuedAt: issued,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if d.Summary.TotalVotes != 3 {
		t.Fatalf("expected 3 total votes, got %d", d.Summary.TotalVotes)
	}
	if math.Abs(d.Summary.MajorityPercentage-66.66666666666667) > 0.001 {
		t.Fatalf("expected majority ~66.7, got %f", d.Summary.MajorityPercentage)
	}
	if d.IssuedAt != issued {
		t.Fatalf("expected issued_at preserved, got %v", d.IssuedAt)
	}
}

func TestBuildAppealDeadline(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d, err := Build(FinalizeParams{
		CaseID:   "case-1",
		Ruling:   RulingDismissed,
		Counts:   map[string]int{"dismiss": 3},
		IssuedAt: issued,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if want := issued.Add(AppealWindow); !d.AppealDeadline.Equal(want) {
		t.Fatalf("expected deadline %v, got %v", want, d.AppealDeadline)
	}
}

func TestBuildEnforcementMethod(t *testing.T) {
	counts := map[string]int{"claimant": 2}

	withEscrow, err := Build(FinalizeParams{CaseID: "c", Ruling: RulingClaimantFavor, Counts: counts, HasEscrow: true})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if withEscrow.Enforcement.Method != EnforcementSmartContract {
		t.Fatalf("escrow-linked case must enforce via smart_contract, got %s", withEscrow.Enforcement.Method)
	}

	without, err := Build(FinalizeParams{CaseID: "c", Ruling: RulingClaimantFavor, Counts: counts})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if without.Enforcement.Method != EnforcementVoluntary {
		t.Fatalf("case without escrow must enforce voluntarily, got %s", without.Enforcement.Method)
	}
}

func TestBuildEmptyTally(t *testing.T) {
	_, err := Build(FinalizeParams{CaseID: "c", Ruling: RulingDismissed, Counts: map[string]int{}})
	if !errors.Is(err, ErrEmptyTally) {
		t.Fatalf("expected ErrEmptyTally, got %v", err)
	}
}

func TestBuildDefaultsIssuedAt(t *testing.T) {
	before := time.Now().UTC()
	d, err := Build(FinalizeParams{CaseID: "c", Ruling: RulingPartial, Counts: map[string]int{"partial": 1}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if d.IssuedAt.Before(before) {
		t.Fatalf("expected issued_at defaulted to now, got %v", d.IssuedAt)
	}
	if d.ID == "" {
		t.Fatal("expected generated decision id")
	}
}
