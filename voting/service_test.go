package voting

import (
	"testing"

	"caseflow/decision"
)

func TestWinningVotesSortedByArbiter(t *testing.T) {
	votes := []Vote{
		{ArbiterID: "c", Decision: OptionRespondent},
		{ArbiterID: "a", Decision: OptionRespondent},
		{ArbiterID: "b", Decision: OptionClaimant},
	}
	winning := winningVotes(votes, OptionRespondent)
	if len(winning) != 2 {
		t.Fatalf("expected 2 winning votes, got %d", len(winning))
	}
	if winning[0].ArbiterID != "a" || winning[1].ArbiterID != "c" {
		t.Fatalf("expected arbiter-id order, got %s, %s", winning[0].ArbiterID, winning[1].ArbiterID)
	}
}

func TestAssembleFindingsFirstMentionWins(t *testing.T) {
	winning := []Vote{
		{ArbiterID: "a", ClaimsSupported: []string{"cl-1"}, ClaimsDenied: []string{"cl-2"}},
		// a later ballot contradicting cl-1 is dropped
		{ArbiterID: "b", ClaimsDenied: []string{"cl-1", "cl-3"}},
	}
	findings := assembleFindings(winning)
	if len(findings) != 3 {
		t.Fatalf("expected 3 findings, got %d", len(findings))
	}
	byClaim := map[string]bool{}
	for _, f := range findings {
		byClaim[f.ClaimID] = f.Upheld
	}
	if !byClaim["cl-1"] {
		t.Fatal("cl-1: first mention upheld it, later denial must not override")
	}
	if byClaim["cl-2"] || byClaim["cl-3"] {
		t.Fatal("cl-2 and cl-3 were denied")
	}
}

func TestAssembleOrdersPrefersLead(t *testing.T) {
	leadOrders := []decision.Order{{ID: "lead-order", Type: decision.OrderTypePayment}}
	otherOrders := []decision.Order{{ID: "other-order", Type: decision.OrderTypePayment}}
	winning := []Vote{
		{ArbiterID: "a", RecommendedOrders: otherOrders},
		{ArbiterID: "lead", RecommendedOrders: leadOrders},
	}

	got := assembleOrders(winning, "lead")
	if len(got) != 1 || got[0].ID != "lead-order" {
		t.Fatalf("expected lead's orders, got %+v", got)
	}

	// lead not on the winning side: first winning voter's orders apply
	got = assembleOrders(winning[:1], "lead")
	if len(got) != 1 || got[0].ID != "other-order" {
		t.Fatalf("expected fallback to first winning voter, got %+v", got)
	}

	if got := assembleOrders(nil, "lead"); got != nil {
		t.Fatalf("expected no orders for empty winning set, got %+v", got)
	}
}
