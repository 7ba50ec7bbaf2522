package voting

import "caseflow/decision"

// Vote options an arbiter may cast.
const (
	OptionClaimant   = "claimant"
	OptionRespondent = "respondent"
	OptionPartial    = "partial"
	OptionDismiss    = "dismiss"
)

// tieOrder is the fixed tie-break preference: a compromise ruling beats an
// absolute one, and an absolute one beats dismissal. Never dependent on map
// iteration order.
var tieOrder = []string{OptionPartial, OptionClaimant, OptionRespondent, OptionDismiss}

var rulingByOption = map[string]decision.Ruling{
	OptionClaimant:   decision.RulingClaimantFavor,
	OptionRespondent: decision.RulingRespondentFavor,
	OptionPartial:    decision.RulingPartial,
	OptionDismiss:    decision.RulingDismissed,
}

// ValidOption reports whether s is a castable vote option.
func ValidOption(s string) bool {
	_, ok := rulingByOption[s]
	return ok
}

// Tally is the result of counting one vote per arbiter.
type Tally struct {
	Counts    map[string]int
	Total     int
	Winner    string
	Ruling    decision.Ruling
	Consensus bool
}

// Count tallies the given vote options deterministically. The winner is the
// option with the strictly highest count; ties resolve by tieOrder.
// Consensus is true only when a single option took every vote.
func Count(options []string) Tally {
	t := Tally{Counts: map[string]int{}}
	for _, opt := range options {
		t.Counts[opt]++
		t.Total++
	}

	best := -1
	for _, opt := range tieOrder {
		if n := t.Counts[opt]; n > best {
			best = n
			t.Winner = opt
		}
	}
	t.Ruling = rulingByOption[t.Winner]
	t.Consensus = t.Total > 0 && t.Counts[t.Winner] == t.Total
	return t
}
