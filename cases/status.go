package cases

// statusGraph enumerates the legal status transitions. Appeals re-enter the
// hearing pipeline: decided/closed -> appealed -> hearing_scheduled.
var statusGraph = map[Status][]Status{
	StatusFiled:              {StatusEvidenceCollection},
	StatusEvidenceCollection: {StatusHearingScheduled},
	StatusHearingScheduled:   {StatusInHearing},
	StatusInHearing:          {StatusVoting},
	StatusVoting:             {StatusDecided},
	StatusDecided:            {StatusEnforcing, StatusAppealed},
	StatusEnforcing:          {StatusClosed},
	StatusClosed:             {StatusAppealed},
	StatusAppealed:           {StatusHearingScheduled},
}

// CanTransition reports whether from -> to is a legal status move.
func CanTransition(from, to Status) bool {
	for _, next := range statusGraph[from] {
		if next == to {
			return true
		}
	}
	return false
}

var phaseRank = map[Phase]int{
	PhasePreliminary:  0,
	PhaseDiscovery:    1,
	PhaseHearing:      2,
	PhaseDeliberation: 3,
	PhaseDecision:     4,
	PhaseEnforcement:  5,
}

// CanAdvancePhase reports whether from -> to is a forward phase move. A reset
// back to the hearing phase is permitted only through an appeal, which the
// service applies directly rather than through this check.
func CanAdvancePhase(from, to Phase) bool {
	fr, ok := phaseRank[from]
	if !ok {
		return false
	}
	tr, ok := phaseRank[to]
	if !ok {
		return false
	}
	return tr > fr
}

// ValidStatus reports whether s is one of the enumerated statuses.
func ValidStatus(s Status) bool {
	if s == StatusAppealed {
		return true
	}
	_, ok := statusGraph[s]
	return ok
}

// ValidPhase reports whether p is one of the enumerated phases.
func ValidPhase(p Phase) bool {
	_, ok := phaseRank[p]
	return ok
}
