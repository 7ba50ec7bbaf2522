package cases

import "time"

// Status is the coarse lifecycle position of a case.
type Status string

const (
	StatusFiled              Status = "filed"
	StatusEvidenceCollection Status = "evidence_collection"
	StatusHearingScheduled   Status = "hearing_scheduled"
	StatusInHearing          Status = "in_hearing"
	StatusVoting             Status = "voting"
	StatusDecided            Status = "decided"
	StatusEnforcing          Status = "enforcing"
	StatusClosed             Status = "closed"
	StatusAppealed           Status = "appealed"
)

// Phase is the procedural stage; it never regresses except through an appeal.
type Phase string

const (
	PhasePreliminary  Phase = "preliminary"
	PhaseDiscovery    Phase = "discovery"
	PhaseHearing      Phase = "hearing"
	PhaseDeliberation Phase = "deliberation"
	PhaseDecision     Phase = "decision"
	PhaseEnforcement  Phase = "enforcement"
)

type PartyRole string

const (
	RoleClaimant   PartyRole = "claimant"
	RoleRespondent PartyRole = "respondent"
	RoleThirdParty PartyRole = "third_party"
)

// Visibility scopes who may read a timeline event.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityParties  Visibility = "parties"
	VisibilityArbiters Visibility = "arbiters"
	VisibilityPrivate  Visibility = "private"
)

// Case mirrors the cases table plus its owned collections.
type Case struct {
	ID            string
	CaseNumber    string
	DisputeID     string
	Status        Status
	Phase         Phase
	LeadArbiterID string
	ArbiterIDs    []string
	Parties       []Party
	Timeline      []TimelineEvent
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ArchivedAt    *time.Time
}

type Party struct {
	ID     string
	UserID string
	Role   PartyRole
	Claims []Claim
}

type Claim struct {
	ID          string
	Description string
	Amount      *float64
	Status      string
}

// TimelineEvent is one immutable entry in the case audit trail.
type TimelineEvent struct {
	ID         int64
	CaseID     string
	Seq        int
	Type       string
	ActorID    *string
	Visibility Visibility
	Payload    []byte
	CreatedAt  time.Time
}

type Hearing struct {
	ID           string
	CaseID       string
	ScheduledAt  time.Time
	DurationMin  int
	Participants []string
	Summary      *string
	CreatedAt    time.Time
}

// Metrics is a read-only aggregate over the case ledger.
type Metrics struct {
	TotalCases    int
	DecidedCases  int
	ClosedCases   int
	AppealedCases int
}

// IsTerminal reports whether no further status transitions are expected.
// Closed cases can still be appealed, so only archival is truly final.
func (s Status) IsTerminal() bool {
	return s == StatusClosed
}
