package decision

import "time"

// Ruling is the outcome category of a decided case.
type Ruling string

const (
	RulingClaimantFavor   Ruling = "claimant_favor"
	RulingRespondentFavor Ruling = "respondent_favor"
	RulingPartial         Ruling = "partial"
	RulingDismissed       Ruling = "dismissed"
)

// Enforcement methods for the decision's plan.
const (
	EnforcementSmartContract = "smart_contract"
	EnforcementVoluntary     = "voluntary"
)

// Order types.
const (
	OrderTypePayment = "payment"
	OrderTypeAction  = "action"
)

// Payment order directions.
const (
	DirectionRelease = "release"
	DirectionRefund  = "refund"
)

// AppealWindow is the fixed offset from issuance to the appeal deadline.
const AppealWindow = 14 * 24 * time.Hour

// VotingSummary captures the tally a decision was issued from.
type VotingSummary struct {
	Counts             map[string]int `json:"counts"`
	TotalVotes         int            `json:"total_votes"`
	Consensus          bool           `json:"consensus"`
	MajorityPercentage float64        `json:"majority_percentage"`
}

type Finding struct {
	ClaimID   string `json:"claim_id,omitempty"`
	Statement string `json:"statement"`
	Upheld    bool   `json:"upheld"`
}

// Order is one enforceable directive. Payment orders drive settlement; their
// amounts must reconcile against the linked escrow before any fund movement.
type Order struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Direction   string  `json:"direction,omitempty"`
	Amount      float64 `json:"amount,omitempty"`
	Beneficiary string  `json:"beneficiary,omitempty"`
	Description string  `json:"description"`
}

type EnforcementPlan struct {
	Method string `json:"method"`
}

// Decision is immutable once issued; exactly one exists per decided case.
type Decision struct {
	ID             string
	CaseID         string
	Ruling         Ruling
	Summary        VotingSummary
	Findings       []Finding
	Orders         []Order
	Enforcement    EnforcementPlan
	AppealDeadline time.Time
	IssuedAt       time.Time
}
