package escrow

import "time"

// Status is the escrow account state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusFunded    Status = "funded"
	StatusDisputed  Status = "disputed"
	StatusReleased  Status = "released"
	StatusRefunded  Status = "refunded"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether no further fund movement is possible.
func (s Status) IsTerminal() bool {
	return s == StatusReleased || s == StatusRefunded || s == StatusCancelled
}

// Release types.
const (
	ReleaseFull      = "full"
	ReleasePartial   = "partial"
	ReleaseMilestone = "milestone"
)

// Ledger movement kinds.
const (
	KindRelease = "release"
	KindRefund  = "refund"
)

// Account holds funds for a project until released, refunded, or disputed.
type Account struct {
	ID                  string
	ProjectID           string
	DisputeID           string
	SellerID            string
	BuyerID             string
	Amount              float64
	ReleasedTotal       float64
	Currency            string
	Status              Status
	AutoReleaseDate     time.Time
	AutoReleaseAttempts int
	Milestones          []Milestone
	Releases            []Release
	FundedAt            *time.Time
	ClosedAt            *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Remaining is the amount still held by the account.
func (a Account) Remaining() float64 {
	return a.Amount - a.ReleasedTotal
}

type Milestone struct {
	ID         string
	Ord        int
	Title      string
	Percentage float64
	ReleasedAt *time.Time
}

// Release is one row of the append-only fund movement ledger.
type Release struct {
	ID          string
	EscrowID    string
	Kind        string
	ReleaseType string
	MilestoneID *string
	Amount      float64
	ApprovedBy  string
	Reason      string
	OccurredAt  time.Time
}
