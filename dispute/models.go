package dispute

import "time"

// Status represents the lifecycle of a dispute intake record. Arbitration
// detail lives on the case; the intake row tracks whether the disagreement
// is still open upstream of it.
type Status string

const (
	StatusOpen          Status = "open"
	StatusInArbitration Status = "in_arbitration"
	StatusResolved      Status = "resolved"
)

// Record mirrors the disputes table. Cases and escrow accounts link to it
// by id; the escrow custodian freezes funds against it when one is raised.
type Record struct {
	ID         string
	ProjectID  string
	RaisedBy   string
	Respondent string
	Summary    string
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ResolvedAt *time.Time
}
