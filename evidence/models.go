package evidence

import "time"

// Verification is the review status of one evidence item.
type Verification string

const (
	VerificationPending  Verification = "pending"
	VerificationVerified Verification = "verified"
	VerificationDisputed Verification = "disputed"
	VerificationRejected Verification = "rejected"
)

// Objection ruling outcomes.
const (
	RulingSustained = "sustained"
	RulingOverruled = "overruled"
)

// Item mirrors the evidence_items table plus its owned collections.
type Item struct {
	ID           string
	CaseID       string
	SubmittedBy  string
	Type         string
	Description  string
	ContentHash  string
	ContentURL   string
	Verification Verification
	SubmittedAt  time.Time
	Custody      []CustodyTransfer
	Objections   []Objection
}

// CustodyTransfer is one hop in the append-only custody chain.
type CustodyTransfer struct {
	ID            int64
	EvidenceID    string
	Seq           int
	FromHolder    string
	ToHolder      string
	ContentHash   string
	TransferredAt time.Time
}

type Objection struct {
	ID             string
	EvidenceID     string
	RaisedBy       string
	Grounds        string
	RulingDecision *string
	RulingBy       *string
	RulingReason   *string
	RaisedAt       time.Time
	RuledAt        *time.Time
}

// Admissible derives admissibility: the item must be verified and no
// objection against it may have been sustained. Never stored, always
// recomputed.
func (i Item) Admissible() bool {
	if i.Verification != VerificationVerified {
		return false
	}
	for _, o := range i.Objections {
		if o.RulingDecision != nil && *o.RulingDecision == RulingSustained {
			return false
		}
	}
	return true
}
