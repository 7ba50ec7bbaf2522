package voting

import (
	"time"

	"caseflow/decision"
)

// Vote is one arbiter's ballot on a case. Arbiters may overwrite their own
// vote until finalization; at most one row exists per (case, arbiter).
type Vote struct {
	CaseID            string
	ArbiterID         string
	Decision          string
	Reasoning         string
	ClaimsSupported   []string
	ClaimsDenied      []string
	RecommendedOrders []decision.Order
	CastAt            time.Time
}
