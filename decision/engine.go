package decision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrAlreadyDecided signals a second finalization attempt for a case.
	ErrAlreadyDecided = errors.New("decision: case already decided")
	// ErrNotFound signals no decision exists for the case.
	ErrNotFound = errors.New("decision: not found")
	// ErrEmptyTally signals finalization was attempted with no votes.
	ErrEmptyTally = errors.New("decision: empty tally")
)

// FinalizeParams carries everything the engine needs to issue a decision.
type FinalizeParams struct {
	CaseID    string
	Ruling    Ruling
	Counts    map[string]int
	Consensus bool
	HasEscrow bool
	Findings  []Finding
	Orders    []Order
	IssuedAt  time.Time
}

// Build assembles a Decision from a finalized tally. Pure: persistence is
// the caller's transaction via InsertTx.
func Build(params FinalizeParams) (Decision, error) {
	total := 0
	winning := 0
	for _, n := range params.Counts {
		total += n
	}
	if total == 0 {
		return Decision{}, ErrEmptyTally
	}
	if n, ok := params.Counts[voteKeyForRuling(params.Ruling)]; ok {
		winning = n
	}

	method := EnforcementVoluntary
	if params.HasEscrow {
		method = EnforcementSmartContract
	}

	issued := params.IssuedAt
	if issued.IsZero() {
		issued = time.Now().UTC()
	}

	return Decision{
		ID:     uuid.NewString(),
		CaseID: params.CaseID,
		Ruling: params.Ruling,
		Summary: VotingSummary{
			Counts:             params.Counts,
			TotalVotes:         total,
			Consensus:          params.Consensus,
			MajorityPercentage: float64(winning) / float64(total) * 100,
		},
		Findings:       params.Findings,
		Orders:         params.Orders,
		Enforcement:    EnforcementPlan{Method: method},
		AppealDeadline: issued.Add(AppealWindow),
		IssuedAt:       issued,
	}, nil
}

// voteKeyForRuling maps a ruling back to the vote option it was tallied from.
func voteKeyForRuling(r Ruling) string {
	switch r {
	case RulingClaimantFavor:
		return "claimant"
	case RulingRespondentFavor:
		return "respondent"
	case RulingPartial:
		return "partial"
	case RulingDismissed:
		return "dismiss"
	default:
		return ""
	}
}

// InsertTx persists the decision inside the caller's transaction. The unique
// case_id constraint is the second line of defense against double issuance.
func InsertTx(ctx context.Context, tx pgx.Tx, d Decision) error {
	counts, err := json.Marshal(d.Summary.Counts)
	if err != nil {
		return fmt.Errorf("decision: marshal counts: %w", err)
	}
	findings, err := json.Marshal(orEmpty(d.Findings))
	if err != nil {
		return fmt.Errorf("decision: marshal findings: %w", err)
	}
	orders, err := json.Marshal(orEmptyOrders(d.Orders))
	if err != nil {
		return fmt.Errorf("decision: marshal orders: %w", err)
	}

	_, err = tx.Exec(ctx, `
        INSERT INTO decisions (id, case_id, ruling, vote_counts, consensus, majority_percentage,
                               findings, orders, enforcement_method, appeal_deadline, issued_at)
        VALUES ($1,$2,$3::case_ruling,$4,$5,$6,$7,$8,$9,$10,$11)
    `, d.ID, d.CaseID, string(d.Ruling), counts, d.Summary.Consensus, d.Summary.MajorityPercentage,
		findings, orders, d.Enforcement.Method, d.AppealDeadline, d.IssuedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyDecided
		}
		return fmt.Errorf("decision: insert: %w", err)
	}
	return nil
}

func orEmpty(f []Finding) []Finding {
	if f == nil {
		return []Finding{}
	}
	return f
}

func orEmptyOrders(o []Order) []Order {
	if o == nil {
		return []Order{}
	}
	return o
}

// ExistsTx reports whether the case has a live decision, read under the
// caller's transaction so it composes with the case row lock.
func ExistsTx(ctx context.Context, tx pgx.Tx, caseID string) (bool, error) {
	var exists bool
	if err := tx.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM decisions WHERE case_id=$1 AND superseded_at IS NULL)
    `, caseID).Scan(&exists); err != nil {
		return false, fmt.Errorf("decision: check existing: %w", err)
	}
	return exists, nil
}

// SupersedeTx retires the live decision so an appeal's fresh voting round
// can issue a replacement. The retired row stays for the record.
func SupersedeTx(ctx context.Context, tx pgx.Tx, caseID string) error {
	if _, err := tx.Exec(ctx, `
        UPDATE decisions SET superseded_at=now() WHERE case_id=$1 AND superseded_at IS NULL
    `, caseID); err != nil {
		return fmt.Errorf("decision: supersede: %w", err)
	}
	return nil
}
