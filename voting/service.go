package voting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"caseflow/cases"
	"caseflow/decision"
)

var (
	// ErrUnauthorized signals the voter is not on the case's arbiter panel.
	ErrUnauthorized = errors.New("voting: arbiter not assigned to case")
	// ErrVotingClosed signals the case already has a decision or left the
	// voting window.
	ErrVotingClosed = errors.New("voting: voting is closed")
	// ErrInvalidOption signals an unknown vote option.
	ErrInvalidOption = errors.New("voting: invalid vote option")
)

// Coordinator collects arbiter votes and finalizes the case the moment the
// full panel has voted. Vote upsert, quorum detection, decision issuance and
// the status change to decided all commit in one transaction under the case
// row lock, so concurrent final votes cannot issue two decisions.
type Coordinator struct {
	pool *pgxpool.Pool
}

func NewCoordinator(pool *pgxpool.Pool) *Coordinator {
	return &Coordinator{pool: pool}
}

// SubmitVoteParams is one arbiter's ballot. Re-submitting before quorum
// overwrites the previous ballot.
type SubmitVoteParams struct {
	CaseID            string
	ArbiterID         string
	Decision          string
	Reasoning         string
	ClaimsSupported   []string
	ClaimsDenied      []string
	RecommendedOrders []decision.Order
}

// SubmitResult reports what the vote did. Decision is non-nil only when this
// vote completed the panel and finalized the case.
type SubmitResult struct {
	VotesCast int
	PanelSize int
	QuorumMet bool
	Decision  *decision.Decision
}

func (c *Coordinator) SubmitVote(ctx context.Context, params SubmitVoteParams) (SubmitResult, error) {
	if !ValidOption(params.Decision) {
		return SubmitResult{}, fmt.Errorf("%w: %q", ErrInvalidOption, params.Decision)
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("voting: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	lc, err := cases.LockTx(ctx, tx, params.CaseID)
	if err != nil {
		return SubmitResult{}, err
	}

	decided, err := decision.ExistsTx(ctx, tx, params.CaseID)
	if err != nil {
		return SubmitResult{}, err
	}
	// An appealed case must re-enter through hearing_scheduled before the
	// panel may vote again.
	if decided || lc.Status.IsTerminal() || lc.Status == cases.StatusDecided ||
		lc.Status == cases.StatusEnforcing || lc.Status == cases.StatusAppealed {
		return SubmitResult{}, ErrVotingClosed
	}

	panel, err := cases.ArbitersTx(ctx, tx, params.CaseID)
	if err != nil {
		return SubmitResult{}, err
	}
	if !contains(panel, params.ArbiterID) && lc.LeadArbiterID != params.ArbiterID {
		return SubmitResult{}, ErrUnauthorized
	}

	if err := upsertVoteTx(ctx, tx, params); err != nil {
		return SubmitResult{}, err
	}

	arb := params.ArbiterID
	if err := cases.AppendEventTx(ctx, tx, params.CaseID, "VOTE_CAST", &arb, cases.VisibilityArbiters, map[string]any{
		"arbiter_id": params.ArbiterID,
	}); err != nil {
		return SubmitResult{}, err
	}

	votes, err := votesByCaseTx(ctx, tx, params.CaseID)
	if err != nil {
		return SubmitResult{}, err
	}

	res := SubmitResult{VotesCast: len(votes), PanelSize: len(panel)}
	if len(votes) < len(panel) {
		if err := tx.Commit(ctx); err != nil {
			return SubmitResult{}, fmt.Errorf("voting: commit vote: %w", err)
		}
		return res, nil
	}

	d, err := c.finalizeTx(ctx, tx, lc, votes)
	if err != nil {
		return SubmitResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return SubmitResult{}, fmt.Errorf("voting: commit finalization: %w", err)
	}
	res.QuorumMet = true
	res.Decision = &d
	return res, nil
}

// finalizeTx runs quorum-triggered finalization: tally, decision issuance,
// and the forced transition to decided, all on the transaction that holds the
// case row lock.
func (c *Coordinator) finalizeTx(ctx context.Context, tx pgx.Tx, lc cases.LockedCase, votes []Vote) (decision.Decision, error) {
	options := make([]string, 0, len(votes))
	for _, v := range votes {
		options = append(options, v.Decision)
	}
	tally := Count(options)

	var hasEscrow bool
	if err := tx.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM escrow_accounts e
            JOIN cases c ON c.dispute_id = e.dispute_id
            WHERE c.id = $1
        )
    `, lc.ID).Scan(&hasEscrow); err != nil {
		return decision.Decision{}, fmt.Errorf("voting: check linked escrow: %w", err)
	}

	winning := winningVotes(votes, tally.Winner)
	d, err := decision.Build(decision.FinalizeParams{
		CaseID:    lc.ID,
		Ruling:    tally.Ruling,
		Counts:    tally.Counts,
		Consensus: tally.Consensus,
		HasEscrow: hasEscrow,
		Findings:  assembleFindings(winning),
		Orders:    assembleOrders(winning, lc.LeadArbiterID),
		IssuedAt:  time.Now().UTC(),
	})
	if err != nil {
		return decision.Decision{}, err
	}
	if err := decision.InsertTx(ctx, tx, d); err != nil {
		return decision.Decision{}, err
	}

	if _, err := tx.Exec(ctx, `
        UPDATE cases SET status='decided', phase='decision', updated_at=now() WHERE id=$1
    `, lc.ID); err != nil {
		return decision.Decision{}, fmt.Errorf("voting: move case to decided: %w", err)
	}

	if err := cases.AppendEventTx(ctx, tx, lc.ID, "QUORUM_REACHED", nil, cases.VisibilityArbiters, map[string]any{
		"votes": tally.Total,
	}); err != nil {
		return decision.Decision{}, err
	}
	if err := cases.AppendEventTx(ctx, tx, lc.ID, "CASE_DECIDED", nil, cases.VisibilityParties, map[string]any{
		"ruling":              string(d.Ruling),
		"consensus":           d.Summary.Consensus,
		"majority_percentage": d.Summary.MajorityPercentage,
		"previous_status":     string(lc.Status),
	}); err != nil {
		return decision.Decision{}, err
	}

	orders := make([]map[string]any, 0, len(d.Orders))
	for _, o := range d.Orders {
		orders = append(orders, map[string]any{
			"id":          o.ID,
			"type":        o.Type,
			"direction":   o.Direction,
			"amount":      o.Amount,
			"beneficiary": o.Beneficiary,
		})
	}
	if err := cases.EnqueueOutboxTx(ctx, tx, cases.OutboxTopicCaseDecided, map[string]any{
		"case_id":            lc.ID,
		"ruling":             string(d.Ruling),
		"enforcement_method": d.Enforcement.Method,
		"has_escrow":         hasEscrow,
		"orders":             orders,
	}); err != nil {
		return decision.Decision{}, err
	}
	return d, nil
}

func upsertVoteTx(ctx context.Context, tx pgx.Tx, params SubmitVoteParams) error {
	orders, err := json.Marshal(params.RecommendedOrders)
	if err != nil {
		return fmt.Errorf("voting: marshal recommended orders: %w", err)
	}
	if params.RecommendedOrders == nil {
		orders = []byte("[]")
	}
	_, err = tx.Exec(ctx, `
        INSERT INTO votes (case_id, arbiter_id, decision, reasoning, claims_supported, claims_denied, recommended_orders)
        VALUES ($1,$2,$3::vote_decision,$4,$5,$6,$7)
        ON CONFLICT (case_id, arbiter_id) DO UPDATE SET
            decision           = EXCLUDED.decision,
            reasoning          = EXCLUDED.reasoning,
            claims_supported   = EXCLUDED.claims_supported,
            claims_denied      = EXCLUDED.claims_denied,
            recommended_orders = EXCLUDED.recommended_orders,
            cast_at            = now()
    `, params.CaseID, params.ArbiterID, params.Decision, params.Reasoning,
		params.ClaimsSupported, params.ClaimsDenied, orders)
	if err != nil {
		return fmt.Errorf("voting: upsert vote: %w", err)
	}
	return nil
}

func votesByCaseTx(ctx context.Context, tx pgx.Tx, caseID string) ([]Vote, error) {
	rows, err := tx.Query(ctx, `
        SELECT case_id, arbiter_id, decision::text, reasoning,
               claims_supported, claims_denied, recommended_orders, cast_at
        FROM votes WHERE case_id=$1 ORDER BY arbiter_id
    `, caseID)
	if err != nil {
		return nil, fmt.Errorf("voting: list votes: %w", err)
	}
	defer rows.Close()

	var votes []Vote
	for rows.Next() {
		var v Vote
		var orders []byte
		if err := rows.Scan(&v.CaseID, &v.ArbiterID, &v.Decision, &v.Reasoning,
			&v.ClaimsSupported, &v.ClaimsDenied, &orders, &v.CastAt); err != nil {
			return nil, fmt.Errorf("voting: scan vote: %w", err)
		}
		if err := json.Unmarshal(orders, &v.RecommendedOrders); err != nil {
			return nil, fmt.Errorf("voting: decode recommended orders: %w", err)
		}
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("voting: iterate votes: %w", err)
	}
	return votes, nil
}

// winningVotes returns the votes cast for the winning option, sorted by
// arbiter id so downstream assembly is deterministic.
func winningVotes(votes []Vote, winner string) []Vote {
	out := make([]Vote, 0, len(votes))
	for _, v := range votes {
		if v.Decision == winner {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ArbiterID < out[j].ArbiterID })
	return out
}

// assembleFindings merges the winning side's claim assessments. The first
// vote (by arbiter id) to mention a claim wins; later mentions are dropped.
func assembleFindings(winning []Vote) []decision.Finding {
	seen := map[string]bool{}
	var findings []decision.Finding
	for _, v := range winning {
		for _, claimID := range v.ClaimsSupported {
			if seen[claimID] {
				continue
			}
			seen[claimID] = true
			findings = append(findings, decision.Finding{ClaimID: claimID, Statement: "claim upheld by panel majority", Upheld: true})
		}
		for _, claimID := range v.ClaimsDenied {
			if seen[claimID] {
				continue
			}
			seen[claimID] = true
			findings = append(findings, decision.Finding{ClaimID: claimID, Statement: "claim denied by panel majority", Upheld: false})
		}
	}
	return findings
}

// assembleOrders picks the orders of the lead arbiter when the lead voted
// with the winning side, otherwise the first winning voter's.
func assembleOrders(winning []Vote, leadArbiterID string) []decision.Order {
	for _, v := range winning {
		if v.ArbiterID == leadArbiterID && len(v.RecommendedOrders) > 0 {
			return v.RecommendedOrders
		}
	}
	for _, v := range winning {
		if len(v.RecommendedOrders) > 0 {
			return v.RecommendedOrders
		}
	}
	return nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
