package settlement

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"caseflow/cases"
	"caseflow/decision"
	"caseflow/escrow"
)

var (
	// ErrMismatch signals the decision's payment orders do not reconcile
	// against the escrow amount. Nothing is moved.
	ErrMismatch = errors.New("settlement: payment orders do not sum to escrow amount")
	// ErrNoEscrow signals the decided case has no linked escrow account.
	ErrNoEscrow = errors.New("settlement: no linked escrow")
)

// amountEpsilon mirrors the escrow package's float tolerance.
const amountEpsilon = 0.01

// approvedBySettlement marks ledger rows written on behalf of a ruling.
const approvedBySettlement = "settlement"

// Orchestrator turns an issued decision into fund movements on the linked
// escrow account. All movements for one case commit in a single transaction,
// recorded in the settlements table so a replayed message is a no-op. Order
// amounts are reconciled against the escrow before anything moves.
type Orchestrator struct {
	pool      *pgxpool.Pool
	custodian *escrow.Custodian
	decisions *decision.Repository
}

func NewOrchestrator(pool *pgxpool.Pool, custodian *escrow.Custodian, decisions *decision.Repository) *Orchestrator {
	return &Orchestrator{pool: pool, custodian: custodian, decisions: decisions}
}

// Settle applies the case's live decision to its escrow. Safe to call more
// than once; only the first call moves funds.
func (o *Orchestrator) Settle(ctx context.Context, caseID string) error {
	d, err := o.decisions.GetByCase(ctx, caseID)
	if err != nil {
		return err
	}
	return o.SettleDecision(ctx, d)
}

// SettleDecision applies one specific decision. The decision was read outside
// the transaction, so its liveness is re-checked under the case row lock; an
// appeal that superseded it in the meantime makes this a no-op.
func (o *Orchestrator) SettleDecision(ctx context.Context, d decision.Decision) error {
	caseID := d.CaseID

	tx, err := o.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("settlement: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	lc, err := cases.LockTx(ctx, tx, caseID)
	if err != nil {
		return err
	}

	var live bool
	err = tx.QueryRow(ctx, `
        SELECT superseded_at IS NULL FROM decisions WHERE id=$1
    `, d.ID).Scan(&live)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("settlement: recheck decision: %w", err)
	}
	if !live {
		return nil
	}

	var escrowID string
	err = tx.QueryRow(ctx, `
        SELECT e.id FROM escrow_accounts e
        JOIN cases c ON c.dispute_id = e.dispute_id
        WHERE c.id = $1
    `, caseID).Scan(&escrowID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNoEscrow
		}
		return fmt.Errorf("settlement: find escrow: %w", err)
	}

	// Replay guard: the first settlement for a case wins, later ones no-op.
	tag, err := tx.Exec(ctx, `
        INSERT INTO settlements (case_id, escrow_id, ruling)
        VALUES ($1,$2,$3::case_ruling)
        ON CONFLICT (case_id) DO NOTHING
    `, caseID, escrowID, string(d.Ruling))
	if err != nil {
		return fmt.Errorf("settlement: record settlement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	// Validate before any movement.
	var escrowAmount float64
	if err := tx.QueryRow(ctx, `
        SELECT amount FROM escrow_accounts WHERE id=$1 FOR UPDATE
    `, escrowID).Scan(&escrowAmount); err != nil {
		return fmt.Errorf("settlement: lock escrow: %w", err)
	}
	if d.Ruling == decision.RulingPartial {
		if err := reconcile(d.Orders, escrowAmount); err != nil {
			return err
		}
	}

	// Settlement acts on accounts frozen by the dispute; unfreeze under the
	// lock so the custodian's state guards apply to the movements below.
	if _, err := tx.Exec(ctx, `
        UPDATE escrow_accounts SET status='funded', updated_at=now()
        WHERE id=$1 AND status='disputed'
    `, escrowID); err != nil {
		return fmt.Errorf("settlement: unfreeze escrow: %w", err)
	}

	if err := o.applyRulingTx(ctx, tx, d, escrowID); err != nil {
		return err
	}

	if err := o.markEnforcingTx(ctx, tx, lc, d); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("settlement: commit: %w", err)
	}
	return nil
}

func (o *Orchestrator) applyRulingTx(ctx context.Context, tx pgx.Tx, d decision.Decision, escrowID string) error {
	switch d.Ruling {
	case decision.RulingClaimantFavor:
		return o.custodian.RefundTx(ctx, tx, escrowID, approvedBySettlement, "ruling: "+string(d.Ruling))

	case decision.RulingRespondentFavor, decision.RulingDismissed:
		return o.custodian.ReleaseTx(ctx, tx, escrow.ReleaseParams{
			EscrowID:   escrowID,
			Type:       escrow.ReleaseFull,
			ApprovedBy: approvedBySettlement,
			Reason:     "ruling: " + string(d.Ruling),
		})

	case decision.RulingPartial:
		// Releases first; the refund side is the remainder and closes the
		// account.
		refund := 0.0
		for _, ord := range paymentOrders(d.Orders) {
			if ord.Direction == decision.DirectionRefund {
				refund += ord.Amount
				continue
			}
			if err := o.custodian.ReleaseTx(ctx, tx, escrow.ReleaseParams{
				EscrowID:   escrowID,
				Type:       escrow.ReleasePartial,
				Amount:     ord.Amount,
				ApprovedBy: approvedBySettlement,
				Reason:     "order " + ord.ID,
			}); err != nil {
				return err
			}
		}
		if refund > amountEpsilon {
			return o.custodian.RefundTx(ctx, tx, escrowID, approvedBySettlement, "ruling: partial refund")
		}
		return nil

	default:
		return fmt.Errorf("settlement: unknown ruling %q", d.Ruling)
	}
}

// markEnforcingTx moves the decided case into enforcement. Closing is a
// separate, operator-driven transition once obligations are confirmed met.
func (o *Orchestrator) markEnforcingTx(ctx context.Context, tx pgx.Tx, lc cases.LockedCase, d decision.Decision) error {
	if lc.Status != cases.StatusDecided {
		return nil
	}
	if _, err := tx.Exec(ctx, `
        UPDATE cases SET status='enforcing', phase='enforcement', updated_at=now() WHERE id=$1
    `, lc.ID); err != nil {
		return fmt.Errorf("settlement: mark case enforcing: %w", err)
	}
	// Close the loop on the intake record, if the case links a local one.
	if _, err := tx.Exec(ctx, `
        UPDATE disputes SET status='resolved', resolved_at=now(), updated_at=now()
        WHERE id::text = (SELECT dispute_id FROM cases WHERE id=$1) AND status <> 'resolved'
    `, lc.ID); err != nil {
		return fmt.Errorf("settlement: resolve dispute: %w", err)
	}
	return cases.AppendEventTx(ctx, tx, lc.ID, "SETTLEMENT_APPLIED", nil, cases.VisibilityParties, map[string]any{
		"ruling":             string(d.Ruling),
		"enforcement_method": d.Enforcement.Method,
	})
}

// reconcile checks that the payment orders account for the full escrow
// amount before any fund moves.
func reconcile(orders []decision.Order, escrowAmount float64) error {
	sum := 0.0
	for _, ord := range paymentOrders(orders) {
		if ord.Amount <= 0 {
			return fmt.Errorf("%w: order %s has non-positive amount", ErrMismatch, ord.ID)
		}
		sum += ord.Amount
	}
	if math.Abs(sum-escrowAmount) > amountEpsilon {
		return fmt.Errorf("%w: orders %.2f vs escrow %.2f", ErrMismatch, sum, escrowAmount)
	}
	return nil
}

func paymentOrders(orders []decision.Order) []decision.Order {
	out := make([]decision.Order, 0, len(orders))
	for _, ord := range orders {
		if ord.Type == decision.OrderTypePayment {
			out = append(out, ord)
		}
	}
	return out
}
