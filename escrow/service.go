package escrow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Outbox topics emitted by the custodian.
const (
	OutboxTopicPaymentInstruction = "payment.instruction"
	OutboxTopicDisputeOpened      = "dispute.opened"
)

// amountEpsilon absorbs float drift in percentage math. Two cents is far
// above any accumulated rounding and far below any real movement.
const amountEpsilon = 0.01

// Custodian mutates escrow accounts. Every fund movement runs under the
// account row lock, appends one ledger row, and hands the payment rail call
// to the outbox so no external request happens inside the transaction.
type Custodian struct {
	pool *pgxpool.Pool
	repo *Repository

	// autoReleaseDays applies when CreateParams leaves the window unset.
	autoReleaseDays int
}

func NewCustodian(pool *pgxpool.Pool, repo *Repository, autoReleaseDays int) *Custodian {
	if autoReleaseDays <= 0 {
		autoReleaseDays = 14
	}
	return &Custodian{pool: pool, repo: repo, autoReleaseDays: autoReleaseDays}
}

type MilestoneSpec struct {
	Title      string
	Percentage float64
}

type CreateParams struct {
	ProjectID       string
	SellerID        string
	BuyerID         string
	Amount          float64
	Currency        string
	AutoReleaseDays int
	Milestones      []MilestoneSpec
}

// Create opens a pending account. Milestone percentages, when given, must
// sum to 100 within amountEpsilon.
func (c *Custodian) Create(ctx context.Context, params CreateParams) (Account, error) {
	if params.Amount <= 0 {
		return Account{}, fmt.Errorf("%w: amount must be positive", ErrInvalidState)
	}
	if len(params.Milestones) > 0 {
		sum := 0.0
		for _, m := range params.Milestones {
			if m.Percentage <= 0 {
				return Account{}, ErrInvalidMilestones
			}
			sum += m.Percentage
		}
		if math.Abs(sum-100) > amountEpsilon {
			return Account{}, ErrInvalidMilestones
		}
	}
	if params.Currency == "" {
		params.Currency = "USD"
	}
	if params.AutoReleaseDays <= 0 {
		params.AutoReleaseDays = c.autoReleaseDays
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return Account{}, fmt.Errorf("escrow: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	a := Account{
		ID:              uuid.NewString(),
		ProjectID:       params.ProjectID,
		SellerID:        params.SellerID,
		BuyerID:         params.BuyerID,
		Amount:          params.Amount,
		Currency:        params.Currency,
		Status:          StatusPending,
		AutoReleaseDate: time.Now().UTC().AddDate(0, 0, params.AutoReleaseDays),
	}
	if err := tx.QueryRow(ctx, `
        INSERT INTO escrow_accounts (id, project_id, seller_id, buyer_id, amount, currency, auto_release_date)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING created_at, updated_at
    `, a.ID, a.ProjectID, a.SellerID, a.BuyerID, a.Amount, a.Currency, a.AutoReleaseDate).
		Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		return Account{}, fmt.Errorf("escrow: insert account: %w", err)
	}

	for i, m := range params.Milestones {
		ms := Milestone{ID: uuid.NewString(), Ord: i + 1, Title: m.Title, Percentage: m.Percentage}
		if _, err := tx.Exec(ctx, `
            INSERT INTO escrow_milestones (id, escrow_id, ord, title, percentage)
            VALUES ($1,$2,$3,$4,$5)
        `, ms.ID, a.ID, ms.Ord, ms.Title, ms.Percentage); err != nil {
			return Account{}, fmt.Errorf("escrow: insert milestone: %w", err)
		}
		a.Milestones = append(a.Milestones, ms)
	}

	if err := tx.Commit(ctx); err != nil {
		return Account{}, fmt.Errorf("escrow: commit create: %w", err)
	}
	return a, nil
}

// Fund moves a pending account to funded.
func (c *Custodian) Fund(ctx context.Context, escrowID string) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("escrow: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	a, err := lockAccountTx(ctx, tx, escrowID)
	if err != nil {
		return err
	}
	if a.Status != StatusPending {
		return fmt.Errorf("%w: fund from %s", ErrInvalidState, a.Status)
	}

	if _, err := tx.Exec(ctx, `
        UPDATE escrow_accounts SET status='funded', funded_at=now(), updated_at=now() WHERE id=$1
    `, escrowID); err != nil {
		return fmt.Errorf("escrow: mark funded: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("escrow: commit fund: %w", err)
	}
	return nil
}

type ReleaseParams struct {
	EscrowID    string
	Type        string // full | partial | milestone
	Amount      float64
	MilestoneID string
	ApprovedBy  string
	Reason      string
}

// Release pays the seller from held funds. The account must be funded;
// disputed accounts stay frozen until settlement. When the cumulative
// released total reaches the account amount the account closes as released.
func (c *Custodian) Release(ctx context.Context, params ReleaseParams) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("escrow: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := c.releaseTx(ctx, tx, params); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("escrow: commit release: %w", err)
	}
	return nil
}

// ReleaseTx is Release running on the caller's transaction, so settlement
// can combine it with its own bookkeeping.
func (c *Custodian) ReleaseTx(ctx context.Context, tx pgx.Tx, params ReleaseParams) error {
	return c.releaseTx(ctx, tx, params)
}

func (c *Custodian) releaseTx(ctx context.Context, tx pgx.Tx, params ReleaseParams) error {
	a, err := lockAccountTx(ctx, tx, params.EscrowID)
	if err != nil {
		return err
	}
	if a.Status != StatusFunded {
		return fmt.Errorf("%w: release from %s", ErrInvalidState, a.Status)
	}

	amount := params.Amount
	var milestoneID *string
	switch params.Type {
	case ReleaseFull:
		amount = a.Remaining()
	case ReleasePartial:
		// amount as given
	case ReleaseMilestone:
		var pct float64
		var releasedAt *time.Time
		err := tx.QueryRow(ctx, `
            SELECT percentage, released_at FROM escrow_milestones
            WHERE id=$1 AND escrow_id=$2 FOR UPDATE
        `, params.MilestoneID, params.EscrowID).Scan(&pct, &releasedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("escrow: lock milestone: %w", err)
		}
		if releasedAt != nil {
			return ErrAlreadyReleased
		}
		amount = math.Round(a.Amount*pct) / 100
		milestoneID = &params.MilestoneID
		if _, err := tx.Exec(ctx, `
            UPDATE escrow_milestones SET released_at=now() WHERE id=$1
        `, params.MilestoneID); err != nil {
			return fmt.Errorf("escrow: mark milestone released: %w", err)
		}
	default:
		return fmt.Errorf("%w: unknown release type %q", ErrInvalidState, params.Type)
	}

	if amount <= 0 {
		return fmt.Errorf("%w: nothing to release", ErrInvalidState)
	}
	if amount > a.Remaining()+amountEpsilon {
		return ErrInsufficientFunds
	}

	if err := appendLedgerTx(ctx, tx, Release{
		ID:          uuid.NewString(),
		EscrowID:    a.ID,
		Kind:        KindRelease,
		ReleaseType: params.Type,
		MilestoneID: milestoneID,
		Amount:      amount,
		ApprovedBy:  params.ApprovedBy,
		Reason:      params.Reason,
	}); err != nil {
		return err
	}

	newTotal := a.ReleasedTotal + amount
	closed := a.Amount-newTotal <= amountEpsilon
	if closed {
		if _, err := tx.Exec(ctx, `
            UPDATE escrow_accounts
            SET released_total=$2, status='released', closed_at=now(), updated_at=now()
            WHERE id=$1
        `, a.ID, newTotal); err != nil {
			return fmt.Errorf("escrow: close account: %w", err)
		}
	} else {
		if _, err := tx.Exec(ctx, `
            UPDATE escrow_accounts SET released_total=$2, updated_at=now() WHERE id=$1
        `, a.ID, newTotal); err != nil {
			return fmt.Errorf("escrow: update released total: %w", err)
		}
	}

	return enqueueOutboxTx(ctx, tx, OutboxTopicPaymentInstruction, map[string]any{
		"escrow_id":   a.ID,
		"direction":   KindRelease,
		"amount":      amount,
		"currency":    a.Currency,
		"beneficiary": a.SellerID,
		"approved_by": params.ApprovedBy,
	})
}

// Refund returns the held remainder to the buyer. Allowed from funded or
// disputed, the latter being settlement acting on a ruling.
func (c *Custodian) Refund(ctx context.Context, escrowID, approvedBy, reason string) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("escrow: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := c.refundTx(ctx, tx, escrowID, approvedBy, reason); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("escrow: commit refund: %w", err)
	}
	return nil
}

// RefundTx is Refund on the caller's transaction.
func (c *Custodian) RefundTx(ctx context.Context, tx pgx.Tx, escrowID, approvedBy, reason string) error {
	return c.refundTx(ctx, tx, escrowID, approvedBy, reason)
}

func (c *Custodian) refundTx(ctx context.Context, tx pgx.Tx, escrowID, approvedBy, reason string) error {
	a, err := lockAccountTx(ctx, tx, escrowID)
	if err != nil {
		return err
	}
	if a.Status != StatusFunded && a.Status != StatusDisputed {
		return fmt.Errorf("%w: refund from %s", ErrInvalidState, a.Status)
	}

	amount := a.Remaining()
	if amount <= 0 {
		return fmt.Errorf("%w: nothing to refund", ErrInvalidState)
	}

	if err := appendLedgerTx(ctx, tx, Release{
		ID:          uuid.NewString(),
		EscrowID:    a.ID,
		Kind:        KindRefund,
		ReleaseType: ReleaseFull,
		Amount:      amount,
		ApprovedBy:  approvedBy,
		Reason:      reason,
	}); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
        UPDATE escrow_accounts SET status='refunded', closed_at=now(), updated_at=now() WHERE id=$1
    `, a.ID); err != nil {
		return fmt.Errorf("escrow: mark refunded: %w", err)
	}

	return enqueueOutboxTx(ctx, tx, OutboxTopicPaymentInstruction, map[string]any{
		"escrow_id":   a.ID,
		"direction":   KindRefund,
		"amount":      amount,
		"currency":    a.Currency,
		"beneficiary": a.BuyerID,
		"approved_by": approvedBy,
	})
}

// Dispute freezes a funded account. Auto-release checks status under the row
// lock, so freezing is the whole cancellation; no timer needs stopping.
func (c *Custodian) Dispute(ctx context.Context, escrowID, disputeID, raisedBy string) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("escrow: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	a, err := lockAccountTx(ctx, tx, escrowID)
	if err != nil {
		return err
	}
	if a.Status != StatusFunded {
		return fmt.Errorf("%w: dispute from %s", ErrInvalidState, a.Status)
	}

	if _, err := tx.Exec(ctx, `
        UPDATE escrow_accounts SET status='disputed', dispute_id=$2, updated_at=now() WHERE id=$1
    `, escrowID, disputeID); err != nil {
		return fmt.Errorf("escrow: mark disputed: %w", err)
	}

	if err := enqueueOutboxTx(ctx, tx, OutboxTopicDisputeOpened, map[string]any{
		"escrow_id":  escrowID,
		"dispute_id": disputeID,
		"raised_by":  raisedBy,
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("escrow: commit dispute: %w", err)
	}
	return nil
}

// lockAccountTx takes the escrow row lock and returns current state.
func lockAccountTx(ctx context.Context, tx pgx.Tx, escrowID string) (Account, error) {
	var a Account
	err := tx.QueryRow(ctx, `
        SELECT id, seller_id, buyer_id, amount, released_total, currency, status::text, auto_release_attempts
        FROM escrow_accounts WHERE id=$1 FOR UPDATE
    `, escrowID).Scan(&a.ID, &a.SellerID, &a.BuyerID, &a.Amount, &a.ReleasedTotal,
		&a.Currency, &a.Status, &a.AutoReleaseAttempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, fmt.Errorf("escrow: lock account: %w", err)
	}
	return a, nil
}

func appendLedgerTx(ctx context.Context, tx pgx.Tx, rel Release) error {
	_, err := tx.Exec(ctx, `
        INSERT INTO escrow_releases (id, escrow_id, kind, release_type, milestone_id, amount, approved_by, reason)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    `, rel.ID, rel.EscrowID, rel.Kind, rel.ReleaseType, rel.MilestoneID, rel.Amount, rel.ApprovedBy, rel.Reason)
	if err != nil {
		return fmt.Errorf("escrow: append ledger: %w", err)
	}
	return nil
}

func enqueueOutboxTx(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("escrow: marshal outbox payload: %w", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO outbox (topic, payload) VALUES ($1,$2)`, topic, body); err != nil {
		return fmt.Errorf("escrow: insert outbox message: %w", err)
	}
	return nil
}
