package escrow

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals the escrow account does not exist.
	ErrNotFound = errors.New("escrow: not found")
	// ErrInvalidState signals the operation is not allowed in the current
	// account status.
	ErrInvalidState = errors.New("escrow: invalid state for operation")
	// ErrAlreadyReleased signals the milestone was already released.
	ErrAlreadyReleased = errors.New("escrow: milestone already released")
	// ErrInsufficientFunds signals the movement exceeds the held remainder.
	ErrInsufficientFunds = errors.New("escrow: insufficient funds")
	// ErrInvalidMilestones signals milestone percentages do not sum to 100.
	ErrInvalidMilestones = errors.New("escrow: milestone percentages must sum to 100")
)

// Repository reads escrow aggregates. Mutations live on Custodian, which
// runs them under the account row lock.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const accountColumns = `
    id, project_id, COALESCE(dispute_id, ''), seller_id, buyer_id,
    amount, released_total, currency, status::text,
    auto_release_date, auto_release_attempts,
    funded_at, closed_at, created_at, updated_at
`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.ProjectID, &a.DisputeID, &a.SellerID, &a.BuyerID,
		&a.Amount, &a.ReleasedTotal, &a.Currency, &a.Status,
		&a.AutoReleaseDate, &a.AutoReleaseAttempts,
		&a.FundedAt, &a.ClosedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, fmt.Errorf("escrow: scan account: %w", err)
	}
	return a, nil
}

// GetByID returns the account with its milestones and movement ledger.
func (r *Repository) GetByID(ctx context.Context, id string) (Account, error) {
	a, err := scanAccount(r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM escrow_accounts WHERE id=$1`, id))
	if err != nil {
		return Account{}, err
	}

	if a.Milestones, err = r.milestones(ctx, id); err != nil {
		return Account{}, err
	}
	if a.Releases, err = r.releases(ctx, id); err != nil {
		return Account{}, err
	}
	return a, nil
}

// GetByDispute returns the account linked to a dispute, if any.
func (r *Repository) GetByDispute(ctx context.Context, disputeID string) (Account, error) {
	a, err := scanAccount(r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM escrow_accounts WHERE dispute_id=$1`, disputeID))
	if err != nil {
		return Account{}, err
	}
	if a.Milestones, err = r.milestones(ctx, a.ID); err != nil {
		return Account{}, err
	}
	return a, nil
}

// ListByUser returns accounts where the user is seller or buyer, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT `+accountColumns+`
        FROM escrow_accounts
        WHERE seller_id=$1 OR buyer_id=$1
        ORDER BY created_at DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("escrow: list by user: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("escrow: iterate accounts: %w", err)
	}
	return accounts, nil
}

func (r *Repository) milestones(ctx context.Context, escrowID string) ([]Milestone, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, ord, title, percentage, released_at
        FROM escrow_milestones WHERE escrow_id=$1 ORDER BY ord
    `, escrowID)
	if err != nil {
		return nil, fmt.Errorf("escrow: list milestones: %w", err)
	}
	defer rows.Close()

	var ms []Milestone
	for rows.Next() {
		var m Milestone
		if err := rows.Scan(&m.ID, &m.Ord, &m.Title, &m.Percentage, &m.ReleasedAt); err != nil {
			return nil, fmt.Errorf("escrow: scan milestone: %w", err)
		}
		ms = append(ms, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("escrow: iterate milestones: %w", err)
	}
	return ms, nil
}

func (r *Repository) releases(ctx context.Context, escrowID string) ([]Release, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, escrow_id, kind, release_type, milestone_id, amount, approved_by, reason, occurred_at
        FROM escrow_releases WHERE escrow_id=$1 ORDER BY occurred_at
    `, escrowID)
	if err != nil {
		return nil, fmt.Errorf("escrow: list releases: %w", err)
	}
	defer rows.Close()

	var rel []Release
	for rows.Next() {
		var x Release
		if err := rows.Scan(&x.ID, &x.EscrowID, &x.Kind, &x.ReleaseType, &x.MilestoneID,
			&x.Amount, &x.ApprovedBy, &x.Reason, &x.OccurredAt); err != nil {
			return nil, fmt.Errorf("escrow: scan release: %w", err)
		}
		rel = append(rel, x)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("escrow: iterate releases: %w", err)
	}
	return rel, nil
}
