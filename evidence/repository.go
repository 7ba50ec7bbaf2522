package evidence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals the evidence item or objection does not exist.
	ErrNotFound = errors.New("evidence: not found")
	// ErrCaseNotFound signals the referenced case does not exist.
	ErrCaseNotFound = errors.New("evidence: case not found")
	// ErrUnauthorized signals the actor may not perform the operation.
	ErrUnauthorized = errors.New("evidence: unauthorized")
	// ErrAlreadyRuled signals the objection already carries a ruling.
	ErrAlreadyRuled = errors.New("evidence: objection already ruled")
	// ErrChainBroken signals a custody transfer that does not extend the
	// current chain head.
	ErrChainBroken = errors.New("evidence: custody chain broken")
)

// Repository persists evidence items over pgx.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID loads one item with its custody chain and objections.
func (r *Repository) GetByID(ctx context.Context, evidenceID string) (Item, error) {
	var it Item
	err := r.pool.QueryRow(ctx, `
        SELECT id, case_id, submitted_by, type, description, content_hash, content_url, verification::text, submitted_at
        FROM evidence_items WHERE id=$1
    `, evidenceID).Scan(&it.ID, &it.CaseID, &it.SubmittedBy, &it.Type, &it.Description, &it.ContentHash, &it.ContentURL, &it.Verification, &it.SubmittedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, fmt.Errorf("evidence: query by id: %w", err)
	}

	custody, err := r.custodyChain(ctx, evidenceID)
	if err != nil {
		return Item{}, err
	}
	it.Custody = custody

	objections, err := r.objections(ctx, evidenceID)
	if err != nil {
		return Item{}, err
	}
	it.Objections = objections

	return it, nil
}

// ListByCase returns all evidence for a case in submission order.
func (r *Repository) ListByCase(ctx context.Context, caseID string) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, case_id, submitted_by, type, description, content_hash, content_url, verification::text, submitted_at
        FROM evidence_items WHERE case_id=$1 ORDER BY submitted_at
    `, caseID)
	if err != nil {
		return nil, fmt.Errorf("evidence: list by case: %w", err)
	}
	defer rows.Close()

	items := make([]Item, 0, 8)
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.CaseID, &it.SubmittedBy, &it.Type, &it.Description, &it.ContentHash, &it.ContentURL, &it.Verification, &it.SubmittedAt); err != nil {
			return nil, fmt.Errorf("evidence: scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("evidence: iterate items: %w", err)
	}

	for i := range items {
		objections, err := r.objections(ctx, items[i].ID)
		if err != nil {
			return nil, err
		}
		items[i].Objections = objections
	}
	return items, nil
}

func (r *Repository) custodyChain(ctx context.Context, evidenceID string) ([]CustodyTransfer, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, evidence_id, seq, from_holder, to_holder, content_hash, transferred_at
        FROM custody_transfers WHERE evidence_id=$1 ORDER BY seq
    `, evidenceID)
	if err != nil {
		return nil, fmt.Errorf("evidence: query custody: %w", err)
	}
	defer rows.Close()

	chain := make([]CustodyTransfer, 0, 4)
	for rows.Next() {
		var t CustodyTransfer
		if err := rows.Scan(&t.ID, &t.EvidenceID, &t.Seq, &t.FromHolder, &t.ToHolder, &t.ContentHash, &t.TransferredAt); err != nil {
			return nil, fmt.Errorf("evidence: scan custody: %w", err)
		}
		chain = append(chain, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("evidence: iterate custody: %w", err)
	}
	return chain, nil
}

func (r *Repository) objections(ctx context.Context, evidenceID string) ([]Objection, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, evidence_id, raised_by, grounds, ruling_decision, ruling_by, ruling_reason, raised_at, ruled_at
        FROM objections WHERE evidence_id=$1 ORDER BY raised_at
    `, evidenceID)
	if err != nil {
		return nil, fmt.Errorf("evidence: query objections: %w", err)
	}
	defer rows.Close()

	out := make([]Objection, 0, 2)
	for rows.Next() {
		var o Objection
		if err := rows.Scan(&o.ID, &o.EvidenceID, &o.RaisedBy, &o.Grounds, &o.RulingDecision, &o.RulingBy, &o.RulingReason, &o.RaisedAt, &o.RuledAt); err != nil {
			return nil, fmt.Errorf("evidence: scan objection: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("evidence: iterate objections: %w", err)
	}
	return out, nil
}
