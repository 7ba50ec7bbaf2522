package decision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads issued decisions.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByCase loads the live decision for a case. Superseded decisions from
// appealed rounds are kept for the record but never returned here.
func (r *Repository) GetByCase(ctx context.Context, caseID string) (Decision, error) {
	var (
		d        Decision
		counts   []byte
		findings []byte
		orders   []byte
	)
	err := r.pool.QueryRow(ctx, `
        SELECT id, case_id, ruling::text, vote_counts, consensus, majority_percentage,
               findings, orders, enforcement_method, appeal_deadline, issued_at
        FROM decisions WHERE case_id=$1 AND superseded_at IS NULL
    `, caseID).Scan(&d.ID, &d.CaseID, &d.Ruling, &counts, &d.Summary.Consensus, &d.Summary.MajorityPercentage,
		&findings, &orders, &d.Enforcement.Method, &d.AppealDeadline, &d.IssuedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Decision{}, ErrNotFound
		}
		return Decision{}, fmt.Errorf("decision: query by case: %w", err)
	}

	if err := json.Unmarshal(counts, &d.Summary.Counts); err != nil {
		return Decision{}, fmt.Errorf("decision: decode counts: %w", err)
	}
	for _, n := range d.Summary.Counts {
		d.Summary.TotalVotes += n
	}
	if err := json.Unmarshal(findings, &d.Findings); err != nil {
		return Decision{}, fmt.Errorf("decision: decode findings: %w", err)
	}
	if err := json.Unmarshal(orders, &d.Orders); err != nil {
		return Decision{}, fmt.Errorf("decision: decode orders: %w", err)
	}
	return d, nil
}
