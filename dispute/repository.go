package dispute

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound  = errors.New("dispute: not found")
	ErrBadStatus = errors.New("dispute: invalid status transition")
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const recordColumns = `id, project_id, raised_by, respondent, summary, status::text, created_at, updated_at, resolved_at`

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.ProjectID, &rec.RaisedBy, &rec.Respondent, &rec.Summary,
		&rec.Status, &rec.CreatedAt, &rec.UpdatedAt, &rec.ResolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("dispute: scan: %w", err)
	}
	return rec, nil
}

func (r *Repository) Create(ctx context.Context, projectID, raisedBy, respondent, summary string) (Record, error) {
	row := r.pool.QueryRow(ctx, `
        INSERT INTO disputes (id, project_id, raised_by, respondent, summary)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING `+recordColumns+`
    `, uuid.NewString(), projectID, raisedBy, respondent, summary)
	rec, err := scanRecord(row)
	if err != nil {
		return Record{}, fmt.Errorf("dispute: create: %w", err)
	}
	return rec, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (Record, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM disputes WHERE id=$1`, id)
	return scanRecord(row)
}

// ListByUser returns disputes the user raised or answers for, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT `+recordColumns+` FROM disputes
        WHERE raised_by=$1 OR respondent=$1
        ORDER BY created_at DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("dispute: list: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, 8)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dispute: iterate: %w", err)
	}
	return out, nil
}

// MarkInArbitration flags the dispute once a case is filed for it. Filing
// against an already resolved dispute is rejected.
func (r *Repository) MarkInArbitration(ctx context.Context, id string) (Record, error) {
	row := r.pool.QueryRow(ctx, `
        UPDATE disputes SET status='in_arbitration', updated_at=now()
        WHERE id=$1 AND status='open'
        RETURNING `+recordColumns+`
    `, id)
	rec, err := scanRecord(row)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Record{}, err
	}

	var status Status
	if err := r.pool.QueryRow(ctx, `SELECT status::text FROM disputes WHERE id=$1`, id).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("dispute: mark fetch: %w", err)
	}
	if status == StatusInArbitration {
		return r.GetByID(ctx, id)
	}
	return Record{}, ErrBadStatus
}
