package arbiter

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the requested arbiter does not exist.
var ErrNotFound = errors.New("arbiter: not found")

// Repository provides read access to arbiter profiles.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const caseloadJoin = `
	LEFT JOIN case_arbiters ca ON ca.arbiter_id = u.id
	LEFT JOIN cases c ON c.id = ca.case_id AND c.status NOT IN ('closed')
`

// GetByID fetches an arbiter profile with its current caseload.
func (r *Repository) GetByID(ctx context.Context, id string) (Profile, error) {
	const query = `
		SELECT u.id, u.full_name, u.email, COUNT(c.id), u.created_at
		FROM users u
	` + caseloadJoin + `
		WHERE u.id = $1 AND u.role = 'arbiter'
		GROUP BY u.id
	`

	var profile Profile
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&profile.ID,
		&profile.FullName,
		&profile.Email,
		&profile.ActiveCases,
		&profile.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("arbiter: query by id: %w", err)
	}

	return profile, nil
}

// List fetches up to limit arbiter profiles, least loaded first so the
// caller can spread new panels evenly.
func (r *Repository) List(ctx context.Context, limit int) ([]Profile, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	const query = `
		SELECT u.id, u.full_name, u.email, COUNT(c.id), u.created_at
		FROM users u
	` + caseloadJoin + `
		WHERE u.role = 'arbiter'
		GROUP BY u.id
		ORDER BY COUNT(c.id) ASC, u.full_name ASC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("arbiter: list: %w", err)
	}
	defer rows.Close()

	profiles := make([]Profile, 0, limit)
	for rows.Next() {
		var profile Profile
		if err := rows.Scan(&profile.ID, &profile.FullName, &profile.Email, &profile.ActiveCases, &profile.CreatedAt); err != nil {
			return nil, fmt.Errorf("arbiter: scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("arbiter: iterate profiles: %w", err)
	}

	return profiles, nil
}
