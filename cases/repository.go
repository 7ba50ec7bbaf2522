package cases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when no case row exists for the identifier.
	ErrNotFound = errors.New("cases: not found")
	// ErrInvalidTransition signals a status move outside the lifecycle table.
	ErrInvalidTransition = errors.New("cases: invalid status transition")
	// ErrInvalidPhase signals a phase move that would regress or skip validation.
	ErrInvalidPhase = errors.New("cases: invalid phase transition")
	// ErrNoArbiters is returned when a case is created without an arbiter panel.
	ErrNoArbiters = errors.New("cases: at least one arbiter required")
	// ErrLeadNotAssigned is returned when the lead arbiter is not in the panel.
	ErrLeadNotAssigned = errors.New("cases: lead arbiter must be in the assigned panel")
)

// Repository provides case aggregate persistence over pgx.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreatePartyParams describes one party with its claims at filing time.
type CreatePartyParams struct {
	UserID string
	Role   PartyRole
	Claims []Claim
}

type CreateParams struct {
	DisputeID     string
	Parties       []CreatePartyParams
	ArbiterIDs    []string
	LeadArbiterID string
	FiledBy       string
}

// Create files a new case: the row, its parties and claims, the arbiter
// panel, the opening timeline event, and the outbox notification, all in one
// transaction. Case numbers come from a sequence so they stay monotone.
func (r *Repository) Create(ctx context.Context, params CreateParams) (Case, error) {
	if params.DisputeID == "" {
		return Case{}, fmt.Errorf("cases: dispute id required")
	}
	if len(params.ArbiterIDs) == 0 {
		return Case{}, ErrNoArbiters
	}
	leadAssigned := false
	for _, id := range params.ArbiterIDs {
		if id == params.LeadArbiterID {
			leadAssigned = true
			break
		}
	}
	if !leadAssigned {
		return Case{}, ErrLeadNotAssigned
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Case{}, fmt.Errorf("cases: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var number string
	if err := tx.QueryRow(ctx,
		`SELECT 'DR-' || to_char(now(), 'YYYY') || '-' || lpad(nextval('case_number_seq')::text, 6, '0')`,
	).Scan(&number); err != nil {
		return Case{}, fmt.Errorf("cases: next case number: %w", err)
	}

	var c Case
	err = tx.QueryRow(ctx, `
        INSERT INTO cases (case_number, dispute_id, lead_arbiter_id)
        VALUES ($1,$2,$3)
        RETURNING id, case_number, dispute_id, status::text, phase::text, lead_arbiter_id, created_at, updated_at
    `, number, params.DisputeID, params.LeadArbiterID).
		Scan(&c.ID, &c.CaseNumber, &c.DisputeID, &c.Status, &c.Phase, &c.LeadArbiterID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Case{}, fmt.Errorf("cases: insert case: %w", err)
	}

	for _, p := range params.Parties {
		var partyID string
		if err := tx.QueryRow(ctx, `
            INSERT INTO case_parties (case_id, user_id, role)
            VALUES ($1,$2,$3) RETURNING id
        `, c.ID, p.UserID, string(p.Role)).Scan(&partyID); err != nil {
			return Case{}, fmt.Errorf("cases: insert party: %w", err)
		}
		for _, cl := range p.Claims {
			if _, err := tx.Exec(ctx, `
                INSERT INTO case_claims (party_id, description, amount)
                VALUES ($1,$2,$3)
            `, partyID, cl.Description, cl.Amount); err != nil {
				return Case{}, fmt.Errorf("cases: insert claim: %w", err)
			}
		}
	}

	for _, arb := range params.ArbiterIDs {
		if _, err := tx.Exec(ctx, `
            INSERT INTO case_arbiters (case_id, arbiter_id) VALUES ($1,$2)
        `, c.ID, arb); err != nil {
			return Case{}, fmt.Errorf("cases: insert arbiter: %w", err)
		}
	}
	c.ArbiterIDs = append(c.ArbiterIDs, params.ArbiterIDs...)

	var actor *string
	if params.FiledBy != "" {
		actor = &params.FiledBy
	}
	if err := AppendEventTx(ctx, tx, c.ID, "CASE_FILED", actor, VisibilityParties, map[string]any{
		"case_number": c.CaseNumber,
		"dispute_id":  c.DisputeID,
	}); err != nil {
		return Case{}, err
	}
	if err := EnqueueOutboxTx(ctx, tx, OutboxTopicCaseFiled, map[string]any{
		"case_id":     c.ID,
		"case_number": c.CaseNumber,
		"dispute_id":  c.DisputeID,
	}); err != nil {
		return Case{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Case{}, fmt.Errorf("cases: commit create: %w", err)
	}
	return c, nil
}

// GetByID loads the case row with its parties, claims, arbiters and timeline.
// Votes, evidence, and the decision are owned by their own packages.
func (r *Repository) GetByID(ctx context.Context, caseID string) (Case, error) {
	var c Case
	err := r.pool.QueryRow(ctx, `
        SELECT id, case_number, dispute_id, status::text, phase::text, lead_arbiter_id, created_at, updated_at, archived_at
        FROM cases WHERE id=$1
    `, caseID).Scan(&c.ID, &c.CaseNumber, &c.DisputeID, &c.Status, &c.Phase, &c.LeadArbiterID, &c.CreatedAt, &c.UpdatedAt, &c.ArchivedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Case{}, ErrNotFound
		}
		return Case{}, fmt.Errorf("cases: query by id: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
        SELECT p.id, p.user_id, p.role::text, c.id, c.description, c.amount, c.status
        FROM case_parties p
        LEFT JOIN case_claims c ON c.party_id = p.id
        WHERE p.case_id = $1
        ORDER BY p.id, c.id
    `, caseID)
	if err != nil {
		return Case{}, fmt.Errorf("cases: query parties: %w", err)
	}
	defer rows.Close()

	byParty := map[string]int{}
	for rows.Next() {
		var (
			p       Party
			claimID *string
			desc    *string
			amount  *float64
			status  *string
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.Role, &claimID, &desc, &amount, &status); err != nil {
			return Case{}, fmt.Errorf("cases: scan party: %w", err)
		}
		idx, seen := byParty[p.ID]
		if !seen {
			c.Parties = append(c.Parties, p)
			idx = len(c.Parties) - 1
			byParty[p.ID] = idx
		}
		if claimID != nil {
			c.Parties[idx].Claims = append(c.Parties[idx].Claims, Claim{
				ID:          *claimID,
				Description: *desc,
				Amount:      amount,
				Status:      *status,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return Case{}, fmt.Errorf("cases: iterate parties: %w", err)
	}

	arbRows, err := r.pool.Query(ctx, `SELECT arbiter_id FROM case_arbiters WHERE case_id=$1 ORDER BY arbiter_id`, caseID)
	if err != nil {
		return Case{}, fmt.Errorf("cases: query arbiters: %w", err)
	}
	defer arbRows.Close()
	for arbRows.Next() {
		var id string
		if err := arbRows.Scan(&id); err != nil {
			return Case{}, fmt.Errorf("cases: scan arbiter: %w", err)
		}
		c.ArbiterIDs = append(c.ArbiterIDs, id)
	}
	if err := arbRows.Err(); err != nil {
		return Case{}, fmt.Errorf("cases: iterate arbiters: %w", err)
	}

	evRows, err := r.pool.Query(ctx, `
        SELECT id, case_id, seq, type, actor_id, visibility::text, payload, created_at
        FROM timeline_events WHERE case_id=$1 ORDER BY seq
    `, caseID)
	if err != nil {
		return Case{}, fmt.Errorf("cases: query timeline: %w", err)
	}
	defer evRows.Close()
	for evRows.Next() {
		var ev TimelineEvent
		if err := evRows.Scan(&ev.ID, &ev.CaseID, &ev.Seq, &ev.Type, &ev.ActorID, &ev.Visibility, &ev.Payload, &ev.CreatedAt); err != nil {
			return Case{}, fmt.Errorf("cases: scan timeline event: %w", err)
		}
		c.Timeline = append(c.Timeline, ev)
	}
	if err := evRows.Err(); err != nil {
		return Case{}, fmt.Errorf("cases: iterate timeline: %w", err)
	}

	return c, nil
}

// ListByArbiter returns the cases a given arbiter sits on, newest first.
func (r *Repository) ListByArbiter(ctx context.Context, arbiterID string) ([]Case, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT c.id, c.case_number, c.dispute_id, c.status::text, c.phase::text, c.lead_arbiter_id, c.created_at, c.updated_at
        FROM cases c
        JOIN case_arbiters ca ON ca.case_id = c.id
        WHERE ca.arbiter_id = $1
        ORDER BY c.created_at DESC
    `, arbiterID)
	if err != nil {
		return nil, fmt.Errorf("cases: list by arbiter: %w", err)
	}
	defer rows.Close()

	out := make([]Case, 0, 8)
	for rows.Next() {
		var c Case
		if err := rows.Scan(&c.ID, &c.CaseNumber, &c.DisputeID, &c.Status, &c.Phase, &c.LeadArbiterID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("cases: scan case: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cases: iterate cases: %w", err)
	}
	return out, nil
}

// Metrics summarizes the ledger for reporting.
func (r *Repository) Metrics(ctx context.Context) (Metrics, error) {
	var m Metrics
	err := r.pool.QueryRow(ctx, `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE status IN ('decided','enforcing','closed')),
               COUNT(*) FILTER (WHERE status = 'closed'),
               COUNT(*) FILTER (WHERE status = 'appealed')
        FROM cases
    `).Scan(&m.TotalCases, &m.DecidedCases, &m.ClosedCases, &m.AppealedCases)
	if err != nil {
		return Metrics{}, fmt.Errorf("cases: metrics: %w", err)
	}
	return m, nil
}

// Archive stamps a closed case as archived. Cases are never deleted.
func (r *Repository) Archive(ctx context.Context, caseID string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
        UPDATE cases SET archived_at=$2, updated_at=now()
        WHERE id=$1 AND status='closed' AND archived_at IS NULL
    `, caseID, at)
	if err != nil {
		return fmt.Errorf("cases: archive: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}
