package evidence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"caseflow/cases"
)

// Register is the append-only evidence log for cases. Submissions, custody
// transfers, and objections all go through the owning case's row lock so the
// derived admissibility view is never computed from a half-written item.
type Register struct {
	pool *pgxpool.Pool
	repo *Repository
}

func NewRegister(pool *pgxpool.Pool) *Register {
	return &Register{pool: pool, repo: NewRepository(pool)}
}

// Repo exposes read access for callers assembling case views.
func (g *Register) Repo() *Repository {
	return g.repo
}

type SubmitParams struct {
	CaseID      string
	SubmittedBy string
	Type        string
	Description string
	ContentHash string
	ContentURL  string
}

// Submit files a new evidence item and its opening custody record. Submitting
// the same content hash twice for a case returns the existing item, which
// makes retries safe.
func (g *Register) Submit(ctx context.Context, params SubmitParams) (Item, error) {
	if params.ContentHash == "" {
		return Item{}, fmt.Errorf("evidence: content hash required")
	}

	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return Item{}, fmt.Errorf("evidence: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := cases.LockTx(ctx, tx, params.CaseID); err != nil {
		if errors.Is(err, cases.ErrNotFound) {
			return Item{}, ErrCaseNotFound
		}
		return Item{}, err
	}

	var existingID string
	err = tx.QueryRow(ctx, `
        SELECT id FROM evidence_items WHERE case_id=$1 AND content_hash=$2
    `, params.CaseID, params.ContentHash).Scan(&existingID)
	if err == nil {
		if cerr := tx.Commit(ctx); cerr != nil {
			return Item{}, fmt.Errorf("evidence: commit replay: %w", cerr)
		}
		return g.repo.GetByID(ctx, existingID)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Item{}, fmt.Errorf("evidence: check duplicate: %w", err)
	}

	it := Item{
		ID:           uuid.NewString(),
		CaseID:       params.CaseID,
		SubmittedBy:  params.SubmittedBy,
		Type:         params.Type,
		Description:  params.Description,
		ContentHash:  params.ContentHash,
		ContentURL:   params.ContentURL,
		Verification: VerificationPending,
	}
	if err := tx.QueryRow(ctx, `
        INSERT INTO evidence_items (id, case_id, submitted_by, type, description, content_hash, content_url)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING submitted_at
    `, it.ID, it.CaseID, it.SubmittedBy, it.Type, it.Description, it.ContentHash, it.ContentURL).Scan(&it.SubmittedAt); err != nil {
		return Item{}, fmt.Errorf("evidence: insert item: %w", err)
	}

	// Custody chain begins with the submitter handing the item to the court.
	if _, err := tx.Exec(ctx, `
        INSERT INTO custody_transfers (evidence_id, seq, from_holder, to_holder, content_hash)
        VALUES ($1,1,$2,'registry',$3)
    `, it.ID, it.SubmittedBy, it.ContentHash); err != nil {
		return Item{}, fmt.Errorf("evidence: insert custody origin: %w", err)
	}

	submitter := params.SubmittedBy
	if err := cases.AppendEventTx(ctx, tx, params.CaseID, "EVIDENCE_SUBMITTED", &submitter, cases.VisibilityParties, map[string]any{
		"evidence_id": it.ID,
		"type":        it.Type,
	}); err != nil {
		return Item{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Item{}, fmt.Errorf("evidence: commit submit: %w", err)
	}
	return g.repo.GetByID(ctx, it.ID)
}

type TransferParams struct {
	EvidenceID  string
	FromHolder  string
	ToHolder    string
	ContentHash string
}

// TransferCustody appends one hop to the custody chain. The new transfer must
// start from the current chain head holder.
func (g *Register) TransferCustody(ctx context.Context, params TransferParams) error {
	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("evidence: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := lockItemCaseTx(ctx, tx, params.EvidenceID); err != nil {
		return err
	}

	var head string
	var seq int
	err = tx.QueryRow(ctx, `
        SELECT to_holder, seq FROM custody_transfers
        WHERE evidence_id=$1 ORDER BY seq DESC LIMIT 1
    `, params.EvidenceID).Scan(&head, &seq)
	if err != nil {
		return fmt.Errorf("evidence: custody head: %w", err)
	}
	if head != params.FromHolder {
		return fmt.Errorf("%w: head is %q, transfer from %q", ErrChainBroken, head, params.FromHolder)
	}

	if _, err := tx.Exec(ctx, `
        INSERT INTO custody_transfers (evidence_id, seq, from_holder, to_holder, content_hash)
        VALUES ($1,$2,$3,$4,$5)
    `, params.EvidenceID, seq+1, params.FromHolder, params.ToHolder, params.ContentHash); err != nil {
		return fmt.Errorf("evidence: insert custody transfer: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("evidence: commit transfer: %w", err)
	}
	return nil
}

// SetVerification records the review outcome for an item.
func (g *Register) SetVerification(ctx context.Context, evidenceID string, v Verification) error {
	switch v {
	case VerificationPending, VerificationVerified, VerificationDisputed, VerificationRejected:
	default:
		return fmt.Errorf("evidence: unknown verification %q", v)
	}

	tag, err := g.pool.Exec(ctx, `
        UPDATE evidence_items SET verification=$2::evidence_verification WHERE id=$1
    `, evidenceID, string(v))
	if err != nil {
		return fmt.Errorf("evidence: update verification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type ObjectionParams struct {
	EvidenceID string
	RaisedBy   string
	Grounds    string
}

// RaiseObjection files an objection against an evidence item.
func (g *Register) RaiseObjection(ctx context.Context, params ObjectionParams) (Objection, error) {
	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return Objection{}, fmt.Errorf("evidence: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	caseID, err := lockItemCaseTx(ctx, tx, params.EvidenceID)
	if err != nil {
		return Objection{}, err
	}

	o := Objection{
		ID:         uuid.NewString(),
		EvidenceID: params.EvidenceID,
		RaisedBy:   params.RaisedBy,
		Grounds:    params.Grounds,
	}
	if err := tx.QueryRow(ctx, `
        INSERT INTO objections (id, evidence_id, raised_by, grounds)
        VALUES ($1,$2,$3,$4) RETURNING raised_at
    `, o.ID, o.EvidenceID, o.RaisedBy, o.Grounds).Scan(&o.RaisedAt); err != nil {
		return Objection{}, fmt.Errorf("evidence: insert objection: %w", err)
	}

	raiser := params.RaisedBy
	if err := cases.AppendEventTx(ctx, tx, caseID, "OBJECTION_RAISED", &raiser, cases.VisibilityArbiters, map[string]any{
		"evidence_id":  params.EvidenceID,
		"objection_id": o.ID,
	}); err != nil {
		return Objection{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Objection{}, fmt.Errorf("evidence: commit objection: %w", err)
	}
	return o, nil
}

type RulingParams struct {
	ObjectionID string
	ArbiterID   string
	Decision    string // sustained | overruled
	Reason      string
}

// RuleOnObjection records the ruling. Only the lead arbiter or an assigned
// arbiter of the owning case may rule, and each objection is ruled once.
func (g *Register) RuleOnObjection(ctx context.Context, params RulingParams) error {
	if params.Decision != RulingSustained && params.Decision != RulingOverruled {
		return fmt.Errorf("evidence: unknown ruling %q", params.Decision)
	}

	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("evidence: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var evidenceID, caseID string
	err = tx.QueryRow(ctx, `
        SELECT o.evidence_id, e.case_id
        FROM objections o JOIN evidence_items e ON e.id = o.evidence_id
        WHERE o.id=$1
    `, params.ObjectionID).Scan(&evidenceID, &caseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("evidence: fetch objection: %w", err)
	}

	if _, err := cases.LockTx(ctx, tx, caseID); err != nil {
		return err
	}

	assigned, err := isAssignedArbiterTx(ctx, tx, caseID, params.ArbiterID)
	if err != nil {
		return err
	}
	if !assigned {
		return ErrUnauthorized
	}

	tag, err := tx.Exec(ctx, `
        UPDATE objections
        SET ruling_decision=$2, ruling_by=$3, ruling_reason=$4, ruled_at=now()
        WHERE id=$1 AND ruling_decision IS NULL
    `, params.ObjectionID, params.Decision, params.ArbiterID, params.Reason)
	if err != nil {
		return fmt.Errorf("evidence: update ruling: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyRuled
	}

	arbiter := params.ArbiterID
	if err := cases.AppendEventTx(ctx, tx, caseID, "OBJECTION_RULED", &arbiter, cases.VisibilityArbiters, map[string]any{
		"objection_id": params.ObjectionID,
		"decision":     params.Decision,
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("evidence: commit ruling: %w", err)
	}
	return nil
}

// lockItemCaseTx resolves the owning case for an item and takes its row lock.
func lockItemCaseTx(ctx context.Context, tx pgx.Tx, evidenceID string) (string, error) {
	var caseID string
	err := tx.QueryRow(ctx, `SELECT case_id FROM evidence_items WHERE id=$1`, evidenceID).Scan(&caseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("evidence: resolve case: %w", err)
	}
	if _, err := cases.LockTx(ctx, tx, caseID); err != nil {
		return "", err
	}
	return caseID, nil
}

func isAssignedArbiterTx(ctx context.Context, tx pgx.Tx, caseID, arbiterID string) (bool, error) {
	var assigned bool
	err := tx.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM case_arbiters WHERE case_id=$1 AND arbiter_id=$2
            UNION
            SELECT 1 FROM cases WHERE id=$1 AND lead_arbiter_id=$2
        )
    `, caseID, arbiterID).Scan(&assigned)
	if err != nil {
		return false, fmt.Errorf("evidence: check arbiter: %w", err)
	}
	return assigned, nil
}
