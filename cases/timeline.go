package cases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Outbox topics emitted by the case ledger.
const (
	OutboxTopicCaseFiled        = "case.filed"
	OutboxTopicStatusChanged    = "case.status_changed"
	OutboxTopicHearingScheduled = "case.hearing_scheduled"
	OutboxTopicCaseDecided      = "case.decided"
)

// AppendEventTx inserts one timeline event inside the caller's transaction.
// The caller must hold the case row lock; seq is derived from the current
// maximum so events stay densely ordered per case.
func AppendEventTx(ctx context.Context, tx pgx.Tx, caseID, eventType string, actorID *string, vis Visibility, payload map[string]any) error {
	if vis == "" {
		vis = VisibilityParties
	}
	var seq int
	if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(seq),0)+1 FROM timeline_events WHERE case_id=$1`, caseID).Scan(&seq); err != nil {
		return fmt.Errorf("cases: next timeline seq: %w", err)
	}

	if payload == nil {
		payload = map[string]any{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("cases: marshal timeline payload: %w", err)
	}

	const insertSQL = `
        INSERT INTO timeline_events (case_id, seq, type, actor_id, visibility, payload)
        VALUES ($1,$2,$3,$4,$5,$6)
    `
	if _, err := tx.Exec(ctx, insertSQL, caseID, seq, eventType, actorID, string(vis), body); err != nil {
		return fmt.Errorf("cases: insert timeline event: %w", err)
	}
	return nil
}

// EnqueueOutboxTx appends one outbox message inside the caller's transaction.
func EnqueueOutboxTx(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("cases: marshal outbox payload: %w", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO outbox (topic, payload) VALUES ($1,$2)`, topic, body); err != nil {
		return fmt.Errorf("cases: insert outbox message: %w", err)
	}
	return nil
}

// LockedCase is the subset of case state read under FOR UPDATE.
type LockedCase struct {
	ID            string
	Status        Status
	Phase         Phase
	LeadArbiterID string
}

// LockTx takes the case row lock and returns the current state. Every
// mutating operation on a case goes through this lock, which serializes
// writers per aggregate.
func LockTx(ctx context.Context, tx pgx.Tx, caseID string) (LockedCase, error) {
	var lc LockedCase
	err := tx.QueryRow(ctx, `
        SELECT id, status::text, phase::text, lead_arbiter_id
        FROM cases WHERE id=$1 FOR UPDATE
    `, caseID).Scan(&lc.ID, &lc.Status, &lc.Phase, &lc.LeadArbiterID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return LockedCase{}, ErrNotFound
		}
		return LockedCase{}, fmt.Errorf("cases: lock case: %w", err)
	}
	return lc, nil
}

// ArbitersTx returns the assigned arbiter set for a case.
func ArbitersTx(ctx context.Context, tx pgx.Tx, caseID string) ([]string, error) {
	rows, err := tx.Query(ctx, `SELECT arbiter_id FROM case_arbiters WHERE case_id=$1 ORDER BY arbiter_id`, caseID)
	if err != nil {
		return nil, fmt.Errorf("cases: list arbiters: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, 3)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("cases: scan arbiter: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cases: iterate arbiters: %w", err)
	}
	return ids, nil
}
