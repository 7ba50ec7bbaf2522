package cases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAppealDeadline is returned when an appeal is filed after the decision's
// appeal window has closed.
var ErrAppealDeadline = errors.New("cases: appeal deadline has passed")

// Ledger drives the case status and phase machines. Every mutation takes the
// case row lock, appends exactly one timeline event, and enqueues any outbox
// notifications inside the same transaction.
type Ledger struct {
	pool *pgxpool.Pool
}

func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// TransitionStatus moves the case to newStatus if the lifecycle table allows
// it from the current status.
func (l *Ledger) TransitionStatus(ctx context.Context, caseID, actorID string, newStatus Status) error {
	if !ValidStatus(newStatus) {
		return ErrInvalidTransition
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("cases: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	lc, err := LockTx(ctx, tx, caseID)
	if err != nil {
		return err
	}
	if !CanTransition(lc.Status, newStatus) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, lc.Status, newStatus)
	}

	if err := applyStatusTx(ctx, tx, caseID, actorID, lc.Status, newStatus); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("cases: commit transition: %w", err)
	}
	return nil
}

// applyStatusTx performs the status update plus its timeline and outbox
// writes. Callers hold the case row lock and have validated the move.
func applyStatusTx(ctx context.Context, tx pgx.Tx, caseID, actorID string, from, to Status) error {
	if _, err := tx.Exec(ctx, `
        UPDATE cases SET status=$1::case_status, updated_at=now() WHERE id=$2
    `, string(to), caseID); err != nil {
		return fmt.Errorf("cases: update status: %w", err)
	}

	var actor *string
	if actorID != "" {
		actor = &actorID
	}
	if err := AppendEventTx(ctx, tx, caseID, "CASE_STATUS_CHANGED", actor, VisibilityParties, map[string]any{
		"previous_status": string(from),
		"next_status":     string(to),
	}); err != nil {
		return err
	}

	return EnqueueOutboxTx(ctx, tx, OutboxTopicStatusChanged, map[string]any{
		"case_id":  caseID,
		"previous": string(from),
		"next":     string(to),
	})
}

// TransitionPhase advances the procedural phase. Phases only move forward;
// the appeal path resets them through Appeal, never through this method.
func (l *Ledger) TransitionPhase(ctx context.Context, caseID, actorID string, newPhase Phase) error {
	if !ValidPhase(newPhase) {
		return ErrInvalidPhase
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("cases: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	lc, err := LockTx(ctx, tx, caseID)
	if err != nil {
		return err
	}
	if !CanAdvancePhase(lc.Phase, newPhase) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidPhase, lc.Phase, newPhase)
	}

	if _, err := tx.Exec(ctx, `
        UPDATE cases SET phase=$1::case_phase, updated_at=now() WHERE id=$2
    `, string(newPhase), caseID); err != nil {
		return fmt.Errorf("cases: update phase: %w", err)
	}

	var actor *string
	if actorID != "" {
		actor = &actorID
	}
	if err := AppendEventTx(ctx, tx, caseID, "CASE_PHASE_CHANGED", actor, VisibilityArbiters, map[string]any{
		"previous_phase": string(lc.Phase),
		"next_phase":     string(newPhase),
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("cases: commit phase: %w", err)
	}
	return nil
}

type ScheduleHearingParams struct {
	CaseID       string
	ActorID      string
	ScheduledAt  time.Time
	DurationMin  int
	Participants []string
}

// ScheduleHearing books a hearing. Scheduling while the case is still in
// evidence_collection (or re-entering after an appeal) advances the status to
// hearing_scheduled as a documented side effect of this call.
func (l *Ledger) ScheduleHearing(ctx context.Context, params ScheduleHearingParams) (Hearing, error) {
	if params.DurationMin <= 0 {
		params.DurationMin = 60
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return Hearing{}, fmt.Errorf("cases: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	lc, err := LockTx(ctx, tx, params.CaseID)
	if err != nil {
		return Hearing{}, err
	}

	h := Hearing{
		ID:           uuid.NewString(),
		CaseID:       params.CaseID,
		ScheduledAt:  params.ScheduledAt,
		DurationMin:  params.DurationMin,
		Participants: params.Participants,
	}
	if err := tx.QueryRow(ctx, `
        INSERT INTO hearings (id, case_id, scheduled_at, duration_min, participants)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING created_at
    `, h.ID, h.CaseID, h.ScheduledAt, h.DurationMin, h.Participants).Scan(&h.CreatedAt); err != nil {
		return Hearing{}, fmt.Errorf("cases: insert hearing: %w", err)
	}

	if lc.Status == StatusEvidenceCollection || lc.Status == StatusAppealed {
		if err := applyStatusTx(ctx, tx, params.CaseID, params.ActorID, lc.Status, StatusHearingScheduled); err != nil {
			return Hearing{}, err
		}
	}

	var actor *string
	if params.ActorID != "" {
		actor = &params.ActorID
	}
	if err := AppendEventTx(ctx, tx, params.CaseID, "HEARING_SCHEDULED", actor, VisibilityParties, map[string]any{
		"hearing_id":   h.ID,
		"scheduled_at": h.ScheduledAt.UTC(),
	}); err != nil {
		return Hearing{}, err
	}
	if err := EnqueueOutboxTx(ctx, tx, OutboxTopicHearingScheduled, map[string]any{
		"case_id":      params.CaseID,
		"hearing_id":   h.ID,
		"scheduled_at": h.ScheduledAt.UTC(),
		"participants": params.Participants,
	}); err != nil {
		return Hearing{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Hearing{}, fmt.Errorf("cases: commit hearing: %w", err)
	}
	return h, nil
}

// AppendTimelineEvent records a caller-supplied event on the case audit trail.
func (l *Ledger) AppendTimelineEvent(ctx context.Context, caseID, actorID, eventType string, vis Visibility, payload map[string]any) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("cases: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := LockTx(ctx, tx, caseID); err != nil {
		return err
	}

	var actor *string
	if actorID != "" {
		actor = &actorID
	}
	if err := AppendEventTx(ctx, tx, caseID, eventType, actor, vis, payload); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("cases: commit event: %w", err)
	}
	return nil
}

// Appeal re-opens a decided or closed case. The decision's appeal deadline is
// enforced; the phase resets to hearing, the one sanctioned regression.
func (l *Ledger) Appeal(ctx context.Context, caseID, appellantID, grounds string) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("cases: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	lc, err := LockTx(ctx, tx, caseID)
	if err != nil {
		return err
	}
	if !CanTransition(lc.Status, StatusAppealed) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, lc.Status, StatusAppealed)
	}

	var deadline time.Time
	err = tx.QueryRow(ctx, `
        SELECT appeal_deadline FROM decisions WHERE case_id=$1 AND superseded_at IS NULL
    `, caseID).Scan(&deadline)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: no decision to appeal", ErrInvalidTransition)
		}
		return fmt.Errorf("cases: fetch appeal deadline: %w", err)
	}
	if time.Now().After(deadline) {
		return ErrAppealDeadline
	}

	if err := applyStatusTx(ctx, tx, caseID, appellantID, lc.Status, StatusAppealed); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
        UPDATE cases SET phase='hearing', updated_at=now() WHERE id=$1
    `, caseID); err != nil {
		return fmt.Errorf("cases: reset phase: %w", err)
	}

	// The appealed round starts fresh: the old decision is retired for the
	// record and the old ballots cleared so quorum counts from zero.
	if _, err := tx.Exec(ctx, `
        UPDATE decisions SET superseded_at=now() WHERE case_id=$1 AND superseded_at IS NULL
    `, caseID); err != nil {
		return fmt.Errorf("cases: supersede decision: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM votes WHERE case_id=$1`, caseID); err != nil {
		return fmt.Errorf("cases: clear votes: %w", err)
	}

	appellant := appellantID
	if err := AppendEventTx(ctx, tx, caseID, "APPEAL_FILED", &appellant, VisibilityParties, map[string]any{
		"grounds": grounds,
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("cases: commit appeal: %w", err)
	}
	return nil
}
