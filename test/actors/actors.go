package actors

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"caseflow/escrow"
	"caseflow/evidence"
	"caseflow/settlement"
	"caseflow/voting"
)

// Voter repeatedly casts and re-casts ballots for one arbiter. Resubmission
// before quorum must overwrite, and the final vote on a full panel triggers
// finalization; racing voters must never produce two live decisions.
func Voter(ctx context.Context, coordinator *voting.Coordinator, caseID, arbiterID string, stop <-chan struct{}) error {
	options := []string{voting.OptionClaimant, voting.OptionRespondent, voting.OptionPartial, voting.OptionDismiss}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, err := coordinator.SubmitVote(ctx, voting.SubmitVoteParams{
			CaseID:    caseID,
			ArbiterID: arbiterID,
			Decision:  options[rand.Intn(len(options))],
			Reasoning: "stress ballot",
		})
		if err != nil && !errors.Is(err, voting.ErrVotingClosed) {
			return fmt.Errorf("voter %s: %w", arbiterID, err)
		}
		time.Sleep(time.Duration(10+rand.Intn(30)) * time.Millisecond)
	}
}

// EvidenceSubmitter files evidence items with unique content hashes plus the
// occasional duplicate to exercise idempotent resubmission.
func EvidenceSubmitter(ctx context.Context, register *evidence.Register, caseID, userID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		seed := rand.Int63()
		if rand.Intn(4) == 0 {
			seed = 42 // deliberate duplicate
		}
		sum := sha256.Sum256([]byte(fmt.Sprintf("doc-%d", seed)))
		_, err := register.Submit(ctx, evidence.SubmitParams{
			CaseID:      caseID,
			SubmittedBy: userID,
			Type:        "document",
			Description: "stress evidence",
			ContentHash: hex.EncodeToString(sum[:]),
		})
		if err != nil && !errors.Is(err, evidence.ErrCaseNotFound) {
			return fmt.Errorf("evidence submitter: %w", err)
		}
		time.Sleep(time.Duration(15+rand.Intn(35)) * time.Millisecond)
	}
}

// Disputer races the auto-release scan: it tries to freeze a funded escrow
// whose release window has already lapsed.
func Disputer(ctx context.Context, custodian *escrow.Custodian, escrowID, disputeID, userID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		err := custodian.Dispute(ctx, escrowID, disputeID, userID)
		if err != nil && !errors.Is(err, escrow.ErrInvalidState) {
			return fmt.Errorf("disputer: %w", err)
		}
		time.Sleep(time.Duration(50+rand.Intn(100)) * time.Millisecond)
	}
}

// Releaser issues small partial releases against one escrow, probing the
// cumulative cap and the terminal-state guard.
func Releaser(ctx context.Context, custodian *escrow.Custodian, escrowID, userID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		err := custodian.Release(ctx, escrow.ReleaseParams{
			EscrowID:   escrowID,
			Type:       escrow.ReleasePartial,
			Amount:     float64(1 + rand.Intn(50)),
			ApprovedBy: userID,
			Reason:     "stress partial",
		})
		if err != nil &&
			!errors.Is(err, escrow.ErrInvalidState) &&
			!errors.Is(err, escrow.ErrInsufficientFunds) {
			return fmt.Errorf("releaser: %w", err)
		}
		time.Sleep(time.Duration(20+rand.Intn(60)) * time.Millisecond)
	}
}

// OutboxWorker drives the real settlement worker's drain loop.
func OutboxWorker(ctx context.Context, worker *settlement.Worker, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		if _, err := worker.Drain(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("outbox worker: %w", err)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// AutoReleaser drives scheduler ticks continuously.
func AutoReleaser(ctx context.Context, scheduler *escrow.Scheduler, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		if err := scheduler.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("auto releaser: %w", err)
		}
		time.Sleep(150 * time.Millisecond)
	}
}

// TimelineWriter appends arbitrary audit events directly, competing with the
// services for the per-case seq.
func TimelineWriter(ctx context.Context, pool *pgxpool.Pool, caseID string, stop <-chan struct{}) error {
	types := []string{"NOTE_ADDED", "PARTY_NOTIFIED"}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `SELECT id FROM cases WHERE id=$1 FOR UPDATE`, caseID); err != nil {
			_ = tx.Rollback(ctx)
			continue
		}
		var seq int
		if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(seq),0)+1 FROM timeline_events WHERE case_id=$1`, caseID).Scan(&seq); err != nil {
			_ = tx.Rollback(ctx)
			continue
		}
		ty := types[rand.Intn(len(types))]
		if _, err := tx.Exec(ctx, `
            INSERT INTO timeline_events (case_id, seq, type, visibility, payload)
            VALUES ($1,$2,$3,'arbiters','{}'::jsonb)
        `, caseID, seq, ty); err != nil {
			_ = tx.Rollback(ctx)
			continue
		}
		_ = tx.Commit(ctx)
		time.Sleep(time.Duration(15+rand.Intn(35)) * time.Millisecond)
	}
}
