package escrow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// maxAutoReleaseAttempts caps retries for a failing account; past it the
// account waits for manual intervention.
const maxAutoReleaseAttempts = 5

// Scheduler releases funded accounts whose auto-release date has passed.
// Due work is derived from auto_release_date on each tick, never from
// in-memory timers, so a restart loses nothing. The account status is
// re-read under the row lock before releasing, which is what makes a
// just-disputed account safe from the race with the scan.
type Scheduler struct {
	pool      *pgxpool.Pool
	custodian *Custodian
	interval  time.Duration
	log       *slog.Logger
}

func NewScheduler(pool *pgxpool.Pool, custodian *Custodian, interval time.Duration, log *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{pool: pool, custodian: custodian, interval: interval, log: log}
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.log.Error("auto-release tick failed", "error", err)
			}
		}
	}
}

// Tick runs one scan pass. Exported so tests and operators can drive it
// directly.
func (s *Scheduler) Tick(ctx context.Context) error {
	rows, err := s.pool.Query(ctx, `
        SELECT id FROM escrow_accounts
        WHERE status='funded' AND auto_release_date <= now() AND auto_release_attempts < $1
        ORDER BY auto_release_date
    `, maxAutoReleaseAttempts)
	if err != nil {
		return fmt.Errorf("escrow: scan due accounts: %w", err)
	}
	var due []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("escrow: scan due id: %w", err)
		}
		due = append(due, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("escrow: iterate due accounts: %w", err)
	}

	for _, id := range due {
		released, err := s.releaseDue(ctx, id)
		if err != nil {
			s.log.Error("auto-release failed", "escrow_id", id, "error", err)
			if _, uerr := s.pool.Exec(ctx, `
                UPDATE escrow_accounts SET auto_release_attempts = auto_release_attempts + 1, updated_at=now()
                WHERE id=$1
            `, id); uerr != nil {
				s.log.Error("record auto-release attempt failed", "escrow_id", id, "error", uerr)
			}
			continue
		}
		if released {
			s.log.Info("auto-released escrow", "escrow_id", id)
		}
	}
	return nil
}

// releaseDue reports whether it actually released; a skip on a changed
// account is not a release.
func (s *Scheduler) releaseDue(ctx context.Context, escrowID string) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("escrow: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	a, err := lockAccountTx(ctx, tx, escrowID)
	if err != nil {
		return false, err
	}
	// The account may have been disputed or released between the scan and
	// this lock. Skip quietly.
	if a.Status != StatusFunded {
		return false, nil
	}
	var due bool
	if err := tx.QueryRow(ctx, `
        SELECT auto_release_date <= now() FROM escrow_accounts WHERE id=$1
    `, escrowID).Scan(&due); err != nil {
		return false, fmt.Errorf("escrow: re-check due date: %w", err)
	}
	if !due {
		return false, nil
	}

	if err := s.custodian.releaseTx(ctx, tx, ReleaseParams{
		EscrowID:   escrowID,
		Type:       ReleaseFull,
		ApprovedBy: "auto",
		Reason:     "auto-release window elapsed",
	}); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("escrow: commit auto-release: %w", err)
	}
	return true, nil
}
