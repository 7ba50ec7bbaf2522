package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"caseflow/cases"
	"caseflow/decision"
)

// maxOutboxAttempts moves a message to dead after repeated failures.
const maxOutboxAttempts = 8

// Worker drains the transactional outbox. Each pending message is claimed
// with SKIP LOCKED so multiple workers cooperate, run through its topic
// handler, published to the bus, and marked processed. A failure increments
// attempts and leaves the message pending for the next pass.
type Worker struct {
	pool         *pgxpool.Pool
	publisher    Publisher
	orchestrator *Orchestrator
	interval     time.Duration
	batchSize    int
	log          *slog.Logger
}

func NewWorker(pool *pgxpool.Pool, publisher Publisher, orchestrator *Orchestrator, interval time.Duration, log *slog.Logger) *Worker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Worker{
		pool:         pool,
		publisher:    publisher,
		orchestrator: orchestrator,
		interval:     interval,
		batchSize:    50,
		log:          log,
	}
}

// Run drains the outbox until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for {
				n, err := w.Drain(ctx)
				if err != nil {
					w.log.Error("outbox drain failed", "error", err)
					break
				}
				if n < w.batchSize {
					break
				}
			}
		}
	}
}

type outboxMessage struct {
	ID       string
	Topic    string
	Payload  []byte
	Attempts int
}

// Drain processes one batch of pending messages and reports how many it saw.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("settlement: begin outbox tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
        SELECT id, topic, payload, attempts
        FROM outbox
        WHERE status='pending'
        ORDER BY created_at
        LIMIT $1
        FOR UPDATE SKIP LOCKED
    `, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("settlement: claim outbox batch: %w", err)
	}
	var batch []outboxMessage
	for rows.Next() {
		var m outboxMessage
		if err := rows.Scan(&m.ID, &m.Topic, &m.Payload, &m.Attempts); err != nil {
			rows.Close()
			return 0, fmt.Errorf("settlement: scan outbox message: %w", err)
		}
		batch = append(batch, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("settlement: iterate outbox batch: %w", err)
	}

	for _, m := range batch {
		if err := w.process(ctx, m); err != nil {
			w.log.Error("outbox message failed", "id", m.ID, "topic", m.Topic, "attempts", m.Attempts+1, "error", err)
			status := "pending"
			if m.Attempts+1 >= maxOutboxAttempts {
				status = "dead"
				w.log.Error("outbox message dead-lettered", "id", m.ID, "topic", m.Topic)
			}
			if _, uerr := tx.Exec(ctx, `
                UPDATE outbox SET attempts=attempts+1, last_attempt=now(), status=$2 WHERE id=$1
            `, m.ID, status); uerr != nil {
				return 0, fmt.Errorf("settlement: record outbox failure: %w", uerr)
			}
			continue
		}
		if _, err := tx.Exec(ctx, `
            UPDATE outbox SET status='processed', attempts=attempts+1, last_attempt=now() WHERE id=$1
        `, m.ID); err != nil {
			return 0, fmt.Errorf("settlement: mark processed: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("settlement: commit outbox batch: %w", err)
	}
	return len(batch), nil
}

// process runs the topic's side effect, then publishes. A decided case with
// a linked escrow settles before the decided event goes out, so downstream
// consumers observe funds already moved.
func (w *Worker) process(ctx context.Context, m outboxMessage) error {
	if m.Topic == cases.OutboxTopicCaseDecided && w.orchestrator != nil {
		var body struct {
			CaseID    string `json:"case_id"`
			HasEscrow bool   `json:"has_escrow"`
		}
		if err := json.Unmarshal(m.Payload, &body); err != nil {
			return fmt.Errorf("settlement: decode decided payload: %w", err)
		}
		if body.HasEscrow {
			// A missing live decision means an appeal superseded it after the
			// event was enqueued; the message is stale, not failed.
			err := w.orchestrator.Settle(ctx, body.CaseID)
			if err != nil && !errors.Is(err, ErrNoEscrow) && !errors.Is(err, decision.ErrNotFound) {
				return err
			}
		}
	}
	return w.publisher.Publish(ctx, m.Topic, m.ID, m.Payload)
}
