package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_votes_within_panel",
			SQL: `SELECT v.case_id, COUNT(*) AS votes,
                         (SELECT COUNT(*) FROM case_arbiters ca WHERE ca.case_id = v.case_id) AS panel
                  FROM votes v
                  GROUP BY v.case_id
                  HAVING COUNT(*) > (SELECT COUNT(*) FROM case_arbiters ca WHERE ca.case_id = v.case_id)`,
		},
		{
			Name: "O2_single_live_decision",
			SQL: `SELECT case_id, COUNT(*) FROM decisions
                  WHERE superseded_at IS NULL
                  GROUP BY case_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O3_decided_atomicity",
			SQL: `SELECT c.id, c.status FROM cases c
                  JOIN decisions d ON d.case_id = c.id AND d.superseded_at IS NULL
                  WHERE c.status IN ('filed','evidence_collection','hearing_scheduled','in_hearing','voting')
                  UNION ALL
                  SELECT c.id, c.status FROM cases c
                  WHERE c.status IN ('decided','enforcing')
                    AND NOT EXISTS (SELECT 1 FROM decisions d WHERE d.case_id = c.id AND d.superseded_at IS NULL)`,
		},
		{
			Name: "O4_timeline_seq_monotonic",
			SQL: `WITH seqs AS (
                      SELECT case_id, seq,
                             LAG(seq) OVER (PARTITION BY case_id ORDER BY seq) AS prev
                      FROM timeline_events)
                  SELECT * FROM seqs WHERE prev IS NOT NULL AND seq <= prev`,
		},
		{
			Name: "O5_released_within_amount",
			SQL: `SELECT id, amount, released_total FROM escrow_accounts
                  WHERE released_total > amount + 0.01`,
		},
		{
			Name: "O6_ledger_matches_released_total",
			SQL: `SELECT e.id, e.released_total, COALESCE(SUM(r.amount),0) AS ledger_sum
                  FROM escrow_accounts e
                  LEFT JOIN escrow_releases r ON r.escrow_id = e.id AND r.kind = 'release'
                  GROUP BY e.id
                  HAVING ABS(e.released_total - COALESCE(SUM(r.amount),0)) > 0.01`,
		},
		{
			Name: "O7_terminal_escrow_closed",
			SQL: `SELECT id, status FROM escrow_accounts
                  WHERE status IN ('released','refunded','cancelled') AND closed_at IS NULL`,
		},
		{
			Name: "O8_milestone_percentages",
			SQL: `SELECT escrow_id, SUM(percentage) FROM escrow_milestones
                  GROUP BY escrow_id HAVING ABS(SUM(percentage) - 100) > 0.01`,
		},
		{
			Name: "O9_outbox_not_stuck",
			SQL: `SELECT id, topic, attempts FROM outbox
                  WHERE status NOT IN ('processed','dead')
                    AND now() - created_at > interval '5 minutes'`,
		},
		{
			Name: "O10_timeline_append_only_guard",
			SQL: `SELECT 'missing_no_mutate_trigger' AS detail
                  WHERE NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname='no_mutate_timeline')`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
