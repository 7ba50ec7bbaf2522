package test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"caseflow/cases"
	"caseflow/decision"
	"caseflow/dispute"
	"caseflow/escrow"
	"caseflow/settlement"
	"caseflow/test/infra"
	"caseflow/voting"
)

func newGuardPool(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	var (
		pgC        *infra.PGContainer
		dsn        string
		err        error
		usedShared bool
	)
	if env := os.Getenv("STRESS_TEST_PG_DSN"); env != "" {
		dsn = env
		usedShared = true
		pgC = &infra.PGContainer{}
	} else if dockerAvailable(ctx) {
		pgC, dsn, err = infra.StartPostgres16(ctx, "")
		if err != nil {
			t.Fatalf("start postgres: %v", err)
		}
	} else {
		dsn, err = infra.InitLocalDatabase(ctx)
		if err != nil {
			t.Fatalf("init local database: %v", err)
		}
		pgC = &infra.PGContainer{}
	}
	t.Cleanup(func() { pgC.Terminate(context.Background()) })

	pool, teardown, err := infra.ApplyMigrations(ctx, dsn, usedShared)
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	t.Cleanup(func() {
		if err := teardown(context.Background()); err != nil {
			t.Logf("teardown warning: %v", err)
		}
		pool.Close()
	})
	return pool
}

// TestAutoReleaseSkipsDisputedAccount freezes a funded account whose
// auto-release date already passed, then runs a scheduler tick. The dispute
// must win: the account stays frozen and nothing hits the ledger, while a
// plain overdue account on the same tick does release.
func TestAutoReleaseSkipsDisputedAccount(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()
	pool := newGuardPool(t, ctx)

	buyer := seedUser(t, ctx, pool, "party", "Guard Buyer")
	seller := seedUser(t, ctx, pool, "party", "Guard Seller")

	escrowRepo := escrow.NewRepository(pool)
	custodian := escrow.NewCustodian(pool, escrowRepo, 14)
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	scheduler := escrow.NewScheduler(pool, custodian, time.Minute, quiet)

	newOverdue := func(project string) string {
		acct, err := custodian.Create(ctx, escrow.CreateParams{
			ProjectID: project, SellerID: seller, BuyerID: buyer, Amount: 500,
		})
		if err != nil {
			t.Fatalf("create escrow: %v", err)
		}
		if err := custodian.Fund(ctx, acct.ID); err != nil {
			t.Fatalf("fund escrow: %v", err)
		}
		if _, err := pool.Exec(ctx, `
            UPDATE escrow_accounts SET auto_release_date = now() - interval '1 day' WHERE id=$1
        `, acct.ID); err != nil {
			t.Fatalf("backdate escrow: %v", err)
		}
		return acct.ID
	}

	disputedID := newOverdue("proj-disputed")
	if err := custodian.Dispute(ctx, disputedID, "ext-dispute-1", buyer); err != nil {
		t.Fatalf("dispute escrow: %v", err)
	}
	releasableID := newOverdue("proj-quiet")

	if err := scheduler.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	frozen, err := escrowRepo.GetByID(ctx, disputedID)
	if err != nil {
		t.Fatalf("reload disputed escrow: %v", err)
	}
	if frozen.Status != escrow.StatusDisputed {
		t.Fatalf("disputed escrow must stay frozen, got %s", frozen.Status)
	}
	if len(frozen.Releases) != 0 {
		t.Fatalf("disputed escrow must have no ledger rows, got %+v", frozen.Releases)
	}

	released, err := escrowRepo.GetByID(ctx, releasableID)
	if err != nil {
		t.Fatalf("reload releasable escrow: %v", err)
	}
	if released.Status != escrow.StatusReleased {
		t.Fatalf("overdue funded escrow should release, got %s", released.Status)
	}
}

// TestSettleIgnoresSupersededDecision files an appeal between the decision
// read and the settlement transaction. The orchestrator must notice the
// decision is no longer live and move nothing.
func TestSettleIgnoresSupersededDecision(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()
	pool := newGuardPool(t, ctx)

	claimant := seedUser(t, ctx, pool, "party", "Stale Claimant")
	respondent := seedUser(t, ctx, pool, "party", "Stale Respondent")
	solo := seedUser(t, ctx, pool, "arbiter", "Stale Arbiter")

	escrowRepo := escrow.NewRepository(pool)
	custodian := escrow.NewCustodian(pool, escrowRepo, 14)
	disputes := dispute.NewService(dispute.NewRepository(pool))
	caseRepo := cases.NewRepository(pool)
	ledger := cases.NewLedger(pool)
	coordinator := voting.NewCoordinator(pool)
	decisions := decision.NewRepository(pool)
	orchestrator := settlement.NewOrchestrator(pool, custodian, decisions)

	rec, err := disputes.Open(ctx, dispute.OpenParams{
		ProjectID:  "proj-stale",
		RaisedBy:   claimant,
		Respondent: respondent,
		Summary:    "scope disagreement",
	})
	if err != nil {
		t.Fatalf("open dispute: %v", err)
	}
	acct, err := custodian.Create(ctx, escrow.CreateParams{
		ProjectID: "proj-stale", SellerID: respondent, BuyerID: claimant, Amount: 800,
	})
	if err != nil {
		t.Fatalf("create escrow: %v", err)
	}
	if err := custodian.Fund(ctx, acct.ID); err != nil {
		t.Fatalf("fund escrow: %v", err)
	}
	if err := custodian.Dispute(ctx, acct.ID, rec.ID, claimant); err != nil {
		t.Fatalf("dispute escrow: %v", err)
	}

	filed, err := caseRepo.Create(ctx, cases.CreateParams{
		DisputeID: rec.ID,
		Parties: []cases.CreatePartyParams{
			{UserID: claimant, Role: cases.RoleClaimant},
			{UserID: respondent, Role: cases.RoleRespondent},
		},
		ArbiterIDs:    []string{solo},
		LeadArbiterID: solo,
		FiledBy:       claimant,
	})
	if err != nil {
		t.Fatalf("file case: %v", err)
	}
	if err := ledger.TransitionStatus(ctx, filed.ID, solo, cases.StatusEvidenceCollection); err != nil {
		t.Fatalf("to evidence_collection: %v", err)
	}
	if _, err := ledger.ScheduleHearing(ctx, cases.ScheduleHearingParams{
		CaseID:      filed.ID,
		ActorID:     solo,
		ScheduledAt: time.Now().Add(time.Hour),
		DurationMin: 30,
	}); err != nil {
		t.Fatalf("schedule hearing: %v", err)
	}
	if err := ledger.TransitionStatus(ctx, filed.ID, solo, cases.StatusInHearing); err != nil {
		t.Fatalf("to in_hearing: %v", err)
	}
	if err := ledger.TransitionStatus(ctx, filed.ID, solo, cases.StatusVoting); err != nil {
		t.Fatalf("to voting: %v", err)
	}

	// A one-arbiter panel decides on the first ballot.
	res, err := coordinator.SubmitVote(ctx, voting.SubmitVoteParams{
		CaseID:    filed.ID,
		ArbiterID: solo,
		Decision:  voting.OptionRespondent,
		Reasoning: "work was delivered",
	})
	if err != nil {
		t.Fatalf("vote: %v", err)
	}
	if !res.QuorumMet || res.Decision == nil {
		t.Fatal("single ballot should decide the case")
	}
	stale := *res.Decision

	// The appeal lands before settlement runs, superseding the decision.
	if err := ledger.Appeal(ctx, filed.ID, claimant, "ballot ignored key exhibit"); err != nil {
		t.Fatalf("appeal: %v", err)
	}

	if err := orchestrator.SettleDecision(ctx, stale); err != nil {
		t.Fatalf("settle superseded decision: %v", err)
	}

	after, err := escrowRepo.GetByID(ctx, acct.ID)
	if err != nil {
		t.Fatalf("reload escrow: %v", err)
	}
	if after.Status != escrow.StatusDisputed {
		t.Fatalf("escrow must stay frozen, got %s", after.Status)
	}
	if len(after.Releases) != 0 {
		t.Fatalf("no funds may move on a superseded decision, got %+v", after.Releases)
	}
	var settled int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM settlements WHERE case_id=$1`, filed.ID).Scan(&settled); err != nil {
		t.Fatalf("count settlements: %v", err)
	}
	if settled != 0 {
		t.Fatalf("expected no settlement row, got %d", settled)
	}
}
