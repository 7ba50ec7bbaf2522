package test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
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

// TestFullResolutionFlow walks one dispute end to end: escrow funded and
// frozen, case filed and driven to voting, a 2-1 panel vote for the
// respondent, and settlement releasing the full escrow to the seller while
// the case moves to enforcing.
func TestFullResolutionFlow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

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
	defer pgC.Terminate(context.Background())

	pool, teardown, err := infra.ApplyMigrations(ctx, dsn, usedShared)
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	defer pool.Close()
	defer func() {
		if err := teardown(context.Background()); err != nil {
			t.Logf("teardown warning: %v", err)
		}
	}()

	claimant := seedUser(t, ctx, pool, "party", "Flow Claimant")
	respondent := seedUser(t, ctx, pool, "party", "Flow Respondent")
	arbiters := []string{
		seedUser(t, ctx, pool, "arbiter", "Flow Arbiter 0"),
		seedUser(t, ctx, pool, "arbiter", "Flow Arbiter 1"),
		seedUser(t, ctx, pool, "arbiter", "Flow Arbiter 2"),
	}

	escrowRepo := escrow.NewRepository(pool)
	custodian := escrow.NewCustodian(pool, escrowRepo, 14)
	disputes := dispute.NewService(dispute.NewRepository(pool))
	caseRepo := cases.NewRepository(pool)
	ledger := cases.NewLedger(pool)
	coordinator := voting.NewCoordinator(pool)
	decisions := decision.NewRepository(pool)
	orchestrator := settlement.NewOrchestrator(pool, custodian, decisions)
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	worker := settlement.NewWorker(pool, settlement.NopPublisher{}, orchestrator, time.Second, quiet)

	// A funded escrow, then a dispute raised against it.
	rec, err := disputes.Open(ctx, dispute.OpenParams{
		ProjectID:  "proj-logo-redesign",
		RaisedBy:   claimant,
		Respondent: respondent,
		Summary:    "deliverables rejected",
	})
	if err != nil {
		t.Fatalf("open dispute: %v", err)
	}

	acct, err := custodian.Create(ctx, escrow.CreateParams{
		ProjectID: "proj-logo-redesign",
		SellerID:  respondent,
		BuyerID:   claimant,
		Amount:    1000,
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
	frozen, err := escrowRepo.GetByID(ctx, acct.ID)
	if err != nil {
		t.Fatalf("reload escrow: %v", err)
	}
	if frozen.Status != escrow.StatusDisputed {
		t.Fatalf("expected disputed escrow, got %s", frozen.Status)
	}

	// File the case and walk it into the voting window.
	amount := 1000.0
	filed, err := caseRepo.Create(ctx, cases.CreateParams{
		DisputeID: rec.ID,
		Parties: []cases.CreatePartyParams{
			{UserID: claimant, Role: cases.RoleClaimant, Claims: []cases.Claim{
				{Description: "refund for rejected deliverables", Amount: &amount},
			}},
			{UserID: respondent, Role: cases.RoleRespondent},
		},
		ArbiterIDs:    arbiters,
		LeadArbiterID: arbiters[0],
		FiledBy:       claimant,
	})
	if err != nil {
		t.Fatalf("file case: %v", err)
	}

	if err := ledger.TransitionStatus(ctx, filed.ID, arbiters[0], cases.StatusEvidenceCollection); err != nil {
		t.Fatalf("to evidence_collection: %v", err)
	}
	if _, err := ledger.ScheduleHearing(ctx, cases.ScheduleHearingParams{
		CaseID:      filed.ID,
		ActorID:     arbiters[0],
		ScheduledAt: time.Now().Add(time.Hour),
		DurationMin: 60,
	}); err != nil {
		t.Fatalf("schedule hearing: %v", err)
	}
	if err := ledger.TransitionStatus(ctx, filed.ID, arbiters[0], cases.StatusInHearing); err != nil {
		t.Fatalf("to in_hearing: %v", err)
	}
	if err := ledger.TransitionStatus(ctx, filed.ID, arbiters[0], cases.StatusVoting); err != nil {
		t.Fatalf("to voting: %v", err)
	}

	// 2-1 for the respondent; the third ballot trips quorum.
	votes := []struct {
		arbiter string
		option  string
	}{
		{arbiters[0], voting.OptionRespondent},
		{arbiters[1], voting.OptionClaimant},
		{arbiters[2], voting.OptionRespondent},
	}
	var final voting.SubmitResult
	for _, v := range votes {
		final, err = coordinator.SubmitVote(ctx, voting.SubmitVoteParams{
			CaseID:    filed.ID,
			ArbiterID: v.arbiter,
			Decision:  v.option,
			Reasoning: "work met the agreed scope",
		})
		if err != nil {
			t.Fatalf("vote by %s: %v", v.arbiter, err)
		}
	}
	if !final.QuorumMet {
		t.Fatal("third ballot should reach quorum")
	}
	if final.Decision == nil {
		t.Fatal("quorum should issue a decision")
	}
	if final.Decision.Ruling != decision.RulingRespondentFavor {
		t.Fatalf("expected respondent_favor, got %s", final.Decision.Ruling)
	}
	if math.Abs(final.Decision.Summary.MajorityPercentage-200.0/3) > 0.01 {
		t.Fatalf("expected ~66.7%% majority, got %f", final.Decision.Summary.MajorityPercentage)
	}
	if final.Decision.Enforcement.Method != decision.EnforcementSmartContract {
		t.Fatalf("escrow-linked case must enforce via smart_contract, got %s", final.Decision.Enforcement.Method)
	}
	if want := final.Decision.IssuedAt.Add(decision.AppealWindow); !final.Decision.AppealDeadline.Equal(want) {
		t.Fatalf("expected appeal deadline %v, got %v", want, final.Decision.AppealDeadline)
	}

	// The outbox worker settles the decided case before publishing.
	for drained := 1; drained > 0; {
		if drained, err = worker.Drain(ctx); err != nil {
			t.Fatalf("drain outbox: %v", err)
		}
	}

	settled, err := escrowRepo.GetByID(ctx, acct.ID)
	if err != nil {
		t.Fatalf("reload escrow: %v", err)
	}
	if settled.Status != escrow.StatusReleased {
		t.Fatalf("expected released escrow, got %s", settled.Status)
	}
	if math.Abs(settled.ReleasedTotal-1000) > 0.01 {
		t.Fatalf("expected full release, got %f", settled.ReleasedTotal)
	}
	if settled.ClosedAt == nil {
		t.Fatal("released escrow must be closed")
	}
	if len(settled.Releases) != 1 || settled.Releases[0].Kind != escrow.KindRelease {
		t.Fatalf("expected one release ledger row, got %+v", settled.Releases)
	}

	after, err := caseRepo.GetByID(ctx, filed.ID)
	if err != nil {
		t.Fatalf("reload case: %v", err)
	}
	if after.Status != cases.StatusEnforcing {
		t.Fatalf("expected enforcing case, got %s", after.Status)
	}
	if after.Phase != cases.PhaseEnforcement {
		t.Fatalf("expected enforcement phase, got %s", after.Phase)
	}

	resolved, err := disputes.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("reload dispute: %v", err)
	}
	if resolved.Status != dispute.StatusResolved {
		t.Fatalf("expected resolved dispute, got %s", resolved.Status)
	}

	var pending int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM outbox WHERE status='pending'`).Scan(&pending); err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	if pending != 0 {
		t.Fatalf("expected drained outbox, %d pending", pending)
	}

	// An appeal reopens the case, but the panel may not vote until the case
	// re-enters through hearing_scheduled.
	if err := ledger.TransitionStatus(ctx, filed.ID, arbiters[0], cases.StatusClosed); err != nil {
		t.Fatalf("to closed: %v", err)
	}
	if err := ledger.Appeal(ctx, filed.ID, claimant, "new evidence surfaced"); err != nil {
		t.Fatalf("appeal: %v", err)
	}
	_, err = coordinator.SubmitVote(ctx, voting.SubmitVoteParams{
		CaseID:    filed.ID,
		ArbiterID: arbiters[1],
		Decision:  voting.OptionClaimant,
		Reasoning: "grounds warrant a second look",
	})
	if !errors.Is(err, voting.ErrVotingClosed) {
		t.Fatalf("vote on appealed case: expected ErrVotingClosed, got %v", err)
	}
}

func seedUser(t *testing.T, ctx context.Context, pool *pgxpool.Pool, role, name string) string {
	t.Helper()
	var id string
	if err := pool.QueryRow(ctx, `
        INSERT INTO users (email, full_name, role) VALUES ($1,$2,$3) RETURNING id
    `, fmt.Sprintf("flow%d@example.com", rand.Int63()), name, role).Scan(&id); err != nil {
		t.Fatalf("seed user %s: %v", name, err)
	}
	return id
}
