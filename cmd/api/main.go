package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"caseflow/arbiter"
	"caseflow/auth"
	"caseflow/cases"
	"caseflow/config"
	"caseflow/db"
	"caseflow/decision"
	"caseflow/dispute"
	"caseflow/escrow"
	"caseflow/evidence"
	"caseflow/httpapi"
	"caseflow/pkg/logger"
	"caseflow/settlement"
	"caseflow/voting"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath())
	if err != nil {
		log.Fatalf("bootstrap config: %v", err)
	}

	slogger := logger.Init(&logger.Config{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
	})

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("bootstrap database pool: %v", err)
	}
	defer pool.Close()

	authService := auth.NewService(auth.NewRepository(pool), cfg.JWTSecret)
	caseRepo := cases.NewRepository(pool)
	ledger := cases.NewLedger(pool)
	register := evidence.NewRegister(pool)
	decisions := decision.NewRepository(pool)
	escrowRepo := escrow.NewRepository(pool)
	custodian := escrow.NewCustodian(pool, escrowRepo, cfg.AutoReleaseDays)
	coordinator := voting.NewCoordinator(pool)
	disputes := dispute.NewService(dispute.NewRepository(pool))
	roster := arbiter.NewService(arbiter.NewRepository(pool))
	orchestrator := settlement.NewOrchestrator(pool, custodian, decisions)

	var publisher settlement.Publisher = settlement.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = settlement.NewKafkaPublisher(cfg.KafkaBrokers)
	}
	defer publisher.Close()

	worker := settlement.NewWorker(pool, publisher, orchestrator, cfg.OutboxPollInterval, slogger)
	scheduler := escrow.NewScheduler(pool, custodian, cfg.AutoReleaseInterval, slogger)

	api := httpapi.NewServer(httpapi.Deps{
		Auth:      authService,
		Ledger:    ledger,
		CaseRepo:  caseRepo,
		Register:  register,
		Votes:     coordinator,
		Decisions: decisions,
		Custodian: custodian,
		Escrows:   escrowRepo,
		Disputes:  disputes,
		Roster:    roster,
	})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	g.Go(func() error {
		slogger.Info("http server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("run: %v", err)
	}
}

func configPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return "configs/default.yaml"
}
