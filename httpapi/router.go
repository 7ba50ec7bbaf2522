package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"caseflow/arbiter"
	"caseflow/auth"
	"caseflow/cases"
	"caseflow/decision"
	"caseflow/dispute"
	"caseflow/escrow"
	"caseflow/evidence"
	"caseflow/voting"
)

// Server maps the engine's operations onto HTTP 1:1. It holds no state of
// its own; every handler delegates to a domain service.
type Server struct {
	auth      *auth.Service
	ledger    *cases.Ledger
	caseRepo  *cases.Repository
	register  *evidence.Register
	votes     *voting.Coordinator
	decisions *decision.Repository
	custodian *escrow.Custodian
	escrows   *escrow.Repository
	disputes  *dispute.Service
	roster    *arbiter.Service
}

type Deps struct {
	Auth      *auth.Service
	Ledger    *cases.Ledger
	CaseRepo  *cases.Repository
	Register  *evidence.Register
	Votes     *voting.Coordinator
	Decisions *decision.Repository
	Custodian *escrow.Custodian
	Escrows   *escrow.Repository
	Disputes  *dispute.Service
	Roster    *arbiter.Service
}

func NewServer(deps Deps) *Server {
	return &Server{
		auth:      deps.Auth,
		ledger:    deps.Ledger,
		caseRepo:  deps.CaseRepo,
		register:  deps.Register,
		votes:     deps.Votes,
		decisions: deps.Decisions,
		custodian: deps.Custodian,
		escrows:   deps.Escrows,
		disputes:  deps.Disputes,
		roster:    deps.Roster,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/v1/auth/register", s.handleRegister)
	r.Post("/api/v1/auth/login", s.handleLogin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Route("/cases", func(r chi.Router) {
			r.Post("/", s.handleCreateCase)
			r.Get("/metrics", s.handleCaseMetrics)
			r.Route("/{case_id}", func(r chi.Router) {
				r.Use(caseContext)
				r.Get("/", s.handleGetCase)
				r.With(requireRole(auth.RoleArbiter)).Post("/status", s.handleTransitionStatus)
				r.With(requireRole(auth.RoleArbiter)).Post("/phase", s.handleTransitionPhase)
				r.With(requireRole(auth.RoleArbiter)).Post("/hearings", s.handleScheduleHearing)
				r.Post("/appeal", s.handleAppeal)
				r.Post("/evidence", s.handleSubmitEvidence)
				r.Get("/evidence", s.handleListEvidence)
				r.With(requireRole(auth.RoleArbiter)).Post("/votes", s.handleSubmitVote)
				r.Get("/decision", s.handleGetDecision)
			})
		})
		r.Route("/arbiters", func(r chi.Router) {
			r.Get("/", s.handleListArbiters)
			r.Get("/{arbiter_id}", s.handleGetArbiter)
			r.Get("/{arbiter_id}/cases", s.handleCasesByArbiter)
		})

		r.Route("/evidence", func(r chi.Router) {
			r.Post("/{evidence_id}/custody", s.handleTransferCustody)
			r.With(requireRole(auth.RoleArbiter)).Post("/{evidence_id}/verification", s.handleSetVerification)
			r.Post("/{evidence_id}/objections", s.handleRaiseObjection)
		})
		r.With(requireRole(auth.RoleArbiter)).Post("/objections/{objection_id}/ruling", s.handleRuleOnObjection)

		r.Route("/escrows", func(r chi.Router) {
			r.Post("/", s.handleCreateEscrow)
			r.Get("/{escrow_id}", s.handleGetEscrow)
			r.Post("/{escrow_id}/fund", s.handleFundEscrow)
			r.Post("/{escrow_id}/release", s.handleReleaseFunds)
			r.Post("/{escrow_id}/refund", s.handleRefundEscrow)
			r.Post("/{escrow_id}/dispute", s.handleDisputeEscrow)
		})
		r.Get("/users/{user_id}/escrows", s.handleUserEscrows)

		r.Route("/disputes", func(r chi.Router) {
			r.Post("/", s.handleOpenDispute)
			r.Get("/{dispute_id}", s.handleGetDispute)
		})
		r.Get("/users/{user_id}/disputes", s.handleUserDisputes)
	})

	return r
}
