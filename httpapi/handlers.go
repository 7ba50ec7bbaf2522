package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"caseflow/arbiter"
	"caseflow/auth"
	"caseflow/cases"
	"caseflow/decision"
	"caseflow/dispute"
	"caseflow/escrow"
	"caseflow/evidence"
	"caseflow/pkg/logger"
	"caseflow/voting"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	user, err := s.auth.Register(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id": user.ID, "email": user.Email, "role": user.Role,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	res, err := s.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token": res.Token,
		"user":  map[string]any{"id": res.User.ID, "email": res.User.Email, "role": res.User.Role},
	})
}

type createCaseRequest struct {
	DisputeID string `json:"dispute_id"`
	Parties   []struct {
		UserID string `json:"user_id"`
		Role   string `json:"role"`
		Claims []struct {
			Description string   `json:"description"`
			Amount      *float64 `json:"amount"`
		} `json:"claims"`
	} `json:"parties"`
	ArbiterIDs    []string `json:"arbiter_ids"`
	LeadArbiterID string   `json:"lead_arbiter_id"`
}

func (s *Server) handleCreateCase(w http.ResponseWriter, r *http.Request) {
	var req createCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	params := cases.CreateParams{
		DisputeID:     req.DisputeID,
		ArbiterIDs:    req.ArbiterIDs,
		LeadArbiterID: req.LeadArbiterID,
		FiledBy:       actorFrom(r.Context()).UserID,
	}
	for _, p := range req.Parties {
		party := cases.CreatePartyParams{UserID: p.UserID, Role: cases.PartyRole(p.Role)}
		for _, c := range p.Claims {
			party.Claims = append(party.Claims, cases.Claim{Description: c.Description, Amount: c.Amount})
		}
		params.Parties = append(params.Parties, party)
	}
	created, err := s.caseRepo.Create(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}
	// Dispute ids may reference intake records here or on external systems;
	// only local ones get flagged.
	if _, err := s.disputes.MarkInArbitration(r.Context(), req.DisputeID); err != nil &&
		!errors.Is(err, dispute.ErrNotFound) {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, caseView(created))
}

func (s *Server) handleOpenDispute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectID  string `json:"project_id"`
		Respondent string `json:"respondent"`
		Summary    string `json:"summary"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	rec, err := s.disputes.Open(r.Context(), dispute.OpenParams{
		ProjectID:  req.ProjectID,
		RaisedBy:   actorFrom(r.Context()).UserID,
		Respondent: req.Respondent,
		Summary:    req.Summary,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, disputeView(rec))
}

func (s *Server) handleGetDispute(w http.ResponseWriter, r *http.Request) {
	rec, err := s.disputes.Get(r.Context(), chi.URLParam(r, "dispute_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, disputeView(rec))
}

func (s *Server) handleUserDisputes(w http.ResponseWriter, r *http.Request) {
	list, err := s.disputes.ListByUser(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]map[string]any, 0, len(list))
	for _, rec := range list {
		views = append(views, disputeView(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"disputes": views})
}

func (s *Server) handleGetCase(w http.ResponseWriter, r *http.Request) {
	c, err := s.caseRepo.GetByID(r.Context(), chi.URLParam(r, "case_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, caseView(c))
}

func (s *Server) handleCasesByArbiter(w http.ResponseWriter, r *http.Request) {
	list, err := s.caseRepo.ListByArbiter(r.Context(), chi.URLParam(r, "arbiter_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]map[string]any, 0, len(list))
	for _, c := range list {
		views = append(views, caseView(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"cases": views})
}

func (s *Server) handleListArbiters(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := s.roster.List(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]map[string]any, 0, len(list))
	for _, p := range list {
		views = append(views, arbiterView(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"arbiters": views})
}

func (s *Server) handleGetArbiter(w http.ResponseWriter, r *http.Request) {
	p, err := s.roster.GetByID(r.Context(), chi.URLParam(r, "arbiter_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, arbiterView(p))
}

func (s *Server) handleCaseMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := s.caseRepo.Metrics(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	appealRate := 0.0
	if m.DecidedCases > 0 {
		appealRate = float64(m.AppealedCases) / float64(m.DecidedCases)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_cases":   m.TotalCases,
		"decided_cases": m.DecidedCases,
		"closed_cases":  m.ClosedCases,
		"appeal_rate":   appealRate,
	})
}

func (s *Server) handleTransitionStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	err := s.ledger.TransitionStatus(r.Context(), chi.URLParam(r, "case_id"), actorFrom(r.Context()).UserID, cases.Status(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}
	logger.Info(r.Context(), "case status transitioned", "to", req.Status)
	writeJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

func (s *Server) handleTransitionPhase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phase string `json:"phase"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	err := s.ledger.TransitionPhase(r.Context(), chi.URLParam(r, "case_id"), actorFrom(r.Context()).UserID, cases.Phase(req.Phase))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"phase": req.Phase})
}

func (s *Server) handleScheduleHearing(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScheduledAt  time.Time `json:"scheduled_at"`
		DurationMin  int       `json:"duration_min"`
		Participants []string  `json:"participants"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	h, err := s.ledger.ScheduleHearing(r.Context(), cases.ScheduleHearingParams{
		CaseID:       chi.URLParam(r, "case_id"),
		ActorID:      actorFrom(r.Context()).UserID,
		ScheduledAt:  req.ScheduledAt,
		DurationMin:  req.DurationMin,
		Participants: req.Participants,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":           h.ID,
		"scheduled_at": h.ScheduledAt,
		"duration_min": h.DurationMin,
	})
}

func (s *Server) handleAppeal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Grounds string `json:"grounds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	err := s.ledger.Appeal(r.Context(), chi.URLParam(r, "case_id"), actorFrom(r.Context()).UserID, req.Grounds)
	if err != nil {
		writeError(w, err)
		return
	}
	logger.Info(r.Context(), "appeal filed")
	writeJSON(w, http.StatusOK, map[string]string{"status": string(cases.StatusAppealed)})
}

func (s *Server) handleSubmitEvidence(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type        string `json:"type"`
		Description string `json:"description"`
		ContentHash string `json:"content_hash"`
		ContentURL  string `json:"content_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	item, err := s.register.Submit(r.Context(), evidence.SubmitParams{
		CaseID:      chi.URLParam(r, "case_id"),
		SubmittedBy: actorFrom(r.Context()).UserID,
		Type:        req.Type,
		Description: req.Description,
		ContentHash: req.ContentHash,
		ContentURL:  req.ContentURL,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, evidenceView(item))
}

func (s *Server) handleListEvidence(w http.ResponseWriter, r *http.Request) {
	items, err := s.register.Repo().ListByCase(r.Context(), chi.URLParam(r, "case_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]map[string]any, 0, len(items))
	for _, item := range items {
		views = append(views, evidenceView(item))
	}
	writeJSON(w, http.StatusOK, map[string]any{"evidence": views})
}

func (s *Server) handleTransferCustody(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FromHolder  string `json:"from_holder"`
		ToHolder    string `json:"to_holder"`
		ContentHash string `json:"content_hash"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	err := s.register.TransferCustody(r.Context(), evidence.TransferParams{
		EvidenceID:  chi.URLParam(r, "evidence_id"),
		FromHolder:  req.FromHolder,
		ToHolder:    req.ToHolder,
		ContentHash: req.ContentHash,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleSetVerification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Verification string `json:"verification"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	err := s.register.SetVerification(r.Context(), chi.URLParam(r, "evidence_id"), evidence.Verification(req.Verification))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"verification": req.Verification})
}

func (s *Server) handleRaiseObjection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Grounds string `json:"grounds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	obj, err := s.register.RaiseObjection(r.Context(), evidence.ObjectionParams{
		EvidenceID: chi.URLParam(r, "evidence_id"),
		RaisedBy:   actorFrom(r.Context()).UserID,
		Grounds:    req.Grounds,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": obj.ID, "grounds": obj.Grounds})
}

func (s *Server) handleRuleOnObjection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Decision string `json:"decision"`
		Reason   string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	err := s.register.RuleOnObjection(r.Context(), evidence.RulingParams{
		ObjectionID: chi.URLParam(r, "objection_id"),
		ArbiterID:   actorFrom(r.Context()).UserID,
		Decision:    req.Decision,
		Reason:      req.Reason,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"decision": req.Decision})
}

type submitVoteRequest struct {
	Decision          string   `json:"decision"`
	Reasoning         string   `json:"reasoning"`
	ClaimsSupported   []string `json:"claims_supported"`
	ClaimsDenied      []string `json:"claims_denied"`
	RecommendedOrders []struct {
		Type        string  `json:"type"`
		Direction   string  `json:"direction"`
		Amount      float64 `json:"amount"`
		Beneficiary string  `json:"beneficiary"`
		Description string  `json:"description"`
	} `json:"recommended_orders"`
}

func (s *Server) handleSubmitVote(w http.ResponseWriter, r *http.Request) {
	var req submitVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	params := voting.SubmitVoteParams{
		CaseID:          chi.URLParam(r, "case_id"),
		ArbiterID:       actorFrom(r.Context()).UserID,
		Decision:        req.Decision,
		Reasoning:       req.Reasoning,
		ClaimsSupported: req.ClaimsSupported,
		ClaimsDenied:    req.ClaimsDenied,
	}
	for _, o := range req.RecommendedOrders {
		params.RecommendedOrders = append(params.RecommendedOrders, decision.Order{
			Type:        o.Type,
			Direction:   o.Direction,
			Amount:      o.Amount,
			Beneficiary: o.Beneficiary,
			Description: o.Description,
		})
	}
	res, err := s.votes.SubmitVote(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}
	if res.QuorumMet {
		logger.Info(r.Context(), "quorum reached, decision issued", "ruling", string(res.Decision.Ruling))
	}
	body := map[string]any{
		"votes_cast": res.VotesCast,
		"panel_size": res.PanelSize,
		"quorum_met": res.QuorumMet,
	}
	if res.Decision != nil {
		body["decision"] = decisionView(*res.Decision)
	}
	writeJSON(w, http.StatusAccepted, body)
}

func (s *Server) handleGetDecision(w http.ResponseWriter, r *http.Request) {
	d, err := s.decisions.GetByCase(r.Context(), chi.URLParam(r, "case_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decisionView(d))
}

func (s *Server) handleCreateEscrow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectID       string  `json:"project_id"`
		SellerID        string  `json:"seller_id"`
		BuyerID         string  `json:"buyer_id"`
		Amount          float64 `json:"amount"`
		Currency        string  `json:"currency"`
		AutoReleaseDays int     `json:"auto_release_days"`
		Milestones      []struct {
			Title      string  `json:"title"`
			Percentage float64 `json:"percentage"`
		} `json:"milestones"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	params := escrow.CreateParams{
		ProjectID:       req.ProjectID,
		SellerID:        req.SellerID,
		BuyerID:         req.BuyerID,
		Amount:          req.Amount,
		Currency:        req.Currency,
		AutoReleaseDays: req.AutoReleaseDays,
	}
	for _, m := range req.Milestones {
		params.Milestones = append(params.Milestones, escrow.MilestoneSpec{Title: m.Title, Percentage: m.Percentage})
	}
	a, err := s.custodian.Create(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, escrowView(a))
}

func (s *Server) handleGetEscrow(w http.ResponseWriter, r *http.Request) {
	a, err := s.escrows.GetByID(r.Context(), chi.URLParam(r, "escrow_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, escrowView(a))
}

func (s *Server) handleUserEscrows(w http.ResponseWriter, r *http.Request) {
	list, err := s.escrows.ListByUser(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]map[string]any, 0, len(list))
	for _, a := range list {
		views = append(views, escrowView(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"escrows": views})
}

func (s *Server) handleFundEscrow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "escrow_id")
	if err := s.custodian.Fund(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	a, err := s.escrows.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, escrowView(a))
}

func (s *Server) handleReleaseFunds(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type        string  `json:"type"`
		Amount      float64 `json:"amount"`
		MilestoneID string  `json:"milestone_id"`
		Reason      string  `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	id := chi.URLParam(r, "escrow_id")
	err := s.custodian.Release(r.Context(), escrow.ReleaseParams{
		EscrowID:    id,
		Type:        req.Type,
		Amount:      req.Amount,
		MilestoneID: req.MilestoneID,
		ApprovedBy:  actorFrom(r.Context()).UserID,
		Reason:      req.Reason,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	a, err := s.escrows.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, escrowView(a))
}

func (s *Server) handleRefundEscrow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	id := chi.URLParam(r, "escrow_id")
	if err := s.custodian.Refund(r.Context(), id, actorFrom(r.Context()).UserID, req.Reason); err != nil {
		writeError(w, err)
		return
	}
	a, err := s.escrows.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, escrowView(a))
}

func (s *Server) handleDisputeEscrow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DisputeID string `json:"dispute_id"`
		Reason    string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	err := s.custodian.Dispute(r.Context(), chi.URLParam(r, "escrow_id"), req.DisputeID, actorFrom(r.Context()).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func caseView(c cases.Case) map[string]any {
	parties := make([]map[string]any, 0, len(c.Parties))
	for _, p := range c.Parties {
		claims := make([]map[string]any, 0, len(p.Claims))
		for _, cl := range p.Claims {
			claims = append(claims, map[string]any{
				"id": cl.ID, "description": cl.Description, "amount": cl.Amount, "status": cl.Status,
			})
		}
		parties = append(parties, map[string]any{"user_id": p.UserID, "role": p.Role, "claims": claims})
	}
	timeline := make([]map[string]any, 0, len(c.Timeline))
	for _, e := range c.Timeline {
		timeline = append(timeline, map[string]any{
			"seq": e.Seq, "type": e.Type, "actor_id": e.ActorID,
			"visibility": e.Visibility, "payload": json.RawMessage(e.Payload), "at": e.CreatedAt,
		})
	}
	return map[string]any{
		"id":              c.ID,
		"case_number":     c.CaseNumber,
		"dispute_id":      c.DisputeID,
		"status":          c.Status,
		"phase":           c.Phase,
		"lead_arbiter_id": c.LeadArbiterID,
		"arbiter_ids":     c.ArbiterIDs,
		"parties":         parties,
		"timeline":        timeline,
		"created_at":      c.CreatedAt,
	}
}

func evidenceView(item evidence.Item) map[string]any {
	return map[string]any{
		"id":           item.ID,
		"case_id":      item.CaseID,
		"type":         item.Type,
		"description":  item.Description,
		"content_hash": item.ContentHash,
		"content_url":  item.ContentURL,
		"verification": item.Verification,
		"admissible":   item.Admissible(),
		"submitted_by": item.SubmittedBy,
		"submitted_at": item.SubmittedAt,
	}
}

func decisionView(d decision.Decision) map[string]any {
	return map[string]any{
		"id":                  d.ID,
		"case_id":             d.CaseID,
		"ruling":              d.Ruling,
		"vote_counts":         d.Summary.Counts,
		"consensus":           d.Summary.Consensus,
		"majority_percentage": d.Summary.MajorityPercentage,
		"findings":            d.Findings,
		"orders":              d.Orders,
		"enforcement_method":  d.Enforcement.Method,
		"appeal_deadline":     d.AppealDeadline,
		"issued_at":           d.IssuedAt,
	}
}

func escrowView(a escrow.Account) map[string]any {
	milestones := make([]map[string]any, 0, len(a.Milestones))
	for _, m := range a.Milestones {
		milestones = append(milestones, map[string]any{
			"id": m.ID, "ord": m.Ord, "title": m.Title,
			"percentage": m.Percentage, "released_at": m.ReleasedAt,
		})
	}
	return map[string]any{
		"id":                a.ID,
		"project_id":        a.ProjectID,
		"dispute_id":        a.DisputeID,
		"seller_id":         a.SellerID,
		"buyer_id":          a.BuyerID,
		"amount":            a.Amount,
		"released_total":    a.ReleasedTotal,
		"currency":          a.Currency,
		"status":            a.Status,
		"auto_release_date": a.AutoReleaseDate,
		"milestones":        milestones,
		"created_at":        a.CreatedAt,
	}
}

func arbiterView(p arbiter.Profile) map[string]any {
	return map[string]any{
		"id":           p.ID,
		"full_name":    p.FullName,
		"email":        p.Email,
		"active_cases": p.ActiveCases,
		"created_at":   p.CreatedAt,
	}
}

func disputeView(rec dispute.Record) map[string]any {
	return map[string]any{
		"id":          rec.ID,
		"project_id":  rec.ProjectID,
		"raised_by":   rec.RaisedBy,
		"respondent":  rec.Respondent,
		"summary":     rec.Summary,
		"status":      rec.Status,
		"created_at":  rec.CreatedAt,
		"resolved_at": rec.ResolvedAt,
	}
}
