package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"caseflow/arbiter"
	"caseflow/auth"
	"caseflow/cases"
	"caseflow/decision"
	"caseflow/dispute"
	"caseflow/escrow"
	"caseflow/evidence"
	"caseflow/settlement"
	"caseflow/voting"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

// statusFor maps domain sentinels onto HTTP statuses. The taxonomy is fixed:
// not-found, conflict (someone else already completed this), validation,
// authorization. Anything unmapped is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, cases.ErrNotFound),
		errors.Is(err, arbiter.ErrNotFound),
		errors.Is(err, evidence.ErrNotFound),
		errors.Is(err, evidence.ErrCaseNotFound),
		errors.Is(err, escrow.ErrNotFound),
		errors.Is(err, decision.ErrNotFound),
		errors.Is(err, dispute.ErrNotFound),
		errors.Is(err, auth.ErrUserNotFound):
		return http.StatusNotFound

	case errors.Is(err, cases.ErrInvalidTransition),
		errors.Is(err, cases.ErrInvalidPhase),
		errors.Is(err, cases.ErrAppealDeadline),
		errors.Is(err, escrow.ErrInvalidState),
		errors.Is(err, escrow.ErrAlreadyReleased),
		errors.Is(err, evidence.ErrAlreadyRuled),
		errors.Is(err, voting.ErrVotingClosed),
		errors.Is(err, decision.ErrAlreadyDecided),
		errors.Is(err, dispute.ErrBadStatus),
		errors.Is(err, auth.ErrDuplicateEmail):
		return http.StatusConflict

	case errors.Is(err, escrow.ErrInsufficientFunds),
		errors.Is(err, escrow.ErrInvalidMilestones),
		errors.Is(err, settlement.ErrMismatch),
		errors.Is(err, voting.ErrInvalidOption),
		errors.Is(err, auth.ErrWeakPassword):
		return http.StatusUnprocessableEntity

	case errors.Is(err, voting.ErrUnauthorized),
		errors.Is(err, evidence.ErrUnauthorized):
		return http.StatusForbidden

	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized

	default:
		return http.StatusInternalServerError
	}
}
