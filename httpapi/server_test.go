package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"caseflow/auth"
	"caseflow/cases"
	"caseflow/escrow"
	"caseflow/pkg/logger"
	"caseflow/settlement"
	"caseflow/voting"
)

type fakeAuthRepo struct {
	usersByEmail map[string]auth.User
	usersByID    map[string]auth.User
	nextID       int
}

func newFakeAuthRepo() *fakeAuthRepo {
	return &fakeAuthRepo{
		usersByEmail: map[string]auth.User{},
		usersByID:    map[string]auth.User{},
		nextID:       1,
	}
}

func (f *fakeAuthRepo) CreateUser(_ context.Context, params auth.CreateUserParams) (auth.User, error) {
	key := strings.ToLower(params.Email)
	if _, exists := f.usersByEmail[key]; exists {
		return auth.User{}, auth.ErrDuplicateEmail
	}
	u := auth.User{
		ID:           fmt.Sprintf("user-%d", f.nextID),
		Email:        params.Email,
		FullName:     params.FullName,
		PasswordHash: params.PasswordHash,
		Role:         params.Role,
		CreatedAt:    time.Now().UTC(),
	}
	f.nextID++
	f.usersByEmail[key] = u
	f.usersByID[u.ID] = u
	return u, nil
}

func (f *fakeAuthRepo) GetUserByEmail(_ context.Context, email string) (auth.User, error) {
	u, ok := f.usersByEmail[strings.ToLower(email)]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeAuthRepo) GetUserByID(_ context.Context, id string) (auth.User, error) {
	u, ok := f.usersByID[id]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	return u, nil
}

func newTestServer() *Server {
	return NewServer(Deps{Auth: auth.NewService(newFakeAuthRepo(), "test-secret")})
}

func TestRegisterLoginAndAuthMiddleware(t *testing.T) {
	srv := newTestServer()
	router := srv.Router()

	register := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(
		`{"email":"arb@example.com","password":"supersafe","full_name":"Arbiter One","role":"arbiter"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, register)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201 got %d: %s", rec.Code, rec.Body.String())
	}

	login := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(
		`{"email":"arb@example.com","password":"supersafe"}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, login)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode login body: %v", err)
	}
	if body.Token == "" {
		t.Fatal("login: expected token")
	}

	userID, role, err := srv.auth.VerifyToken(body.Token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if role != auth.RoleArbiter {
		t.Fatalf("expected arbiter role, got %s", role)
	}
	if userID == "" {
		t.Fatal("expected user id in token")
	}
}

func TestProtectedRoutesRejectMissingToken(t *testing.T) {
	router := newTestServer().Router()

	for _, path := range []string{
		"/api/v1/cases/00000000-0000-0000-0000-000000000000",
		"/api/v1/escrows/00000000-0000-0000-0000-000000000000",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 got %d", path, rec.Code)
		}
	}
}

func TestRoleGateBlocksParties(t *testing.T) {
	srv := newTestServer()
	router := srv.Router()

	register := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(
		`{"email":"party@example.com","password":"supersafe","full_name":"Party One","role":"party"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, register)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201 got %d", rec.Code)
	}

	login := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(
		`{"email":"party@example.com","password":"supersafe"}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, login)
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode login body: %v", err)
	}

	vote := httptest.NewRequest(http.MethodPost, "/api/v1/cases/abc/votes", strings.NewReader(`{"decision":"claimant"}`))
	vote.Header.Set("Authorization", "Bearer "+body.Token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, vote)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("vote as party: expected 403 got %d", rec.Code)
	}
}

func TestCaseContextTagsRequests(t *testing.T) {
	r := chi.NewRouter()
	var got string
	r.Route("/cases/{case_id}", func(r chi.Router) {
		r.Use(caseContext)
		r.Get("/", func(_ http.ResponseWriter, req *http.Request) {
			got, _ = req.Context().Value(logger.CaseIDKey).(string)
		})
	})

	req := httptest.NewRequest(http.MethodGet, "/cases/c-42", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)
	if got != "c-42" {
		t.Fatalf("expected case id c-42 in context, got %q", got)
	}
}

func TestStatusForMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{cases.ErrNotFound, http.StatusNotFound},
		{cases.ErrInvalidTransition, http.StatusConflict},
		{cases.ErrAppealDeadline, http.StatusConflict},
		{escrow.ErrInvalidState, http.StatusConflict},
		{escrow.ErrAlreadyReleased, http.StatusConflict},
		{escrow.ErrInsufficientFunds, http.StatusUnprocessableEntity},
		{escrow.ErrInvalidMilestones, http.StatusUnprocessableEntity},
		{settlement.ErrMismatch, http.StatusUnprocessableEntity},
		{voting.ErrUnauthorized, http.StatusForbidden},
		{voting.ErrVotingClosed, http.StatusConflict},
		{auth.ErrInvalidCredentials, http.StatusUnauthorized},
		{fmt.Errorf("wrapped: %w", escrow.ErrNotFound), http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
