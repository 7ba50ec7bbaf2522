package dispute

import (
	"context"
	"fmt"
	"strings"
)

type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

type OpenParams struct {
	ProjectID  string
	RaisedBy   string
	Respondent string
	Summary    string
}

// Open records a new dispute intake. The raising party names the respondent;
// both then appear as parties when a case is filed for the dispute.
func (s *Service) Open(ctx context.Context, params OpenParams) (Record, error) {
	if strings.TrimSpace(params.ProjectID) == "" {
		return Record{}, fmt.Errorf("%w: project id required", ErrBadStatus)
	}
	if params.RaisedBy == "" || params.Respondent == "" {
		return Record{}, fmt.Errorf("%w: both parties required", ErrBadStatus)
	}
	if params.RaisedBy == params.Respondent {
		return Record{}, fmt.Errorf("%w: cannot dispute yourself", ErrBadStatus)
	}
	return s.repo.Create(ctx, params.ProjectID, params.RaisedBy, params.Respondent, params.Summary)
}

func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	return s.repo.ListByUser(ctx, userID)
}

// MarkInArbitration ties the dispute to a filed case.
func (s *Service) MarkInArbitration(ctx context.Context, id string) (Record, error) {
	return s.repo.MarkInArbitration(ctx, id)
}
