// Package service provides the read-side query layer backing cmd/statusapi,
// composing the run-metadata and relational repositories without re-running
// any pipeline logic, in the style of the teacher's SegmentationService.
package service

import (
	"context"

	"statsingest/internal/errs"
	"statsingest/internal/model"
	"statsingest/internal/repository"
)

// RunService answers "what is the state of run X" and "what are user Y's
// statistics" by delegating to the same repositories the pipeline writes
// through.
type RunService struct {
	runs  repository.RunRepository
	users repository.UserRepository
}

func NewRunService(runs repository.RunRepository, users repository.UserRepository) *RunService {
	return &RunService{runs: runs, users: users}
}

// RunStatusResponse is the JSON-facing view of a run, leaving out the
// StartedAt/EndedAt timestamps and adding the derived error rate the raw
// model doesn't carry.
type RunStatusResponse struct {
	RunID        string          `json:"run_id"`
	SourceRef    string          `json:"source_ref"`
	Status       model.RunStatus `json:"status"`
	TotalRows    int             `json:"total_rows"`
	SuccessCount int             `json:"success_count"`
	ErrorCount   int             `json:"error_count"`
	ErrorRate    float64         `json:"error_rate"`
	OutputRef    string          `json:"output_ref,omitempty"`
}

func (s *RunService) GetRun(ctx context.Context, runID string) (*RunStatusResponse, error) {
	run, err := s.runs.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, errs.NewRunNotFound(runID)
	}

	return &RunStatusResponse{
		RunID:        run.RunID,
		SourceRef:    run.SourceRef,
		Status:       run.Status,
		TotalRows:    run.TotalRows,
		SuccessCount: run.SuccessCount,
		ErrorCount:   run.ErrorCount,
		ErrorRate:    run.ErrorRate(),
		OutputRef:    run.OutputRef,
	}, nil
}

// UserStatisticsResponse is the JSON-facing view of a user's monotonic
// counters, omitting relational bookkeeping columns a status API consumer
// has no use for.
type UserStatisticsResponse struct {
	UserID     string `json:"user_id"`
	LoginCount int    `json:"login_count"`
	PostCount  int    `json:"post_count"`
}

func (s *RunService) GetUserStatistics(ctx context.Context, userID string) (*UserStatisticsResponse, error) {
	u, err := s.users.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errs.NewUserNotFound(userID)
	}

	return &UserStatisticsResponse{
		UserID:     u.UserID,
		LoginCount: u.LoginCount,
		PostCount:  u.PostCount,
	}, nil
}
