package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tasnimbay/issuedeck/internal/model"
	"github.com/tasnimbay/issuedeck/internal/repository"
)

const defaultPerPage = 50

// IssueService answers reads over the mirror and pushes writes through to
// the tracker before re-reconciling the result locally.
type IssueService struct {
	issues     repository.IssueRepository
	client     TrackerClient
	reconciler *SyncService
	metrics    *MetricsService
	logger     *slog.Logger
}

// NewIssueService creates an IssueService.
func NewIssueService(
	issues repository.IssueRepository,
	client TrackerClient,
	reconciler *SyncService,
	metrics *MetricsService,
	logger *slog.Logger,
) *IssueService {
	return &IssueService{
		issues:     issues,
		client:     client,
		reconciler: reconciler,
		metrics:    metrics,
		logger:     logger,
	}
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// IssuePage is the /api/issues response body.
type IssuePage struct {
	Issues     []model.Issue `json:"issues"`
	Pagination Pagination    `json:"pagination"`
}

// List returns one filtered, sorted page of the mirror. Unknown sort fields
// fall back to updated_at and never error; order defaults to descending.
func (s *IssueService) List(ctx context.Context, filter repository.IssueFilter) (*IssuePage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PerPage < 1 {
		filter.PerPage = defaultPerPage
	}

	issues, total, err := s.issues.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("service/issue: listing issues: %w", err)
	}

	totalPages := (total + filter.PerPage - 1) / filter.PerPage

	return &IssuePage{
		Issues: issues,
		Pagination: Pagination{
			Page:       filter.Page,
			PerPage:    filter.PerPage,
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}

// Get returns one issue from the mirror, expanded with labels and assignees.
func (s *IssueService) Get(ctx context.Context, repo string, number int) (*model.Issue, error) {
	issue, err := s.issues.Get(ctx, repo, number)
	if err != nil {
		return nil, err
	}
	return issue, nil
}

// Update writes the given fields through to the tracker, reconciles the
// record the tracker returns back into the mirror and refreshes metrics.
// Returns the updated local issue. If the tracker write fails, the local
// state is untouched.
func (s *IssueService) Update(ctx context.Context, repo string, number int, fields map[string]any, token string) (*model.Issue, error) {
	owner, name, err := SplitRepository(repo)
	if err != nil {
		return nil, err
	}

	updated, err := s.client.UpdateIssue(ctx, owner, name, number, fields, token)
	if err != nil {
		return nil, err
	}

	if err := s.reconciler.UpsertIssue(ctx, updated, repo); err != nil {
		return nil, err
	}
	if err := s.metrics.Refresh(ctx, repo); err != nil {
		return nil, err
	}

	return s.issues.Get(ctx, repo, number)
}

// BulkResult is the outcome of one issue in a bulk update.
type BulkResult struct {
	IssueNumber int    `json:"issue_number"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
}

// BulkUpdate applies the same field updates to every listed issue,
// best-effort: one failing write is reported in its result entry and never
// aborts the rest of the batch.
func (s *IssueService) BulkUpdate(ctx context.Context, repo string, numbers []int, fields map[string]any, token string) ([]BulkResult, error) {
	owner, name, err := SplitRepository(repo)
	if err != nil {
		return nil, err
	}

	results := make([]BulkResult, 0, len(numbers))
	succeeded := 0

	for _, number := range numbers {
		updated, err := s.client.UpdateIssue(ctx, owner, name, number, fields, token)
		if err == nil {
			err = s.reconciler.UpsertIssue(ctx, updated, repo)
		}
		if err != nil {
			s.logger.Warn("bulk update item failed",
				slog.String("repository", repo),
				slog.Int("number", number),
				slog.String("error", err.Error()),
			)
			results = append(results, BulkResult{IssueNumber: number, Success: false, Error: err.Error()})
			continue
		}
		results = append(results, BulkResult{IssueNumber: number, Success: true})
		succeeded++
	}

	if succeeded > 0 {
		if err := s.metrics.Refresh(ctx, repo); err != nil {
			return nil, err
		}
	}

	return results, nil
}
