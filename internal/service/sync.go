// Package service contains the business logic: reconciling tracker records
// into the mirror, querying the mirror, aggregating metrics and managing
// login sessions. Handlers stay HTTP-only; repositories stay SQL-only.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/tasnimbay/issuedeck/internal/apperror"
	"github.com/tasnimbay/issuedeck/internal/model"
	"github.com/tasnimbay/issuedeck/internal/repository"
	"github.com/tasnimbay/issuedeck/internal/tracker"
	"github.com/tasnimbay/issuedeck/internal/webhook"
)

// TrackerClient is the slice of the GitHub client the sync engine needs.
// *tracker.Client implements it; tests substitute fakes.
type TrackerClient interface {
	ListRepositoryIssues(ctx context.Context, owner, repo, token, state string) ([]tracker.Issue, error)
	UpdateIssue(ctx context.Context, owner, repo string, number int, fields map[string]any, token string) (*tracker.Issue, error)
}

// staleSyncCutoff is how long an in_progress sync status blocks a new sync.
// The status row is best-effort (a crashed sync never clears it), so after
// the cutoff a new sync may start regardless.
const staleSyncCutoff = 15 * time.Minute

// SyncService is the reconciler: it merges raw tracker issue records into the
// local mirror. The full-repository sync and the webhook path both funnel
// through UpsertIssue so the two can never drift apart.
type SyncService struct {
	issues  repository.IssueRepository
	status  repository.SyncStatusRepository
	metrics *MetricsService
	client  TrackerClient
	logger  *slog.Logger
}

// NewSyncService creates a SyncService with all required dependencies.
func NewSyncService(
	issues repository.IssueRepository,
	status repository.SyncStatusRepository,
	metrics *MetricsService,
	client TrackerClient,
	logger *slog.Logger,
) *SyncService {
	return &SyncService{
		issues:  issues,
		status:  status,
		metrics: metrics,
		client:  client,
		logger:  logger,
	}
}

// UpsertIssue merges one raw tracker record into the mirror: derives
// time_to_close, overwrites the issue row keyed on (repository, number) and
// fully replaces its label/assignee sets, in one store transaction.
func (s *SyncService) UpsertIssue(ctx context.Context, raw *tracker.Issue, repo string) error {
	if err := s.issues.Upsert(ctx, convertIssue(raw, repo)); err != nil {
		return fmt.Errorf("service/sync: upserting issue %s#%d: %w", repo, raw.Number, err)
	}
	return nil
}

// SyncRepository pulls every issue of the repository from the tracker into
// the mirror, tracking progress in the sync status record, and finishes by
// refreshing the repository's metrics snapshot. Returns the number of issues
// processed.
//
// On any failure the status record is marked failed with the error message
// and the error propagates; there is no automatic retry. The status row is
// the recovery signal, operators re-trigger the sync manually.
func (s *SyncService) SyncRepository(ctx context.Context, repo, token string) (int, error) {
	owner, name, err := SplitRepository(repo)
	if err != nil {
		return 0, err
	}

	status, err := s.status.Get(ctx, repo)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return 0, fmt.Errorf("service/sync: checking sync status for %s: %w", repo, err)
	}
	if status != nil && status.Status == model.SyncStatusInProgress &&
		time.Since(status.LastSync) < staleSyncCutoff {
		return 0, apperror.Conflict(fmt.Sprintf("sync already in progress for %s", repo))
	}

	if err := s.status.MarkInProgress(ctx, repo); err != nil {
		return 0, err
	}

	s.logger.Info("repository sync started", slog.String("repository", repo))

	issues, err := s.client.ListRepositoryIssues(ctx, owner, name, token, "all")
	if err != nil {
		s.fail(ctx, repo, err)
		return 0, err
	}

	for i := range issues {
		if err := s.UpsertIssue(ctx, &issues[i], repo); err != nil {
			s.fail(ctx, repo, err)
			return 0, err
		}
	}

	if err := s.status.MarkCompleted(ctx, repo); err != nil {
		return 0, err
	}

	if err := s.metrics.Refresh(ctx, repo); err != nil {
		return 0, err
	}

	s.logger.Info("repository sync completed",
		slog.String("repository", repo),
		slog.Int("issues", len(issues)),
	)

	return len(issues), nil
}

// IngestIssueEvent applies one webhook-delivered issue event. The payload
// carries the issue's full current state, so this is the same upsert the bulk
// sync runs, followed by a metrics refresh.
func (s *SyncService) IngestIssueEvent(ctx context.Context, event *webhook.IssueEvent) error {
	repo := event.Repository.FullName
	if repo == "" {
		return apperror.ValidationFailed("repository", "event has no repository")
	}

	s.logger.Info("processing issue event",
		slog.String("action", event.Action),
		slog.String("repository", repo),
		slog.Int("number", event.Issue.Number),
	)

	if err := s.UpsertIssue(ctx, event.Issue, repo); err != nil {
		return err
	}

	return s.metrics.Refresh(ctx, repo)
}

// Status returns the repository's sync status record.
func (s *SyncService) Status(ctx context.Context, repo string) (*model.SyncStatus, error) {
	return s.status.Get(ctx, repo)
}

func (s *SyncService) fail(ctx context.Context, repo string, cause error) {
	s.logger.Error("repository sync failed",
		slog.String("repository", repo),
		slog.String("error", cause.Error()),
	)
	if err := s.status.MarkFailed(ctx, repo, cause.Error()); err != nil {
		s.logger.Error("recording sync failure", slog.String("error", err.Error()))
	}
}

// convertIssue maps a raw tracker record to a mirror row, deriving
// time_to_close: hours between created_at and closed_at, rounded, only for
// closed issues that carry a closed_at.
func convertIssue(raw *tracker.Issue, repo string) *model.Issue {
	issue := &model.Issue{
		ID:         raw.ID,
		Number:     raw.Number,
		Repository: repo,
		Title:      raw.Title,
		Body:       raw.Body,
		State:      raw.State,
		CreatedAt:  raw.CreatedAt,
		UpdatedAt:  raw.UpdatedAt,
		ClosedAt:   raw.ClosedAt,
		HTMLURL:    raw.HTMLURL,
		Labels:     make([]model.Label, 0, len(raw.Labels)),
		Assignees:  make([]string, 0, len(raw.Assignees)),
	}

	if raw.Assignee != nil {
		login := raw.Assignee.Login
		issue.Assignee = &login
	}
	if raw.Milestone != nil {
		title := raw.Milestone.Title
		issue.Milestone = &title
	}

	if raw.State == model.IssueStateClosed && raw.ClosedAt != nil {
		hours := int(math.Round(raw.ClosedAt.Sub(raw.CreatedAt).Seconds() / 3600))
		issue.TimeToClose = &hours
	}

	for _, label := range raw.Labels {
		issue.Labels = append(issue.Labels, model.Label{
			IssueID: raw.ID,
			Name:    label.Name,
			Color:   label.Color,
		})
	}
	for _, assignee := range raw.Assignees {
		issue.Assignees = append(issue.Assignees, assignee.Login)
	}

	return issue
}

// SplitRepository parses an "owner/name" repository string.
func SplitRepository(repo string) (string, string, error) {
	parts := strings.Split(repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", apperror.ValidationFailed("repository",
			fmt.Sprintf("invalid repository %q, expected owner/name", repo))
	}
	return parts[0], parts[1], nil
}
