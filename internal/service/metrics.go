package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/tasnimbay/issuedeck/internal/apperror"
	"github.com/tasnimbay/issuedeck/internal/model"
	"github.com/tasnimbay/issuedeck/internal/repository"
)

const (
	historyDays  = 30
	velocityDays = 7
	topListLimit = 10
)

// MetricsService recomputes per-repository rollups and assembles the
// /api/metrics report.
type MetricsService struct {
	metrics repository.MetricsRepository
	logger  *slog.Logger
}

// NewMetricsService creates a MetricsService.
func NewMetricsService(metrics repository.MetricsRepository, logger *slog.Logger) *MetricsService {
	return &MetricsService{metrics: metrics, logger: logger}
}

// Refresh recomputes the repository's counts and average time-to-close from
// the current mirror state and upserts today's snapshot row. Idempotent per
// day: repeated calls overwrite, never accumulate.
func (s *MetricsService) Refresh(ctx context.Context, repo string) error {
	snap, err := s.metrics.Aggregate(ctx, repo)
	if err != nil {
		return fmt.Errorf("service/metrics: refreshing %s: %w", repo, err)
	}

	snap.MetricDate = time.Now().UTC().Format("2006-01-02")
	if err := s.metrics.UpsertSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("service/metrics: refreshing %s: %w", repo, err)
	}

	s.logger.Debug("metrics refreshed",
		slog.String("repository", repo),
		slog.Int("total", snap.TotalIssues),
	)

	return nil
}

// CurrentMetrics is the live rollup section of the metrics report.
type CurrentMetrics struct {
	TotalIssues         int      `json:"total_issues"`
	OpenIssues          int      `json:"open_issues"`
	ClosedIssues        int      `json:"closed_issues"`
	AvgTimeToCloseHours *float64 `json:"avg_time_to_close_hours"`
	AvgTimeToCloseDays  *float64 `json:"avg_time_to_close_days"`
	OldestIssueDate     *string  `json:"oldest_issue_date"`
	LatestUpdateDate    *string  `json:"latest_update_date"`
}

// Report is the full /api/metrics payload.
type Report struct {
	Current                 CurrentMetrics             `json:"current"`
	Labels                  []repository.LabelCount    `json:"labels"`
	Assignees               []repository.AssigneeCount `json:"assignees"`
	Historical              []model.MetricsSnapshot    `json:"historical"`
	TimeToCloseDistribution []repository.BucketCount   `json:"time_to_close_distribution"`
	Velocity                *repository.VelocityReport `json:"velocity"`
}

// BuildReport assembles the aggregated, historical, distribution and
// velocity sections for one repository.
func (s *MetricsService) BuildReport(ctx context.Context, repo string) (*Report, error) {
	if repo == "" {
		return nil, apperror.ValidationFailed("repository", "repository parameter required")
	}

	current, err := s.metrics.Aggregate(ctx, repo)
	if err != nil {
		return nil, fmt.Errorf("service/metrics: building report for %s: %w", repo, err)
	}

	span, err := s.metrics.ActivitySpan(ctx, repo)
	if err != nil {
		return nil, fmt.Errorf("service/metrics: building report for %s: %w", repo, err)
	}

	labels, err := s.metrics.LabelDistribution(ctx, repo, topListLimit)
	if err != nil {
		return nil, fmt.Errorf("service/metrics: building report for %s: %w", repo, err)
	}

	assignees, err := s.metrics.AssigneeWorkload(ctx, repo, topListLimit)
	if err != nil {
		return nil, fmt.Errorf("service/metrics: building report for %s: %w", repo, err)
	}

	history, err := s.metrics.History(ctx, repo, historyDays)
	if err != nil {
		return nil, fmt.Errorf("service/metrics: building report for %s: %w", repo, err)
	}
	// History comes back newest-first; charts want chronological order.
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}

	distribution, err := s.metrics.TimeToCloseDistribution(ctx, repo)
	if err != nil {
		return nil, fmt.Errorf("service/metrics: building report for %s: %w", repo, err)
	}

	velocity, err := s.metrics.Velocity(ctx, repo, velocityDays)
	if err != nil {
		return nil, fmt.Errorf("service/metrics: building report for %s: %w", repo, err)
	}

	report := &Report{
		Current: CurrentMetrics{
			TotalIssues:         current.TotalIssues,
			OpenIssues:          current.OpenIssues,
			ClosedIssues:        current.ClosedIssues,
			AvgTimeToCloseHours: current.AvgTimeToClose,
			OldestIssueDate:     span.OldestIssueDate,
			LatestUpdateDate:    span.LatestUpdateDate,
		},
		Labels:                  labels,
		Assignees:               assignees,
		Historical:              history,
		TimeToCloseDistribution: distribution,
		Velocity:                velocity,
	}
	if current.AvgTimeToClose != nil {
		days := math.Round(*current.AvgTimeToClose/24*10) / 10
		report.Current.AvgTimeToCloseDays = &days
	}

	return report, nil
}
