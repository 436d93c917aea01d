// Package repository defines the storage interfaces consumed by the service
// layer. The sqlite subpackage implements them; tests substitute in-memory
// mocks.
package repository

import (
	"context"

	"github.com/tasnimbay/issuedeck/internal/model"
)

// IssueFilter describes a filtered, sorted, paginated listing over the issue
// mirror. Zero values mean "no filter"; State "all" (or empty) matches both
// open and closed issues. Assignee supports the sentinel "none" for issues
// with no primary assignee.
type IssueFilter struct {
	Repository string
	State      string
	Label      string
	Assignee   string
	SortBy     string
	Order      string // "asc" or "desc"
	Page       int    // 1-indexed
	PerPage    int
}

// IssueRepository owns the issues table and its label/assignee child rows.
type IssueRepository interface {
	// Upsert writes the issue and fully replaces its label and assignee
	// rows in a single transaction. Insert-or-overwrite keyed on
	// (repository, number); id, repository, number, created_at and
	// html_url are immutable after the first insert.
	Upsert(ctx context.Context, issue *model.Issue) error

	// List returns one page of issues matching the filter, expanded with
	// labels and assignees, plus the total distinct-issue count across all
	// pages.
	List(ctx context.Context, filter IssueFilter) ([]model.Issue, int, error)

	// Get returns one expanded issue or apperror.ErrNotFound.
	Get(ctx context.Context, repository string, number int) (*model.Issue, error)
}

// SyncStatusRepository tracks per-repository full-sync progress.
type SyncStatusRepository interface {
	// MarkInProgress upserts the repository's row to in_progress and
	// clears any previous error message.
	MarkInProgress(ctx context.Context, repository string) error
	MarkCompleted(ctx context.Context, repository string) error
	MarkFailed(ctx context.Context, repository string, message string) error
	Get(ctx context.Context, repository string) (*model.SyncStatus, error)
}

// MetricsRepository persists daily rollup snapshots and answers the
// aggregate queries behind /api/metrics.
type MetricsRepository interface {
	// Aggregate recomputes the current counts and average time-to-close
	// from the issues table.
	Aggregate(ctx context.Context, repository string) (*model.MetricsSnapshot, error)

	// UpsertSnapshot writes one row keyed (repository, metric_date);
	// repeated calls for the same day overwrite.
	UpsertSnapshot(ctx context.Context, snap *model.MetricsSnapshot) error

	// History returns up to limit daily snapshots, most recent first.
	History(ctx context.Context, repository string, limit int) ([]model.MetricsSnapshot, error)

	// ActivitySpan returns the repository's oldest issue date and latest
	// update date; both nil when the mirror holds no issues for it.
	ActivitySpan(ctx context.Context, repository string) (*ActivitySpan, error)

	LabelDistribution(ctx context.Context, repository string, limit int) ([]LabelCount, error)
	AssigneeWorkload(ctx context.Context, repository string, limit int) ([]AssigneeCount, error)
	TimeToCloseDistribution(ctx context.Context, repository string) ([]BucketCount, error)
	Velocity(ctx context.Context, repository string, days int) (*VelocityReport, error)
}

// ActivitySpan brackets a repository's issue activity, dates as YYYY-MM-DD.
type ActivitySpan struct {
	OldestIssueDate  *string `json:"oldest_issue_date"`
	LatestUpdateDate *string `json:"latest_update_date"`
}

// LabelCount is one row of the label distribution report.
type LabelCount struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Count int    `json:"count"`
}

// AssigneeCount is one row of the assignee workload report.
type AssigneeCount struct {
	Username       string `json:"username"`
	AssignedIssues int    `json:"assigned_issues"`
	OpenAssigned   int    `json:"open_assigned"`
	ClosedAssigned int    `json:"closed_assigned"`
}

// BucketCount is one bucket of the time-to-close histogram.
type BucketCount struct {
	Bucket string `json:"bucket"`
	Count  int    `json:"count"`
}

// DayCount is issues opened or closed on one day.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// VelocityReport is the opened/closed per-day series for the last N days.
type VelocityReport struct {
	Opened []DayCount `json:"opened"`
	Closed []DayCount `json:"closed"`
}

// SessionRepository stores login sessions created by the OAuth callback.
type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) error
	// Get returns the session by ID, or apperror.ErrNotFound if absent.
	Get(ctx context.Context, id string) (*model.Session, error)
	Delete(ctx context.Context, id string) error
}
