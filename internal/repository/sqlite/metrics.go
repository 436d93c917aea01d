package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tasnimbay/issuedeck/internal/model"
	"github.com/tasnimbay/issuedeck/internal/repository"
)

// MetricsRepository implements repository.MetricsRepository on the shared
// connection.
type MetricsRepository struct {
	conn *sql.DB
}

var _ repository.MetricsRepository = (*MetricsRepository)(nil)

// NewMetricsRepository creates a MetricsRepository backed by db.
func NewMetricsRepository(db *DB) *MetricsRepository {
	return &MetricsRepository{conn: db.conn}
}

// Aggregate recomputes the repository's current rollup from the issues table.
// It is a pure recomputation, no incremental counters, so calling it after
// every mutation is always safe.
func (r *MetricsRepository) Aggregate(ctx context.Context, repo string) (*model.MetricsSnapshot, error) {
	var (
		snap    model.MetricsSnapshot
		open    sql.NullInt64
		closed  sql.NullInt64
		avgTime sql.NullFloat64
	)

	err := r.conn.QueryRowContext(ctx,
		`SELECT
			COUNT(*),
			SUM(CASE WHEN state = 'open' THEN 1 ELSE 0 END),
			SUM(CASE WHEN state = 'closed' THEN 1 ELSE 0 END),
			AVG(time_to_close)
		 FROM issues WHERE repository = ?`,
		repo,
	).Scan(&snap.TotalIssues, &open, &closed, &avgTime)
	if err != nil {
		return nil, fmt.Errorf("sqlite: aggregating metrics for %s: %w", repo, err)
	}

	snap.Repository = repo
	snap.OpenIssues = int(open.Int64)
	snap.ClosedIssues = int(closed.Int64)
	if avgTime.Valid {
		v := avgTime.Float64
		snap.AvgTimeToClose = &v
	}

	return &snap, nil
}

// UpsertSnapshot writes one metrics row keyed (repository, metric_date).
// Re-running the aggregation on the same day overwrites the row.
func (r *MetricsRepository) UpsertSnapshot(ctx context.Context, snap *model.MetricsSnapshot) error {
	var avg any
	if snap.AvgTimeToClose != nil {
		avg = *snap.AvgTimeToClose
	}

	_, err := r.conn.ExecContext(ctx,
		`INSERT INTO metrics (repository, metric_date, total_issues, open_issues, closed_issues, avg_time_to_close)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(repository, metric_date) DO UPDATE SET
			total_issues = excluded.total_issues,
			open_issues = excluded.open_issues,
			closed_issues = excluded.closed_issues,
			avg_time_to_close = excluded.avg_time_to_close`,
		snap.Repository, snap.MetricDate,
		snap.TotalIssues, snap.OpenIssues, snap.ClosedIssues, avg,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting metrics snapshot for %s/%s: %w", snap.Repository, snap.MetricDate, err)
	}
	return nil
}

// ActivitySpan returns DATE() of the oldest created_at and the newest
// updated_at across the repository's issues. Both fields stay nil when the
// mirror holds no issues for the repository (MIN/MAX over zero rows is NULL).
func (r *MetricsRepository) ActivitySpan(ctx context.Context, repo string) (*repository.ActivitySpan, error) {
	var oldest, latest sql.NullString
	err := r.conn.QueryRowContext(ctx,
		`SELECT DATE(MIN(created_at)), DATE(MAX(updated_at))
		 FROM issues WHERE repository = ?`,
		repo,
	).Scan(&oldest, &latest)
	if err != nil {
		return nil, fmt.Errorf("sqlite: fetching activity span for %s: %w", repo, err)
	}

	span := &repository.ActivitySpan{}
	if oldest.Valid {
		v := oldest.String
		span.OldestIssueDate = &v
	}
	if latest.Valid {
		v := latest.String
		span.LatestUpdateDate = &v
	}
	return span, nil
}

// History returns up to limit daily snapshots for the repository, most
// recent first.
func (r *MetricsRepository) History(ctx context.Context, repo string, limit int) ([]model.MetricsSnapshot, error) {
	rows, err := r.conn.QueryContext(ctx,
		`SELECT repository, metric_date, total_issues, open_issues, closed_issues, avg_time_to_close
		 FROM metrics
		 WHERE repository = ?
		 ORDER BY metric_date DESC
		 LIMIT ?`,
		repo, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: fetching metrics history for %s: %w", repo, err)
	}
	defer rows.Close()

	snaps := make([]model.MetricsSnapshot, 0, limit)
	for rows.Next() {
		var (
			snap model.MetricsSnapshot
			avg  sql.NullFloat64
		)
		if err := rows.Scan(&snap.Repository, &snap.MetricDate,
			&snap.TotalIssues, &snap.OpenIssues, &snap.ClosedIssues, &avg); err != nil {
			return nil, fmt.Errorf("sqlite: scanning metrics row: %w", err)
		}
		if avg.Valid {
			v := avg.Float64
			snap.AvgTimeToClose = &v
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating metrics history: %w", err)
	}

	return snaps, nil
}

// LabelDistribution returns the most used labels across the repository's
// issues, busiest first.
func (r *MetricsRepository) LabelDistribution(ctx context.Context, repo string, limit int) ([]repository.LabelCount, error) {
	rows, err := r.conn.QueryContext(ctx,
		`SELECT l.name, l.color, COUNT(*) AS count
		 FROM labels l
		 INNER JOIN issues i ON l.issue_id = i.id
		 WHERE i.repository = ?
		 GROUP BY l.name, l.color
		 ORDER BY count DESC
		 LIMIT ?`,
		repo, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: fetching label distribution for %s: %w", repo, err)
	}
	defer rows.Close()

	var counts []repository.LabelCount
	for rows.Next() {
		var c repository.LabelCount
		if err := rows.Scan(&c.Name, &c.Color, &c.Count); err != nil {
			return nil, fmt.Errorf("sqlite: scanning label count: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating label distribution: %w", err)
	}

	return counts, nil
}

// AssigneeWorkload returns per-assignee issue counts with an open/closed
// split, busiest first.
func (r *MetricsRepository) AssigneeWorkload(ctx context.Context, repo string, limit int) ([]repository.AssigneeCount, error) {
	rows, err := r.conn.QueryContext(ctx,
		`SELECT a.username,
			COUNT(*) AS assigned_issues,
			SUM(CASE WHEN i.state = 'open' THEN 1 ELSE 0 END) AS open_assigned,
			SUM(CASE WHEN i.state = 'closed' THEN 1 ELSE 0 END) AS closed_assigned
		 FROM assignees a
		 INNER JOIN issues i ON a.issue_id = i.id
		 WHERE i.repository = ?
		 GROUP BY a.username
		 ORDER BY assigned_issues DESC
		 LIMIT ?`,
		repo, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: fetching assignee workload for %s: %w", repo, err)
	}
	defer rows.Close()

	var counts []repository.AssigneeCount
	for rows.Next() {
		var c repository.AssigneeCount
		if err := rows.Scan(&c.Username, &c.AssignedIssues, &c.OpenAssigned, &c.ClosedAssigned); err != nil {
			return nil, fmt.Errorf("sqlite: scanning assignee count: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating assignee workload: %w", err)
	}

	return counts, nil
}

// TimeToCloseDistribution buckets closed issues by how long they took.
func (r *MetricsRepository) TimeToCloseDistribution(ctx context.Context, repo string) ([]repository.BucketCount, error) {
	rows, err := r.conn.QueryContext(ctx,
		`SELECT
			CASE
				WHEN time_to_close < 24 THEN '< 1 day'
				WHEN time_to_close < 168 THEN '1-7 days'
				WHEN time_to_close < 720 THEN '1-4 weeks'
				ELSE '> 4 weeks'
			END AS bucket,
			COUNT(*) AS count
		 FROM issues
		 WHERE repository = ? AND time_to_close IS NOT NULL
		 GROUP BY bucket`,
		repo,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: fetching time-to-close distribution for %s: %w", repo, err)
	}
	defer rows.Close()

	var buckets []repository.BucketCount
	for rows.Next() {
		var b repository.BucketCount
		if err := rows.Scan(&b.Bucket, &b.Count); err != nil {
			return nil, fmt.Errorf("sqlite: scanning bucket count: %w", err)
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating distribution: %w", err)
	}

	return buckets, nil
}

// Velocity returns how many issues were opened and closed per day over the
// last days days, most recent day first.
func (r *MetricsRepository) Velocity(ctx context.Context, repo string, days int) (*repository.VelocityReport, error) {
	window := fmt.Sprintf("-%d days", days)

	opened, err := r.velocitySeries(ctx,
		`SELECT DATE(created_at) AS date, COUNT(*)
		 FROM issues
		 WHERE repository = ? AND created_at >= date('now', ?)
		 GROUP BY DATE(created_at)
		 ORDER BY date DESC`,
		repo, window,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: fetching opened velocity for %s: %w", repo, err)
	}

	closed, err := r.velocitySeries(ctx,
		`SELECT DATE(closed_at) AS date, COUNT(*)
		 FROM issues
		 WHERE repository = ? AND closed_at >= date('now', ?) AND state = 'closed'
		 GROUP BY DATE(closed_at)
		 ORDER BY date DESC`,
		repo, window,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: fetching closed velocity for %s: %w", repo, err)
	}

	return &repository.VelocityReport{Opened: opened, Closed: closed}, nil
}

func (r *MetricsRepository) velocitySeries(ctx context.Context, query, repo, window string) ([]repository.DayCount, error) {
	rows, err := r.conn.QueryContext(ctx, query, repo, window)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var series []repository.DayCount
	for rows.Next() {
		var d repository.DayCount
		if err := rows.Scan(&d.Date, &d.Count); err != nil {
			return nil, err
		}
		series = append(series, d)
	}
	return series, rows.Err()
}
