package model

import "time"

// Sync status values. A repository's status moves idle → in_progress →
// completed|failed; no other transition exists.
const (
	SyncStatusIdle       = "idle"
	SyncStatusInProgress = "in_progress"
	SyncStatusCompleted  = "completed"
	SyncStatusFailed     = "failed"
)

// SyncStatus is the per-repository progress record for full syncs. It is a
// best-effort indicator, not a lock: a crashed sync leaves in_progress behind,
// which is why callers also look at LastSync to decide whether a new sync may
// start.
type SyncStatus struct {
	Repository   string    `json:"repository"`
	LastSync     time.Time `json:"last_sync"`
	Status       string    `json:"status"`
	ErrorMessage *string   `json:"error_message,omitempty"`
}

// MetricsSnapshot is one dated rollup row per repository. Re-running the
// aggregation on the same day overwrites the row rather than adding another.
type MetricsSnapshot struct {
	Repository     string   `json:"repository"`
	MetricDate     string   `json:"metric_date"` // YYYY-MM-DD, UTC
	TotalIssues    int      `json:"total_issues"`
	OpenIssues     int      `json:"open_issues"`
	ClosedIssues   int      `json:"closed_issues"`
	AvgTimeToClose *float64 `json:"avg_time_to_close"` // hours, nil when no closed issue has a duration
}
