// Package model defines the data structures used throughout the application.
package model

import "time"

// Issue is one mirrored GitHub issue. Identity inside the mirror is
// (Repository, Number); ID is GitHub's global issue ID and is what the
// labels/assignees child tables key on.
//
// TimeToClose is derived at reconcile time: hours between CreatedAt and
// ClosedAt, rounded, and only present for closed issues that carry a
// closed_at timestamp. Everything else comes straight from the tracker.
type Issue struct {
	ID          int64      `json:"id"`
	Number      int        `json:"number"`
	Repository  string     `json:"repository"` // "owner/name"
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	State       string     `json:"state"` // "open" or "closed"
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ClosedAt    *time.Time `json:"closed_at"`
	HTMLURL     string     `json:"html_url"`
	Assignee    *string    `json:"assignee"`  // primary assignee login (legacy single-assignee field)
	Milestone   *string    `json:"milestone"` // milestone title
	TimeToClose *int       `json:"time_to_close"`

	// Expanded child rows, populated by the query layer.
	Labels    []Label  `json:"labels"`
	Assignees []string `json:"assignees"`
}

// Label is a child row of an issue. Labels have no lifecycle of their own:
// every upsert of the owning issue replaces the full set.
type Label struct {
	IssueID int64  `json:"-"`
	Name    string `json:"name"`
	Color   string `json:"color"`
}

// Assignee is a child row of an issue, same full-replace lifecycle as Label.
type Assignee struct {
	IssueID  int64
	Username string
}

const (
	IssueStateOpen   = "open"
	IssueStateClosed = "closed"
)
