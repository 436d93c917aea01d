package tracker

import (
	"encoding/json"
	"time"
)

// Issue is the raw GitHub issue record as the REST API returns it. Both the
// listing endpoint and webhook payloads carry this shape, which is what lets
// the bulk sync and the webhook path share one reconcile code path.
type Issue struct {
	ID        int64      `json:"id"`
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	State     string     `json:"state"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at"`
	HTMLURL   string     `json:"html_url"`
	Assignee  *Account   `json:"assignee"`
	Assignees []Account  `json:"assignees"`
	Labels    []Label    `json:"labels"`
	Milestone *Milestone `json:"milestone"`

	// GitHub's issues endpoint conflates issues and pull requests; a PR is
	// recognisable only by this marker field being present.
	PullRequest json.RawMessage `json:"pull_request,omitempty"`
}

// IsPullRequest reports whether the record is actually a pull request.
func (i *Issue) IsPullRequest() bool {
	return len(i.PullRequest) > 0
}

// Account is a GitHub user reference inside an issue record.
type Account struct {
	Login string `json:"login"`
}

// Label is a GitHub label reference inside an issue record.
type Label struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Milestone is a GitHub milestone reference inside an issue record.
type Milestone struct {
	Title string `json:"title"`
}
