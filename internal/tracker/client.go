// Package tracker is the authenticated client for the GitHub REST API: paged
// issue listing for full syncs and single-issue PATCH for write-through
// updates. Transport failures surface as *apperror.TrackerAPIError.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tasnimbay/issuedeck/internal/apperror"
)

const (
	defaultBaseURL = "https://api.github.com"
	acceptHeader   = "application/vnd.github.v3+json"
	userAgent      = "issuedeck"

	perPage = 100
	// maxPages bounds worst-case sync duration; 10k issues per repository
	// is far beyond the scale this serves.
	maxPages = 100

	requestTimeout = 30 * time.Second
	maxRetries     = 3
)

// Client calls the GitHub REST API. The access token is a per-call argument,
// not client state: tokens belong to user sessions and one client serves all
// of them.
type Client struct {
	// BaseURL is overridable so tests can point the client at an httptest
	// server.
	BaseURL string

	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a GitHub API client with a bounded per-request timeout.
func NewClient(logger *slog.Logger) *Client {
	return &Client{
		BaseURL: defaultBaseURL,
		http:    &http.Client{Timeout: requestTimeout},
		logger:  logger,
	}
}

// ListRepositoryIssues fetches every issue of the repository matching state
// ("open", "closed" or "all"), walking the listing endpoint sequentially at
// 100 per page until a short or empty page. Pull requests are filtered out.
// Pages are fetched one at a time on purpose: parallel fetches would burn the
// API rate-limit budget for no gain at this scale.
func (c *Client) ListRepositoryIssues(ctx context.Context, owner, repo, token, state string) ([]Issue, error) {
	if state == "" {
		state = "all"
	}

	var issues []Issue
	for page := 1; page <= maxPages; page++ {
		path := fmt.Sprintf("/repos/%s/%s/issues?state=%s&per_page=%d&page=%d",
			owner, repo, state, perPage, page)

		body, err := c.do(ctx, http.MethodGet, path, token, nil)
		if err != nil {
			return nil, err
		}

		var batch []Issue
		if err := json.Unmarshal(body, &batch); err != nil {
			return nil, fmt.Errorf("tracker: decoding issues page %d: %w", page, err)
		}

		for _, issue := range batch {
			if issue.IsPullRequest() {
				continue
			}
			issues = append(issues, issue)
		}

		if len(batch) < perPage {
			break
		}
	}

	return issues, nil
}

// UpdateIssue PATCHes the given fields (title, body, state, labels, ...) on
// one issue and returns the updated record as GitHub sees it.
func (c *Client) UpdateIssue(ctx context.Context, owner, repo string, number int, fields map[string]any, token string) (*Issue, error) {
	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("tracker: encoding issue update: %w", err)
	}

	path := fmt.Sprintf("/repos/%s/%s/issues/%d", owner, repo, number)
	body, err := c.do(ctx, http.MethodPatch, path, token, payload)
	if err != nil {
		return nil, err
	}

	var issue Issue
	if err := json.Unmarshal(body, &issue); err != nil {
		return nil, fmt.Errorf("tracker: decoding updated issue: %w", err)
	}

	return &issue, nil
}

// do performs one API call with retries. 429 and 5xx responses are retried
// with exponential backoff up to maxRetries; any other non-2xx status is a
// permanent *apperror.TrackerAPIError.
func (c *Client) do(ctx context.Context, method, path, token string, payload []byte) ([]byte, error) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)

	return backoff.RetryWithData(func() ([]byte, error) {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("tracker: building request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", acceptHeader)
		req.Header.Set("User-Agent", userAgent)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			// Network-level failures (timeouts, resets) are retryable.
			return nil, fmt.Errorf("tracker: %s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("tracker: reading response body: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			apiErr := &apperror.TrackerAPIError{StatusCode: resp.StatusCode, Body: string(body)}
			if apiErr.Retryable() {
				c.logger.Warn("github api call failed, will retry",
					slog.String("method", method),
					slog.String("path", path),
					slog.Int("status", resp.StatusCode),
				)
				return nil, apiErr
			}
			return nil, backoff.Permanent(apiErr)
		}

		return body, nil
	}, policy)
}
