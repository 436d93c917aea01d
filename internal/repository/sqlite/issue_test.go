package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasnimbay/issuedeck/internal/apperror"
	"github.com/tasnimbay/issuedeck/internal/model"
	"github.com/tasnimbay/issuedeck/internal/repository"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestIssueRepo(t *testing.T) *IssueRepository {
	t.Helper()
	return NewIssueRepository(newTestDB(t))
}

func ptr[T any](v T) *T { return &v }

// testIssue builds a minimal open issue for the given repository and number.
func testIssue(id int64, repo string, number int) *model.Issue {
	created := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	return &model.Issue{
		ID:         id,
		Number:     number,
		Repository: repo,
		Title:      fmt.Sprintf("issue %d", number),
		State:      model.IssueStateOpen,
		CreatedAt:  created,
		UpdatedAt:  created,
		HTMLURL:    fmt.Sprintf("https://github.com/%s/issues/%d", repo, number),
		Labels:     []model.Label{},
		Assignees:  []string{},
	}
}

func TestUpsertIdempotent(t *testing.T) {
	db := newTestIssueRepo(t)
	ctx := context.Background()

	issue := testIssue(101, "acme/widgets", 1)
	issue.Assignee = ptr("alice")
	issue.Labels = []model.Label{
		{IssueID: 101, Name: "bug", Color: "d73a4a"},
		{IssueID: 101, Name: "p1", Color: "ffffff"},
	}
	issue.Assignees = []string{"alice", "bob"}

	require.NoError(t, db.Upsert(ctx, issue))
	require.NoError(t, db.Upsert(ctx, issue))

	issues, total, err := db.List(ctx, repository.IssueFilter{Repository: "acme/widgets"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, issues, 1)

	got := issues[0]
	assert.Equal(t, []model.Label{
		{IssueID: 101, Name: "bug", Color: "d73a4a"},
		{IssueID: 101, Name: "p1", Color: "ffffff"},
	}, got.Labels)
	assert.Equal(t, []string{"alice", "bob"}, got.Assignees)
}

func TestUpsertOverwritesMutableFields(t *testing.T) {
	db := newTestIssueRepo(t)
	ctx := context.Background()

	issue := testIssue(102, "acme/widgets", 2)
	require.NoError(t, db.Upsert(ctx, issue))

	closed := issue.CreatedAt.Add(48 * time.Hour)
	issue.Title = "renamed"
	issue.State = model.IssueStateClosed
	issue.ClosedAt = &closed
	issue.TimeToClose = ptr(48)
	issue.Milestone = ptr("v1.0")
	require.NoError(t, db.Upsert(ctx, issue))

	got, err := db.Get(ctx, "acme/widgets", 2)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)
	assert.Equal(t, model.IssueStateClosed, got.State)
	require.NotNil(t, got.ClosedAt)
	assert.True(t, got.ClosedAt.Equal(closed))
	require.NotNil(t, got.TimeToClose)
	assert.Equal(t, 48, *got.TimeToClose)
	require.NotNil(t, got.Milestone)
	assert.Equal(t, "v1.0", *got.Milestone)
}

func TestUpsertReplacesChildRows(t *testing.T) {
	db := newTestIssueRepo(t)
	ctx := context.Background()

	issue := testIssue(103, "acme/widgets", 3)
	issue.Labels = []model.Label{{IssueID: 103, Name: "bug", Color: "d73a4a"}}
	issue.Assignees = []string{"alice"}
	require.NoError(t, db.Upsert(ctx, issue))

	// The next upsert carries a different label set and no assignees at
	// all; the old rows must be gone afterwards.
	issue.Labels = []model.Label{{IssueID: 103, Name: "enhancement", Color: "a2eeef"}}
	issue.Assignees = []string{}
	require.NoError(t, db.Upsert(ctx, issue))

	got, err := db.Get(ctx, "acme/widgets", 3)
	require.NoError(t, err)
	assert.Equal(t, []model.Label{{IssueID: 103, Name: "enhancement", Color: "a2eeef"}}, got.Labels)
	assert.Empty(t, got.Assignees)
}

func TestGetNotFound(t *testing.T) {
	db := newTestIssueRepo(t)

	_, err := db.Get(context.Background(), "acme/widgets", 999)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestListSortFallback(t *testing.T) {
	db := newTestIssueRepo(t)
	ctx := context.Background()

	// Three issues with distinct updated_at; an out-of-allow-list sort
	// value must fall back to updated_at desc, never error.
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		issue := testIssue(int64(200+i), "acme/widgets", i)
		issue.UpdatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, db.Upsert(ctx, issue))
	}

	issues, _, err := db.List(ctx, repository.IssueFilter{
		Repository: "acme/widgets",
		SortBy:     "id; DROP TABLE issues",
	})
	require.NoError(t, err)
	require.Len(t, issues, 3)
	assert.Equal(t, 3, issues[0].Number)
	assert.Equal(t, 2, issues[1].Number)
	assert.Equal(t, 1, issues[2].Number)
}

func TestListSortAscending(t *testing.T) {
	db := newTestIssueRepo(t)
	ctx := context.Background()

	for i := 3; i >= 1; i-- {
		require.NoError(t, db.Upsert(ctx, testIssue(int64(210+i), "acme/widgets", i)))
	}

	issues, _, err := db.List(ctx, repository.IssueFilter{
		Repository: "acme/widgets",
		SortBy:     "number",
		Order:      "ASC", // case-insensitive
	})
	require.NoError(t, err)
	require.Len(t, issues, 3)
	assert.Equal(t, 1, issues[0].Number)
	assert.Equal(t, 3, issues[2].Number)
}

func TestListAssigneeFilters(t *testing.T) {
	db := newTestIssueRepo(t)
	ctx := context.Background()

	unassigned := testIssue(301, "acme/widgets", 1)
	require.NoError(t, db.Upsert(ctx, unassigned))

	mine := testIssue(302, "acme/widgets", 2)
	mine.Assignee = ptr("alice")
	mine.Assignees = []string{"alice", "bob"}
	require.NoError(t, db.Upsert(ctx, mine))

	theirs := testIssue(303, "acme/widgets", 3)
	theirs.Assignee = ptr("carol")
	theirs.Assignees = []string{"carol"}
	require.NoError(t, db.Upsert(ctx, theirs))

	// "none" matches exactly the issues whose assignee column is null.
	issues, total, err := db.List(ctx, repository.IssueFilter{
		Repository: "acme/widgets",
		Assignee:   "none",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, issues, 1)
	assert.Equal(t, 1, issues[0].Number)

	// A literal username matches membership in the assignee list, not just
	// the primary assignee.
	issues, total, err = db.List(ctx, repository.IssueFilter{
		Repository: "acme/widgets",
		Assignee:   "bob",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, issues, 1)
	assert.Equal(t, 2, issues[0].Number)
}

func TestListLabelFilterAndDistinctTotal(t *testing.T) {
	db := newTestIssueRepo(t)
	ctx := context.Background()

	tagged := testIssue(401, "acme/widgets", 1)
	tagged.Labels = []model.Label{
		{IssueID: 401, Name: "bug", Color: "d73a4a"},
		{IssueID: 401, Name: "bug2", Color: "d73a4a"},
	}
	require.NoError(t, db.Upsert(ctx, tagged))
	require.NoError(t, db.Upsert(ctx, testIssue(402, "acme/widgets", 2)))

	issues, total, err := db.List(ctx, repository.IssueFilter{
		Repository: "acme/widgets",
		Label:      "bug",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, issues, 1)
	assert.Equal(t, 1, issues[0].Number)
}

func TestListStateFilter(t *testing.T) {
	db := newTestIssueRepo(t)
	ctx := context.Background()

	open := testIssue(501, "acme/widgets", 1)
	require.NoError(t, db.Upsert(ctx, open))

	closed := testIssue(502, "acme/widgets", 2)
	closed.State = model.IssueStateClosed
	closedAt := closed.CreatedAt.Add(time.Hour)
	closed.ClosedAt = &closedAt
	closed.TimeToClose = ptr(1)
	require.NoError(t, db.Upsert(ctx, closed))

	for _, tc := range []struct {
		state string
		want  int
	}{
		{"open", 1},
		{"closed", 1},
		{"all", 2},
		{"", 2},
	} {
		_, total, err := db.List(ctx, repository.IssueFilter{Repository: "acme/widgets", State: tc.state})
		require.NoError(t, err, "state=%q", tc.state)
		assert.Equal(t, tc.want, total, "state=%q", tc.state)
	}
}

func TestListPagination(t *testing.T) {
	db := newTestIssueRepo(t)
	ctx := context.Background()

	for i := 1; i <= 120; i++ {
		require.NoError(t, db.Upsert(ctx, testIssue(int64(1000+i), "acme/widgets", i)))
	}

	issues, total, err := db.List(ctx, repository.IssueFilter{
		Repository: "acme/widgets",
		SortBy:     "number",
		Order:      "asc",
		Page:       3,
		PerPage:    50,
	})
	require.NoError(t, err)
	assert.Equal(t, 120, total)
	require.Len(t, issues, 20)
	assert.Equal(t, 101, issues[0].Number)
	assert.Equal(t, 120, issues[19].Number)
}
