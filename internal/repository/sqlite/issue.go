package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tasnimbay/issuedeck/internal/apperror"
	"github.com/tasnimbay/issuedeck/internal/model"
	"github.com/tasnimbay/issuedeck/internal/repository"
)

// IssueRepository implements repository.IssueRepository on the shared
// connection.
type IssueRepository struct {
	conn *sql.DB
}

var _ repository.IssueRepository = (*IssueRepository)(nil)

// NewIssueRepository creates an IssueRepository backed by db.
func NewIssueRepository(db *DB) *IssueRepository {
	return &IssueRepository{conn: db.conn}
}

// sortColumns is the allow-list for ORDER BY. Anything outside it silently
// falls back to updated_at; a bad sort parameter must never produce an error
// (or reach the SQL string).
var sortColumns = map[string]bool{
	"number":        true,
	"title":         true,
	"state":         true,
	"created_at":    true,
	"updated_at":    true,
	"closed_at":     true,
	"time_to_close": true,
}

const issueColumns = `i.id, i.number, i.repository, i.title, i.body, i.state,
	i.created_at, i.updated_at, i.closed_at, i.html_url, i.assignee, i.milestone, i.time_to_close`

// Upsert writes the issue row and fully replaces its labels and assignees,
// all inside one transaction. Keyed on (repository, number): the first insert
// fixes id, repository, number, created_at and html_url; later upserts only
// touch the mutable fields.
func (r *IssueRepository) Upsert(ctx context.Context, issue *model.Issue) error {
	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning issue upsert: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO issues (id, number, repository, title, body, state,
			created_at, updated_at, closed_at, html_url, assignee, milestone, time_to_close)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(repository, number) DO UPDATE SET
			title = excluded.title,
			body = excluded.body,
			state = excluded.state,
			updated_at = excluded.updated_at,
			closed_at = excluded.closed_at,
			assignee = excluded.assignee,
			milestone = excluded.milestone,
			time_to_close = excluded.time_to_close`,
		issue.ID,
		issue.Number,
		issue.Repository,
		issue.Title,
		issue.Body,
		issue.State,
		issue.CreatedAt,
		issue.UpdatedAt,
		nullTime(issue.ClosedAt),
		issue.HTMLURL,
		nullString(issue.Assignee),
		nullString(issue.Milestone),
		nullInt(issue.TimeToClose),
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting issue %s#%d: %w", issue.Repository, issue.Number, err)
	}

	// Full replace of child rows: delete-then-reinsert, no diffing. An
	// empty set on the incoming issue leaves zero rows behind.
	if _, err := tx.ExecContext(ctx, `DELETE FROM labels WHERE issue_id = ?`, issue.ID); err != nil {
		return fmt.Errorf("sqlite: clearing labels for issue %d: %w", issue.ID, err)
	}
	for _, label := range issue.Labels {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO labels (issue_id, name, color) VALUES (?, ?, ?)`,
			issue.ID, label.Name, label.Color,
		); err != nil {
			return fmt.Errorf("sqlite: inserting label %q for issue %d: %w", label.Name, issue.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM assignees WHERE issue_id = ?`, issue.ID); err != nil {
		return fmt.Errorf("sqlite: clearing assignees for issue %d: %w", issue.ID, err)
	}
	for _, username := range issue.Assignees {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO assignees (issue_id, username) VALUES (?, ?)`,
			issue.ID, username,
		); err != nil {
			return fmt.Errorf("sqlite: inserting assignee %q for issue %d: %w", username, issue.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing issue upsert: %w", err)
	}

	return nil
}

// List returns one page of issues matching the filter plus the total count of
// distinct matching issues. Labels and assignees for the page are fetched in
// two batched IN queries rather than per row.
func (r *IssueRepository) List(ctx context.Context, filter repository.IssueFilter) ([]model.Issue, int, error) {
	var (
		joins      []string
		conditions []string
		args       []any
	)

	if filter.Repository != "" {
		conditions = append(conditions, "i.repository = ?")
		args = append(args, filter.Repository)
	}
	if filter.State != "" && filter.State != "all" {
		conditions = append(conditions, "i.state = ?")
		args = append(args, filter.State)
	}
	if filter.Label != "" {
		joins = append(joins, "INNER JOIN labels l ON i.id = l.issue_id")
		conditions = append(conditions, "l.name = ?")
		args = append(args, filter.Label)
	}
	if filter.Assignee != "" {
		if filter.Assignee == "none" {
			conditions = append(conditions, "i.assignee IS NULL")
		} else {
			joins = append(joins, "INNER JOIN assignees a ON i.id = a.issue_id")
			conditions = append(conditions, "a.username = ?")
			args = append(args, filter.Assignee)
		}
	}

	var where string
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}
	joined := ""
	if len(joins) > 0 {
		joined = " " + strings.Join(joins, " ")
	}

	sortBy := filter.SortBy
	if !sortColumns[sortBy] {
		sortBy = "updated_at"
	}
	order := "DESC"
	if strings.EqualFold(filter.Order, "asc") {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage < 1 {
		perPage = 50
	}
	offset := (page - 1) * perPage

	// Total first: COUNT(DISTINCT i.id) so the label/assignee join fan-out
	// never inflates pagination.
	var total int
	countQuery := "SELECT COUNT(DISTINCT i.id) FROM issues i" + joined + where
	if err := r.conn.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting issues: %w", err)
	}

	query := "SELECT DISTINCT " + issueColumns + " FROM issues i" + joined + where +
		fmt.Sprintf(" ORDER BY i.%s %s LIMIT ? OFFSET ?", sortBy, order)
	pageArgs := append(append([]any{}, args...), perPage, offset)

	rows, err := r.conn.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing issues: %w", err)
	}
	defer rows.Close()

	issues := make([]model.Issue, 0, perPage)
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("sqlite: scanning issue row: %w", err)
		}
		issues = append(issues, *issue)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlite: iterating issues: %w", err)
	}
	// Release the connection before the expansion queries run.
	rows.Close()

	if err := r.expandIssues(ctx, issues); err != nil {
		return nil, 0, err
	}

	return issues, total, nil
}

// Get returns one issue with its labels and assignees expanded.
func (r *IssueRepository) Get(ctx context.Context, repo string, number int) (*model.Issue, error) {
	row := r.conn.QueryRowContext(ctx,
		"SELECT "+issueColumns+" FROM issues i WHERE i.repository = ? AND i.number = ?",
		repo, number,
	)

	issue, err := scanIssue(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("issue", fmt.Sprintf("%s#%d", repo, number))
		}
		return nil, fmt.Errorf("sqlite: getting issue %s#%d: %w", repo, number, err)
	}

	single := []model.Issue{*issue}
	if err := r.expandIssues(ctx, single); err != nil {
		return nil, err
	}
	return &single[0], nil
}

// scanTarget lets scanIssue serve both sql.Row and sql.Rows.
type scanTarget interface {
	Scan(dest ...any) error
}

func scanIssue(row scanTarget) (*model.Issue, error) {
	var (
		issue       model.Issue
		closedAt    sql.NullTime
		assignee    sql.NullString
		milestone   sql.NullString
		timeToClose sql.NullInt64
	)

	err := row.Scan(
		&issue.ID,
		&issue.Number,
		&issue.Repository,
		&issue.Title,
		&issue.Body,
		&issue.State,
		&issue.CreatedAt,
		&issue.UpdatedAt,
		&closedAt,
		&issue.HTMLURL,
		&assignee,
		&milestone,
		&timeToClose,
	)
	if err != nil {
		return nil, err
	}

	if closedAt.Valid {
		t := closedAt.Time
		issue.ClosedAt = &t
	}
	if assignee.Valid {
		s := assignee.String
		issue.Assignee = &s
	}
	if milestone.Valid {
		s := milestone.String
		issue.Milestone = &s
	}
	if timeToClose.Valid {
		n := int(timeToClose.Int64)
		issue.TimeToClose = &n
	}

	issue.Labels = []model.Label{}
	issue.Assignees = []string{}

	return &issue, nil
}

// expandIssues fills Labels and Assignees for every issue in the slice with
// one IN query per child table.
func (r *IssueRepository) expandIssues(ctx context.Context, issues []model.Issue) error {
	if len(issues) == 0 {
		return nil
	}

	ids := make([]any, len(issues))
	index := make(map[int64]*model.Issue, len(issues))
	for i := range issues {
		ids[i] = issues[i].ID
		index[issues[i].ID] = &issues[i]
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	if err := r.expandLabels(ctx, placeholders, ids, index); err != nil {
		return err
	}
	return r.expandAssignees(ctx, placeholders, ids, index)
}

func (r *IssueRepository) expandLabels(ctx context.Context, placeholders string, ids []any, index map[int64]*model.Issue) error {
	labelRows, err := r.conn.QueryContext(ctx,
		"SELECT issue_id, name, color FROM labels WHERE issue_id IN ("+placeholders+") ORDER BY name",
		ids...,
	)
	if err != nil {
		return fmt.Errorf("sqlite: fetching labels: %w", err)
	}
	defer labelRows.Close()

	for labelRows.Next() {
		var label model.Label
		if err := labelRows.Scan(&label.IssueID, &label.Name, &label.Color); err != nil {
			return fmt.Errorf("sqlite: scanning label row: %w", err)
		}
		if issue, ok := index[label.IssueID]; ok {
			issue.Labels = append(issue.Labels, label)
		}
	}
	if err := labelRows.Err(); err != nil {
		return fmt.Errorf("sqlite: iterating labels: %w", err)
	}
	return nil
}

func (r *IssueRepository) expandAssignees(ctx context.Context, placeholders string, ids []any, index map[int64]*model.Issue) error {
	assigneeRows, err := r.conn.QueryContext(ctx,
		"SELECT issue_id, username FROM assignees WHERE issue_id IN ("+placeholders+") ORDER BY username",
		ids...,
	)
	if err != nil {
		return fmt.Errorf("sqlite: fetching assignees: %w", err)
	}
	defer assigneeRows.Close()

	for assigneeRows.Next() {
		var (
			issueID  int64
			username string
		)
		if err := assigneeRows.Scan(&issueID, &username); err != nil {
			return fmt.Errorf("sqlite: scanning assignee row: %w", err)
		}
		if issue, ok := index[issueID]; ok {
			issue.Assignees = append(issue.Assignees, username)
		}
	}
	if err := assigneeRows.Err(); err != nil {
		return fmt.Errorf("sqlite: iterating assignees: %w", err)
	}

	return nil
}
