package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/tasnimbay/issuedeck/internal/apperror"
	"github.com/tasnimbay/issuedeck/internal/model"
	"github.com/tasnimbay/issuedeck/internal/repository"
	"github.com/tasnimbay/issuedeck/internal/tracker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func issueKey(repo string, number int) string {
	return fmt.Sprintf("%s#%d", repo, number)
}

// memIssueRepo is an in-memory repository.IssueRepository.
type memIssueRepo struct {
	issues    map[string]*model.Issue
	upsertErr error
}

func newMemIssueRepo() *memIssueRepo {
	return &memIssueRepo{issues: make(map[string]*model.Issue)}
}

func (m *memIssueRepo) Upsert(_ context.Context, issue *model.Issue) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	cp := *issue
	m.issues[issueKey(issue.Repository, issue.Number)] = &cp
	return nil
}

func (m *memIssueRepo) List(_ context.Context, filter repository.IssueFilter) ([]model.Issue, int, error) {
	var matched []model.Issue
	for _, issue := range m.issues {
		if filter.Repository != "" && issue.Repository != filter.Repository {
			continue
		}
		if filter.State != "" && filter.State != "all" && issue.State != filter.State {
			continue
		}
		matched = append(matched, *issue)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Number < matched[j].Number })

	total := len(matched)
	page := filter.Page
	if page < 1 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage < 1 {
		perPage = defaultPerPage
	}
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (m *memIssueRepo) Get(_ context.Context, repo string, number int) (*model.Issue, error) {
	issue, ok := m.issues[issueKey(repo, number)]
	if !ok {
		return nil, apperror.NotFound("issue", issueKey(repo, number))
	}
	cp := *issue
	return &cp, nil
}

// memStatusRepo is an in-memory repository.SyncStatusRepository that records
// every transition.
type memStatusRepo struct {
	statuses    map[string]*model.SyncStatus
	transitions []string
}

func newMemStatusRepo() *memStatusRepo {
	return &memStatusRepo{statuses: make(map[string]*model.SyncStatus)}
}

func (m *memStatusRepo) MarkInProgress(_ context.Context, repo string) error {
	m.statuses[repo] = &model.SyncStatus{
		Repository: repo,
		LastSync:   time.Now().UTC(),
		Status:     model.SyncStatusInProgress,
	}
	m.transitions = append(m.transitions, model.SyncStatusInProgress)
	return nil
}

func (m *memStatusRepo) MarkCompleted(_ context.Context, repo string) error {
	if status, ok := m.statuses[repo]; ok {
		status.Status = model.SyncStatusCompleted
		status.LastSync = time.Now().UTC()
	}
	m.transitions = append(m.transitions, model.SyncStatusCompleted)
	return nil
}

func (m *memStatusRepo) MarkFailed(_ context.Context, repo string, message string) error {
	if status, ok := m.statuses[repo]; ok {
		status.Status = model.SyncStatusFailed
		status.ErrorMessage = &message
	}
	m.transitions = append(m.transitions, model.SyncStatusFailed)
	return nil
}

func (m *memStatusRepo) Get(_ context.Context, repo string) (*model.SyncStatus, error) {
	status, ok := m.statuses[repo]
	if !ok {
		return nil, apperror.NotFound("sync status", repo)
	}
	cp := *status
	return &cp, nil
}

// memMetricsRepo aggregates over a memIssueRepo and stores snapshots in
// memory. The report list queries return whatever canned values the test
// sets.
type memMetricsRepo struct {
	issues    *memIssueRepo
	snapshots map[string]*model.MetricsSnapshot
	upserts   int

	labelCounts    []repository.LabelCount
	assigneeCounts []repository.AssigneeCount
	buckets        []repository.BucketCount
	velocity       *repository.VelocityReport
}

func newMemMetricsRepo(issues *memIssueRepo) *memMetricsRepo {
	return &memMetricsRepo{
		issues:    issues,
		snapshots: make(map[string]*model.MetricsSnapshot),
		velocity:  &repository.VelocityReport{},
	}
}

func (m *memMetricsRepo) Aggregate(_ context.Context, repo string) (*model.MetricsSnapshot, error) {
	snap := &model.MetricsSnapshot{Repository: repo}
	var sum float64
	var closed int
	for _, issue := range m.issues.issues {
		if issue.Repository != repo {
			continue
		}
		snap.TotalIssues++
		if issue.State == model.IssueStateOpen {
			snap.OpenIssues++
		} else {
			snap.ClosedIssues++
		}
		if issue.TimeToClose != nil {
			sum += float64(*issue.TimeToClose)
			closed++
		}
	}
	if closed > 0 {
		avg := sum / float64(closed)
		snap.AvgTimeToClose = &avg
	}
	return snap, nil
}

func (m *memMetricsRepo) UpsertSnapshot(_ context.Context, snap *model.MetricsSnapshot) error {
	cp := *snap
	m.snapshots[snap.Repository+"|"+snap.MetricDate] = &cp
	m.upserts++
	return nil
}

func (m *memMetricsRepo) History(_ context.Context, repo string, limit int) ([]model.MetricsSnapshot, error) {
	var snaps []model.MetricsSnapshot
	for _, snap := range m.snapshots {
		if snap.Repository == repo {
			snaps = append(snaps, *snap)
		}
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].MetricDate > snaps[j].MetricDate })
	if len(snaps) > limit {
		snaps = snaps[:limit]
	}
	return snaps, nil
}

func (m *memMetricsRepo) ActivitySpan(_ context.Context, repo string) (*repository.ActivitySpan, error) {
	span := &repository.ActivitySpan{}
	var oldest, latest time.Time
	for _, issue := range m.issues.issues {
		if issue.Repository != repo {
			continue
		}
		if oldest.IsZero() || issue.CreatedAt.Before(oldest) {
			oldest = issue.CreatedAt
		}
		if issue.UpdatedAt.After(latest) {
			latest = issue.UpdatedAt
		}
	}
	if !oldest.IsZero() {
		v := oldest.Format("2006-01-02")
		span.OldestIssueDate = &v
	}
	if !latest.IsZero() {
		v := latest.Format("2006-01-02")
		span.LatestUpdateDate = &v
	}
	return span, nil
}

func (m *memMetricsRepo) LabelDistribution(_ context.Context, _ string, _ int) ([]repository.LabelCount, error) {
	return m.labelCounts, nil
}

func (m *memMetricsRepo) AssigneeWorkload(_ context.Context, _ string, _ int) ([]repository.AssigneeCount, error) {
	return m.assigneeCounts, nil
}

func (m *memMetricsRepo) TimeToCloseDistribution(_ context.Context, _ string) ([]repository.BucketCount, error) {
	return m.buckets, nil
}

func (m *memMetricsRepo) Velocity(_ context.Context, _ string, _ int) (*repository.VelocityReport, error) {
	return m.velocity, nil
}

// memSessionRepo is an in-memory repository.SessionRepository.
type memSessionRepo struct {
	sessions map[string]*model.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*model.Session)}
}

func (m *memSessionRepo) Create(_ context.Context, session *model.Session) error {
	cp := *session
	m.sessions[session.ID] = &cp
	return nil
}

func (m *memSessionRepo) Get(_ context.Context, id string) (*model.Session, error) {
	session, ok := m.sessions[id]
	if !ok {
		return nil, apperror.NotFound("session", id)
	}
	cp := *session
	return &cp, nil
}

func (m *memSessionRepo) Delete(_ context.Context, id string) error {
	delete(m.sessions, id)
	return nil
}

// fakeTracker is a canned TrackerClient. Listing returns listIssues;
// UpdateIssue applies title/state fields to the record in remote.
type fakeTracker struct {
	listIssues []tracker.Issue
	listErr    error
	listCalls  int

	remote    map[int]tracker.Issue
	updateErr map[int]error
	updates   []int
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{
		remote:    make(map[int]tracker.Issue),
		updateErr: make(map[int]error),
	}
}

func (f *fakeTracker) ListRepositoryIssues(_ context.Context, _, _, _, _ string) ([]tracker.Issue, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listIssues, nil
}

func (f *fakeTracker) UpdateIssue(_ context.Context, _, _ string, number int, fields map[string]any, _ string) (*tracker.Issue, error) {
	if err, ok := f.updateErr[number]; ok {
		return nil, err
	}
	issue, ok := f.remote[number]
	if !ok {
		return nil, &apperror.TrackerAPIError{StatusCode: 404, Body: "not found"}
	}
	if title, ok := fields["title"].(string); ok {
		issue.Title = title
	}
	if state, ok := fields["state"].(string); ok {
		issue.State = state
	}
	issue.UpdatedAt = time.Now().UTC()
	f.remote[number] = issue
	f.updates = append(f.updates, number)
	return &issue, nil
}

// rawIssue builds a raw tracker record as the listing endpoint returns it.
func rawIssue(id int64, number int, state string) tracker.Issue {
	created := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	return tracker.Issue{
		ID:        id,
		Number:    number,
		Title:     fmt.Sprintf("issue %d", number),
		State:     state,
		CreatedAt: created,
		UpdatedAt: created,
		HTMLURL:   fmt.Sprintf("https://github.com/acme/widgets/issues/%d", number),
	}
}
