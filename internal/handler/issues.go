package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tasnimbay/issuedeck/internal/apperror"
	"github.com/tasnimbay/issuedeck/internal/auth"
	"github.com/tasnimbay/issuedeck/internal/repository"
	"github.com/tasnimbay/issuedeck/internal/service"
)

// IssueHandler serves the issue listing, single-issue and update endpoints.
type IssueHandler struct {
	issues *service.IssueService
	logger *slog.Logger
}

// NewIssueHandler creates an IssueHandler.
func NewIssueHandler(issues *service.IssueService, logger *slog.Logger) *IssueHandler {
	return &IssueHandler{issues: issues, logger: logger}
}

// HandleList serves GET /api/issues with filters
// repository, state, label, assignee, sort, order, page, per_page.
func (h *IssueHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := repository.IssueFilter{
		Repository: q.Get("repository"),
		State:      q.Get("state"),
		Label:      q.Get("label"),
		Assignee:   q.Get("assignee"),
		SortBy:     q.Get("sort"),
		Order:      q.Get("order"),
		Page:       intParam(q.Get("page"), 1),
		PerPage:    intParam(q.Get("per_page"), 50),
	}

	page, err := h.issues.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("listing issues", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// HandleGet serves GET /api/issues/{number}?repository=owner/name.
func (h *IssueHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	repo, number, ok := h.issueKey(w, r)
	if !ok {
		return
	}

	issue, err := h.issues.Get(r.Context(), repo, number)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, issue)
}

// HandleUpdate serves PATCH /api/issues/{number}?repository=owner/name. The
// body is the field map forwarded to the tracker (title, body, state,
// labels, ...); the response is the re-synced local issue.
func (h *IssueHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	repo, number, ok := h.issueKey(w, r)
	if !ok {
		return
	}

	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	session, _ := auth.SessionFromContext(r.Context())
	issue, err := h.issues.Update(r.Context(), repo, number, fields, session.AccessToken)
	if err != nil {
		h.logger.Error("updating issue",
			slog.String("repository", repo),
			slog.Int("number", number),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "issue": issue})
}

type bulkUpdateRequest struct {
	Repository   string         `json:"repository"`
	IssueNumbers []int          `json:"issue_numbers"`
	Updates      map[string]any `json:"updates"`
}

// HandleBulkUpdate serves PATCH /api/issues/bulk. Per-item best effort: the
// response always carries one result per requested issue number.
func (h *IssueHandler) HandleBulkUpdate(w http.ResponseWriter, r *http.Request) {
	var req bulkUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}
	if req.Repository == "" || len(req.IssueNumbers) == 0 || len(req.Updates) == 0 {
		writeError(w, apperror.ValidationFailed("body",
			"repository, issue_numbers, and updates are required"))
		return
	}

	session, _ := auth.SessionFromContext(r.Context())
	results, err := h.issues.BulkUpdate(r.Context(), req.Repository, req.IssueNumbers, req.Updates, session.AccessToken)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// issueKey extracts the (repository, number) identity shared by the
// single-issue endpoints, writing the error response itself on failure.
func (h *IssueHandler) issueKey(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	repo := r.URL.Query().Get("repository")
	if repo == "" {
		writeError(w, apperror.ValidationFailed("repository", "repository parameter required"))
		return "", 0, false
	}

	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || number < 1 {
		writeError(w, apperror.ValidationFailed("number", "issue number must be a positive integer"))
		return "", 0, false
	}

	return repo, number, true
}

func intParam(value string, fallback int) int {
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
