package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tasnimbay/issuedeck/internal/apperror"
	"github.com/tasnimbay/issuedeck/internal/auth"
	"github.com/tasnimbay/issuedeck/internal/service"
)

// SyncHandler triggers full repository syncs.
type SyncHandler struct {
	sync   *service.SyncService
	logger *slog.Logger
}

// NewSyncHandler creates a SyncHandler.
func NewSyncHandler(sync *service.SyncService, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{sync: sync, logger: logger}
}

type syncRequest struct {
	Repository string `json:"repository"`
}

// HandleSync serves POST /api/sync with body {"repository": "owner/name"}.
// The sync runs to completion within the request; the response reports how
// many issues were processed.
func (h *SyncHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}
	if req.Repository == "" {
		writeError(w, apperror.ValidationFailed("repository", "repository parameter required"))
		return
	}

	session, _ := auth.SessionFromContext(r.Context())
	count, err := h.sync.SyncRepository(r.Context(), req.Repository, session.AccessToken)
	if err != nil {
		h.logger.Error("repository sync request failed",
			slog.String("repository", req.Repository),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "count": count})
}

// HandleSyncStatus serves GET /api/sync/status?repository=owner/name. It
// returns the repository's sync record, or 404 when the repository has never
// been synced.
func (h *SyncHandler) HandleSyncStatus(w http.ResponseWriter, r *http.Request) {
	repo := r.URL.Query().Get("repository")
	if repo == "" {
		writeError(w, apperror.ValidationFailed("repository", "repository parameter required"))
		return
	}

	status, err := h.sync.Status(r.Context(), repo)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}
