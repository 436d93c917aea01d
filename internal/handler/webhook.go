package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/tasnimbay/issuedeck/internal/service"
	"github.com/tasnimbay/issuedeck/internal/webhook"
)

// WebhookHandler is the signature-verified entry point for tracker-pushed
// events.
type WebhookHandler struct {
	sync   *service.SyncService
	secret string
	logger *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler. With an empty secret signature
// verification is skipped: a development-mode bypass, logged loudly at
// startup by the server wiring.
func NewWebhookHandler(sync *service.SyncService, secret string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{sync: sync, secret: secret, logger: logger}
}

// HandleWebhook serves POST /webhook. Only "issues" events mutate state;
// "ping" is acknowledged; everything else gets a generic processed reply so
// GitHub does not retry deliveries we will never act on.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unreadable body"})
		return
	}

	if !webhook.VerifySignature(h.secret, body, r.Header.Get(webhook.SignatureHeader)) {
		h.logger.Warn("webhook delivery rejected: invalid signature")
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid signature"})
		return
	}

	switch event := r.Header.Get(webhook.EventHeader); event {
	case "issues":
		payload, err := webhook.ParseIssueEvent(body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid issues payload"})
			return
		}
		if err := h.sync.IngestIssueEvent(r.Context(), payload); err != nil {
			h.logger.Error("webhook processing failed", slog.String("error", err.Error()))
			// 500 tells GitHub to retry the delivery per its own policy.
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "event processing failed"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})

	case "ping":
		writeJSON(w, http.StatusOK, map[string]string{"message": "webhook configured successfully"})

	default:
		h.logger.Debug("ignoring webhook event", slog.String("event", event))
		writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
	}
}
