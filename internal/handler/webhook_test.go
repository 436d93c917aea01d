package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasnimbay/issuedeck/internal/apperror"
	"github.com/tasnimbay/issuedeck/internal/repository/sqlite"
	"github.com/tasnimbay/issuedeck/internal/service"
	"github.com/tasnimbay/issuedeck/internal/tracker"
	"github.com/tasnimbay/issuedeck/internal/webhook"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newWebhookFixture(t *testing.T, secret string) (*WebhookHandler, *sqlite.IssueRepository) {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := testLogger()
	issues := sqlite.NewIssueRepository(db)
	metrics := service.NewMetricsService(sqlite.NewMetricsRepository(db), logger)
	sync := service.NewSyncService(issues, sqlite.NewSyncStatusRepository(db), metrics, nil, logger)

	return NewWebhookHandler(sync, secret, logger), issues
}

func issueEventPayload(t *testing.T, repo string, number int) []byte {
	t.Helper()
	created := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	event := webhook.IssueEvent{
		Action: "opened",
		Issue: &tracker.Issue{
			ID:        int64(number),
			Number:    number,
			Title:     "crash on start",
			State:     "open",
			CreatedAt: created,
			UpdatedAt: created,
		},
	}
	event.Repository.FullName = repo

	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return payload
}

func signPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func deliver(handler *WebhookHandler, event, signature string, payload []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(payload))
	req.Header.Set(webhook.EventHeader, event)
	if signature != "" {
		req.Header.Set(webhook.SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	handler.HandleWebhook(rec, req)
	return rec
}

func TestWebhookRejectsInvalidSignature(t *testing.T) {
	handler, issues := newWebhookFixture(t, "topsecret")
	payload := issueEventPayload(t, "acme/widgets", 42)

	rec := deliver(handler, "issues", signPayload("wrong-secret", payload), payload)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"invalid signature"}`, rec.Body.String())

	// The rejected delivery must not have touched the mirror.
	_, err := issues.Get(context.Background(), "acme/widgets", 42)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestWebhookIngestsIssueEvent(t *testing.T) {
	handler, issues := newWebhookFixture(t, "topsecret")
	payload := issueEventPayload(t, "acme/widgets", 42)

	rec := deliver(handler, "issues", signPayload("topsecret", payload), payload)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"processed"}`, rec.Body.String())

	issue, err := issues.Get(context.Background(), "acme/widgets", 42)
	require.NoError(t, err)
	assert.Equal(t, "crash on start", issue.Title)
}

func TestWebhookEmptySecretSkipsVerification(t *testing.T) {
	handler, issues := newWebhookFixture(t, "")
	payload := issueEventPayload(t, "acme/widgets", 7)

	rec := deliver(handler, "issues", "", payload)

	assert.Equal(t, http.StatusOK, rec.Code)
	_, err := issues.Get(context.Background(), "acme/widgets", 7)
	assert.NoError(t, err)
}

func TestWebhookPing(t *testing.T) {
	handler, _ := newWebhookFixture(t, "")

	rec := deliver(handler, "ping", "", []byte(`{"zen":"Design for failure."}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"webhook configured successfully"}`, rec.Body.String())
}

func TestWebhookIgnoresOtherEvents(t *testing.T) {
	handler, _ := newWebhookFixture(t, "")

	rec := deliver(handler, "star", "", []byte(`{"action":"created"}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"processed"}`, rec.Body.String())
}

func TestWebhookBadIssuesPayload(t *testing.T) {
	handler, _ := newWebhookFixture(t, "")

	rec := deliver(handler, "issues", "", []byte(`{"action":"opened"}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
