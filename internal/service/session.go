package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rs/xid"

	"github.com/tasnimbay/issuedeck/internal/apperror"
	"github.com/tasnimbay/issuedeck/internal/model"
	"github.com/tasnimbay/issuedeck/internal/repository"
)

// SessionTTL is how long a login session stays valid.
const SessionTTL = 7 * 24 * time.Hour

// SessionService manages server-side login sessions. The OAuth callback
// creates one per login; the auth middleware resolves the session cookie
// through Verify on every API request.
type SessionService struct {
	sessions repository.SessionRepository
	logger   *slog.Logger
}

// NewSessionService creates a SessionService.
func NewSessionService(sessions repository.SessionRepository, logger *slog.Logger) *SessionService {
	return &SessionService{sessions: sessions, logger: logger}
}

// Create stores a new session for the authenticated GitHub user and returns
// it. The session ID is the value that goes into the cookie; the access
// token stays server-side.
func (s *SessionService) Create(ctx context.Context, username, accessToken string) (*model.Session, error) {
	now := time.Now().UTC()
	session := &model.Session{
		ID:          xid.New().String(),
		Username:    username,
		AccessToken: accessToken,
		CreatedAt:   now,
		ExpiresAt:   now.Add(SessionTTL),
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("service/session: creating session for %s: %w", username, err)
	}

	s.logger.Info("session created", slog.String("username", username))

	return session, nil
}

// Verify resolves a session ID to a live session. Missing or expired
// sessions yield apperror.ErrUnauthorized; expired rows are deleted on the
// way out.
func (s *SessionService) Verify(ctx context.Context, id string) (*model.Session, error) {
	if id == "" {
		return nil, apperror.Unauthorized("missing session")
	}

	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("invalid session")
		}
		return nil, fmt.Errorf("service/session: loading session: %w", err)
	}

	if session.Expired(time.Now().UTC()) {
		if err := s.sessions.Delete(ctx, id); err != nil {
			s.logger.Warn("deleting expired session", slog.String("error", err.Error()))
		}
		return nil, apperror.Unauthorized("session expired")
	}

	return session, nil
}
