package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tasnimbay/issuedeck/internal/apperror"
	"github.com/tasnimbay/issuedeck/internal/model"
	"github.com/tasnimbay/issuedeck/internal/repository"
)

// SessionRepository implements repository.SessionRepository on the shared
// connection.
type SessionRepository struct {
	conn *sql.DB
}

var _ repository.SessionRepository = (*SessionRepository)(nil)

// NewSessionRepository creates a SessionRepository backed by db.
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{conn: db.conn}
}

// Create inserts a new login session.
func (r *SessionRepository) Create(ctx context.Context, session *model.Session) error {
	_, err := r.conn.ExecContext(ctx,
		`INSERT INTO sessions (id, username, access_token, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)`,
		session.ID,
		session.Username,
		session.AccessToken,
		session.CreatedAt,
		session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating session: %w", err)
	}
	return nil
}

// Get returns the session by ID, or apperror.ErrNotFound. Expiry is the
// caller's concern; the row is returned as stored.
func (r *SessionRepository) Get(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session

	err := r.conn.QueryRowContext(ctx,
		`SELECT id, username, access_token, created_at, expires_at FROM sessions WHERE id = ?`,
		id,
	).Scan(
		&session.ID,
		&session.Username,
		&session.AccessToken,
		&session.CreatedAt,
		&session.ExpiresAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("session", id)
		}
		return nil, fmt.Errorf("sqlite: getting session: %w", err)
	}

	return &session, nil
}

// Delete removes a session. Deleting an absent session is not an error.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: deleting session: %w", err)
	}
	return nil
}
