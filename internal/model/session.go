package model

import "time"

// Session is a server-side login session created by the OAuth callback.
//
// The GitHub access token lives here, never in the browser: the cookie only
// carries the opaque session ID, and API handlers pull the token out of the
// stored session when they need to call GitHub on the user's behalf.
type Session struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	AccessToken string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
