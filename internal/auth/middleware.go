package auth

import (
	"context"
	"net/http"

	"github.com/tasnimbay/issuedeck/internal/model"
)

// SessionCookie is the name of the HttpOnly cookie carrying the session ID.
const SessionCookie = "session"

// SessionVerifier resolves a session cookie value to a live session.
// *service.SessionService implements it.
type SessionVerifier interface {
	Verify(ctx context.Context, id string) (*model.Session, error)
}

// contextKey is unexported so only this package can place or read session
// values in a request context.
type contextKey string

const sessionKey contextKey = "session"

// RequireSession guards API routes: it resolves the session cookie and stores
// the session in the request context, or replies 401 and stops the chain.
// The stored session carries the GitHub access token the handlers need for
// write-through tracker calls.
func RequireSession(sessions SessionVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookie)
			if err != nil {
				unauthorized(w)
				return
			}

			session, err := sessions.Verify(r.Context(), cookie.Value)
			if err != nil {
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext returns the authenticated session placed by
// RequireSession, or (nil, false) outside a guarded route.
func SessionFromContext(ctx context.Context) (*model.Session, bool) {
	session, ok := ctx.Value(sessionKey).(*model.Session)
	return session, ok && session != nil
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"Unauthorized"}`))
}
