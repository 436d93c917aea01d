package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/tasnimbay/issuedeck/internal/auth"
	"github.com/tasnimbay/issuedeck/internal/service"
)

const stateCookie = "oauth_state"

// AuthHandler runs the GitHub OAuth handshake and turns a successful
// callback into a server-side session plus the session cookie.
type AuthHandler struct {
	provider *auth.GitHubProvider
	sessions *service.SessionService
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(provider *auth.GitHubProvider, sessions *service.SessionService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{provider: provider, sessions: sessions, logger: logger}
}

// HandleLogin serves GET /auth: stores a random anti-CSRF state in a
// short-lived cookie and redirects to GitHub's authorization page.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.provider.AuthURL(state), http.StatusFound)
}

// HandleCallback serves GET /auth/callback: verifies the state, exchanges
// the code, creates the session and sets the session cookie.
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != query.Get("state") {
		http.Error(w, "authorization failed: state mismatch", http.StatusBadRequest)
		return
	}

	code := query.Get("code")
	if code == "" {
		http.Error(w, "authorization failed: no code provided", http.StatusBadRequest)
		return
	}

	user, accessToken, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("oauth exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	session, err := h.sessions.Create(r.Context(), user.Login, accessToken)
	if err != nil {
		h.logger.Error("session creation failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	// Clear the state cookie and set the session cookie. HttpOnly keeps the
	// session ID away from page scripts; the GitHub token itself never
	// leaves the server.
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    session.ID,
		Path:     "/",
		MaxAge:   int(service.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, "/", http.StatusFound)
}
