package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/teemow/caltodo/internal/instrumentation"
	"github.com/teemow/caltodo/internal/logging"
	"github.com/teemow/caltodo/internal/session"
)

const (
	// StateCookieName holds the OAuth state between redirect and callback.
	StateCookieName = "caltodo_oauth_state"

	// stateCookiePath scopes the state cookie to the auth routes.
	stateCookiePath = "/auth/google"

	// stateTTL is how long a user has to complete the consent screen.
	stateTTL = 10 * time.Minute
)

// StatusResponse is the body of GET /api/auth/status.
type StatusResponse struct {
	IsAuthorized bool `json:"isAuthorized"`
}

// handleAuthorize redirects to the Google consent screen. It does not
// touch the session store.
func (g *Gateway) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	state, err := session.NewID()
	if err != nil {
		g.logger.Error("Failed to generate OAuth state", logging.Err(err))
		writeError(w, ErrAuthorizationStart)
		return
	}

	http.SetCookie(w, g.stateCookie(state, int(stateTTL.Seconds())))
	http.Redirect(w, r, g.oauth.AuthCodeURL(state), http.StatusFound)
}

// handleCallback exchanges the authorization code, stores the credential
// under a fresh session id and redirects to the application root.
func (g *Gateway) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	code := query.Get("code")
	if code == "" {
		g.logger.Info("OAuth callback without code", "provider_error", query.Get("error"))
		g.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		writeError(w, ErrMissingAuthorizationCode)
		return
	}

	expected, err := r.Cookie(StateCookieName)
	http.SetCookie(w, g.stateCookie("", -1))
	if err != nil || !stateMatches(expected.Value, query.Get("state")) {
		g.logger.Warn("OAuth callback with invalid state")
		g.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		writeError(w, ErrInvalidState)
		return
	}

	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		g.logger.Error("Authorization code exchange failed", logging.Err(err))
		g.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		writeError(w, ErrTokenExchange)
		return
	}

	// Rotate the session id on login.
	if oldID, ok := g.cookies.ID(r); ok {
		if err := g.store.Delete(ctx, oldID); err != nil && !errors.Is(err, session.ErrNotFound) {
			g.logger.Warn("Failed to delete previous session", logging.SessionHash(oldID), logging.Err(err))
		}
	}

	id, err := g.cookies.Issue(w)
	if err != nil {
		g.logger.Error("Failed to issue session", logging.Err(err))
		writeError(w, ErrSessionStore)
		return
	}
	if err := g.store.Put(ctx, id, session.FromToken(token)); err != nil {
		g.logger.Error("Failed to store credential", logging.SessionHash(id), logging.Err(err))
		g.cookies.Clear(w)
		writeError(w, ErrSessionStore)
		return
	}

	g.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultSuccess)
	g.metrics.RecordSessionCreated(ctx)
	g.logger.Info("Google authorization succeeded", logging.SessionHash(id))

	http.Redirect(w, r, "/", http.StatusFound)
}

// handleStatus reports whether the session holds a credential. It never
// calls Google.
func (g *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	authorized := false
	if id, ok := g.cookies.ID(r); ok {
		_, err := g.store.Get(r.Context(), id)
		switch {
		case err == nil:
			authorized = true
		case !errors.Is(err, session.ErrNotFound):
			g.logger.Warn("Session lookup failed", logging.SessionHash(id), logging.Err(err))
		}
	}
	writeJSON(w, http.StatusOK, StatusResponse{IsAuthorized: authorized})
}

// handleLogout deletes the session credential and clears the cookie.
func (g *Gateway) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if id, ok := g.cookies.ID(r); ok {
		err := g.store.Delete(ctx, id)
		if err != nil && !errors.Is(err, session.ErrNotFound) {
			g.logger.Error("Failed to delete session", logging.SessionHash(id), logging.Err(err))
			writeError(w, ErrSessionStore)
			return
		}
		if err == nil {
			g.metrics.RecordSessionEnded(ctx, "logout")
		}
	}
	g.cookies.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

type calendarSessionKey struct{}

// requireSession rejects requests without a session credential with 401
// before any Calendar call, and attaches the session calendar otherwise.
func (g *Gateway) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, ok := g.cookies.ID(r)
		if !ok {
			writeError(w, ErrUnauthenticated)
			return
		}

		cred, err := g.store.Get(ctx, id)
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, ErrUnauthenticated)
			return
		}
		if err != nil {
			g.logger.Error("Session lookup failed", logging.SessionHash(id), logging.Err(err))
			writeError(w, ErrSessionStore)
			return
		}

		cs, err := g.newCalendarSession(ctx, id, cred)
		if err != nil {
			g.logger.Error("Failed to prepare calendar session", logging.SessionHash(id), logging.Err(err))
			writeError(w, ErrInternal)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, calendarSessionKey{}, cs)))
	})
}

func calendarSessionFrom(ctx context.Context) *calendarSession {
	cs, _ := ctx.Value(calendarSessionKey{}).(*calendarSession)
	return cs
}

func (g *Gateway) stateCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     StateCookieName,
		Value:    value,
		Path:     stateCookiePath,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   g.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func stateMatches(expected, got string) bool {
	if expected == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

// validateHTTPSRequirement ensures the gateway is served over HTTPS.
// HTTP is allowed only for loopback addresses (localhost, 127.0.0.1, ::1).
func validateHTTPSRequirement(baseURL string) error {
	if baseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	// Allow HTTP only for loopback addresses
	if u.Scheme == "http" {
		host := u.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			return fmt.Errorf("OAuth requires HTTPS for production (got: %s). Use HTTPS or localhost for development", baseURL)
		}
	} else if u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s. Must be http (localhost only) or https", u.Scheme)
	}

	return nil
}
