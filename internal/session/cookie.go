package session

import (
	"net/http"
	"time"
)

// DefaultCookieName is the name of the session cookie.
const DefaultCookieName = "caltodo_session"

// CookieManager reads and writes the session cookie.
type CookieManager struct {
	Name   string
	MaxAge time.Duration
	Secure bool
}

// NewCookieManager returns a manager for the default cookie name.
func NewCookieManager(maxAge time.Duration, secure bool) *CookieManager {
	if maxAge <= 0 {
		maxAge = DefaultTTL
	}
	return &CookieManager{
		Name:   DefaultCookieName,
		MaxAge: maxAge,
		Secure: secure,
	}
}

// ID returns the session id carried by r. Malformed values are ignored.
func (m *CookieManager) ID(r *http.Request) (string, bool) {
	c, err := r.Cookie(m.Name)
	if err != nil || !validID(c.Value) {
		return "", false
	}
	return c.Value, true
}

// Issue generates a new session id and sets it on w.
func (m *CookieManager) Issue(w http.ResponseWriter) (string, error) {
	id, err := NewID()
	if err != nil {
		return "", err
	}
	http.SetCookie(w, m.cookie(id, int(m.MaxAge.Seconds())))
	return id, nil
}

// Clear expires the session cookie on the client.
func (m *CookieManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, m.cookie("", -1))
}

func (m *CookieManager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.Name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
