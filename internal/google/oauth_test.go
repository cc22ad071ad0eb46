package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
)

// fakeTokenEndpoint serves Google-style token responses. Authorization
// codes other than "good-code" and refresh tokens other than
// "good-refresh" are rejected with invalid_grant, except "unavailable",
// which gets a 503, and "stalled", which never gets an answer.
func fakeTokenEndpoint(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.NoError(t, r.ParseForm())

		var body map[string]any
		switch r.PostForm.Get("grant_type") {
		case "authorization_code":
			if r.PostForm.Get("code") != "good-code" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			body = map[string]any{
				"access_token":  "access-1",
				"refresh_token": "good-refresh",
				"token_type":    "Bearer",
				"expires_in":    3600,
			}
		case "refresh_token":
			switch r.PostForm.Get("refresh_token") {
			case "unavailable":
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"error":"backend_error"}`))
				return
			case "stalled":
				<-r.Context().Done()
				return
			}
			if r.PostForm.Get("refresh_token") != "good-refresh" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			// Google does not rotate refresh tokens.
			body = map[string]any{
				"access_token": "access-2",
				"token_type":   "Bearer",
				"expires_in":   3600,
			}
		default:
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, calls *atomic.Int32) *OAuthClient {
	t.Helper()
	srv := fakeTokenEndpoint(t, calls)

	conf := NewOAuthConfig("client-id", "client-secret", "http://localhost:8080/auth/google/callback")
	conf.Endpoint = oauth2.Endpoint{
		AuthURL:   srv.URL + "/auth",
		TokenURL:  srv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	return NewOAuthClient(conf, srv.Client())
}

func TestNewOAuthConfig(t *testing.T) {
	conf := NewOAuthConfig("id", "secret", "http://localhost/cb")

	assert.Equal(t, "id", conf.ClientID)
	assert.Equal(t, "secret", conf.ClientSecret)
	assert.Equal(t, "http://localhost/cb", conf.RedirectURL)
	assert.Equal(t, []string{calendar.CalendarEventsScope}, conf.Scopes)
	assert.Equal(t, "https://www.googleapis.com/auth/calendar.events", conf.Scopes[0])
}

func TestAuthCodeURL(t *testing.T) {
	client := NewOAuthClient(NewOAuthConfig("id", "secret", "http://localhost/cb"), nil)

	u, err := url.Parse(client.AuthCodeURL("xyz"))
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "accounts.google.com", u.Host)
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "xyz", q.Get("state"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, calendar.CalendarEventsScope, q.Get("scope"))
	assert.Equal(t, "http://localhost/cb", q.Get("redirect_uri"))
}

func TestExchange(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, &calls)

	token, err := client.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "access-1", token.AccessToken)
	assert.Equal(t, "good-refresh", token.RefreshToken)
	assert.True(t, token.Expiry.After(time.Now()))

	_, err = client.Exchange(context.Background(), "replayed-code")
	assert.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRefresh(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, &calls)

	current := &oauth2.Token{
		AccessToken:  "access-1",
		RefreshToken: "good-refresh",
		Expiry:       time.Now().Add(time.Hour),
	}

	fresh, err := client.Refresh(context.Background(), current)
	require.NoError(t, err)
	assert.Equal(t, "access-2", fresh.AccessToken)
	assert.Equal(t, "good-refresh", fresh.RefreshToken, "refresh token should be carried over")
	assert.Equal(t, int32(1), calls.Load(), "refresh must be forced even for an unexpired token")
}

func TestRefresh_Failures(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, &calls)

	_, err := client.Refresh(context.Background(), &oauth2.Token{AccessToken: "a"})
	assert.ErrorIs(t, err, ErrNoRefreshToken)

	_, err = client.Refresh(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoRefreshToken)
	assert.Equal(t, int32(0), calls.Load())

	_, err = client.Refresh(context.Background(), &oauth2.Token{RefreshToken: "revoked"})
	assert.Error(t, err)
}

func TestRefresh_HonorsContextDeadline(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, &calls)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Refresh(ctx, &oauth2.Token{RefreshToken: "stalled"})
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, IsGrantRejected(err), "a timeout is not a rejected grant")
}

func TestIsGrantRejected(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, &calls)
	ctx := context.Background()

	_, err := client.Refresh(ctx, &oauth2.Token{RefreshToken: "revoked"})
	require.Error(t, err)
	assert.True(t, IsGrantRejected(err), "invalid_grant")

	_, err = client.Refresh(ctx, &oauth2.Token{AccessToken: "a"})
	assert.True(t, IsGrantRejected(err), "missing refresh token")

	_, err = client.Refresh(ctx, &oauth2.Token{RefreshToken: "unavailable"})
	require.Error(t, err)
	assert.False(t, IsGrantRejected(err), "server errors are transient")

	assert.False(t, IsGrantRejected(context.DeadlineExceeded))
	assert.False(t, IsGrantRejected(nil))
}

func TestNewOAuthClient_DefaultClientHasTimeout(t *testing.T) {
	client := NewOAuthClient(NewOAuthConfig("id", "secret", "http://localhost/cb"), nil)

	require.NotNil(t, client.httpClient)
	assert.Equal(t, DefaultTokenExchangeTimeout, client.httpClient.Timeout)
	assert.NotNil(t, client.httpClient.Transport)
}

func TestTokenSource_NotifiesOnRefresh(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, &calls)

	var refreshed []*oauth2.Token
	expired := &oauth2.Token{
		AccessToken:  "access-1",
		RefreshToken: "good-refresh",
		Expiry:       time.Now().Add(-time.Minute),
	}

	ts := client.TokenSource(context.Background(), expired, func(tok *oauth2.Token) {
		refreshed = append(refreshed, tok)
	})

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "access-2", tok.AccessToken)

	_, err = ts.Token()
	require.NoError(t, err)

	require.Len(t, refreshed, 1, "callback should fire once per new token")
	assert.Equal(t, "access-2", refreshed[0].AccessToken)
}

func TestTokenSource_ValidTokenNotNotified(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, &calls)

	valid := &oauth2.Token{AccessToken: "access-1", Expiry: time.Now().Add(time.Hour)}
	notified := false
	ts := client.TokenSource(context.Background(), valid, func(*oauth2.Token) { notified = true })

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok.AccessToken)
	assert.False(t, notified)
	assert.Equal(t, int32(0), calls.Load())
}

func TestIsTokenExpired(t *testing.T) {
	tests := []struct {
		name  string
		token *oauth2.Token
		want  bool
	}{
		{"far from expiry", &oauth2.Token{Expiry: time.Now().Add(time.Hour)}, false},
		{"within threshold", &oauth2.Token{Expiry: time.Now().Add(3 * time.Minute)}, true},
		{"already expired", &oauth2.Token{Expiry: time.Now().Add(-time.Minute)}, true},
		{"no expiry", &oauth2.Token{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTokenExpired(tt.token, 5*time.Minute))
		})
	}
}
