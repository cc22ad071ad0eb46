package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/teemow/caltodo/internal/calendar/calendartest"
	"github.com/teemow/caltodo/internal/google"
	"github.com/teemow/caltodo/internal/session"
)

// fakeGoogle is a Google OAuth token endpoint. The code "good-code"
// yields access-1/refresh-1; refreshing refresh-1 yields access-2 without
// rotating the refresh token. refreshDelay holds refresh answers back and
// refreshStatus, when set, answers refreshes with that server error.
type fakeGoogle struct {
	*httptest.Server
	refreshes     atomic.Int32
	exchanges     atomic.Int32
	failRefresh   atomic.Bool
	refreshDelay  atomic.Int64
	refreshStatus atomic.Int32
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	t.Helper()
	f := &fakeGoogle{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token" || r.ParseForm() != nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		var body map[string]any
		switch r.PostForm.Get("grant_type") {
		case "authorization_code":
			f.exchanges.Add(1)
			if r.PostForm.Get("code") != "good-code" {
				writeInvalidGrant(w)
				return
			}
			body = map[string]any{
				"access_token":  "access-1",
				"refresh_token": "refresh-1",
				"token_type":    "Bearer",
				"expires_in":    3600,
			}
		case "refresh_token":
			f.refreshes.Add(1)
			if d := time.Duration(f.refreshDelay.Load()); d > 0 {
				select {
				case <-time.After(d):
				case <-r.Context().Done():
					return
				}
			}
			if code := f.refreshStatus.Load(); code != 0 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(int(code))
				_, _ = w.Write([]byte(`{"error":"backend_error"}`))
				return
			}
			if f.failRefresh.Load() || r.PostForm.Get("refresh_token") != "refresh-1" {
				writeInvalidGrant(w)
				return
			}
			body = map[string]any{
				"access_token": "access-2",
				"token_type":   "Bearer",
				"expires_in":   3600,
			}
		default:
			writeInvalidGrant(w)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(f.Close)
	return f
}

func writeInvalidGrant(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
}

type harness struct {
	t       *testing.T
	google  *fakeGoogle
	cal     *calendartest.Server
	store   *session.MemoryStore
	gateway *Gateway
	srv     *httptest.Server
	client  *http.Client
	now     time.Time
}

var testNow = time.Date(2024, 12, 31, 12, 0, 0, 0, time.UTC)

func newHarness(t *testing.T, configure ...func(*Options)) *harness {
	t.Helper()

	h := &harness{t: t, now: testNow}
	h.google = newFakeGoogle(t)
	h.cal = calendartest.NewServer()
	t.Cleanup(h.cal.Close)

	h.store = session.NewMemoryStore(time.Hour, slog.New(slog.DiscardHandler))
	t.Cleanup(h.store.Stop)

	conf := google.NewOAuthConfig("client-id", "client-secret", "http://localhost:8080/auth/google/callback")
	conf.Endpoint = oauth2.Endpoint{
		AuthURL:   h.google.URL + "/auth",
		TokenURL:  h.google.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}

	opts := Options{
		OAuth:            google.NewOAuthClient(conf, h.google.Client()),
		Store:            h.store,
		BaseURL:          "http://localhost:8080",
		CalendarEndpoint: h.cal.Endpoint(),
		Location:         time.UTC,
		Logger:           slog.New(slog.DiscardHandler),
		Now:              func() time.Time { return h.now },
	}
	for _, fn := range configure {
		fn(&opts)
	}

	gw, err := NewGateway(opts)
	require.NoError(t, err)
	h.gateway = gw

	h.srv = httptest.NewServer(gw.Handler())
	t.Cleanup(h.srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	h.client = &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return h
}

func (h *harness) do(method, path string, body io.Reader) *http.Response {
	h.t.Helper()
	req, err := http.NewRequest(method, h.srv.URL+path, body)
	require.NoError(h.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := h.client.Do(req)
	require.NoError(h.t, err)
	h.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (h *harness) get(path string) *http.Response {
	return h.do(http.MethodGet, path, nil)
}

func (h *harness) postJSON(path string, v any) *http.Response {
	h.t.Helper()
	b, err := json.Marshal(v)
	require.NoError(h.t, err)
	return h.do(http.MethodPost, path, strings.NewReader(string(b)))
}

// login runs the consent redirect and the callback with a good code.
func (h *harness) login() {
	h.t.Helper()

	resp := h.get("/auth/google")
	require.Equal(h.t, http.StatusFound, resp.StatusCode)
	consent, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(h.t, err)
	state := consent.Query().Get("state")
	require.NotEmpty(h.t, state)

	resp = h.get("/auth/google/callback?code=good-code&state=" + url.QueryEscape(state))
	require.Equal(h.t, http.StatusFound, resp.StatusCode)
	require.Equal(h.t, "/", resp.Header.Get("Location"))
}

func (h *harness) sessionID() string {
	h.t.Helper()
	u, err := url.Parse(h.srv.URL)
	require.NoError(h.t, err)
	for _, c := range h.client.Jar.Cookies(u) {
		if c.Name == session.DefaultCookieName {
			return c.Value
		}
	}
	return ""
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}
