package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/caltodo/internal/session"
	"github.com/teemow/caltodo/internal/todo"
)

// fakeGateway serves the gateway routes for one known session cookie.
type fakeGateway struct {
	*httptest.Server

	mu       sync.Mutex
	session  string
	tasks    []todo.Task
	nextID   int
	requests int
	failNext int
}

func newFakeGateway(t *testing.T, sessionID string) *fakeGateway {
	t.Helper()
	g := &fakeGateway{session: sessionID}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/auth/status", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusOK, map[string]bool{"isAuthorized": g.authorized(r)})
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, _ *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: session.DefaultCookieName, Path: "/", MaxAge: -1})
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /api/todos", g.guard(func(w http.ResponseWriter, _ *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()
		writeTestJSON(w, http.StatusOK, g.tasks)
	}))
	mux.HandleFunc("POST /api/todos", g.guard(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Title    string `json:"title"`
			DateTime string `json:"dateTime"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		at, err := time.Parse(time.RFC3339, req.DateTime)
		if req.Title == "" || err != nil {
			writeTestJSON(w, http.StatusBadRequest, map[string]string{"error": "제목과 날짜/시간이 필요합니다."})
			return
		}
		g.mu.Lock()
		g.nextID++
		task := todo.Task{ID: fmt.Sprintf("evt%d", g.nextID), Title: req.Title, DateTime: at}
		task.EventID = task.ID
		g.tasks = todo.Insert(g.tasks, task)
		g.mu.Unlock()
		writeTestJSON(w, http.StatusCreated, task)
	}))
	mux.HandleFunc("DELETE /api/todos/{id}", g.guard(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		g.mu.Lock()
		defer g.mu.Unlock()
		if _, ok := todo.Find(g.tasks, id); !ok {
			writeTestJSON(w, http.StatusInternalServerError, map[string]string{"error": "캘린더 이벤트를 삭제하지 못했습니다."})
			return
		}
		g.tasks = todo.Remove(g.tasks, id)
		writeTestJSON(w, http.StatusOK, map[string]string{"id": id})
	}))

	g.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		g.requests++
		fail := g.failNext
		g.failNext = 0
		g.mu.Unlock()
		if fail != 0 {
			writeTestJSON(w, fail, map[string]string{"error": "injected"})
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(g.Close)
	return g
}

func (g *fakeGateway) authorized(r *http.Request) bool {
	c, err := r.Cookie(session.DefaultCookieName)
	return err == nil && c.Value == g.session
}

func (g *fakeGateway) guard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !g.authorized(r) {
			writeTestJSON(w, http.StatusUnauthorized, map[string]string{"error": "인증되지 않았습니다. 먼저 로그인해주세요."})
			return
		}
		next(w, r)
	}
}

func (g *fakeGateway) seed(tasks ...todo.Task) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tasks = append(g.tasks, tasks...)
}

func (g *fakeGateway) fail(status int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failNext = status
}

func (g *fakeGateway) requestCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests
}

func writeTestJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

const testSession = "test-session"

func newTestClient(t *testing.T, g *fakeGateway) *Client {
	t.Helper()
	c, err := New(g.URL, WithSessionCookie(testSession))
	require.NoError(t, err)
	return c
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New("ftp://example.com")
	assert.Error(t, err)

	_, err = New("://")
	assert.Error(t, err)
}

func TestClient_LoginURL(t *testing.T) {
	c, err := New("http://localhost:8080/")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/auth/google", c.LoginURL())
}

func TestClient_AuthStatus(t *testing.T) {
	g := newFakeGateway(t, testSession)
	ctx := context.Background()

	anonymous, err := New(g.URL)
	require.NoError(t, err)
	ok, err := anonymous.AuthStatus(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = newTestClient(t, g).AuthStatus(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClient_TodoRoundTrip(t *testing.T) {
	g := newFakeGateway(t, testSession)
	c := newTestClient(t, g)
	ctx := context.Background()

	at := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	created, err := c.CreateTodo(ctx, "우유 사기", at)
	require.NoError(t, err)
	assert.Equal(t, "우유 사기", created.Title)
	assert.True(t, created.DateTime.Equal(at))

	tasks, err := c.FetchTodos(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, created.ID, tasks[0].ID)

	require.NoError(t, c.RemoveTodo(ctx, created.ID))
	tasks, err = c.FetchTodos(ctx)
	require.NoError(t, err)
	assert.NotNil(t, tasks)
	assert.Empty(t, tasks)
}

func TestClient_Unauthorized(t *testing.T) {
	g := newFakeGateway(t, testSession)
	c, err := New(g.URL)
	require.NoError(t, err)

	_, err = c.FetchTodos(context.Background())
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Equal(t, "인증되지 않았습니다. 먼저 로그인해주세요.", statusErr.Message)
}

func TestClient_RemoveTodoRequiresID(t *testing.T) {
	g := newFakeGateway(t, testSession)
	c := newTestClient(t, g)

	err := c.RemoveTodo(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.Zero(t, g.requestCount())
}

func TestClient_RejectsIncompleteTasks(t *testing.T) {
	g := newFakeGateway(t, testSession)
	g.seed(todo.Task{ID: "evt1", Title: ""})
	c := newTestClient(t, g)

	_, err := c.FetchTodos(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTask)
}

func TestClient_Logout(t *testing.T) {
	g := newFakeGateway(t, testSession)
	c := newTestClient(t, g)
	ctx := context.Background()

	require.NoError(t, c.Logout(ctx))
	ok, err := c.AuthStatus(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "logout clears the cookie")
}
