package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/teemow/caltodo/internal/session"
	"github.com/teemow/caltodo/internal/todo"
)

// DefaultTimeout bounds a single gateway request.
const DefaultTimeout = 30 * time.Second

var (
	// ErrInvalidTask is returned when the gateway sends a task without an
	// id, a title or a date-time.
	ErrInvalidTask = errors.New("invalid task received from gateway")

	// ErrInvalidID is returned before any request when a task id is empty.
	ErrInvalidID = errors.New("invalid task id")
)

// StatusError is returned for any non-2xx gateway response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway returned %d", e.StatusCode)
	}
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Message)
}

// Client is an HTTP client for the caltodo gateway.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client) error

// WithHTTPClient sets the HTTP client. Its cookie jar, if any, carries
// the session.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithSessionCookie presets the session cookie value, for example one
// copied from a browser after signing in.
func WithSessionCookie(value string) Option {
	return func(c *Client) error {
		if c.httpClient.Jar == nil {
			return errors.New("http client has no cookie jar")
		}
		c.httpClient.Jar.SetCookies(c.baseURL, []*http.Cookie{{
			Name:  session.DefaultCookieName,
			Value: value,
			Path:  "/",
		}})
		return nil
	}
}

// New creates a client for the gateway at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid gateway URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid gateway URL scheme: %q", u.Scheme)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Jar: jar, Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// LoginURL returns the URL a browser opens to sign in.
func (c *Client) LoginURL() string {
	return c.baseURL.String() + "/auth/google"
}

// AuthStatus reports whether the session is authorized.
func (c *Client) AuthStatus(ctx context.Context) (bool, error) {
	var resp struct {
		IsAuthorized bool `json:"isAuthorized"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/status", nil, &resp); err != nil {
		return false, err
	}
	return resp.IsAuthorized, nil
}

// FetchTodos returns the upcoming tasks.
func (c *Client) FetchTodos(ctx context.Context) ([]todo.Task, error) {
	var tasks []todo.Task
	if err := c.do(ctx, http.MethodGet, "/api/todos", nil, &tasks); err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if err := validateTask(t); err != nil {
			return nil, err
		}
	}
	if tasks == nil {
		tasks = []todo.Task{}
	}
	return tasks, nil
}

// CreateTodo creates a task titled title at at.
func (c *Client) CreateTodo(ctx context.Context, title string, at time.Time) (todo.Task, error) {
	body := map[string]string{
		"title":    title,
		"dateTime": at.Format(time.RFC3339),
	}
	var task todo.Task
	if err := c.do(ctx, http.MethodPost, "/api/todos", body, &task); err != nil {
		return todo.Task{}, err
	}
	if err := validateTask(task); err != nil {
		return todo.Task{}, err
	}
	return task, nil
}

// RemoveTodo deletes the task with the given id.
func (c *Client) RemoveTodo(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidID
	}
	return c.do(ctx, http.MethodDelete, "/api/todos/"+url.PathEscape(id), nil, nil)
}

// Logout ends the session.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(b, &body) != nil {
		body.Error = strings.TrimSpace(string(b))
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: body.Error}
}

func validateTask(t todo.Task) error {
	if t.ID == "" || t.Title == "" || t.DateTime.IsZero() {
		return ErrInvalidTask
	}
	return nil
}
