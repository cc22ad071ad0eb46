package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/teemow/caltodo/internal/calendar"
	"github.com/teemow/caltodo/internal/google"
	"github.com/teemow/caltodo/internal/instrumentation"
	"github.com/teemow/caltodo/internal/session"
)

const (
	// DefaultReadHeaderTimeout bounds reading request headers.
	DefaultReadHeaderTimeout = 10 * time.Second

	// DefaultWriteTimeout leaves room for one refresh plus two Calendar
	// calls at the default Calendar timeout.
	DefaultWriteTimeout = 60 * time.Second

	// DefaultIdleTimeout closes idle keep-alive connections.
	DefaultIdleTimeout = 120 * time.Second

	// maxRequestBody caps JSON request bodies.
	maxRequestBody = 1 << 20
)

// Options configures a Gateway.
type Options struct {
	// OAuth performs the Google authorization code flow. Required.
	OAuth *google.OAuthClient
	// Store holds session credentials. Required.
	Store session.Store
	// Cookies issues the session cookie. Nil uses session defaults.
	Cookies *session.CookieManager

	// BaseURL is the public URL of the gateway. It must be HTTPS unless
	// the host is a loopback address.
	BaseURL string

	// CalendarID is the calendar tasks live in. Empty means primary.
	CalendarID string
	// CalendarEndpoint overrides the Calendar API base URL. Used by tests.
	CalendarEndpoint string
	// CalendarTimeout bounds each Calendar call.
	CalendarTimeout time.Duration
	// Location is the zone for new events and offset-less date-times.
	Location *time.Location

	// StaticDir, if set, is served at / with index.html fallback.
	StaticDir string

	// RateLimiter limits requests per client IP. Nil disables limiting.
	RateLimiter *RateLimiter

	Version string
	Metrics *instrumentation.Metrics
	Logger  *slog.Logger

	// Now returns the current time. Nil means time.Now.
	Now func() time.Time
}

// Gateway is the caltodo HTTP gateway.
type Gateway struct {
	opts    Options
	oauth   *google.OAuthClient
	store   session.Store
	cookies *session.CookieManager
	health  *HealthChecker
	metrics *instrumentation.Metrics
	logger  *slog.Logger

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
}

// NewGateway creates a Gateway.
func NewGateway(opts Options) (*Gateway, error) {
	if opts.OAuth == nil {
		return nil, errors.New("oauth client is required")
	}
	if opts.Store == nil {
		return nil, errors.New("session store is required")
	}
	if err := validateHTTPSRequirement(opts.BaseURL); err != nil {
		return nil, err
	}

	if opts.Cookies == nil {
		opts.Cookies = session.NewCookieManager(session.DefaultTTL, false)
	}
	if opts.CalendarID == "" {
		opts.CalendarID = calendar.DefaultCalendarID
	}
	if opts.CalendarTimeout <= 0 {
		opts.CalendarTimeout = calendar.DefaultTimeout
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	var pinger session.Pinger
	if p, ok := opts.Store.(session.Pinger); ok {
		pinger = p
	}

	return &Gateway{
		opts:    opts,
		oauth:   opts.OAuth,
		store:   opts.Store,
		cookies: opts.Cookies,
		health:  NewHealthChecker(pinger),
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}, nil
}

// Health returns the gateway's health checker.
func (g *Gateway) Health() *HealthChecker {
	return g.health
}

// Handler returns the gateway's root HTTP handler.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /auth/google", g.handleAuthorize)
	mux.HandleFunc("GET /auth/google/callback", g.handleCallback)
	mux.HandleFunc("POST /auth/logout", g.handleLogout)
	mux.HandleFunc("GET /api/auth/status", g.handleStatus)

	mux.Handle("GET /api/todos", g.requireSession(http.HandlerFunc(g.handleListTodos)))
	mux.Handle("POST /api/todos", g.requireSession(http.HandlerFunc(g.handleCreateTodo)))
	mux.Handle("DELETE /api/todos/{id}", g.requireSession(http.HandlerFunc(g.handleDeleteTodo)))

	g.health.RegisterHealthEndpoints(mux, g.opts.Version)

	if g.opts.StaticDir != "" {
		mux.Handle("/", staticHandler(g.opts.StaticDir))
	}

	handler := Chain(mux,
		RecoverPanic(g.logger),
		RequestID(),
		SecurityHeaders(),
		Observe(g.logger, g.metrics),
		g.opts.RateLimiter.Middleware(),
	)
	return otelhttp.NewHandler(handler, "caltodo")
}

// Start listens on addr and serves until Shutdown. It blocks and returns
// http.ErrServerClosed after a graceful shutdown.
func (g *Gateway) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return g.Serve(ln)
}

// Serve serves the gateway on ln.
func (g *Gateway) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           g.Handler(),
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}

	g.mu.Lock()
	g.httpServer = srv
	g.listener = ln
	g.mu.Unlock()

	g.logger.Info("starting gateway", "addr", ln.Addr().String(), "base_url", g.opts.BaseURL)
	return srv.Serve(ln)
}

// Addr returns the address the gateway listens on, or "" before Start.
func (g *Gateway) Addr() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listener == nil {
		return ""
	}
	return g.listener.Addr().String()
}

// Shutdown marks the gateway as draining and gracefully stops the server.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.health.SetShuttingDown()
	g.opts.RateLimiter.stopIfSet()

	g.mu.Lock()
	srv := g.httpServer
	g.mu.Unlock()

	if srv == nil {
		return nil
	}
	g.logger.Info("shutting down gateway")
	return srv.Shutdown(ctx)
}
