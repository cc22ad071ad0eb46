package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/caltodo/internal/config"
	"github.com/teemow/caltodo/internal/google"
	"github.com/teemow/caltodo/internal/instrumentation"
	"github.com/teemow/caltodo/internal/logging"
	"github.com/teemow/caltodo/internal/server"
	"github.com/teemow/caltodo/internal/session"
)

// serveFlags holds flag values that override the environment.
type serveFlags struct {
	port         int
	baseURL      string
	staticDir    string
	sessionStore string
	redisURL     string
	metricsAddr  string
	logLevel     string
	logFormat    string
}

func newServeCmd() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the caltodo gateway",
		Long: `Start the HTTP gateway that signs users in with Google, keeps their
credential in a server-side session and serves the task API.

Configuration is read from the environment:
  GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET   OAuth client (required)
  REDIRECT_URI                             OAuth callback URL
  PORT, BASE_URL                           Listener and public URL
  SESSION_STORE (memory|redis), REDIS_URL  Session backend
  SESSION_SECRET or TOKEN_ENCRYPTION_KEY   Encrypt stored tokens
  CALENDAR_ID, TIME_ZONE                   Where and how tasks are stored

Flags override the matching environment variable when set.

Endpoints:
  /auth/google, /auth/google/callback, /auth/logout
  /api/auth/status, /api/todos, /api/todos/{id}
  /healthz, /readyz`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			applyServeFlags(cmd, &flags, cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().IntVar(&flags.port, "port", 8080, "Port to listen on (env PORT)")
	cmd.Flags().StringVar(&flags.baseURL, "base-url", "", "Public URL of the gateway, HTTPS unless localhost (env BASE_URL)")
	cmd.Flags().StringVar(&flags.staticDir, "static-dir", "", "Directory with the web app to serve at / (env STATIC_DIR)")
	cmd.Flags().StringVar(&flags.sessionStore, "session-store", config.StoreMemory, "Session backend: memory or redis (env SESSION_STORE)")
	cmd.Flags().StringVar(&flags.redisURL, "redis-url", "", "Redis URL for the redis session store (env REDIS_URL)")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Address of the Prometheus metrics listener (env METRICS_ADDR)")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "info", "Log level: debug, info, warn or error (env LOG_LEVEL)")
	cmd.Flags().StringVar(&flags.logFormat, "log-format", "text", "Log format: text or json (env LOG_FORMAT)")

	return cmd
}

// applyServeFlags copies explicitly set flags over the loaded configuration.
func applyServeFlags(cmd *cobra.Command, flags *serveFlags, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if changed("port") {
		cfg.Port = flags.port
	}
	if changed("base-url") {
		cfg.BaseURL = flags.baseURL
	}
	if changed("static-dir") {
		cfg.StaticDir = flags.staticDir
	}
	if changed("session-store") {
		cfg.SessionStore = flags.sessionStore
	}
	if changed("redis-url") {
		cfg.RedisURL = flags.redisURL
	}
	if changed("metrics-addr") {
		cfg.MetricsAddr = flags.metricsAddr
	}
	if changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}
	if changed("log-format") {
		cfg.LogFormat = flags.logFormat
	}
}

func runServe(cfg *config.Config) error {
	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	slog.SetDefault(logger)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// Initialize instrumentation provider
	instrConfig := cfg.Instrumentation
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("error during instrumentation shutdown", logging.Err(err))
		}
	}()

	store, closeStore, err := newSessionStore(ctx, cfg, logger, provider.Metrics())
	if err != nil {
		return err
	}
	defer closeStore()

	oauthClient := google.NewOAuthClient(
		google.NewOAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.RedirectURL), nil)

	var limiter *server.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = server.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.TrustProxy)
	}

	baseURL := cfg.ResolvedBaseURL()
	if cfg.BaseURL == "" {
		logger.Info("no base URL configured, using auto-detected", "base_url", baseURL)
	}

	gateway, err := server.NewGateway(server.Options{
		OAuth:           oauthClient,
		Store:           store,
		Cookies:         session.NewCookieManager(cfg.SessionMaxAge, cfg.SecureCookies()),
		BaseURL:         baseURL,
		CalendarID:      cfg.CalendarID,
		CalendarTimeout: cfg.CalendarTimeout,
		Location:        loc,
		StaticDir:       cfg.StaticDir,
		RateLimiter:     limiter,
		Version:         version,
		Metrics:         provider.Metrics(),
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}

	// Start metrics server when the Prometheus exporter is active
	var metricsServer *server.MetricsServer
	if provider.ServesPrometheus() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.MetricsAddr,
			InstrumentationProvider: provider,
			Logger:                  logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", logging.Err(err))
			}
		}()
	}

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Addr(), err)
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := gateway.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
	}()
	gateway.Health().SetReady(true)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping gateway")
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("gateway stopped with error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer shutdownCancel()

	var errs []error
	if err := gateway.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("error shutting down gateway: %w", err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("error shutting down metrics server: %w", err))
		}
	}
	if len(errs) == 0 {
		logger.Info("gateway gracefully stopped")
	}
	return errors.Join(errs...)
}

// newSessionStore builds the configured session backend, wrapped with
// metrics. The returned func releases it.
func newSessionStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *instrumentation.Metrics) (session.Store, func(), error) {
	switch cfg.SessionStore {
	case config.StoreRedis:
		key, err := cfg.EncryptionKey()
		if err != nil {
			return nil, nil, err
		}
		enc, err := session.NewTokenEncryption(key)
		if err != nil {
			return nil, nil, err
		}
		if !enc.Enabled() {
			logger.Warn("tokens are stored in redis unencrypted, set SESSION_SECRET or TOKEN_ENCRYPTION_KEY")
		}

		redisStore, err := session.NewRedisStoreFromURL(cfg.RedisURL,
			session.WithKeyPrefix(cfg.RedisKeyPrefix),
			session.WithTTL(cfg.SessionMaxAge),
			session.WithEncryption(enc),
		)
		if err != nil {
			return nil, nil, err
		}
		if err := redisStore.Ping(ctx); err != nil {
			logger.Warn("redis is not reachable yet", logging.Err(err))
		}
		closeFn := func() {
			if err := redisStore.Close(); err != nil {
				logger.Warn("error closing redis client", logging.Err(err))
			}
		}
		return session.Instrument(redisStore, config.StoreRedis, metrics), closeFn, nil

	case config.StoreMemory:
		memStore := session.NewMemoryStore(cfg.SessionMaxAge, logger)
		return session.Instrument(memStore, config.StoreMemory, metrics), memStore.Stop, nil

	default:
		return nil, nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
	}
}
