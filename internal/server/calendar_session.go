package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/caltodo/internal/calendar"
	"github.com/teemow/caltodo/internal/google"
	"github.com/teemow/caltodo/internal/instrumentation"
	"github.com/teemow/caltodo/internal/logging"
	"github.com/teemow/caltodo/internal/session"
)

// refreshLeeway is how close to expiry a credential is refreshed before a
// call. It is larger than the oauth2 expiry delta so the transport never
// refreshes on its own for a fresh request.
const refreshLeeway = time.Minute

// calendarSession is the calendar for one request, authorized with the
// session credential. Every token refreshed during the request is written
// back to the store. An expired credential is refreshed before the call;
// when Google rejects the access token the credential is refreshed once and
// the call retried. The session is deleted only when Google refuses the
// refresh grant.
type calendarSession struct {
	g  *Gateway
	id string

	mu      sync.Mutex
	token   *oauth2.Token
	client  *calendar.Client
	dropped bool
}

func (g *Gateway) newCalendarSession(ctx context.Context, id string, cred *session.Credential) (*calendarSession, error) {
	s := &calendarSession{g: g, id: id, token: cred.Token()}
	if err := s.connect(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// connect builds the calendar client for the current token.
func (s *calendarSession) connect(ctx context.Context) error {
	// The refresh callback may run while the session lock is held by
	// call, so it must not take the lock itself.
	ts := s.g.oauth.TokenSource(ctx, s.token, func(t *oauth2.Token) {
		s.persist(ctx, t, "proactive")
	})

	client, err := calendar.NewClient(ctx, s.g.oauth.HTTPClient(ctx, ts), calendar.Options{
		Endpoint: s.g.opts.CalendarEndpoint,
		Timeout:  s.g.opts.CalendarTimeout,
		Location: s.g.opts.Location,
		Metrics:  s.g.metrics,
		Logger:   s.g.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create calendar client: %w", err)
	}
	s.client = client
	return nil
}

// persist stores token as the session credential. Concurrent requests of
// the same session may race here; the last write wins.
func (s *calendarSession) persist(ctx context.Context, token *oauth2.Token, reason string) {
	s.g.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultSuccess)
	if err := s.g.store.Put(ctx, s.id, session.FromToken(token)); err != nil {
		s.g.logger.Warn("Failed to persist refreshed token",
			logging.SessionHash(s.id),
			slog.String("reason", reason),
			logging.Err(err))
		return
	}
	s.g.logger.Debug("Persisted refreshed token",
		logging.SessionHash(s.id),
		slog.String("reason", reason),
		slog.String("access_token", logging.SanitizeToken(token.AccessToken)),
		slog.Time("expiry", token.Expiry))
}

// call runs fn with a current credential and, on an unauthorized error,
// refreshes and retries once.
func (s *calendarSession) call(ctx context.Context, fn func(*calendar.Client) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dropped {
		return fmt.Errorf("session ended: %w", calendar.ErrUnauthorized)
	}

	if google.IsTokenExpired(s.token, refreshLeeway) {
		if err := s.refresh(ctx, "expired"); err != nil {
			return err
		}
	}

	err := fn(s.client)
	if err == nil || !calendar.IsUnauthorized(err) {
		return err
	}

	if rerr := s.refresh(ctx, "rejected"); rerr != nil {
		return rerr
	}
	return fn(s.client)
}

// refresh trades the refresh token for a new access token within the
// calendar timeout. A refused grant ends the session and is reported as
// unauthorized. A timeout keeps the session and is reported as a timeout;
// any other failure keeps the session too.
func (s *calendarSession) refresh(ctx context.Context, reason string) error {
	rctx, cancel := context.WithTimeout(ctx, s.g.opts.CalendarTimeout)
	defer cancel()

	fresh, err := s.g.oauth.Refresh(rctx, s.token)
	if err == nil {
		s.token = fresh
		s.persist(ctx, fresh, reason)
		return s.connect(ctx)
	}

	s.g.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultFailure)

	switch {
	case google.IsGrantRejected(err):
		s.g.logger.Info("Token refresh rejected, ending session",
			logging.SessionHash(s.id),
			slog.String("reason", reason),
			logging.Err(err))
		s.dropped = true
		if derr := s.g.store.Delete(ctx, s.id); derr != nil && !errors.Is(derr, session.ErrNotFound) {
			s.g.logger.Warn("Failed to delete session after refresh failure",
				logging.SessionHash(s.id),
				logging.Err(derr))
		}
		s.g.metrics.RecordSessionEnded(ctx, "refresh_failed")
		return fmt.Errorf("%w: %w", calendar.ErrUnauthorized, err)

	case errors.Is(rctx.Err(), context.DeadlineExceeded):
		s.g.logger.Warn("Token refresh timed out",
			logging.SessionHash(s.id),
			slog.String("reason", reason),
			slog.Duration("timeout", s.g.opts.CalendarTimeout))
		return fmt.Errorf("failed to refresh token: %w: %w", calendar.ErrTimeout, err)

	default:
		s.g.logger.Warn("Token refresh failed",
			logging.SessionHash(s.id),
			slog.String("reason", reason),
			logging.Err(err))
		return err
	}
}

// Dropped reports whether the session was deleted during this request.
func (s *calendarSession) Dropped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *calendarSession) ListUpcoming(ctx context.Context, calendarID string, timeMin time.Time, maxResults int64) ([]calendar.Event, error) {
	var events []calendar.Event
	err := s.call(ctx, func(c *calendar.Client) error {
		var err error
		events, err = c.ListUpcoming(ctx, calendarID, timeMin, maxResults)
		return err
	})
	return events, err
}

func (s *calendarSession) Insert(ctx context.Context, calendarID string, input calendar.EventInput) (*calendar.Event, error) {
	var event *calendar.Event
	err := s.call(ctx, func(c *calendar.Client) error {
		var err error
		event, err = c.Insert(ctx, calendarID, input)
		return err
	})
	return event, err
}

func (s *calendarSession) Delete(ctx context.Context, calendarID, eventID string) error {
	return s.call(ctx, func(c *calendar.Client) error {
		return c.Delete(ctx, calendarID, eventID)
	})
}
