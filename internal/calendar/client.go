package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/teemow/caltodo/internal/instrumentation"
	"github.com/teemow/caltodo/internal/logging"
)

const (
	// DefaultTimeout bounds a single Calendar API call.
	DefaultTimeout = 15 * time.Second

	// DefaultCalendarID is the authenticated user's primary calendar.
	DefaultCalendarID = "primary"
)

// Client wraps the Google Calendar service for one authorized session.
type Client struct {
	svc     *calendar.Service
	timeout time.Duration
	loc     *time.Location
	metrics *instrumentation.Metrics
	logger  *slog.Logger
}

// Options configures a Client.
type Options struct {
	// Endpoint overrides the Calendar API base URL. Used by tests.
	Endpoint string
	// Timeout bounds each call. Zero means DefaultTimeout.
	Timeout time.Duration
	// Location interprets all-day dates. Nil means UTC.
	Location *time.Location
	Metrics  *instrumentation.Metrics
	Logger   *slog.Logger
}

// NewClient creates a Calendar client that sends requests through
// httpClient, which is expected to attach the session's OAuth token.
func NewClient(ctx context.Context, httpClient *http.Client, opts Options) (*Client, error) {
	if httpClient == nil {
		return nil, errors.New("http client cannot be nil")
	}

	clientOpts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}

	svc, err := calendar.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	c := &Client{
		svc:     svc,
		timeout: opts.Timeout,
		loc:     opts.Location,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.loc == nil {
		c.loc = time.UTC
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// ListUpcoming lists single events ending after timeMin in start order,
// at most maxResults of them.
func (c *Client) ListUpcoming(ctx context.Context, calendarID string, timeMin time.Time, maxResults int64) ([]Event, error) {
	var events []Event
	err := c.do(ctx, instrumentation.OperationList, calendarID, "", func(ctx context.Context) error {
		res, err := c.svc.Events.List(calendarID).
			TimeMin(timeMin.Format(time.RFC3339)).
			MaxResults(maxResults).
			SingleEvents(true).
			OrderBy("startTime").
			Context(ctx).
			Do()
		if err != nil {
			return err
		}

		events = make([]Event, 0, len(res.Items))
		for _, item := range res.Items {
			events = append(events, toEvent(item, c.loc))
		}
		return nil
	})
	if err != nil {
		return nil, wrapError("list events", err)
	}
	return events, nil
}

// Insert creates an event and returns it as stored by Google.
func (c *Client) Insert(ctx context.Context, calendarID string, input EventInput) (*Event, error) {
	var created Event
	err := c.do(ctx, instrumentation.OperationCreate, calendarID, "", func(ctx context.Context) error {
		res, err := c.svc.Events.Insert(calendarID, toAPIEvent(input)).Context(ctx).Do()
		if err != nil {
			return err
		}
		created = toEvent(res, c.loc)
		return nil
	})
	if err != nil {
		return nil, wrapError("create event", err)
	}
	return &created, nil
}

// Delete removes an event.
func (c *Client) Delete(ctx context.Context, calendarID, eventID string) error {
	err := c.do(ctx, instrumentation.OperationDelete, calendarID, eventID, func(ctx context.Context) error {
		return c.svc.Events.Delete(calendarID, eventID).Context(ctx).Do()
	})
	return wrapError("delete event", err)
}

// do runs call with the client timeout inside a client span and records
// the outcome.
func (c *Client) do(ctx context.Context, operation, calendarID, eventID string, call func(context.Context) error) error {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceCalendar, operation,
		instrumentation.CalendarAttrs(calendarID, eventID)...)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := call(ctx)
	duration := time.Since(start)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
		c.logger.Debug("calendar call failed",
			logging.Service(instrumentation.ServiceCalendar),
			logging.Operation(operation),
			slog.Duration(logging.KeyDuration, duration),
			logging.Err(err))
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceCalendar, operation, status, duration)

	return err
}
