package todo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/teemow/caltodo/internal/calendar"
)

const (
	// DefaultPageSize caps how many upcoming events one listing returns.
	DefaultPageSize = 50

	// DefaultTimeZone is used for new events and for date-times without an
	// offset.
	DefaultTimeZone = "Asia/Seoul"
)

// dateTimeLayouts are the accepted wire formats for a task date-time, in
// the order they are tried. Layouts without an offset are read in the
// service's location.
var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// EventStore is the calendar API surface the service needs.
type EventStore interface {
	ListUpcoming(ctx context.Context, calendarID string, timeMin time.Time, maxResults int64) ([]calendar.Event, error)
	Insert(ctx context.Context, calendarID string, input calendar.EventInput) (*calendar.Event, error)
	Delete(ctx context.Context, calendarID, eventID string) error
}

// Config configures a Service.
type Config struct {
	CalendarID string
	PageSize   int64
	Location   *time.Location
	Now        func() time.Time
}

// Service implements task operations on top of an EventStore.
type Service struct {
	events     EventStore
	calendarID string
	pageSize   int64
	loc        *time.Location
	now        func() time.Time
}

// NewService creates a Service. Zero Config fields take their defaults:
// the primary calendar, DefaultPageSize, UTC and time.Now.
func NewService(events EventStore, cfg Config) *Service {
	s := &Service{
		events:     events,
		calendarID: cfg.CalendarID,
		pageSize:   cfg.PageSize,
		loc:        cfg.Location,
		now:        cfg.Now,
	}
	if s.calendarID == "" {
		s.calendarID = calendar.DefaultCalendarID
	}
	if s.pageSize <= 0 {
		s.pageSize = DefaultPageSize
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// List returns upcoming tasks in ascending date-time order, all pending.
// Events already started at call time and events that are not tasks are
// left out.
func (s *Service) List(ctx context.Context) ([]Task, error) {
	now := s.now()

	events, err := s.events.ListUpcoming(ctx, s.calendarID, now, s.pageSize)
	if err != nil {
		return nil, classify(err)
	}

	tasks := make([]Task, 0, len(events))
	for _, ev := range events {
		task, ok := FromEvent(ev)
		if !ok || task.DateTime.Before(now) {
			continue
		}
		tasks = append(tasks, task)
	}
	SortByDateTime(tasks)
	return tasks, nil
}

// Create adds a task titled title at dateTime and returns it pending.
func (s *Service) Create(ctx context.Context, title, dateTime string) (Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Task{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	at, err := ParseDateTime(dateTime, s.loc)
	if err != nil {
		return Task{}, err
	}

	created, err := s.events.Insert(ctx, s.calendarID, NewEventInput(title, at, s.loc.String()))
	if err != nil {
		return Task{}, classify(err)
	}

	task, ok := FromEvent(*created)
	if !ok {
		return Task{}, fmt.Errorf("%w: %w", ErrUpstream, ErrIncompleteEvent)
	}
	return task, nil
}

// Delete removes the task with the given id.
func (s *Service) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	if err := s.events.Delete(ctx, s.calendarID, id); err != nil {
		return classify(err)
	}
	return nil
}

// ParseDateTime parses a task date-time. Values without an offset are read
// in loc.
func ParseDateTime(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: dateTime is required", ErrInvalidInput)
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: dateTime %q is not a valid date-time", ErrInvalidInput, value)
}

// classify maps a calendar error onto the task error taxonomy, keeping the
// cause in the chain.
func classify(err error) error {
	switch {
	case calendar.IsUnauthorized(err):
		return fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	case calendar.IsTimeout(err):
		return fmt.Errorf("%w: %w", ErrTransient, err)
	default:
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}
}
