package calendar

import (
	"time"

	calendar "google.golang.org/api/calendar/v3"
)

const dateLayout = "2006-01-02"

// ReminderPopup is the reminder method that shows a notification.
const ReminderPopup = "popup"

// Reminder is a notification override relative to the event start.
type Reminder struct {
	Method  string
	Minutes int64
}

// EventInput represents the input for creating a calendar event.
type EventInput struct {
	Summary   string
	Start     time.Time
	End       time.Time
	TimeZone  string
	Reminders []Reminder
}

// Event is the subset of a calendar event the gateway works with.
type Event struct {
	ID      string
	Summary string
	// Start is the zero time when the event has neither a start dateTime
	// nor an all-day date.
	Start     time.Time
	End       time.Time
	AllDay    bool
	Reminders []Reminder
}

// HasStart reports whether the event carried a usable start time.
func (e Event) HasStart() bool {
	return !e.Start.IsZero()
}

func toAPIEvent(input EventInput) *calendar.Event {
	tz := input.TimeZone
	if tz == "" {
		tz = "UTC"
	}

	event := &calendar.Event{
		Summary: input.Summary,
		Start: &calendar.EventDateTime{
			DateTime: input.Start.Format(time.RFC3339),
			TimeZone: tz,
		},
		End: &calendar.EventDateTime{
			DateTime: input.End.Format(time.RFC3339),
			TimeZone: tz,
		},
	}

	if len(input.Reminders) > 0 {
		overrides := make([]*calendar.EventReminder, 0, len(input.Reminders))
		for _, r := range input.Reminders {
			overrides = append(overrides, &calendar.EventReminder{Method: r.Method, Minutes: r.Minutes})
		}
		event.Reminders = &calendar.EventReminders{
			UseDefault:      false,
			Overrides:       overrides,
			ForceSendFields: []string{"UseDefault"},
		}
	}

	return event
}

// toEvent converts an API event. All-day dates are interpreted in loc.
func toEvent(event *calendar.Event, loc *time.Location) Event {
	out := Event{
		ID:      event.Id,
		Summary: event.Summary,
	}

	out.Start, out.AllDay = parseEventTime(event.Start, loc)
	out.End, _ = parseEventTime(event.End, loc)

	if event.Reminders != nil {
		for _, r := range event.Reminders.Overrides {
			out.Reminders = append(out.Reminders, Reminder{Method: r.Method, Minutes: r.Minutes})
		}
	}

	return out
}

func parseEventTime(edt *calendar.EventDateTime, loc *time.Location) (time.Time, bool) {
	if edt == nil {
		return time.Time{}, false
	}
	if edt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, edt.DateTime); err == nil {
			return t, false
		}
	}
	if edt.Date != "" {
		if t, err := time.ParseInLocation(dateLayout, edt.Date, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
