package todo

import (
	"strings"
	"time"

	"github.com/teemow/caltodo/internal/calendar"
)

// EventDuration is the fixed length of the event backing a task.
const EventDuration = time.Hour

// DefaultReminders are the popup notifications set on every task event.
var DefaultReminders = []calendar.Reminder{
	{Method: calendar.ReminderPopup, Minutes: 24 * 60},
	{Method: calendar.ReminderPopup, Minutes: 2 * 60},
	{Method: calendar.ReminderPopup, Minutes: 30},
}

// FromEvent converts a calendar event to a pending Task. Events without an
// id or a start, or whose summary is blank, are not tasks and report false.
func FromEvent(ev calendar.Event) (Task, bool) {
	if ev.ID == "" || strings.TrimSpace(ev.Summary) == "" || !ev.HasStart() {
		return Task{}, false
	}
	return Task{
		ID:       ev.ID,
		EventID:  ev.ID,
		Title:    ev.Summary,
		DateTime: ev.Start,
	}, true
}

// NewEventInput builds the event for a new task starting at at, shown in
// time zone tz.
func NewEventInput(title string, at time.Time, tz string) calendar.EventInput {
	reminders := make([]calendar.Reminder, len(DefaultReminders))
	copy(reminders, DefaultReminders)

	return calendar.EventInput{
		Summary:   title,
		Start:     at,
		End:       at.Add(EventDuration),
		TimeZone:  tz,
		Reminders: reminders,
	}
}
