// Package todo maps tasks onto Google Calendar events.
//
// A Task is an upcoming calendar event: its id is the event id, its title
// the event summary and its date-time the event start. Creating a task
// inserts a one-hour event with popup reminders one day, two hours and
// thirty minutes ahead. Completion has no calendar counterpart; it exists
// only in the caller's copy of the list and every listed task starts out
// pending.
package todo
