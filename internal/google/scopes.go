package google

import calendar "google.golang.org/api/calendar/v3"

// DefaultOAuthScopes is the only scope the gateway requests: read and write
// access to calendar events. Profile scopes are deliberately absent.
var DefaultOAuthScopes = []string{
	calendar.CalendarEventsScope,
}
