// Package calendar is the gateway's client for the Google Calendar v3
// events API.
//
// Only three calls are used: events.list for upcoming single events,
// events.insert and events.delete. Every call is bounded by a timeout,
// traced as a client span and counted in the google_api_operations_total
// metric. Errors are classified into ErrUnauthorized and ErrTimeout so
// callers can decide between a refresh, a retry later and a generic
// failure.
package calendar
