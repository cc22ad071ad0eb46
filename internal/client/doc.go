// Package client talks to the caltodo gateway over HTTP.
//
// Client wraps the gateway routes and carries the session cookie. Board
// keeps the in-memory task list a user interface works with: always
// sorted by date-time, completion toggled locally, and each failure
// reported with a localized message for the operation that failed.
package client
