package todo

import "errors"

var (
	// ErrInvalidInput means the caller supplied a missing or malformed field.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthenticated means the calendar rejected the session credential.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrUpstream means the calendar call failed.
	ErrUpstream = errors.New("upstream failure")

	// ErrIncompleteEvent means the calendar accepted an event but returned
	// it without an id, summary or start. It is always wrapped with
	// ErrUpstream.
	ErrIncompleteEvent = errors.New("calendar returned an incomplete event")

	// ErrTransient means the calendar call timed out and may succeed later.
	ErrTransient = errors.New("transient failure")
)
