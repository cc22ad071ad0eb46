package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

var (
	// ErrUnauthorized means Google rejected the access token, or the token
	// could not be refreshed.
	ErrUnauthorized = errors.New("calendar: unauthorized")

	// ErrTimeout means the call did not finish within the client timeout.
	ErrTimeout = errors.New("calendar: request timed out")
)

// wrapError classifies err while keeping the original error in the chain.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}

	var apiErr *googleapi.Error
	var retrieveErr *oauth2.RetrieveError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("failed to %s: %w: %w", op, ErrTimeout, err)
	case errors.As(err, &retrieveErr):
		return fmt.Errorf("failed to %s: %w: %w", op, ErrUnauthorized, err)
	case errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized:
		return fmt.Errorf("failed to %s: %w: %w", op, ErrUnauthorized, err)
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}

// IsUnauthorized reports whether err is an authorization rejection.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsTimeout reports whether err is a client-side timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
