package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Store.Get when the session has no credential.
var ErrNotFound = errors.New("session not found")

// DefaultTTL is how long a stored credential outlives its last write.
const DefaultTTL = 24 * time.Hour

// Store holds credentials keyed by session id.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the credential for id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Credential, error)

	// Put stores cred under id, replacing any previous credential.
	Put(ctx context.Context, id string, cred *Credential) error

	// Delete removes the credential for id. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error
}

// Pinger is implemented by stores backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}
