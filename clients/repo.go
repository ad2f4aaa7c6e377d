package clients

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no client matches the lookup.
var ErrNotFound = errors.New("client not found")

// Repo persists OAuth clients.
type Repo interface {
	// GetByID returns a client by id, or ErrNotFound.
	GetByID(ctx context.Context, id int64) (*Client, error)

	// Create stores a new client with a freshly generated secret.
	Create(ctx context.Context, ownerID int64, displayName, redirectURI string) (*Client, error)

	// RegenerateSecret replaces the client secret and returns the new value.
	RegenerateSecret(ctx context.Context, id int64) (string, error)
}
