package sessions

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a session or fingerprint does not exist.
var ErrNotFound = errors.New("session not found")

// Repo persists session records. Sessions are deactivated, never deleted.
type Repo interface {
	// GetByID returns a session by id, or ErrNotFound.
	GetByID(ctx context.Context, id int64) (*Session, error)

	// Create stores a new session for the owner with a freshly generated
	// signing secret and returns it.
	Create(ctx context.Context, ownerID int64, ipAddress string, fingerprintID int64) (*Session, error)

	// Deactivate flips the active flag off. Idempotent.
	Deactivate(ctx context.Context, id int64) error

	// FindActive returns an active session matching the (owner, ip,
	// fingerprint) triple, or ErrNotFound.
	FindActive(ctx context.Context, ownerID int64, ipAddress string, fingerprintID int64) (*Session, error)
}

// FingerprintRepo persists device fingerprints derived from user-agent
// strings.
type FingerprintRepo interface {
	// GetByUserAgent returns the fingerprint for a user-agent string, or
	// ErrNotFound.
	GetByUserAgent(ctx context.Context, userAgent string) (*Fingerprint, error)

	// GetOrCreate returns the fingerprint for a user-agent string, creating
	// it on first sight.
	GetOrCreate(ctx context.Context, userAgent string) (*Fingerprint, error)
}
