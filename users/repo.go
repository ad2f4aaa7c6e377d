package users

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrAlreadyExists is returned when a username or email is taken.
	ErrAlreadyExists = errors.New("user already exists")
)

// Repo persists user records.
type Repo interface {
	// GetByID returns a user by id, or ErrNotFound.
	GetByID(ctx context.Context, id int64) (*User, error)

	// GetByLogin returns a user by username or email, or ErrNotFound.
	GetByLogin(ctx context.Context, login string) (*User, error)

	// Create stores a new user, failing with ErrAlreadyExists on a
	// username/email collision.
	Create(ctx context.Context, user *User) (*User, error)

	// UpdateLastSeen refreshes the last-seen timestamp. Best-effort callers
	// may ignore the error.
	UpdateLastSeen(ctx context.Context, id int64, seenAt time.Time) error

	// SetEmailVerified marks the user's email address as confirmed.
	SetEmailVerified(ctx context.Context, id int64) error
}
