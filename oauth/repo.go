package oauth

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCodeNotFound is returned when no authorization-code record matches.
	ErrCodeNotFound = errors.New("authorization code not found")

	// ErrCodeUsed is returned when the record exists but was already consumed.
	ErrCodeUsed = errors.New("authorization code already used")
)

// Code is the persisted one-time-use record behind an authorization-code
// token. The token embeds the record id; exchanging the token consumes the
// record, so a code can only ever be exchanged once.
type Code struct {
	ID        int64
	OwnerID   int64
	ClientID  int64
	SessionID int64
	WasUsed   bool
	CreatedAt time.Time
}

// CodeRepo persists authorization-code records.
type CodeRepo interface {
	// Create stores a fresh unused record.
	Create(ctx context.Context, ownerID, clientID, sessionID int64) (*Code, error)

	// GetByID returns a record by id, or ErrCodeNotFound.
	GetByID(ctx context.Context, id int64) (*Code, error)

	// Consume marks the record used. The check and the write happen as one
	// atomic conditional update: of two concurrent exchanges of the same
	// code exactly one succeeds. Returns ErrCodeUsed when the record was
	// already consumed and ErrCodeNotFound when it does not exist.
	Consume(ctx context.Context, id int64) error
}

// ClientUseRepo records which users authorized which clients. Both writes are
// statistics/bookkeeping and are performed best-effort by the engine.
type ClientUseRepo interface {
	// RecordUse appends a usage fact for the (user, client) pair.
	RecordUse(ctx context.Context, userID, clientID int64) error

	// LinkIfAbsent stores the durable user-client link with the granted
	// scope, unless one already exists.
	LinkIfAbsent(ctx context.Context, userID, clientID int64, scope string) error
}
