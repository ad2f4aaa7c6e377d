// Package postgres implements the repository interfaces over a pgx
// connection pool.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Storage owns the connection pool and hands out the per-aggregate
// repositories.
type Storage struct {
	db *pgxpool.Pool
}

// New connects to PostgreSQL and verifies the connection.
func New(ctx context.Context, dbURL string) (*Storage, error) {
	const op = "postgres.New"

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

// Close closes the connection pool.
func (s *Storage) Close() {
	s.db.Close()
}

// Users returns the user repository.
func (s *Storage) Users() *UserRepo {
	return &UserRepo{db: s.db}
}

// Sessions returns the session repository.
func (s *Storage) Sessions() *SessionRepo {
	return &SessionRepo{db: s.db}
}

// Fingerprints returns the device fingerprint repository.
func (s *Storage) Fingerprints() *FingerprintRepo {
	return &FingerprintRepo{db: s.db}
}

// Clients returns the OAuth client repository.
func (s *Storage) Clients() *ClientRepo {
	return &ClientRepo{db: s.db}
}

// Codes returns the authorization-code repository.
func (s *Storage) Codes() *CodeRepo {
	return &CodeRepo{db: s.db}
}

// ClientUse returns the client usage/link repository.
func (s *Storage) ClientUse() *ClientUseRepo {
	return &ClientUseRepo{db: s.db}
}
