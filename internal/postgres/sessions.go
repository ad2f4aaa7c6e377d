package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jrsteele09/go-identity-core/sessions"
)

// SessionRepo implements sessions.Repo.
type SessionRepo struct {
	db *pgxpool.Pool
}

var _ sessions.Repo = (*SessionRepo)(nil)

func (r *SessionRepo) GetByID(ctx context.Context, id int64) (*sessions.Session, error) {
	const op = "postgres.SessionRepo.GetByID"

	query := `
		SELECT id, owner_id, token_secret, ip_address, fingerprint_id, is_active, created_at
		FROM user_sessions
		WHERE id = $1
	`

	session, err := scanSession(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, sessions.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return session, nil
}

func (r *SessionRepo) Create(ctx context.Context, ownerID int64, ipAddress string, fingerprintID int64) (*sessions.Session, error) {
	const op = "postgres.SessionRepo.Create"

	secret, err := sessions.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `
		INSERT INTO user_sessions(owner_id, token_secret, ip_address, fingerprint_id, is_active, created_at)
		VALUES ($1, $2, $3, $4, TRUE, now())
		RETURNING id, created_at
	`

	session := &sessions.Session{
		OwnerID:       ownerID,
		TokenSecret:   secret,
		IPAddress:     ipAddress,
		FingerprintID: fingerprintID,
		Active:        true,
	}
	err = r.db.QueryRow(ctx, query, ownerID, secret, ipAddress, fingerprintID).
		Scan(&session.ID, &session.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return session, nil
}

func (r *SessionRepo) Deactivate(ctx context.Context, id int64) error {
	const op = "postgres.SessionRepo.Deactivate"

	tag, err := r.db.Exec(ctx, `UPDATE user_sessions SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, sessions.ErrNotFound)
	}
	return nil
}

func (r *SessionRepo) FindActive(ctx context.Context, ownerID int64, ipAddress string, fingerprintID int64) (*sessions.Session, error) {
	const op = "postgres.SessionRepo.FindActive"

	query := `
		SELECT id, owner_id, token_secret, ip_address, fingerprint_id, is_active, created_at
		FROM user_sessions
		WHERE owner_id = $1 AND ip_address = $2 AND fingerprint_id = $3 AND is_active
		ORDER BY created_at DESC
		LIMIT 1
	`

	session, err := scanSession(r.db.QueryRow(ctx, query, ownerID, ipAddress, fingerprintID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, sessions.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return session, nil
}

func scanSession(row pgx.Row) (*sessions.Session, error) {
	var session sessions.Session
	err := row.Scan(
		&session.ID,
		&session.OwnerID,
		&session.TokenSecret,
		&session.IPAddress,
		&session.FingerprintID,
		&session.Active,
		&session.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// FingerprintRepo implements sessions.FingerprintRepo. Fingerprints are
// deduplicated by user-agent string.
type FingerprintRepo struct {
	db *pgxpool.Pool
}

var _ sessions.FingerprintRepo = (*FingerprintRepo)(nil)

func (r *FingerprintRepo) GetByUserAgent(ctx context.Context, userAgent string) (*sessions.Fingerprint, error) {
	const op = "postgres.FingerprintRepo.GetByUserAgent"

	var fp sessions.Fingerprint
	err := r.db.QueryRow(ctx,
		`SELECT id, user_agent FROM device_fingerprints WHERE user_agent = $1`,
		userAgent,
	).Scan(&fp.ID, &fp.UserAgent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, sessions.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &fp, nil
}

func (r *FingerprintRepo) GetOrCreate(ctx context.Context, userAgent string) (*sessions.Fingerprint, error) {
	const op = "postgres.FingerprintRepo.GetOrCreate"

	// Upsert keyed on the unique user_agent column; the no-op update lets
	// RETURNING yield the existing row.
	query := `
		INSERT INTO device_fingerprints(user_agent)
		VALUES ($1)
		ON CONFLICT (user_agent) DO UPDATE SET user_agent = EXCLUDED.user_agent
		RETURNING id, user_agent
	`

	var fp sessions.Fingerprint
	if err := r.db.QueryRow(ctx, query, userAgent).Scan(&fp.ID, &fp.UserAgent); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &fp, nil
}
