package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jrsteele09/go-identity-core/users"
)

// UserRepo implements users.Repo.
type UserRepo struct {
	db *pgxpool.Pool
}

var _ users.Repo = (*UserRepo)(nil)

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*users.User, error) {
	const op = "postgres.UserRepo.GetByID"

	query := `
		SELECT id, username, email, password_hash, is_active, is_verified, created_at, last_seen_at
		FROM users
		WHERE id = $1
	`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, users.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

func (r *UserRepo) GetByLogin(ctx context.Context, login string) (*users.User, error) {
	const op = "postgres.UserRepo.GetByLogin"

	query := `
		SELECT id, username, email, password_hash, is_active, is_verified, created_at, last_seen_at
		FROM users
		WHERE username = $1 OR email = $1
	`

	user, err := scanUser(r.db.QueryRow(ctx, query, login))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, users.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

func (r *UserRepo) Create(ctx context.Context, user *users.User) (*users.User, error) {
	const op = "postgres.UserRepo.Create"

	query := `
		INSERT INTO users(username, email, password_hash, is_active, is_verified, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id, created_at
	`

	created := *user
	err := r.db.QueryRow(ctx, query,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Active,
		user.EmailVerified,
	).Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, fmt.Errorf("%s: %w", op, users.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &created, nil
}

func (r *UserRepo) UpdateLastSeen(ctx context.Context, id int64, seenAt time.Time) error {
	const op = "postgres.UserRepo.UpdateLastSeen"

	tag, err := r.db.Exec(ctx, `UPDATE users SET last_seen_at = $2 WHERE id = $1`, id, seenAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, users.ErrNotFound)
	}
	return nil
}

func (r *UserRepo) SetEmailVerified(ctx context.Context, id int64) error {
	const op = "postgres.UserRepo.SetEmailVerified"

	tag, err := r.db.Exec(ctx, `UPDATE users SET is_verified = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, users.ErrNotFound)
	}
	return nil
}

func scanUser(row pgx.Row) (*users.User, error) {
	var user users.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Active,
		&user.EmailVerified,
		&user.CreatedAt,
		&user.LastSeenAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
