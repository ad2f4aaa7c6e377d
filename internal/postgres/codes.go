package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jrsteele09/go-identity-core/oauth"
)

// CodeRepo implements oauth.CodeRepo.
type CodeRepo struct {
	db *pgxpool.Pool
}

var _ oauth.CodeRepo = (*CodeRepo)(nil)

func (r *CodeRepo) Create(ctx context.Context, ownerID, clientID, sessionID int64) (*oauth.Code, error) {
	const op = "postgres.CodeRepo.Create"

	query := `
		INSERT INTO oauth_codes(owner_id, client_id, session_id, was_used, created_at)
		VALUES ($1, $2, $3, FALSE, now())
		RETURNING id, created_at
	`

	code := &oauth.Code{
		OwnerID:   ownerID,
		ClientID:  clientID,
		SessionID: sessionID,
	}
	err := r.db.QueryRow(ctx, query, ownerID, clientID, sessionID).
		Scan(&code.ID, &code.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return code, nil
}

func (r *CodeRepo) GetByID(ctx context.Context, id int64) (*oauth.Code, error) {
	const op = "postgres.CodeRepo.GetByID"

	query := `
		SELECT id, owner_id, client_id, session_id, was_used, created_at
		FROM oauth_codes
		WHERE id = $1
	`

	var code oauth.Code
	err := r.db.QueryRow(ctx, query, id).Scan(
		&code.ID,
		&code.OwnerID,
		&code.ClientID,
		&code.SessionID,
		&code.WasUsed,
		&code.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, oauth.ErrCodeNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &code, nil
}

// Consume marks the record used with a single conditional update. The WHERE
// clause carries the used check, so two concurrent exchanges of the same
// code can never both pass: exactly one update affects a row.
func (r *CodeRepo) Consume(ctx context.Context, id int64) error {
	const op = "postgres.CodeRepo.Consume"

	tag, err := r.db.Exec(ctx,
		`UPDATE oauth_codes SET was_used = TRUE WHERE id = $1 AND was_used = FALSE`,
		id,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// No row updated: either the record is gone or it was already consumed.
	var wasUsed bool
	err = r.db.QueryRow(ctx, `SELECT was_used FROM oauth_codes WHERE id = $1`, id).Scan(&wasUsed)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, oauth.ErrCodeNotFound)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w", op, oauth.ErrCodeUsed)
}
