package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jrsteele09/go-identity-core/oauth"
)

// ClientUseRepo implements oauth.ClientUseRepo.
type ClientUseRepo struct {
	db *pgxpool.Pool
}

var _ oauth.ClientUseRepo = (*ClientUseRepo)(nil)

func (r *ClientUseRepo) RecordUse(ctx context.Context, userID, clientID int64) error {
	const op = "postgres.ClientUseRepo.RecordUse"

	_, err := r.db.Exec(ctx,
		`INSERT INTO oauth_client_uses(user_id, client_id, used_at) VALUES ($1, $2, now())`,
		userID, clientID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *ClientUseRepo) LinkIfAbsent(ctx context.Context, userID, clientID int64, scope string) error {
	const op = "postgres.ClientUseRepo.LinkIfAbsent"

	query := `
		INSERT INTO oauth_client_users(user_id, client_id, scope, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id, client_id) DO NOTHING
	`

	if _, err := r.db.Exec(ctx, query, userID, clientID, scope); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
