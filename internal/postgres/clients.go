package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jrsteele09/go-identity-core/clients"
)

// ClientRepo implements clients.Repo.
type ClientRepo struct {
	db *pgxpool.Pool
}

var _ clients.Repo = (*ClientRepo)(nil)

func (r *ClientRepo) GetByID(ctx context.Context, id int64) (*clients.Client, error) {
	const op = "postgres.ClientRepo.GetByID"

	query := `
		SELECT id, secret, owner_id, is_active, is_verified, redirect_uri, display_name, created_at
		FROM oauth_clients
		WHERE id = $1
	`

	var client clients.Client
	err := r.db.QueryRow(ctx, query, id).Scan(
		&client.ID,
		&client.Secret,
		&client.OwnerID,
		&client.Active,
		&client.Verified,
		&client.RedirectURI,
		&client.DisplayName,
		&client.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, clients.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &client, nil
}

func (r *ClientRepo) Create(ctx context.Context, ownerID int64, displayName, redirectURI string) (*clients.Client, error) {
	const op = "postgres.ClientRepo.Create"

	secret, err := clients.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `
		INSERT INTO oauth_clients(secret, owner_id, is_active, is_verified, redirect_uri, display_name, created_at)
		VALUES ($1, $2, TRUE, FALSE, $3, $4, now())
		RETURNING id, created_at
	`

	client := &clients.Client{
		Secret:      secret,
		OwnerID:     ownerID,
		Active:      true,
		RedirectURI: redirectURI,
		DisplayName: displayName,
	}
	err = r.db.QueryRow(ctx, query, secret, ownerID, redirectURI, displayName).
		Scan(&client.ID, &client.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return client, nil
}

func (r *ClientRepo) RegenerateSecret(ctx context.Context, id int64) (string, error) {
	const op = "postgres.ClientRepo.RegenerateSecret"

	secret, err := clients.GenerateSecret()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	tag, err := r.db.Exec(ctx, `UPDATE oauth_clients SET secret = $2 WHERE id = $1`, id, secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return "", fmt.Errorf("%s: %w", op, clients.ErrNotFound)
	}
	return secret, nil
}
