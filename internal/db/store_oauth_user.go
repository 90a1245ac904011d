package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/purlock/purlock/internal/models"
)

const oauthUserColumns = `
	id, external_id, username, COALESCE(email, ''), access_token,
	COALESCE(refresh_token, ''), token_expires_at, created_at, updated_at
`

func scanOAuthUser(row pgx.Row) (*models.OAuthUser, error) {
	var u models.OAuthUser
	err := row.Scan(
		&u.ID, &u.ExternalID, &u.Username, &u.Email, &u.AccessToken,
		&u.RefreshToken, &u.TokenExpiresAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// FindOAuthUserByExternalID returns the user with the given marketplace
// account id, or (nil, nil) if none exists.
func (db *DB) FindOAuthUserByExternalID(ctx context.Context, externalID string) (*models.OAuthUser, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT `+oauthUserColumns+`
		FROM oauth_users
		WHERE external_id = $1
	`, externalID)

	u, err := scanOAuthUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find oauth user by external id: %w", err)
	}
	return u, nil
}

// FindOAuthUserByID returns the user with the given id, or (nil, nil) if
// none exists.
func (db *DB) FindOAuthUserByID(ctx context.Context, id uuid.UUID) (*models.OAuthUser, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT `+oauthUserColumns+`
		FROM oauth_users
		WHERE id = $1
	`, id)

	u, err := scanOAuthUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find oauth user by id: %w", err)
	}
	return u, nil
}

// SaveOAuthUser inserts a user or refreshes profile and token fields when
// the external id already exists.
func (db *DB) SaveOAuthUser(ctx context.Context, u *models.OAuthUser) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO oauth_users (id, external_id, username, email, access_token, refresh_token, token_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, NULLIF($6, ''), $7, $8, $9)
		ON CONFLICT (external_id)
		DO UPDATE SET
			username = $3,
			email = NULLIF($4, ''),
			access_token = $5,
			refresh_token = NULLIF($6, ''),
			token_expires_at = $7,
			updated_at = $9
	`, u.ID, u.ExternalID, u.Username, u.Email, u.AccessToken, u.RefreshToken, u.TokenExpiresAt, u.CreatedAt, u.UpdatedAt)

	if err != nil {
		return fmt.Errorf("save oauth user: %w", err)
	}
	return nil
}
