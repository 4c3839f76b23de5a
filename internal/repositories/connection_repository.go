package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/watchparty/backend/internal/db"
	"github.com/watchparty/backend/internal/models"
)

// PostgresConnectionRepository persists Drive integration connections.
type PostgresConnectionRepository struct {
	pool db.Pool
}

// NewPostgresConnectionRepository constructs a connection repository backed by PostgreSQL.
func NewPostgresConnectionRepository(pool db.Pool) *PostgresConnectionRepository {
	return &PostgresConnectionRepository{pool: pool}
}

// SaveConnection upserts the full connection record. The OAuth callback flow
// (external to this service) writes through this path when a user connects.
func (r *PostgresConnectionRepository) SaveConnection(ctx context.Context, conn models.DriveConnection) error {
	c, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer c.Release()

	_, err = c.Exec(ctx, `
        INSERT INTO drive_connections (user_id, access_token, refresh_token, token_expires_at, folder_id, connected, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (user_id)
        DO UPDATE SET access_token = EXCLUDED.access_token,
                      refresh_token = EXCLUDED.refresh_token,
                      token_expires_at = EXCLUDED.token_expires_at,
                      folder_id = EXCLUDED.folder_id,
                      connected = EXCLUDED.connected,
                      updated_at = EXCLUDED.updated_at
    `, conn.UserID, conn.AccessToken, conn.RefreshToken, conn.TokenExpiresAt.UTC(), conn.FolderID, conn.Connected, conn.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert drive connection: %w", err)
	}

	return nil
}

// LoadCredential fetches the OAuth credential for a connected user.
func (r *PostgresConnectionRepository) LoadCredential(ctx context.Context, userID string) (models.OAuthCredential, error) {
	c, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.OAuthCredential{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer c.Release()

	row := c.QueryRow(ctx, `
        SELECT user_id, access_token, refresh_token, token_expires_at
        FROM drive_connections
        WHERE user_id = $1 AND connected = TRUE
    `, userID)

	var cred models.OAuthCredential
	if err := row.Scan(&cred.UserID, &cred.AccessToken, &cred.RefreshToken, &cred.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.OAuthCredential{}, ErrNotFound
		}
		return models.OAuthCredential{}, fmt.Errorf("select drive credential: %w", err)
	}

	return cred, nil
}

// SaveCredential records a refreshed token pair. The write is a single UPDATE
// so concurrent requests still holding the stale token observe the new one on
// their next load; there is never a window with a half-written credential.
func (r *PostgresConnectionRepository) SaveCredential(ctx context.Context, userID, accessToken, refreshToken string, expiry time.Time) error {
	c, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer c.Release()

	tag, err := c.Exec(ctx, `
        UPDATE drive_connections
        SET access_token = $2, refresh_token = $3, token_expires_at = $4, updated_at = NOW()
        WHERE user_id = $1
    `, userID, accessToken, refreshToken, expiry.UTC())
	if err != nil {
		return fmt.Errorf("update drive credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Disconnect clears the stored tokens and marks the integration disconnected.
func (r *PostgresConnectionRepository) Disconnect(ctx context.Context, userID string) error {
	c, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer c.Release()

	tag, err := c.Exec(ctx, `
        UPDATE drive_connections
        SET access_token = '', refresh_token = '', token_expires_at = NULL, connected = FALSE, updated_at = NOW()
        WHERE user_id = $1
    `, userID)
	if err != nil {
		return fmt.Errorf("disconnect drive connection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
