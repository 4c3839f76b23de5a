package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/watchparty/backend/internal/secrets"
)

// Pool abstracts the pgx connection pool to make testing easier.
type Pool interface {
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
	Close()
}

// CredentialSource supplies rotated platform secrets; satisfied by
// *secrets.Rotator.
type CredentialSource interface {
	Get(key string) (map[string]string, bool)
}

// Connect initialises a PostgreSQL connection pool. When the rotation service
// holds an rds payload, its username/password override whatever the DSN
// carries, so the pool always authenticates with the freshest credentials.
func Connect(ctx context.Context, databaseURL string, creds CredentialSource) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if creds != nil {
		if payload, ok := creds.Get(secrets.KeyRDS); ok {
			if username := payload["username"]; username != "" {
				poolCfg.ConnConfig.User = username
			}
			if password := payload["password"]; password != "" {
				poolCfg.ConnConfig.Password = password
			}
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return pool, nil
}
