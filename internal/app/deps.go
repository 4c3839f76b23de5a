package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/watchparty/backend/internal/config"
	"github.com/watchparty/backend/internal/db"
	"github.com/watchparty/backend/internal/drive"
	"github.com/watchparty/backend/internal/handlers"
	"github.com/watchparty/backend/internal/metrics"
	"github.com/watchparty/backend/internal/middleware"
	"github.com/watchparty/backend/internal/repositories"
	"github.com/watchparty/backend/internal/secrets"
	"github.com/watchparty/backend/internal/storage"
)

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. The returned cleanup closes anything holding connections.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, rotator *secrets.Rotator, m *metrics.Metrics, logger *slog.Logger) (handlers.Dependencies, func(), error) {
	repo := repositories.NewPostgresConnectionRepository(pool)

	client := drive.NewClient(cfg.Drive.TokenURL, cfg.Drive.APIBaseURL, driveClientCredentials(cfg, rotator), cfg.UpstreamTimeout)

	cache, cleanup := buildURLCache(cfg, rotator, logger)

	resolver := drive.NewResolver(client, repo, repo.SaveCredential, cache, m)

	deps := handlers.Dependencies{
		Resolver:       resolver,
		Rotation:       rotator,
		UpstreamClient: upstreamClient(cfg.UpstreamTimeout),
		Metrics:        m,
		ChunkSize:      cfg.RelayChunkSize,
		AllowedOrigin:  cfg.FrontendOrigin,
		StreamLimiter:  middleware.NewKeyedRateLimiter(120, time.Minute, 30, 10*time.Minute),
		UploadLimiter:  middleware.NewKeyedRateLimiter(10, time.Minute, 5, 10*time.Minute),
		// One forced re-resolve per 15s per session, with a small burst for
		// players that probe with several ranged requests at once.
		RefreshLimiter: middleware.NewKeyedRateLimiter(1, 15*time.Second, 3, 10*time.Minute),
	}

	if cfg.ObjectStore.Bucket != "" {
		store, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			cleanup()
			return handlers.Dependencies{}, nil, fmt.Errorf("init object storage: %w", err)
		}
		deps.Media = store
	}

	return deps, cleanup, nil
}

// driveClientCredentials reads the OAuth client pair from the rotation cache
// on every call, falling back to env-provided values when the secret is not
// cached yet.
func driveClientCredentials(cfg config.Config, rotator *secrets.Rotator) drive.ClientCredentialsFunc {
	return func() (string, string) {
		if rotator != nil {
			if payload, ok := rotator.Get(secrets.KeyGoogleOAuth); ok {
				id, secret := payload["client_id"], payload["client_secret"]
				if id != "" && secret != "" {
					return id, secret
				}
			}
		}
		return cfg.Drive.ClientID, cfg.Drive.ClientSecret
	}
}

func buildURLCache(cfg config.Config, rotator *secrets.Rotator, logger *slog.Logger) (drive.URLCache, func()) {
	if cfg.RedisAddr == "" {
		return drive.NewMemoryURLCache(cfg.StreamURLTTL), func() {}
	}

	var password string
	if rotator != nil {
		if payload, ok := rotator.Get(secrets.KeyValkey); ok {
			password = payload["value"]
		}
	}

	cache := drive.NewRedisURLCache(cfg.RedisAddr, password, cfg.StreamURLTTL, logger)
	return cache, func() {
		if err := cache.Close(); err != nil {
			logger.Warn("close url cache", "error", err)
		}
	}
}

// upstreamClient bounds time-to-first-byte without capping total transfer
// time; a feature-length stream outlives any sane whole-request timeout.
func upstreamClient(headerTimeout time.Duration) *http.Client {
	if headerTimeout <= 0 {
		headerTimeout = 30 * time.Second
	}
	return &http.Client{
		Transport: &http.Transport{
			ResponseHeaderTimeout: headerTimeout,
			MaxIdleConnsPerHost:   16,
		},
	}
}
