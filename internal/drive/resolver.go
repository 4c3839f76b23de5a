package drive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/watchparty/backend/internal/logging"
	"github.com/watchparty/backend/internal/metrics"
	"github.com/watchparty/backend/internal/models"
	"github.com/watchparty/backend/internal/repositories"
)

// ResolvedURL is a minted, time-boxed streaming location for one Drive file.
type ResolvedURL struct {
	FileID       string `json:"file_id"`
	Name         string `json:"name"`
	MimeType     string `json:"mime_type"`
	Size         int64  `json:"size"`
	StreamingURL string `json:"streaming_url"`
	DownloadURL  string `json:"download_url"`
}

// CredentialLoader reads a user's stored Drive credential. Implementations
// report missing records with repositories.ErrNotFound.
type CredentialLoader interface {
	LoadCredential(ctx context.Context, userID string) (models.OAuthCredential, error)
}

// CredentialUpdater persists a refreshed token back to the owning store. The
// resolver has no storage dependency of its own; the caller injects the write
// path.
type CredentialUpdater func(ctx context.Context, userID, accessToken, refreshToken string, expiry time.Time) error

// Resolver turns a (user, file) pair into a currently valid streaming URL,
// refreshing the user's OAuth credential when expired or when forced.
type Resolver struct {
	client      *Client
	credentials CredentialLoader
	update      CredentialUpdater
	cache       URLCache
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewResolver wires a resolver over the Drive client, credential store and
// URL cache.
func NewResolver(client *Client, loader CredentialLoader, updater CredentialUpdater, cache URLCache, m *metrics.Metrics) *Resolver {
	return &Resolver{
		client:      client,
		credentials: loader,
		update:      updater,
		cache:       cache,
		metrics:     m,
		now:         time.Now,
	}
}

// Resolve produces a streaming URL for the pair, consulting the cache unless
// forceRefresh is set. On success the cache entry is (re)written.
func (r *Resolver) Resolve(ctx context.Context, userID, fileID string, forceRefresh bool) (ResolvedURL, error) {
	if !forceRefresh {
		if cached, ok := r.cache.Get(ctx, userID, fileID); ok {
			r.metrics.URLCacheHit()
			return cached, nil
		}
		r.metrics.URLCacheMiss()
	}

	cred, err := r.credentials.LoadCredential(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ResolvedURL{}, ErrNotConnected
		}
		return ResolvedURL{}, fmt.Errorf("load drive credential: %w", err)
	}
	if cred.RefreshToken == "" {
		return ResolvedURL{}, ErrNotConnected
	}

	accessToken := cred.AccessToken
	if forceRefresh || accessToken == "" || cred.Expired(r.now()) {
		refreshed, expiry, err := r.client.RefreshToken(ctx, cred.RefreshToken)
		if err != nil {
			return ResolvedURL{}, err
		}
		r.metrics.TokenRefresh()

		if r.update != nil {
			if err := r.update(ctx, userID, refreshed, cred.RefreshToken, expiry); err != nil {
				return ResolvedURL{}, fmt.Errorf("persist refreshed credential: %w", err)
			}
		}
		logging.FromContext(ctx).Info("drive credentials refreshed", "userId", userID)
		accessToken = refreshed
	}

	meta, err := r.client.FileMetadata(ctx, accessToken, fileID)
	if err != nil {
		return ResolvedURL{}, err
	}

	streamingURL := meta.DownloadURL
	if streamingURL == "" {
		streamingURL = meta.ViewURL
	}
	if streamingURL == "" {
		streamingURL = DownloadURL(fileID)
	}

	resolved := ResolvedURL{
		FileID:       meta.ID,
		Name:         meta.Name,
		MimeType:     meta.MimeType,
		Size:         meta.Size,
		StreamingURL: streamingURL,
		DownloadURL:  meta.DownloadURL,
	}

	r.cache.Set(ctx, userID, fileID, resolved)
	return resolved, nil
}

// Invalidate evicts any cached URL for the pair; the proxy calls this after an
// upstream auth failure before forcing a fresh resolve.
func (r *Resolver) Invalidate(ctx context.Context, userID, fileID string) {
	r.cache.Invalidate(ctx, userID, fileID)
}
