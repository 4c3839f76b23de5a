package handlers

import (
	"context"
	"io"

	"github.com/watchparty/backend/internal/drive"
	"github.com/watchparty/backend/internal/secrets"
)

// URLResolver produces a currently valid streaming URL for a (user, file)
// pair and supports explicit cache invalidation after upstream auth failures.
type URLResolver interface {
	Resolve(ctx context.Context, userID, fileID string, forceRefresh bool) (drive.ResolvedURL, error)
	Invalidate(ctx context.Context, userID, fileID string)
}

// MediaStore issues presigned streaming URLs and stores uploaded objects for
// directly hosted media.
type MediaStore interface {
	StreamingURL(ctx context.Context, key string) (string, error)
	Save(ctx context.Context, name, contentType string, r io.Reader) (string, error)
}

// RotationStatusProvider exposes the credential rotation service state for
// health reporting.
type RotationStatusProvider interface {
	Status() secrets.Status
}
