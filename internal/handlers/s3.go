package handlers

import (
	"errors"
	"net/http"

	"github.com/watchparty/backend/internal/logging"
	"github.com/watchparty/backend/internal/middleware"
)

const maxUploadBytes = 2 << 30 // 2 GiB

// StorageHandler exposes the object store: presigned playback URLs for
// media kept in the party's own bucket, and direct uploads into it.
type StorageHandler struct {
	Store   MediaStore
	Limiter RateLimiter
}

// StreamingURL handles GET /api/v1/integrations/s3/streaming-url?key=.
func (h StorageHandler) StreamingURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if middleware.UserFromContext(ctx) == "" {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	key := r.URL.Query().Get("key")
	if key == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "query parameter 'key' is required"})
		return
	}

	url, err := h.Store.StreamingURL(ctx, key)
	if err != nil {
		logging.FromContext(ctx).Error("presign failed", "key", key, "error", err)
		respondJSON(ctx, w, http.StatusBadGateway, map[string]string{"error": "failed to generate streaming URL"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"key": key, "streaming_url": url})
}

// Upload handles POST /api/v1/integrations/s3/upload. The request is a
// multipart form with a single "file" part.
func (h StorageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if middleware.UserFromContext(ctx) == "" {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}
	if !allowRequest(h.Limiter, r, "upload") {
		respondJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"error": "too many uploads"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondJSON(ctx, w, http.StatusRequestEntityTooLarge, map[string]string{"error": "file is too large"})
			return
		}
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "a file part named 'file' is required"})
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	location, err := h.Store.Save(ctx, header.Filename, contentType, file)
	if err != nil {
		logger.Error("upload failed", "filename", header.Filename, "error", err)
		respondJSON(ctx, w, http.StatusBadGateway, map[string]string{"error": "failed to store file"})
		return
	}

	logger.Info("media uploaded", "filename", header.Filename, "location", location)
	respondJSON(ctx, w, http.StatusCreated, map[string]string{"location": location})
}
