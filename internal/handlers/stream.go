package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/watchparty/backend/internal/drive"
	"github.com/watchparty/backend/internal/logging"
	"github.com/watchparty/backend/internal/metrics"
	"github.com/watchparty/backend/internal/middleware"
)

// streamUserAgent is sent on every upstream fetch; Drive serves different
// content-disposition behavior to unidentified clients.
const streamUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

const defaultChunkSize = 8192

// StreamHandler proxies Drive media to viewers with Range passthrough and a
// single retry-after-invalidate when the upstream URL has gone stale.
type StreamHandler struct {
	Resolver URLResolver
	Upstream *http.Client

	ChunkSize      int
	AllowedOrigin  string
	IPLimiter      RateLimiter
	RefreshLimiter RateLimiter
	Metrics        *metrics.Metrics
}

// Stream handles GET /api/v1/integrations/drive/files/{fileID}/stream.
func (h StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		h.writeCORS(w.Header())
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)
	h.writeCORS(w.Header())

	if !allowRequest(h.IPLimiter, r, "stream") {
		respondText(ctx, w, http.StatusTooManyRequests, "too many streaming requests")
		return
	}

	userID := middleware.UserFromContext(ctx)
	if userID == "" {
		respondText(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	fileID := r.PathValue("fileID")
	if fileID == "" {
		respondText(ctx, w, http.StatusBadRequest, "file id is required")
		return
	}

	resolved, err := h.Resolver.Resolve(ctx, userID, fileID, false)
	if err != nil {
		status, message := resolveErrorStatus(err)
		h.Metrics.ProxyRequest(strconv.Itoa(status))
		respondText(ctx, w, status, "%s", message)
		return
	}

	resp, err := h.fetchUpstream(ctx, resolved.StreamingURL, r.Header.Get("Range"))
	if err != nil {
		logger.Error("upstream fetch failed", "fileId", fileID, "error", err)
		h.Metrics.ProxyRequest("502")
		respondText(ctx, w, http.StatusBadGateway, "failed to stream video")
		return
	}

	// A 401/403 means the signed URL or the token behind it expired mid-
	// session. Invalidate, force a fresh resolve, and retry exactly once.
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		_ = resp.Body.Close()
		h.Metrics.ProxyAuthRetry()
		h.Resolver.Invalidate(ctx, userID, fileID)

		if h.RefreshLimiter != nil && !h.RefreshLimiter.Allow(userID+":"+fileID) {
			logger.Warn("forced refresh limit reached", "userId", userID, "fileId", fileID)
			h.Metrics.ProxyRequest("502")
			respondText(ctx, w, http.StatusBadGateway, "streaming session refresh limit reached")
			return
		}

		resolved, err = h.Resolver.Resolve(ctx, userID, fileID, true)
		if err != nil {
			status, message := resolveErrorStatus(err)
			h.Metrics.ProxyRequest(strconv.Itoa(status))
			respondText(ctx, w, status, "%s", message)
			return
		}

		resp, err = h.fetchUpstream(ctx, resolved.StreamingURL, r.Header.Get("Range"))
		if err != nil {
			logger.Error("upstream retry failed", "fileId", fileID, "error", err)
			h.Metrics.ProxyRequest("502")
			respondText(ctx, w, http.StatusBadGateway, "failed to stream video")
			return
		}

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			_ = resp.Body.Close()
			logger.Error("upstream rejected refreshed credentials", "fileId", fileID, "status", resp.StatusCode)
			h.Metrics.ProxyRequest("502")
			respondText(ctx, w, http.StatusBadGateway, "upstream authorization failed")
			return
		}
	}

	defer resp.Body.Close()
	h.relay(w, r, resp)
}

// StreamingURL handles GET /api/v1/integrations/drive/files/{fileID}/streaming-url.
// It returns the resolved URLs as JSON so clients can fetch directly.
func (h StreamHandler) StreamingURL(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		h.writeCORS(w.Header())
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	h.writeCORS(w.Header())

	userID := middleware.UserFromContext(ctx)
	if userID == "" {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	fileID := r.PathValue("fileID")
	if fileID == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "file id is required"})
		return
	}

	resolved, err := h.Resolver.Resolve(ctx, userID, fileID, false)
	if err != nil {
		status, message := resolveErrorStatus(err)
		respondJSON(ctx, w, status, map[string]string{"error": message})
		return
	}

	respondJSON(ctx, w, http.StatusOK, streamingURLResponse{
		FileID:       resolved.FileID,
		StreamingURL: resolved.StreamingURL,
		DownloadURL:  resolved.DownloadURL,
	})
}

type streamingURLResponse struct {
	FileID       string `json:"file_id"`
	StreamingURL string `json:"streaming_url"`
	DownloadURL  string `json:"download_url"`
}

func (h StreamHandler) fetchUpstream(ctx context.Context, url, rangeHeader string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", streamUserAgent)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	client := h.Upstream
	if client == nil {
		client = http.DefaultClient
	}
	return client.Do(req)
}

// relay copies the upstream response to the viewer in fixed-size chunks. The
// upstream status is passed through unchanged: 206 stays 206, and error
// statuses reach the player rather than being coerced to 200.
func (h StreamHandler) relay(w http.ResponseWriter, r *http.Request, resp *http.Response) {
	logger := logging.FromContext(r.Context())

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}
	w.Header().Set("Content-Type", contentType)

	// Content-Length is only propagated when upstream supplied one; a missing
	// length falls back to chunked transfer instead of a synthesized value.
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		w.Header().Set("Content-Length", cl)
	}
	if cr := resp.Header.Get("Content-Range"); cr != "" {
		w.Header().Set("Content-Range", cr)
	}
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Cache-Control", "public, max-age=300")

	h.Metrics.ProxyRequest(strconv.Itoa(resp.StatusCode))
	w.WriteHeader(resp.StatusCode)

	if r.Method == http.MethodHead {
		return
	}

	chunkSize := h.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	buf := make([]byte, chunkSize)
	flusher, _ := w.(http.Flusher)

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				// Viewer closed the connection (seek or stop). Returning runs
				// the deferred body close, which aborts the upstream fetch.
				logger.Info("viewer disconnected mid-stream", "error", writeErr)
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return
			}
			// The relay already committed a success status; abort the
			// connection so a truncated body never looks like a completed
			// response.
			logger.Error("upstream read failed mid-stream", "error", readErr)
			panic(http.ErrAbortHandler)
		}
	}
}

func (h StreamHandler) writeCORS(header http.Header) {
	origin := h.AllowedOrigin
	if origin == "" {
		// Browsers reject a wildcard origin combined with credentials, so
		// the credentials header is only sent for a configured origin.
		origin = "*"
	} else {
		header.Set("Access-Control-Allow-Credentials", "true")
	}
	header.Set("Access-Control-Allow-Origin", origin)
	header.Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
	header.Set("Access-Control-Allow-Headers", "Range, Content-Type")
}

func resolveErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, drive.ErrNotConnected):
		return http.StatusBadRequest, "Google Drive is not connected for this account"
	case errors.Is(err, drive.ErrCredentialsInvalid):
		return http.StatusBadRequest, "Google Drive credentials are invalid, reconnect the integration"
	case errors.Is(err, drive.ErrFileNotFound):
		return http.StatusNotFound, "file not found"
	case errors.Is(err, drive.ErrUpstreamUnavailable):
		return http.StatusBadGateway, "Google Drive is currently unavailable"
	default:
		return http.StatusBadGateway, "failed to generate streaming URL"
	}
}
