package handlers

import (
	"net/http"

	"github.com/watchparty/backend/internal/metrics"
)

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Rotation: deps.Rotation}
	stream := StreamHandler{
		Resolver:       deps.Resolver,
		Upstream:       deps.UpstreamClient,
		ChunkSize:      deps.ChunkSize,
		AllowedOrigin:  deps.AllowedOrigin,
		IPLimiter:      deps.StreamLimiter,
		RefreshLimiter: deps.RefreshLimiter,
		Metrics:        deps.Metrics,
	}

	mux.HandleFunc("/healthz", health.Handle)
	mux.HandleFunc("/api/v1/integrations/drive/files/{fileID}/stream", stream.Stream)
	mux.HandleFunc("/api/v1/integrations/drive/files/{fileID}/streaming-url", stream.StreamingURL)

	if deps.Media != nil {
		storage := StorageHandler{Store: deps.Media, Limiter: deps.UploadLimiter}
		mux.HandleFunc("/api/v1/integrations/s3/streaming-url", storage.StreamingURL)
		mux.HandleFunc("/api/v1/integrations/s3/upload", storage.Upload)
	}
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Resolver       URLResolver
	Media          MediaStore
	Rotation       RotationStatusProvider
	UpstreamClient *http.Client
	Metrics        *metrics.Metrics

	ChunkSize     int
	AllowedOrigin string

	StreamLimiter  RateLimiter
	UploadLimiter  RateLimiter
	RefreshLimiter RateLimiter
}
