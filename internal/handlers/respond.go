package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/watchparty/backend/internal/logging"
)

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

// respondText writes a short plain-text error body, the shape the streaming
// proxy uses so video elements surface a readable failure instead of a fake
// media payload.
func respondText(ctx context.Context, w http.ResponseWriter, status int, format string, args ...any) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	message := fmt.Sprintf(format, args...)
	if _, err := fmt.Fprintln(w, message); err != nil {
		logging.FromContext(ctx).Error("write error body", "status", status, "error", err)
		return
	}
	if status >= http.StatusBadRequest {
		logging.FromContext(ctx).Warn("stream request failed", "status", status, "message", message)
	}
}
