package handlers

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthHandler responds with service health information, including the
// credential rotation loop's state so operators can spot a stalled rotator.
type HealthHandler struct {
	Rotation RotationStatusProvider
}

// Handle implements GET /healthz.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	payload := map[string]any{
		"status": "ok",
	}

	if h.Rotation != nil {
		status := h.Rotation.Status()
		rotation := map[string]any{
			"running":     status.Running,
			"interval":    status.Interval.String(),
			"cached_keys": status.CachedKeys,
		}
		if len(status.LastRotation) > 0 {
			last := make(map[string]string, len(status.LastRotation))
			for key, at := range status.LastRotation {
				last[key] = at.UTC().Format(time.RFC3339)
			}
			rotation["last_rotation"] = last
			rotation["next_rotation_eta"] = status.NextRotationETA.String()
		}
		payload["credential_rotation"] = rotation
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
