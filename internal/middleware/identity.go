package middleware

import (
	"context"
	"net/http"
	"strings"
)

// userKey is an unexported context key for the authenticated user identifier.
type userKey struct{}

// AuthenticatedUserHeader carries the user identifier installed by the API
// gateway after it validates the caller's session. This service never sees
// raw credentials; the identity layer lives upstream.
const AuthenticatedUserHeader = "X-Authenticated-User"

// Identity copies the gateway-asserted user identifier onto the request
// context. Handlers that require a user reject the request themselves when
// the header is absent.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID := strings.TrimSpace(r.Header.Get(AuthenticatedUserHeader)); userID != "" {
			r = r.WithContext(WithUser(r.Context(), userID))
		}
		next.ServeHTTP(w, r)
	})
}

// WithUser stores the acting user identifier on the context.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserFromContext returns the acting user identifier, or "" when the request
// was not authenticated.
func UserFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if userID, ok := ctx.Value(userKey{}).(string); ok {
		return userID
	}
	return ""
}
