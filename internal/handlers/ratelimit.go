package handlers

import (
	"net"
	"net/http"
	"strings"
)

// RateLimiter is the minimal interface the handlers need to throttle a caller.
type RateLimiter interface {
	Allow(key string) bool
}

// allowRequest checks the per-client rate for the given scope. A nil limiter
// disables throttling for that scope.
func allowRequest(limiter RateLimiter, r *http.Request, scope string) bool {
	if limiter == nil {
		return true
	}
	return limiter.Allow(scope + ":" + clientIP(r))
}

// clientIP prefers the first X-Forwarded-For hop since the service sits
// behind the platform load balancer.
func clientIP(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
