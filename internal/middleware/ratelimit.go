package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/abhi-yo/quilly-sub000/internal/ratelimit"
)

// ClientIP derives the client address from trusted proxy headers, falling
// back to "unknown" when none is present.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Take first IP if multiple
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return strings.TrimSpace(ip)
	}
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return strings.TrimSpace(ip)
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

// RateLimit applies the global per-IP cap and short-circuits with 429 and a
// Retry-After header when exceeded.
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := limiter.Check("global", ClientIP(r), ratelimit.GlobalLimit)
			if !d.Allowed {
				RespondRateLimited(w, d)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RespondRateLimited writes the 429 response with machine-readable retry
// timing so clients can back off correctly.
func RespondRateLimited(w http.ResponseWriter, d ratelimit.Decision) {
	retryAfter := int(time.Until(d.ResetAt).Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   "rate limit exceeded",
		"resetAt": d.ResetAt.UTC().Format(time.RFC3339),
	})
}
