package ratelimit

import (
	"encoding/json"
	"net/http"

	"github.com/ConfabulousDev/habitstat/internal/clientip"
	"github.com/ConfabulousDev/habitstat/internal/logger"
)

// KeyFunc picks the rate limit key for a request. An empty key falls back to
// the client IP key set by clientip.Middleware.
type KeyFunc func(*http.Request) string

// HeaderKey keys requests by the value of a header, e.g. the caller identity.
func HeaderKey(header string) KeyFunc {
	return func(r *http.Request) string {
		if v := r.Header.Get(header); v != "" {
			return "user:" + v
		}
		return ""
	}
}

// Middleware rejects requests over the limit with 429.
func Middleware(limiter RateLimiter, keyFunc KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var key string
			if keyFunc != nil {
				key = keyFunc(r)
			}
			if key == "" {
				key = clientip.FromRequest(r).RateLimitKey
			}

			if !limiter.Allow(r.Context(), key) {
				logger.Ctx(r.Context()).Warn("rate limit exceeded", "key", key, "path", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{"error": "Rate limit exceeded. Please try again later."})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
