// Package clientip resolves the real client IP behind edge proxies.
package clientip

import (
	"context"
	"maps"
	"net"
	"net/http"
	"slices"
	"strings"
)

type contextKey struct{}

// Info contains extracted client IP information.
type Info struct {
	// Primary is the most trusted single IP, used for logging.
	Primary string

	// RateLimitKey joins every IP seen on the request. RemoteAddr is always
	// part of it, so spoofed headers alone cannot pick someone else's bucket.
	RateLimitKey string
}

// trustedHeaders are consulted in order; the first non-empty one is Primary.
var trustedHeaders = []string{
	"Fly-Client-IP",
	"CF-Connecting-IP",
	"True-Client-IP",
	"X-Real-IP",
}

// Middleware stores Info in the request context and rewrites r.RemoteAddr to
// the primary IP.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := Extract(r)
		r.RemoteAddr = info.Primary
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, info)))
	})
}

// FromContext returns the Info stored by Middleware, or the zero Info.
func FromContext(ctx context.Context) Info {
	info, _ := ctx.Value(contextKey{}).(Info)
	return info
}

// FromRequest is a convenience wrapper around FromContext
func FromRequest(r *http.Request) Info {
	return FromContext(r.Context())
}

// Extract computes Info from the request headers and RemoteAddr.
func Extract(r *http.Request) Info {
	seen := make(map[string]struct{})
	var primary string
	note := func(ip string) {
		if ip == "" {
			return
		}
		seen[ip] = struct{}{}
		if primary == "" {
			primary = ip
		}
	}

	remote := hostOnly(r.RemoteAddr)
	if remote != "" {
		seen[remote] = struct{}{}
	}
	for _, h := range trustedHeaders {
		note(strings.TrimSpace(r.Header.Get(h)))
	}
	// Only the first X-Forwarded-For hop is the client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		note(strings.TrimSpace(first))
	}
	if primary == "" {
		primary = remote
	}

	return Info{
		Primary:      primary,
		RateLimitKey: strings.Join(slices.Sorted(maps.Keys(seen)), "|"),
	}
}

// hostOnly strips the port from "IP:port" or "[IPv6]:port".
func hostOnly(addr string) string {
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.Trim(addr, "[]")
}
