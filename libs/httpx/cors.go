package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy describes which browser origins may call the public booking
// endpoints and what the preflight response advertises.
type CORSPolicy struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// WithCORS emits CORS headers for requests from an allowed origin and
// answers preflights with 204. An empty origin list disables the middleware
// entirely, so services can pass a zero policy when CORS_ORIGINS is unset.
func WithCORS(policy CORSPolicy) Middleware {
	origins := trimAll(policy.AllowedOrigins)
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	methods := strings.Join(trimAll(policy.AllowedMethods), ", ")
	headerList := strings.Join(trimAll(policy.AllowedHeaders), ", ")
	maxAgeSeconds := int(policy.MaxAge.Seconds())

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allow := policy.allowedOrigin(origins, origin)
			if allow == "" {
				// Same-origin request or an origin we don't serve;
				// the browser enforces the rest.
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allow)
			if policy.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			if methods != "" {
				h.Set("Access-Control-Allow-Methods", methods)
			}
			if headerList != "" {
				h.Set("Access-Control-Allow-Headers", headerList)
			}
			if maxAgeSeconds > 0 {
				h.Set("Access-Control-Max-Age", strconv.Itoa(maxAgeSeconds))
			}
			h.Add("Vary", "Origin")
			h.Add("Vary", "Access-Control-Request-Method")
			h.Add("Vary", "Access-Control-Request-Headers")

			if isPreflight(r) {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// allowedOrigin returns the Allow-Origin value to emit, or "" when the
// request origin is not allowed. A "*" entry echoes the caller's origin
// when credentials are allowed, since the wildcard is invalid then.
func (p CORSPolicy) allowedOrigin(origins []string, origin string) string {
	if origin == "" {
		return ""
	}
	for _, candidate := range origins {
		switch {
		case candidate == "*" && p.AllowCredentials:
			return origin
		case candidate == "*":
			return "*"
		case strings.EqualFold(candidate, origin):
			return origin
		}
	}
	return ""
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
