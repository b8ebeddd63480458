package httpx

import (
	"net/http"
	"time"
)

// Middleware wraps a handler with cross-cutting behavior. Middlewares in
// this package are combined with Chain.
type Middleware func(http.Handler) http.Handler

// Chain wraps h so the first middleware in the list is the outermost:
// Chain(h, a, b, c) serves requests as a→b→c→h.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	wrapped := h
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

// WithBodyLimit rejects request bodies larger than limitBytes. Reads past
// the limit fail and the connection is closed, which keeps oversized booking
// payloads from tying up handlers.
func WithBodyLimit(limitBytes int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limitBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// WithTimeout cuts off handlers that exceed d with a 503.
func WithTimeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}
