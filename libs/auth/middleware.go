package auth

import (
	"context"
	"net/http"
	"strings"
)

type claimsKey struct{}

// Verifier validates a bearer token and returns its claims. Both the
// shared-secret and JWKS-backed verifiers below implement it.
type Verifier interface {
	Verify(token string) (*Claims, error)
}

// HS256Verifier checks tokens signed with a shared secret.
type HS256Verifier struct {
	Secret string
}

func (v HS256Verifier) Verify(token string) (*Claims, error) {
	return ParseAndVerifyHS256(token, v.Secret)
}

// RS256Verifier checks tokens against the provider's published JWKS.
type RS256Verifier struct {
	Keys *JWKSClient
}

func (v RS256Verifier) Verify(token string) (*Claims, error) {
	header, err := ParseHeader(token)
	if err != nil {
		return nil, err
	}
	if header.Alg != "RS256" || header.Kid == "" {
		return nil, ErrInvalidToken
	}
	key, err := v.Keys.Get(header.Kid)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return VerifyRS256(token, key)
}

// RequireAdmin rejects requests without a valid bearer token carrying the
// admin role.
func RequireAdmin(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get("Authorization")
			if !strings.HasPrefix(raw, "Bearer ") {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			claims, err := verifier.Verify(strings.TrimPrefix(raw, "Bearer "))
			if err != nil {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			if claims.Role != "admin" {
				http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
				return
			}
			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the verified claims attached by RequireAdmin.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok
}
