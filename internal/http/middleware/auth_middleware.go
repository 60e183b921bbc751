package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/opsarena/mailauth/internal/http/response"
	"github.com/opsarena/mailauth/internal/security"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// AuthMiddleware admits requests carrying a valid bearer session token and
// stores the parsed claims on the request context.
func AuthMiddleware(jwtMgr *security.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
				return
			}
			claims, err := jwtMgr.ParseSessionToken(strings.TrimSpace(auth[7:]))
			if err != nil {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid session token")
				return
			}
			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*security.SessionClaims, bool) {
	c, ok := ctx.Value(claimsContextKey).(*security.SessionClaims)
	return c, ok
}
