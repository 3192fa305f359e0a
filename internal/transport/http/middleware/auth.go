package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"elms/internal/domain/access"
	"elms/internal/domain/auth"
	"elms/internal/transport/http/api"
)

type ctxKey string

const ctxKeyClaims ctxKey = "claims"

// Authenticator verifies a bearer token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Claims, error)
}

// Auth attaches verified claims to the context. Requests without a bearer
// token pass through anonymously; a bad or revoked token is rejected.
func Auth(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}
			parts := strings.Fields(authHeader)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "malformed authorization header", GetRequestID(r.Context()))
				return
			}

			claims, err := authn.Authenticate(r.Context(), parts[1])
			if err != nil {
				message := "invalid token"
				if errors.Is(err, auth.ErrTokenRevoked) {
					message = "token revoked"
				}
				api.Fail(w, http.StatusUnauthorized, "unauthorized", message, GetRequestID(r.Context()))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, ctxKeyClaims, claims)
}

func GetClaims(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(ctxKeyClaims).(*auth.Claims)
	return claims, ok && claims != nil
}

// GetActor returns the actor derived from the verified token.
func GetActor(ctx context.Context) (access.ActorContext, bool) {
	claims, ok := GetClaims(ctx)
	if !ok {
		return access.ActorContext{}, false
	}
	actor := claims.Actor()
	return actor, actor.Valid()
}
