package httpx

import (
	"context"
	"net/http"
	"strings"

	"keerthanaapi/internal/logging"
)

// Principal is the signed-in user a bearer token resolves to.
type Principal struct {
	UserID  string
	Email   string
	TokenID string
}

type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (Principal, error)
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	return token, token != ""
}

func AuthMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Sign in required", nil)
				return
			}

			p, err := verifier.VerifyToken(r.Context(), token)
			if err != nil {
				JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Sign in required", nil)
				return
			}

			ctx := ContextWithUser(r.Context(), p.UserID, p.Email, p.TokenID)
			ctx = logging.WithField(ctx, "user_id", p.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
