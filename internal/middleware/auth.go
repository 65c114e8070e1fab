package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/smschat/server/internal/auth"
)

type contextKey string

const userNameKey contextKey = "user_name"

// AuthMiddleware validates the bearer token and attaches the authenticated
// username to the request context. The token is self-contained; no store
// lookup happens here.
func AuthMiddleware(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondWithError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				respondWithError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			tokenString := strings.TrimSpace(parts[1])
			if tokenString == "" {
				respondWithError(w, http.StatusUnauthorized, "missing token")
				return
			}

			userName, err := jwtService.VerifyToken(tokenString)
			if err != nil {
				respondWithError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), userNameKey, userName)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserName extracts the authenticated username from context
func GetUserName(ctx context.Context) (string, bool) {
	userName, ok := ctx.Value(userNameKey).(string)
	return userName, ok
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := map[string]string{"error": message}
	_ = json.NewEncoder(w).Encode(response)
}
