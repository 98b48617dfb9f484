package api

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/consulthub/consulthub-api/auth"
)

type userIDKey struct{}

// UserIDFromContext returns the user the request was authenticated as
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}

// Middleware authenticates REST requests with the same bearer tokens the chat
// gateway accepts
func Middleware(verifier *auth.TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")

			userID, err := authenticate(verifier, r)
			if err != nil {
				zap.S().Errorw("unauthorized",
					"url", r.URL,
					"error", err)
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error": "unauthorized"}`))
				return
			}
			zap.S().Debugf("User %s Authenticated", userID)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey{}, userID)))
		})
	}
}

func authenticate(verifier *auth.TokenVerifier, r *http.Request) (string, error) {
	token, err := auth.ExtractToken("", r.Header.Get("Authorization"))
	if err != nil {
		return "", err
	}
	claims, err := verifier.Verify(token)
	if err != nil {
		return "", err
	}
	return auth.UserIDFromClaims(claims)
}
