package api

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// requireAuth wraps next so that a valid HS256 bearer token signed with
// signingKey is required to reach it. The workflow-management surface
// (create/delete) is gated this way; read endpoints, webhook delivery, and
// execution streaming are not — webhooks carry their own secret
// (WebhookSecret) instead of a user-facing JWT.
func requireAuth(signingKey string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) {
			http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
			return
		}
		tokenStr := strings.TrimPrefix(auth, prefix)

		_, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return []byte(signingKey), nil
		})
		if err != nil {
			http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
			return
		}

		next(w, r)
	}
}
