package middleware

import (
	"net/http"
	"strings"

	"gorm.io/gorm"

	"zaop.zip/paylink/internal/db"
)

// APIKeyAuth validates the local API key. The daemon listens on loopback, but
// the key keeps other local processes (and browsers) out of the receipt data.
func APIKeyAuth(database *gorm.DB) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			expectedKey := db.GetAPIKey(database)
			if expectedKey == "" {
				// No API key configured yet (first run), allow.
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				if strings.TrimPrefix(authHeader, "Bearer ") == expectedKey {
					next.ServeHTTP(w, r)
					return
				}
			}

			if r.Header.Get("x-api-key") == expectedKey {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "invalid API key"}`))
		})
	}
}
