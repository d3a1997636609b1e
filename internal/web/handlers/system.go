package handlers

import (
	"net/http"

	"gorm.io/gorm"

	"zaop.zip/paylink/internal/db"
	"zaop.zip/paylink/internal/version"
)

// HealthHandler reports liveness plus build information.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":     "ok",
			"version":    version.Version,
			"commit":     version.Commit,
			"build_time": version.BuildTime,
		})
	}
}

// GetAPIKeyHandler returns the current API key.
func GetAPIKeyHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"api_key": db.GetAPIKey(database)})
	}
}

// RegenerateAPIKeyHandler rotates the API key and returns the new one.
func RegenerateAPIKeyHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"api_key": db.RegenerateAPIKey(database)})
	}
}
