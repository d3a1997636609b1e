package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"zaop.zip/paylink/internal/db"
)

func TestAPIKeyAuth(t *testing.T) {
	database, err := db.InitDB(fmt.Sprintf("file:test-%d?mode=memory&cache=shared", time.Now().UnixNano()))
	if err != nil {
		t.Fatalf("InitDB() error = %v", err)
	}
	apiKey := db.GetAPIKey(database)

	handler := APIKeyAuth(database)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		setup      func(r *http.Request)
		wantStatus int
	}{
		{"no credentials", func(r *http.Request) {}, http.StatusUnauthorized},
		{"wrong bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"valid bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+apiKey) }, http.StatusOK},
		{"valid x-api-key", func(r *http.Request) { r.Header.Set("x-api-key", apiKey) }, http.StatusOK},
		{"wrong x-api-key", func(r *http.Request) { r.Header.Set("x-api-key", "nope") }, http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/receipts", nil)
			tc.setup(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}
}
