package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAPIKeyOpenMode(t *testing.T) {
	handler := RequireAPIKey("")(okHandler())

	req := httptest.NewRequest("POST", "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d in open mode", rec.Code, http.StatusOK)
	}
}

func TestRequireAPIKeyMissing(t *testing.T) {
	handler := RequireAPIKey("top-secret")(okHandler())

	req := httptest.NewRequest("POST", "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d without key", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAPIKeyWrong(t *testing.T) {
	handler := RequireAPIKey("top-secret")(okHandler())

	req := httptest.NewRequest("POST", "/", nil)
	req.Header.Set("X-API-Key", "guess")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d with wrong key", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAPIKeyCorrect(t *testing.T) {
	handler := RequireAPIKey("top-secret")(okHandler())

	req := httptest.NewRequest("POST", "/", nil)
	req.Header.Set("X-API-Key", "top-secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d with correct key", rec.Code, http.StatusOK)
	}
}
