package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func authHandler(t *testing.T, enabled bool, token string) http.Handler {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return Auth(enabled, string(hash))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestAuthAcceptsBearerToken(t *testing.T) {
	handler := authHandler(t, true, "s3cret")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/escalations", http.NoBody)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestAuthAcceptsQueryToken(t *testing.T) {
	handler := authHandler(t, true, "s3cret")

	req := httptest.NewRequest(http.MethodGet, "/ws?token=s3cret", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestAuthRejectsMissingAndWrongTokens(t *testing.T) {
	handler := authHandler(t, true, "s3cret")

	for _, header := range []string{"", "Bearer wrong", "Basic s3cret"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/escalations", http.NoBody)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected 401, got %d", header, rec.Code)
		}
	}
}

func TestAuthDisabledPassesThrough(t *testing.T) {
	handler := authHandler(t, false, "unused")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/escalations", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
