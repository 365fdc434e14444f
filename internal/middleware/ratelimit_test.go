package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/messages", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAllowsWithinBurst(t *testing.T) {
	rl := NewRateLimiter(1, 3)
	h := rl.Handler(okHandler())

	for i := 0; i < 3; i++ {
		if rec := doRequest(h, "10.0.0.1:1234"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}
}

func TestRejectsOverBurst(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	h := rl.Handler(okHandler())

	doRequest(h, "10.0.0.1:1234")
	doRequest(h, "10.0.0.1:1234")
	rec := doRequest(h, "10.0.0.1:1234")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header on 429")
	}
}

func TestLimitsPerIP(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	h := rl.Handler(okHandler())

	doRequest(h, "10.0.0.1:1234")
	if rec := doRequest(h, "10.0.0.1:1234"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected first IP throttled, got %d", rec.Code)
	}
	if rec := doRequest(h, "10.0.0.2:1234"); rec.Code != http.StatusOK {
		t.Fatalf("expected second IP admitted, got %d", rec.Code)
	}
	if rl.Len() != 2 {
		t.Errorf("expected 2 tracked IPs, got %d", rl.Len())
	}
}

func TestCleanupDropsIdleVisitors(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	h := rl.Handler(okHandler())

	doRequest(h, "10.0.0.1:1234")
	rl.mu.Lock()
	rl.visitors["10.0.0.1"].lastSeen = time.Now().Add(-time.Hour)
	rl.mu.Unlock()

	rl.cleanup(30 * time.Minute)
	if rl.Len() != 0 {
		t.Errorf("expected idle visitor evicted, got %d", rl.Len())
	}
}
