package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/uptalk/switchboard/internal/config"
)

func TestSendBuildsCloudAPIRequest(t *testing.T) {
	var got messagePayload
	var auth, path string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSender(config.WhatsApp{
		APIURL:      srv.URL,
		PhoneID:     "12345",
		AccessToken: "secret-token",
		Timeout:     5 * time.Second,
	})

	if err := s.Send(context.Background(), "+34600111222", "Hola"); err != nil {
		t.Fatal(err)
	}
	if auth != "Bearer secret-token" {
		t.Errorf("unexpected auth header %q", auth)
	}
	if path != "/12345/messages" {
		t.Errorf("unexpected path %q", path)
	}
	if got.MessagingProduct != "whatsapp" || got.To != "+34600111222" || got.Text.Body != "Hola" {
		t.Errorf("unexpected payload %+v", got)
	}
}

func TestSendSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := NewSender(config.WhatsApp{APIURL: srv.URL, PhoneID: "12345", Timeout: 5 * time.Second})
	if err := s.Send(context.Background(), "+34600111222", "Hola"); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
