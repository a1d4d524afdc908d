package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSlackNotify(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	s := NewSlack(SlackConfig{WebhookURL: server.URL})
	if err := s.Notify(context.Background(), "hello\n```table```"); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if got["text"] != "hello\n```table```" {
		t.Errorf("unexpected payload %v", got)
	}
}

func TestSlackNotify_Disabled(t *testing.T) {
	s := NewSlack(SlackConfig{})
	if s.Enabled() {
		t.Fatal("expected notifier to be disabled")
	}
	if err := s.Notify(context.Background(), "hello"); err != nil {
		t.Errorf("Notify() without webhook should not fail: %v", err)
	}
}

func TestSlackNotify_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("no_service"))
	}))
	defer server.Close()

	s := NewSlack(SlackConfig{WebhookURL: server.URL})
	if err := s.Notify(context.Background(), "hello"); err == nil {
		t.Error("expected error for 404")
	}
}
