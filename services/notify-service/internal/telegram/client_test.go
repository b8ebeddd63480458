package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSendMessage(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := NewClientWithBaseURL(srv.URL)
	err := client.SendMessage(context.Background(), "123:abc", "chat-1", "<b>Новая запись</b>", "")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if gotPath != "/bot123:abc/sendMessage" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotBody["chat_id"] != "chat-1" || gotBody["parse_mode"] != "HTML" {
		t.Fatalf("unexpected body: %v", gotBody)
	}
	if !strings.Contains(gotBody["text"], "Новая запись") {
		t.Fatalf("text = %q", gotBody["text"])
	}
}

func TestSendMessageAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	client := NewClientWithBaseURL(srv.URL)
	err := client.SendMessage(context.Background(), "123:abc", "missing", "hi", "HTML")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected chat-not-found error, got %v", err)
	}
}
