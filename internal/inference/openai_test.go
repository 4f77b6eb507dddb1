package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func completionBody(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return string(b)
}

func TestOpenAIBackendComplete(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(completionBody("hello from model")))
	}))
	defer srv.Close()

	b := NewOpenAIBackend("secret", srv.URL, "test-model")
	req := &Request{
		System:   "be brief",
		Messages: []Turn{{Role: "user", Content: "hi"}},
		Params:   Params{MaxTokens: 128, Temperature: 0.5},
	}

	var out string
	if err := b.Complete(context.Background(), req, func(s string) { out += s }); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != "hello from model" {
		t.Fatalf("output: %q", out)
	}
	if gotPath != "/chat/completions" {
		t.Fatalf("path: %s", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("auth: %s", gotAuth)
	}
	msgs := gotBody["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages: %v", msgs)
	}
	if first := msgs[0].(map[string]any); first["role"] != "system" {
		t.Fatalf("system turn not first: %v", first)
	}
}

func TestOpenAIBackendServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	b := NewOpenAIBackend("", srv.URL, "m")
	err := b.Complete(context.Background(), &Request{}, func(string) {})
	var be *BackendError
	if !errors.As(err, &be) || !be.Retryable {
		t.Fatalf("error: %v", err)
	}
}

func TestOpenAIBackendClientErrorIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	b := NewOpenAIBackend("", srv.URL, "m")
	err := b.Complete(context.Background(), &Request{}, func(string) {})
	var be *BackendError
	if !errors.As(err, &be) || be.Retryable {
		t.Fatalf("error: %v", err)
	}
}
