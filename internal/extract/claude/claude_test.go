package claude

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSummarize(t *testing.T) {
	t.Parallel()

	var gotReq request
	var gotKey, gotVersion string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(response{
			ID:      "msg_1",
			Content: []contentBlock{{Type: "text", Text: "  Reply to the contract question from Acme.  "}},
		})
	}))
	defer srv.Close()

	s := New("test-key", "claude-test-model")
	s.SetEndpoint(srv.URL)

	got, err := s.Summarize(context.Background(), "Contract question", "Can you confirm clause 7?")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "Reply to the contract question from Acme." {
		t.Errorf("summary = %q", got)
	}

	if gotKey != "test-key" {
		t.Errorf("x-api-key = %q", gotKey)
	}
	if gotVersion == "" {
		t.Error("anthropic-version header not set")
	}
	if gotReq.Model != "claude-test-model" {
		t.Errorf("model = %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Role != "user" {
		t.Fatalf("messages = %+v", gotReq.Messages)
	}
}

func TestSummarize_APIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := New("test-key", "claude-test-model")
	s.SetEndpoint(srv.URL)

	if _, err := s.Summarize(context.Background(), "Title", ""); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}

func TestSummarize_EmptyContent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(response{ID: "msg_2"})
	}))
	defer srv.Close()

	s := New("test-key", "claude-test-model")
	s.SetEndpoint(srv.URL)

	if _, err := s.Summarize(context.Background(), "Title", ""); err == nil {
		t.Fatal("expected error on empty content")
	}
}
