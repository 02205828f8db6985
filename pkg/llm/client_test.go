package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestNewClient_Validation(t *testing.T) {
	if _, err := NewClient(&Config{Model: "m"}, zap.NewNop()); err == nil {
		t.Error("expected error for missing endpoint")
	}
	if _, err := NewClient(&Config{Endpoint: "http://localhost"}, zap.NewNop()); err == nil {
		t.Error("expected error for missing model")
	}
}

func TestClient_Complete(t *testing.T) {
	var gotModel string
	var gotMessages int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		gotModel = req.Model
		gotMessages = len(req.Messages)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "(kicad_sch ...)"}},
			},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5},
		})
	}))
	defer server.Close()

	client, err := NewClient(&Config{Endpoint: server.URL, Model: "test-model", APIKey: "k"}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	reply, err := client.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "generate"},
		{Role: RoleUser, Content: "{}"},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if reply != "(kicad_sch ...)" {
		t.Errorf("unexpected reply: %q", reply)
	}
	if gotModel != "test-model" {
		t.Errorf("expected model 'test-model', got %q", gotModel)
	}
	if gotMessages != 2 {
		t.Errorf("expected 2 messages sent, got %d", gotMessages)
	}
}

func TestClient_Complete_AuthErrorNotRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "invalid api key", "type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	client, err := NewClient(&Config{Endpoint: server.URL, Model: "m", APIKey: "bad"}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	_, err = client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "x"}})
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if GetErrorType(err) != ErrorTypeAuth {
		t.Errorf("expected auth error type, got %s", GetErrorType(err))
	}
	if calls != 1 {
		t.Errorf("auth errors must not be retried, got %d calls", calls)
	}
}

func TestClient_CreateEmbeddings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"embedding": []float32{0.1, 0.2}, "index": 0},
				{"embedding": []float32{0.3, 0.4}, "index": 1},
			},
		})
	}))
	defer server.Close()

	client, err := NewClient(&Config{Endpoint: server.URL, Model: "m", APIKey: "k"}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	vectors, err := client.CreateEmbeddings(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("CreateEmbeddings failed: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}
	if vectors[0][0] != 0.1 || vectors[1][1] != 0.4 {
		t.Errorf("unexpected vector values: %v", vectors)
	}
}

func TestMockOracle_ScriptedReplies(t *testing.T) {
	mock := NewMockOracle("first", "second")

	for i, want := range []string{"first", "second", "second"} {
		got, err := mock.Complete(context.Background(), []Message{{Role: RoleUser, Content: "x"}})
		if err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
		if got != want {
			t.Errorf("call %d: expected %q, got %q", i, want, got)
		}
	}
	if mock.CompleteCalls != 3 {
		t.Errorf("expected 3 recorded calls, got %d", mock.CompleteCalls)
	}
}
