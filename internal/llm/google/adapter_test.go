package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danshapiro/meridian/internal/llm"
)

func geminiReply(text string) string {
	quoted, _ := json.Marshal(text)
	return `{"candidates":[{"content":{"parts":[{"text":` + string(quoted) + `}]}}]}`
}

func TestCompleteSendsExpectedRequest(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(geminiReply("research brief")))
	}))
	defer srv.Close()

	adapter := New("test-key", srv.URL)
	temp := 0.0
	resp, err := adapter.Complete(context.Background(), llm.Request{
		Model: "gemini-2.0-flash",
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "be terse"},
			{Role: llm.RoleUser, Content: "hello"},
			{Role: llm.RoleAssistant, Content: "hi"},
			{Role: llm.RoleUser, Content: "continue"},
		},
		Temperature: &temp,
		WebSearch:   true,
		ResponseFormat: &llm.ResponseFormat{
			Type: "json",
			JSONSchema: map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"score": map[string]any{"type": "number"},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.Text != "research brief" {
		t.Fatalf("text = %q", resp.Text)
	}
	if gotPath != "/v1beta/models/gemini-2.0-flash:generateContent" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Fatalf("api key header = %q", gotKey)
	}

	if _, ok := gotBody["systemInstruction"]; !ok {
		t.Fatal("missing systemInstruction")
	}
	contents, _ := gotBody["contents"].([]any)
	if len(contents) != 3 {
		t.Fatalf("contents length = %d, want 3", len(contents))
	}
	second, _ := contents[1].(map[string]any)
	if second["role"] != "model" {
		t.Fatalf("assistant role mapped to %v, want model", second["role"])
	}
	tools, _ := gotBody["tools"].([]any)
	if len(tools) != 1 {
		t.Fatalf("tools = %v", gotBody["tools"])
	}
	genCfg, _ := gotBody["generationConfig"].(map[string]any)
	if genCfg["responseMimeType"] != "application/json" {
		t.Fatalf("responseMimeType = %v", genCfg["responseMimeType"])
	}
	schema, _ := genCfg["responseSchema"].(map[string]any)
	if _, leaked := schema["additionalProperties"]; leaked {
		t.Fatal("additionalProperties must be stripped from the provider schema")
	}
}

func TestCompleteProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
	}))
	defer srv.Close()

	adapter := New("k", srv.URL)
	_, err := adapter.Complete(context.Background(), llm.Request{
		Model:    "gemini-2.0-flash",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "x"}},
	})
	var pe *llm.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if pe.StatusCode != http.StatusTooManyRequests || !strings.Contains(pe.Message, "quota exceeded") {
		t.Fatalf("unexpected provider error: %+v", pe)
	}
	if !llm.IsRetryable(err) {
		t.Fatal("429 must be retryable")
	}
}

func TestCompleteEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	adapter := New("k", srv.URL)
	_, err := adapter.Complete(context.Background(), llm.Request{
		Model:    "gemini-2.0-flash",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "x"}},
	})
	if !errors.Is(err, llm.ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}
