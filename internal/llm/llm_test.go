package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestClientRoutesToDefaultProvider(t *testing.T) {
	client := NewClient()
	adapter := NewScriptedAdapter("scripted", ScriptedResponse{Text: "hello"})
	client.Register(adapter)

	resp, err := client.Complete(context.Background(), Request{
		Model:    "test-model",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.Text != "hello" || resp.Provider != "scripted" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	reqs := adapter.Requests()
	if len(reqs) != 1 || reqs[0].Provider != "scripted" {
		t.Fatalf("unexpected recorded requests: %+v", reqs)
	}
}

func TestClientUnknownProvider(t *testing.T) {
	client := NewClient()
	client.Register(NewScriptedAdapter("scripted"))
	_, err := client.Complete(context.Background(), Request{
		Provider: "ghost",
		Model:    "m",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	var ce *ConfigurationError
	if !errors.As(err, &ce) || !strings.Contains(err.Error(), "ghost") {
		t.Fatalf("expected configuration error naming provider, got %v", err)
	}
}

func TestClientValidatesRequest(t *testing.T) {
	client := NewClient()
	client.Register(NewScriptedAdapter("scripted"))
	if _, err := client.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}}); err == nil {
		t.Fatal("expected error for missing model")
	}
	if _, err := client.Complete(context.Background(), Request{Model: "m"}); err == nil {
		t.Fatal("expected error for empty messages")
	}
}

func TestScriptedAdapterExhaustion(t *testing.T) {
	adapter := NewScriptedAdapter("scripted", ScriptedResponse{Text: "one"})
	ctx := context.Background()
	req := Request{Model: "m", Messages: []Message{{Role: RoleUser, Content: "x"}}}
	if _, err := adapter.Complete(ctx, req); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := adapter.Complete(ctx, req); err == nil {
		t.Fatal("expected error once script is exhausted")
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		status int
		want   bool
	}{
		{429, true},
		{500, true},
		{503, true},
		{408, true},
		{400, false},
		{404, false},
	}
	for _, c := range cases {
		err := &ProviderError{ProviderName: "google", StatusCode: c.status}
		if got := IsRetryable(err); got != c.want {
			t.Fatalf("IsRetryable(status=%d) = %v, want %v", c.status, got, c.want)
		}
	}
	if IsRetryable(errors.New("plain")) {
		t.Fatal("plain errors are not retryable")
	}
}
