// Package llm is a thin provider-adapter client for the natural-language
// reasoning service the workflow stages delegate to. The engine never calls
// it directly; stages own their requests.
package llm

import (
	"context"
	"fmt"
	"strings"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

// ResponseFormat requests structured output. Type is "text" (default) or
// "json"; JSONSchema, when set, is passed to providers that support schema-
// constrained decoding.
type ResponseFormat struct {
	Type       string
	JSONSchema map[string]any
}

type Request struct {
	Provider string
	Model    string
	Messages []Message

	Temperature *float64
	MaxTokens   *int

	ResponseFormat *ResponseFormat

	// WebSearch enables the provider's live search grounding tool when
	// available (Gemini: google_search).
	WebSearch bool
}

func (r Request) Validate() error {
	if strings.TrimSpace(r.Model) == "" {
		return &ConfigurationError{Message: "model is required"}
	}
	if len(r.Messages) == 0 {
		return &ConfigurationError{Message: "at least one message is required"}
	}
	return nil
}

type Response struct {
	Provider string
	Model    string
	Text     string
}

type ProviderAdapter interface {
	Name() string
	Complete(ctx context.Context, req Request) (Response, error)
}

type Client struct {
	providers       map[string]ProviderAdapter
	defaultProvider string
}

func NewClient() *Client {
	return &Client{providers: map[string]ProviderAdapter{}}
}

func (c *Client) Register(adapter ProviderAdapter) {
	if c.providers == nil {
		c.providers = map[string]ProviderAdapter{}
	}
	c.providers[adapter.Name()] = adapter
	if c.defaultProvider == "" {
		c.defaultProvider = adapter.Name()
	}
}

func (c *Client) SetDefaultProvider(name string) {
	c.defaultProvider = name
}

func (c *Client) Complete(ctx context.Context, req Request) (Response, error) {
	if err := req.Validate(); err != nil {
		return Response{}, err
	}
	prov := strings.TrimSpace(req.Provider)
	if prov == "" {
		prov = c.defaultProvider
	}
	if prov == "" {
		return Response{}, &ConfigurationError{Message: "no provider specified and no default provider configured"}
	}
	adapter, ok := c.providers[prov]
	if !ok {
		return Response{}, &ConfigurationError{Message: fmt.Sprintf("unknown provider: %s", prov)}
	}
	req.Provider = prov
	return adapter.Complete(ctx, req)
}
