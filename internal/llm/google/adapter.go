// Package google adapts the Gemini generateContent API to the llm client.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/danshapiro/meridian/internal/llm"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

type Adapter struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

func NewFromEnv() (*Adapter, error) {
	key := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if key == "" {
		// Common alias.
		key = strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))
	}
	if key == "" {
		return nil, &llm.ConfigurationError{Message: "GEMINI_API_KEY is required"}
	}
	return New(key, os.Getenv("GEMINI_BASE_URL")), nil
}

func New(apiKey, baseURL string) *Adapter {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	return &Adapter{
		APIKey:  strings.TrimSpace(apiKey),
		BaseURL: base,
		// Avoid short client-level timeouts; rely on request context deadlines instead.
		Client: &http.Client{Timeout: 0},
	}
}

func (a *Adapter) Name() string {
	return "google"
}

func (a *Adapter) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	if a.Client == nil {
		a.Client = &http.Client{Timeout: 0}
	}

	system, contents := toGeminiContents(req.Messages)

	genCfg := map[string]any{}
	if req.Temperature != nil {
		genCfg["temperature"] = *req.Temperature
	}
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		genCfg["maxOutputTokens"] = *req.MaxTokens
	} else {
		genCfg["maxOutputTokens"] = 2048
	}
	if req.ResponseFormat != nil && strings.EqualFold(strings.TrimSpace(req.ResponseFormat.Type), "json") {
		genCfg["responseMimeType"] = "application/json"
		if req.ResponseFormat.JSONSchema != nil {
			// Gemini's Schema is a restricted subset; strip JSON-schema-only
			// fields (e.g., additionalProperties) so requests don't fail
			// validation.
			genCfg["responseSchema"] = sanitizeGeminiSchema(req.ResponseFormat.JSONSchema)
		}
	}

	body := map[string]any{
		"contents":         contents,
		"generationConfig": genCfg,
	}
	if strings.TrimSpace(system) != "" {
		body["systemInstruction"] = map[string]any{
			"parts": []map[string]any{{"text": system}},
		}
	}
	if req.WebSearch {
		body["tools"] = []map[string]any{{"google_search": map[string]any{}}}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return llm.Response{}, err
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", a.BaseURL, req.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return llm.Response{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", a.APIKey)

	resp, err := a.Client.Do(httpReq)
	if err != nil {
		return llm.Response{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return llm.Response{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return llm.Response{}, &llm.ProviderError{
			ProviderName: a.Name(),
			StatusCode:   resp.StatusCode,
			Message:      errorMessage(raw),
		}
	}

	text, err := extractText(raw)
	if err != nil {
		return llm.Response{}, err
	}
	return llm.Response{Provider: a.Name(), Model: req.Model, Text: text}, nil
}

func toGeminiContents(messages []llm.Message) (string, []map[string]any) {
	var system []string
	contents := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			system = append(system, m.Content)
		case llm.RoleAssistant:
			contents = append(contents, geminiContent("model", m.Content))
		default:
			contents = append(contents, geminiContent("user", m.Content))
		}
	}
	return strings.Join(system, "\n\n"), contents
}

func geminiContent(role, text string) map[string]any {
	return map[string]any{
		"role":  role,
		"parts": []map[string]any{{"text": text}},
	}
}

// sanitizeGeminiSchema keeps only the schema keywords Gemini accepts.
func sanitizeGeminiSchema(schema map[string]any) map[string]any {
	allowed := map[string]bool{
		"type": true, "format": true, "description": true, "nullable": true,
		"enum": true, "items": true, "properties": true, "required": true,
	}
	out := map[string]any{}
	for k, v := range schema {
		if !allowed[k] {
			continue
		}
		switch k {
		case "properties":
			props, ok := v.(map[string]any)
			if !ok {
				continue
			}
			cleaned := map[string]any{}
			for name, sub := range props {
				if subSchema, ok := sub.(map[string]any); ok {
					cleaned[name] = sanitizeGeminiSchema(subSchema)
				}
			}
			out[k] = cleaned
		case "items":
			if subSchema, ok := v.(map[string]any); ok {
				out[k] = sanitizeGeminiSchema(subSchema)
			}
		default:
			out[k] = v
		}
	}
	return out
}

func extractText(raw []byte) (string, error) {
	var doc struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	var sb strings.Builder
	for _, c := range doc.Candidates {
		for _, p := range c.Content.Parts {
			sb.WriteString(p.Text)
		}
		break
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", llm.ErrEmptyResponse
	}
	return text, nil
}

func errorMessage(raw []byte) string {
	var doc struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &doc); err == nil && strings.TrimSpace(doc.Error.Message) != "" {
		return strings.TrimSpace(doc.Error.Message)
	}
	return strings.TrimSpace(string(raw))
}
