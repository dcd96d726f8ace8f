package llm

import (
	"errors"
	"fmt"
	"strings"
)

type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + strings.TrimSpace(e.Message)
}

// ProviderError is a failed provider request. Retryable is advisory for
// callers; the workflow engine itself never retries stage calls.
type ProviderError struct {
	ProviderName string
	StatusCode   int
	Message      string
}

func (e *ProviderError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = "request failed"
	}
	return fmt.Sprintf("%s error (status=%d): %s", e.ProviderName, e.StatusCode, msg)
}

func (e *ProviderError) Retryable() bool {
	return e.StatusCode == 408 || e.StatusCode == 429 || e.StatusCode >= 500
}

// ErrEmptyResponse marks a completion that came back with no text. Stages
// treat it as a terminal stage failure.
var ErrEmptyResponse = errors.New("provider returned an empty response")

func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return false
}
