// Package llm wraps the generative-text provider behind a small interface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// CompletionRequest is a single-turn completion: a fixed system prompt plus
// the visitor's message.
type CompletionRequest struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Provider produces a text completion for a request.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// APIError is a structured error returned by the completion endpoint.
type APIError struct {
	StatusCode int
	Code       string
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return "llm: " + e.Message
	}
	return fmt.Sprintf("llm: request failed with status %d", e.StatusCode)
}

// IsDecommissioned reports whether the error means the requested model has
// been retired by the provider, which warrants one retry on the fallback
// model.
func IsDecommissioned(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == "model_decommissioned" {
			return true
		}
		if strings.Contains(strings.ToLower(apiErr.Message), "decommissioned") {
			return true
		}
	}
	return false
}
