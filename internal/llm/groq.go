package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultGroqEndpoint = "https://api.groq.com/openai/v1/chat/completions"

// GroqClient calls Groq's OpenAI-compatible chat-completions endpoint.
type GroqClient struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

type GroqOption func(*GroqClient)

// NewGroqClient builds a client with a bounded per-request timeout.
func NewGroqClient(apiKey string, opts ...GroqOption) *GroqClient {
	c := &GroqClient{
		apiKey:   strings.TrimSpace(apiKey),
		endpoint: defaultGroqEndpoint,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func WithGroqEndpoint(endpoint string) GroqOption {
	return func(c *GroqClient) {
		if trimmed := strings.TrimSpace(endpoint); trimmed != "" {
			c.endpoint = trimmed
		}
	}
}

func WithGroqHTTPClient(client *http.Client) GroqOption {
	return func(c *GroqClient) {
		if client != nil {
			c.client = client
		}
	}
}

// Configured reports whether an API key is present.
func (c *GroqClient) Configured() bool {
	return c.apiKey != ""
}

type groqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type groqRequest struct {
	Model       string        `json:"model"`
	Messages    []groqMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type groqResponse struct {
	Choices []struct {
		Message      groqMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

type groqErrorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func (c *GroqClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if c.apiKey == "" {
		return "", &APIError{Code: "missing_api_key", Message: "no API key configured"}
	}

	messages := make([]groqMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, groqMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, groqMessage{Role: "user", Content: req.Prompt})

	payload, err := json.Marshal(groqRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read completion response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var envelope groqErrorEnvelope
		_ = json.Unmarshal(body, &envelope)
		return "", &APIError{
			StatusCode: resp.StatusCode,
			Code:       envelope.Error.Code,
			Type:       envelope.Error.Type,
			Message:    envelope.Error.Message,
		}
	}

	var decoded groqResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", &APIError{StatusCode: resp.StatusCode, Message: "completion returned no choices"}
	}
	return decoded.Choices[0].Message.Content, nil
}
