// Package jobs triggers delayed background callbacks through Upstash QStash.
package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultQStashURL = "https://qstash.upstash.io"

// Client publishes messages to QStash, which delivers them back to our own
// HTTP surface after a delay. Used to nudge the operator about pending
// sessions nobody has joined.
type Client struct {
	token   string
	baseURL string
	destURL string
	delay   time.Duration
	client  *http.Client
	logger  *logrus.Logger
}

// NewClient returns nil when the trigger is not configured; callers treat a
// nil client as the feature being disabled.
func NewClient(token, baseURL, destBaseURL string, delay time.Duration, logger *logrus.Logger) *Client {
	if token == "" || destBaseURL == "" {
		return nil
	}
	if baseURL == "" {
		baseURL = defaultQStashURL
	}
	return &Client{
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
		destURL: strings.TrimRight(destBaseURL, "/"),
		delay:   delay,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

// Trigger schedules a delayed POST of payload to path on our public URL.
func (c *Client) Trigger(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode trigger payload: %w", err)
	}

	publishURL := fmt.Sprintf("%s/v2/publish/%s%s", c.baseURL, c.destURL, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, publishURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build trigger request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Upstash-Retries", "3")
	if c.delay > 0 {
		req.Header.Set("Upstash-Delay", fmt.Sprintf("%ds", int(c.delay.Seconds())))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("trigger request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("trigger rejected with status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	c.logger.WithField("path", path).Debug("Background job scheduled")
	return nil
}
