// Package classifier calls the external language model used to label
// support tickets. The engine never trusts the output: any failure here is
// reported as an empty string and the caller substitutes its defaults.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultModel performed best in production; yi-lightning is the earlier
	// fallback kept for manual override.
	DefaultModel  = "gpt-5-mini"
	FallbackModel = "yi-lightning"

	chatPath = "/api/v1/chat/completions"
)

// Classifier is what the engine depends on; tests substitute a stub.
type Classifier interface {
	Classify(ctx context.Context, prompt string) string
}

// Client is an OpenAI-compatible chat-completions client with a hard timeout
// and a best-effort retry on transport and 5xx failures.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	retries int
}

func New(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://nano-gpt.com"
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   DefaultModel,
		client:  &http.Client{Timeout: 30 * time.Second},
		retries: 2,
	}
}

// WithModel returns the client configured for a different model.
func (c *Client) WithModel(model string) *Client {
	c.model = model
	return c
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Classify sends the prompt and returns the trimmed single-line completion.
// Any error — transport, non-2xx, empty choices — yields "" and a log line.
func (c *Client) Classify(ctx context.Context, prompt string) string {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				slog.Warn("classifier request cancelled", "error", ctx.Err())
				return ""
			case <-time.After(time.Duration(attempt) * 2 * time.Second):
			}
		}
		out, retryable, err := c.complete(ctx, prompt)
		if err == nil {
			return out
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	slog.Warn("classifier request failed", "model", c.model, "error", lastErr)
	return ""
}

func (c *Client) complete(ctx context.Context, prompt string) (out string, retryable bool, err error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0,
		MaxTokens:   1000,
	})
	if err != nil {
		return "", false, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatPath, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", resp.StatusCode >= 500, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", false, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", false, fmt.Errorf("no choices in response")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), false, nil
}
