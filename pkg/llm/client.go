// Package llm is a thin client for a Mistral-compatible chat-completions
// endpoint. One request per call, no retries; every call carries its own
// timeout. Planner and auditor prompts ask for strict JSON, so the package
// also provides the defensive JSON extraction used on model replies.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// ErrMissingAPIKey is returned when a chat call is attempted without a
// bearer token for the configured provider. Read-only orchestrator
// endpoints never hit this; planning and auditing surface it as HTTP 500.
var ErrMissingAPIKey = errors.New("missing LLM API key")

// APIError reports a failed chat-completions request.
type APIError struct {
	Status int
	Body   string
	Err    error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llm request failed: %v", e.Err)
	}
	return fmt.Sprintf("llm request failed: status %d: %s", e.Status, e.Body)
}

func (e *APIError) Unwrap() error { return e.Err }

// Message is one chat message.
type Message struct {
	Role    string `json:"role"` // system | user | assistant
	Content string `json:"content"`
}

// ChatOptions are per-call parameters.
type ChatOptions struct {
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// Client calls the chat-completions endpoint.
type Client struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for endpoint using apiKey. An empty apiKey is
// allowed at construction: the key is only required when Chat is called.
func NewClient(endpoint, apiKey, defaultModel string) *Client {
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      defaultModel,
		httpClient: &http.Client{},
		logger:     slog.Default().With("component", "llm-client"),
	}
}

// HasKey reports whether a bearer token is configured.
func (c *Client) HasKey() bool { return c.apiKey != "" }

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Chat sends messages and returns the assistant text of the first choice.
func (c *Client) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	model := opts.Model
	if model == "" {
		model = c.model
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: opts.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &APIError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &APIError{Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Status: resp.StatusCode, Body: truncate(string(respBody), 512)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &APIError{Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return "", &APIError{Err: errors.New("response carried no choices")}
	}

	c.logger.Debug("Chat completion finished",
		"model", model,
		"duration_ms", time.Since(start).Milliseconds())

	return parsed.Choices[0].Message.Content, nil
}

// ExtractJSONObject parses text as a JSON object. When the model wrapped the
// object in prose, the substring between the first '{' and the last '}' is
// parsed as a fallback.
func ExtractJSONObject(text string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err == nil {
		return obj, nil
	}

	start := bytes.IndexByte([]byte(text), '{')
	end := bytes.LastIndexByte([]byte(text), '}')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object found in reply")
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &obj); err != nil {
		return nil, fmt.Errorf("parse JSON object from reply: %w", err)
	}
	return obj, nil
}

// LoadLicenseKeys reads the provider→token map from path. A missing file
// yields an empty map: callers fail lazily when a chat call needs a key.
func LoadLicenseKeys(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read license keys %s: %w", path, err)
	}

	var keys map[string]string
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("parse license keys %s: %w", path, err)
	}
	return keys, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
