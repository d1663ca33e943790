// Package llm provides the text-generation client used to translate user
// prose into dashboard commands. The service is a black box: it receives a
// conversation and returns free text that is expected, but not guaranteed, to
// contain JSON.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrUnauthorized indicates a rejected API key.
var ErrUnauthorized = errors.New("llm: unauthorized")

const (
	defaultBaseURL    = "https://api.openai.com"
	maxErrorBodyBytes = 2048
)

// Message is one entry of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client generates a completion for a conversation.
type Client interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// HTTPClient talks to an OpenAI-compatible chat-completions endpoint.
type HTTPClient struct {
	baseURL string
	model   string
	apiKey  string
	client  *http.Client
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithBaseURL points the client at a different endpoint, e.g. a local
// OpenAI-compatible server.
func WithBaseURL(url string) HTTPOption {
	return func(c *HTTPClient) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) { c.client = hc }
}

// NewHTTPClient creates a client for the given model and API key. The long
// default timeout reflects that generation is the one high-latency call in
// the system; callers bound it further via ctx.
func NewHTTPClient(model, apiKey string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: defaultBaseURL,
		model:   model,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 600 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Generate sends the conversation and returns the first choice's content.
func (c *HTTPClient) Generate(ctx context.Context, messages []Message) (string, error) {
	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("llm: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		return "", ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return "", fmt.Errorf("llm: %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("llm: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("llm: empty response")
	}
	return parsed.Choices[0].Message.Content, nil
}
