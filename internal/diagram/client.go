package diagram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MalithGihan/codediagram-service/internal/validate"
)

const (
	DefaultEndpoint = "https://api.sambanova.ai/v1/chat/completions"
	DefaultModel    = "Meta-Llama-3.1-70B-Instruct"

	maxResponseBytes = 8 << 20
)

// Completer sends one system+user exchange and returns the first completion's text.
type Completer interface {
	Complete(ctx context.Context, apiKey, systemPrompt, userPrompt string) (string, error)
	Model() string
}

// Client talks to an OpenAI-compatible /chat/completions endpoint.
type Client struct {
	endpoint   string
	model      string
	httpClient *http.Client
}

func NewClient(endpoint, model string, timeout time.Duration) *Client {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Model() string    { return c.model }
func (c *Client) Endpoint() string { return c.endpoint }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Stream   bool          `json:"stream"`
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *Client) Complete(ctx context.Context, apiKey, systemPrompt, userPrompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Stream: false,
		Model:  c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr chatErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("%w: http %d: %s", ErrTransport, resp.StatusCode, apiErr.Error.Message)
		}
		return "", fmt.Errorf("%w: http %d: %s", ErrTransport, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	if err := validate.CompletionBody(raw); err != nil {
		return "", fmt.Errorf("%w: %w", ErrResponseShape, err)
	}
	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: %w", ErrResponseShape, err)
	}
	return out.Choices[0].Message.Content, nil
}

// Ping reports whether the endpoint answers at all. Any status below 500 counts.
func (c *Client) Ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}
