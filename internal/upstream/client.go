package upstream

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

// PlaceholderReply substitutes for a completion with no usable text. An empty
// body from the provider is tolerated, not treated as a failure.
const PlaceholderReply = "(no response generated)"

// maxDiagnosticBytes bounds the provider payload kept for diagnostics.
const maxDiagnosticBytes = 400

// Message is one entry of the outbound conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes one completion call.
type Request struct {
	Model       string    // Tier-resolved model identifier.
	Messages    []Message // System prompt, history, then the new user message.
	Temperature float64   // Sampling temperature.
	MaxTokens   int       // Completion length cap.
}

// Error is a failed completion call: transport error, non-success status, or
// an unparseable body. The diagnostic payload is for logs, not clients.
type Error struct {
	StatusCode int    // HTTP status, zero for transport failures.
	Body       string // Truncated provider payload.
	Err        error  // Underlying transport or decode error, if any.
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream: %v", e.Err)
	}
	return fmt.Sprintf("upstream: status=%d body=%s", e.StatusCode, e.Body)
}

// Unwrap exposes the underlying error for errors.Is chains.
func (e *Error) Unwrap() error { return e.Err }

// Client is a minimal chat-completions client for the external provider.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient constructs a Client with a fixed per-call timeout.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSpace(baseURL),
		apiKey:  strings.TrimSpace(apiKey),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the conversation to the provider and returns the reply text.
// Any failure mode maps to *Error; an empty completion maps to the
// placeholder reply instead.
func (c *Client) Complete(ctx context.Context, request Request) (string, error) {
	payload, errMarshal := json.Marshal(chatRequest{
		Model:       request.Model,
		Messages:    request.Messages,
		Temperature: request.Temperature,
		MaxTokens:   request.MaxTokens,
	})
	if errMarshal != nil {
		return "", &Error{Err: fmt.Errorf("marshal request: %w", errMarshal)}
	}

	req, errRequest := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if errRequest != nil {
		return "", &Error{Err: fmt.Errorf("build request: %w", errRequest)}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, errDo := c.httpClient.Do(req)
	if errDo != nil {
		return "", &Error{Err: errDo}
	}
	defer resp.Body.Close()

	body, errRead := io.ReadAll(resp.Body)
	if errRead != nil {
		return "", &Error{StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", errRead)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &Error{StatusCode: resp.StatusCode, Body: truncate(string(body), maxDiagnosticBytes)}
	}

	var parsed chatResponse
	if errUnmarshal := json.Unmarshal(body, &parsed); errUnmarshal != nil {
		return "", &Error{
			StatusCode: resp.StatusCode,
			Body:       truncate(string(body), maxDiagnosticBytes),
			Err:        fmt.Errorf("parse response: %w", errUnmarshal),
		}
	}

	if len(parsed.Choices) == 0 {
		return PlaceholderReply, nil
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return PlaceholderReply, nil
	}
	return content, nil
}

// truncate bounds a diagnostic string to maxChars runes.
func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
