// Package llm is the gateway to the external text-generation service. It
// performs one chat-style completion per call and retries only on transient
// overload, with exponential backoff and a wall-clock cap.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"pivotlp/internal/logger"
)

const (
	// DefaultBaseURL is the completion service endpoint.
	DefaultBaseURL = "https://api.anthropic.com"
	// DefaultModel is the default model for analysis requests.
	DefaultModel = "claude-3-5-sonnet-20241022"
	// FastModel is the cheaper model used for pivot and page generation.
	FastModel = "claude-3-5-haiku-20241022"
	// apiVersion is the wire-protocol version header value.
	apiVersion = "2023-06-01"

	// overloadedType is the upstream error-type marker that makes a failure
	// eligible for retry. Nothing else is retried.
	overloadedType = "overloaded_error"
)

// Options control a single completion request.
type Options struct {
	Model       string        // model identifier (defaults to client's model)
	MaxTokens   int           // maximum output tokens (defaults to 2000)
	MaxAttempts int           // total attempts including the first (defaults to client's)
	BackoffBase time.Duration // first retry delay; doubles per attempt (defaults to client's)
}

// Client performs completion requests against the messages endpoint.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	maxAttempts int
	backoffBase time.Duration
	maxElapsed  time.Duration
}

// Config holds the client construction parameters, resolved once at startup.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxAttempts int
	BackoffBase time.Duration
	MaxElapsed  time.Duration // cumulative retry budget; 0 means one minute
	Timeout     time.Duration // per-attempt HTTP timeout; 0 means 60s
}

// NewClient creates a completion client. The API key is required; everything
// else falls back to defaults.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("completion API key is required. Set ANTHROPIC_API_KEY or llm.api_key in the config file")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxAttempts: cfg.MaxAttempts,
		backoffBase: cfg.BackoffBase,
		maxElapsed:  cfg.MaxElapsed,
	}, nil
}

// message is one chat turn in the request body.
type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// completionRequest is the messages-endpoint request body.
type completionRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

// completionResponse is the successful response body; only the first content
// block's text is used.
type completionResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// errorResponse is the error response body.
type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends a single user-role prompt and returns the raw text of the
// first completion choice. Overload failures are retried with delays of
// base, 2*base, 4*base, ... until the attempt count or the cumulative
// wall-clock budget is exhausted; any other failure propagates immediately.
func (c *Client) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	model := opts.Model
	if model == "" {
		model = c.model
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = c.maxAttempts
	}
	base := opts.BackoffBase
	if base <= 0 {
		base = c.backoffBase
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = base
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxInterval = c.maxElapsed
	policy.MaxElapsedTime = c.maxElapsed
	policy.Reset()

	attempt := 0
	overloaded := false
	var text string

	operation := func() error {
		attempt++
		out, err := c.complete(ctx, model, maxTokens, prompt)
		if err == nil {
			text = out
			return nil
		}
		if !isOverloaded(err) {
			return backoff.Permanent(err)
		}
		overloaded = true
		logger.Warn("Completion attempt failed, service overloaded",
			"attempt", attempt, "max_attempts", maxAttempts)
		return err
	}

	wrapped := backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(maxAttempts-1)), ctx)
	if err := backoff.Retry(operation, wrapped); err != nil {
		if overloaded && isOverloaded(err) {
			return "", fmt.Errorf("%w after %d attempts", ErrOverloaded, attempt)
		}
		return "", err
	}
	return text, nil
}

// complete performs one request/response cycle without retrying.
func (c *Client) complete(ctx context.Context, model string, maxTokens int, prompt string) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read completion response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyError(resp.StatusCode, respBody)
	}

	var out completionResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}
	if len(out.Content) == 0 || out.Content[0].Text == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return out.Content[0].Text, nil
}

// classifyError maps an upstream error body to the package error taxonomy.
// Overload is classified solely by the service's error-type marker (with the
// 529 status as an equivalent signal); credential rejection is fatal.
func classifyError(status int, body []byte) error {
	var parsed errorResponse
	_ = json.Unmarshal(body, &parsed)

	if parsed.Error.Type == overloadedType || status == 529 {
		return fmt.Errorf("%w: %s", ErrOverloaded, parsed.Error.Message)
	}
	if status == http.StatusUnauthorized || parsed.Error.Type == "authentication_error" {
		return fmt.Errorf("%w: %s", ErrAuth, parsed.Error.Message)
	}
	return &APIError{StatusCode: status, Type: parsed.Error.Type, Message: parsed.Error.Message}
}

// isOverloaded reports whether err represents the retryable overload class.
func isOverloaded(err error) bool {
	return errors.Is(err, ErrOverloaded)
}
