// ABOUTME: Cloud relay client for generation and managed web search
// ABOUTME: Retries transient failures with exponential backoff and caps response sizes
package gateway

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

	"github.com/harper/roleplay-core/internal/models"
)

const (
	// DefaultRelayTimeout bounds one relay HTTP request
	DefaultRelayTimeout = 60 * time.Second
	// DefaultRelayRetries is the retry count for transient relay failures
	DefaultRelayRetries = 3
	// MaxResponseSize caps relay response bodies
	MaxResponseSize = 10 * 1024 * 1024
)

// RelayConfig configures the relay client
type RelayConfig struct {
	URL        string
	Token      string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration

	// Temperature and MaxTokens are sent with every chat request; zero leaves them to the relay
	Temperature float32
	MaxTokens   int
}

// RelayError is a non-2xx relay response
type RelayError struct {
	Status  int
	Message string
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("relay error (HTTP %d): %s", e.Status, e.Message)
}

// Relay forwards requests to the cloud relay service
type Relay struct {
	baseURL    string
	token      string
	model      string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration

	temperature float32
	maxTokens   int
}

// NewRelay creates a relay client
func NewRelay(cfg RelayConfig) (*Relay, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("relay URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRelayTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultRelayRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 250 * time.Millisecond
	}
	return &Relay{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		token:      cfg.Token,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,

		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

type relayMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type relayChatRequest struct {
	Model       string         `json:"model,omitempty"`
	Messages    []relayMessage `json:"messages"`
	Temperature float32        `json:"temperature,omitempty"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
}

type relayChatResponse struct {
	Choices []struct {
		Message relayMessage `json:"message"`
	} `json:"choices"`
}

type relaySearchRequest struct {
	Query string `json:"query"`
}

type relaySearchResponse struct {
	Result  string `json:"result"`
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Snippet string `json:"snippet"`
	} `json:"results"`
}

// Generate sends contents through the relay's chat endpoint
func (r *Relay) Generate(ctx context.Context, contents []Content) (string, error) {
	req := relayChatRequest{
		Model:       r.model,
		Temperature: r.temperature,
		MaxTokens:   r.maxTokens,
	}
	for _, c := range contents {
		text := c.Text()
		if text == "" {
			continue
		}
		req.Messages = append(req.Messages, relayMessage{Role: relayRole(c.Role), Content: text})
	}

	var resp relayChatResponse
	if err := r.post(ctx, "/chat", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("relay returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Search runs a managed web search and returns formatted text
func (r *Relay) Search(ctx context.Context, query string) (string, error) {
	var resp relaySearchResponse
	if err := r.post(ctx, "/search", relaySearchRequest{Query: query}, &resp); err != nil {
		return "", err
	}
	if resp.Result != "" {
		return resp.Result, nil
	}
	var b strings.Builder
	for i, res := range resp.Results {
		fmt.Fprintf(&b, "%d. %s\n   %s\n   %s\n", i+1, res.Title, res.URL, res.Snippet)
	}
	return strings.TrimSpace(b.String()), nil
}

// CloseIdleConnections releases pooled connections
func (r *Relay) CloseIdleConnections() {
	r.httpClient.CloseIdleConnections()
}

func relayRole(role models.Role) string {
	switch role {
	case models.RoleModel:
		return "assistant"
	case models.RoleSystem:
		return "system"
	default:
		return "user"
	}
}

// post sends body to path, retrying transient failures
func (r *Relay) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, backoffDelay(r.retryDelay, attempt)); err != nil {
				return err
			}
		}

		err := r.do(ctx, r.baseURL+path, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) || ctx.Err() != nil {
			return err
		}
	}
	return fmt.Errorf("relay failed after %d attempts: %w", r.maxRetries+1, lastErr)
}

func (r *Relay) do(ctx context.Context, url string, payload []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classify(&RelayError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))})
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// retryable reports whether a relay error is worth another try
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrRegionUnsupported) {
		return false
	}
	var relayErr *RelayError
	if errors.As(err, &relayErr) {
		return relayErr.Status == http.StatusTooManyRequests || relayErr.Status >= 500
	}
	return true
}
