// Package completion calls the OpenAI-compatible chat completion endpoint
// (OpenRouter) with a hard deadline and a single attempt.
package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/xaenox/travel-concierge/internal/models"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL   = "https://openrouter.ai/api/v1"
	DefaultModel     = "openai/gpt-4o-mini"
	DefaultTimeout   = 60 * time.Second
	DefaultMaxTokens = 1000
)

var (
	ErrTimeout        = errors.New("completion timed out")
	ErrUnavailable    = errors.New("completion endpoint unreachable")
	ErrUpstreamStatus = errors.New("completion endpoint returned an error")
	ErrEmptyResponse  = errors.New("completion returned no content")
)

// Error carries one of the sentinel kinds above together with its cause.
type Error struct {
	Kind       error
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// Details describes the underlying cause for diagnostics.
func (e *Error) Details() string {
	if e.Cause == nil {
		return ""
	}
	return e.Cause.Error()
}

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	// Referer and Title are sent as OpenRouter attribution headers.
	Referer string
	Title   string
}

type Client struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	configured  bool
	logger      *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	clientConfig.HTTPClient = &http.Client{
		Transport: &headerTransport{
			base:    http.DefaultTransport,
			headers: attributionHeaders(cfg),
		},
	}

	return &Client{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		configured:  strings.TrimSpace(cfg.APIKey) != "",
		logger:      logger,
	}
}

// Configured reports whether an API key was supplied.
func (c *Client) Configured() bool {
	return c.configured
}

// Complete sends messages and returns the assistant text. The call is bounded
// by the client timeout and never retried.
func (c *Client) Complete(ctx context.Context, messages []models.ChatMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toOpenAI(messages),
		MaxTokens:   c.maxTokens,
		Temperature: float32(c.temperature),
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", c.classify(ctx, err, time.Since(start))
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		c.logger.Error("Completion returned no content",
			zap.String("model", c.model),
			zap.Int("choices", len(resp.Choices)))
		return "", &Error{Kind: ErrEmptyResponse}
	}

	c.logger.Debug("Completion finished",
		zap.String("model", c.model),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))

	return resp.Choices[0].Message.Content, nil
}

func (c *Client) classify(ctx context.Context, err error, elapsed time.Duration) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		c.logger.Error("Completion timed out",
			zap.Duration("timeout", c.timeout),
			zap.Duration("elapsed", elapsed))
		return &Error{Kind: ErrTimeout, Cause: err}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		c.logger.Error("Completion endpoint returned an error",
			zap.Int("status", apiErr.HTTPStatusCode),
			zap.String("body", apiErr.Message))
		return &Error{Kind: ErrUpstreamStatus, StatusCode: apiErr.HTTPStatusCode, Cause: err}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		c.logger.Error("Completion endpoint returned an error",
			zap.Int("status", reqErr.HTTPStatusCode),
			zap.Error(reqErr.Err))
		return &Error{Kind: ErrUpstreamStatus, StatusCode: reqErr.HTTPStatusCode, Cause: err}
	}

	c.logger.Error("Completion endpoint unreachable", zap.Error(err))
	return &Error{Kind: ErrUnavailable, Cause: err}
}

func toOpenAI(messages []models.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return out
}

func attributionHeaders(cfg Config) map[string]string {
	headers := make(map[string]string, 2)
	if cfg.Referer != "" {
		headers["HTTP-Referer"] = cfg.Referer
	}
	if cfg.Title != "" {
		headers["X-Title"] = cfg.Title
	}
	return headers
}

type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.headers) == 0 {
		return t.base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}
