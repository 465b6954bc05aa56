// ABOUTME: OpenAI client for the text-generation collaborator
// ABOUTME: Retries transient failures; key and quota failures return *models.UpstreamError at once
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harper/notion-copilot/internal/models"
	"github.com/harper/notion-copilot/internal/util"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultChatModel is the default model for chat completions
	DefaultChatModel = "gpt-4o-mini"
)

// Generator is the opaque generate(prompt) -> text collaborator
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Completer also accepts a system prompt; the intent classifier uses it
type Completer interface {
	Generator
	Complete(ctx context.Context, system, user string) (string, error)
}

// ClientConfig holds configuration for the OpenAI client
type ClientConfig struct {
	APIKey      string
	BaseURL     string
	ChatModel   string
	Timeout     time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
	Temperature float32
}

// DefaultConfig returns the default client configuration
func DefaultConfig(apiKey string) *ClientConfig {
	return &ClientConfig{
		APIKey:      apiKey,
		ChatModel:   DefaultChatModel,
		Timeout:     30 * time.Second,
		MaxRetries:  2,
		RetryDelay:  time.Second,
		Temperature: 0.4,
	}
}

// OpenAIClient wraps the OpenAI API client with retry logic
type OpenAIClient struct {
	client      *openai.Client
	chatModel   string
	timeout     time.Duration
	maxRetries  int
	retryDelay  time.Duration
	temperature float32
}

// NewOpenAIClient creates a new OpenAI client with the given API key using default configuration
func NewOpenAIClient(apiKey string) (*OpenAIClient, error) {
	return NewOpenAIClientWithConfig(DefaultConfig(apiKey))
}

// NewOpenAIClientWithConfig creates a new OpenAI client with custom configuration
func NewOpenAIClientWithConfig(config *ClientConfig) (*OpenAIClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	model := config.ChatModel
	if model == "" {
		model = DefaultChatModel
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientConfig),
		chatModel:   model,
		timeout:     timeout,
		maxRetries:  config.MaxRetries,
		retryDelay:  config.RetryDelay,
		temperature: config.Temperature,
	}, nil
}

// Generate answers a single user prompt
func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	return c.Complete(ctx, "", prompt)
}

// Complete runs a chat completion with an optional system prompt
func (c *OpenAIClient) Complete(ctx context.Context, system, user string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if strings.TrimSpace(system) != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: user})

	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := util.Sleep(ctx, util.CalculateBackoff(c.retryDelay, attempt)); err != nil {
				return "", err
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := c.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model:       c.chatModel,
			Messages:    messages,
			Temperature: c.temperature,
		})
		cancel()

		if err != nil {
			// Key and quota failures switch modes instead of retrying
			if kind := ClassifyError(err); kind != models.UpstreamUnknown {
				return "", &models.UpstreamError{Kind: kind, Err: err}
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
			continue
		}

		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("attempt %d: no completion choices returned", attempt+1)
			continue
		}

		return resp.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("failed to generate completion after %d attempts: %w", c.maxRetries+1, lastErr)
}

// ClassifyError maps provider failures onto the upstream error kinds
func ClassifyError(err error) models.UpstreamErrorKind {
	if err == nil {
		return models.UpstreamUnknown
	}

	var upstream *models.UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Kind
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code, _ := apiErr.Code.(string)
		switch {
		case apiErr.HTTPStatusCode == 401 || code == "invalid_api_key":
			return models.UpstreamKeyExpired
		case apiErr.HTTPStatusCode == 429 || code == "insufficient_quota" || code == "rate_limit_exceeded":
			return models.UpstreamQuotaExceeded
		}
	}

	return ClassifyMessage(err.Error())
}

var (
	keyPatterns = []string{
		"api key expired", "key expired", "expired key", "invalid api key", "invalid_api_key",
		"incorrect api key", "api key not valid", "unauthorized", "authentication",
	}
	quotaPatterns = []string{
		"quota", "rate limit", "rate_limit", "ratelimit", "too many requests", "429", "resource exhausted",
	}
)

// ClassifyMessage matches free-text error messages against key and quota patterns
func ClassifyMessage(msg string) models.UpstreamErrorKind {
	lower := strings.ToLower(msg)
	for _, p := range keyPatterns {
		if strings.Contains(lower, p) {
			return models.UpstreamKeyExpired
		}
	}
	for _, p := range quotaPatterns {
		if strings.Contains(lower, p) {
			return models.UpstreamQuotaExceeded
		}
	}
	return models.UpstreamUnknown
}
