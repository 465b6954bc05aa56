// ABOUTME: REST proxy tier: conventional Notion CRUD endpoints behind a forwarded API key
// ABOUTME: Key validation is shared across clients through an injected ValidationCache
package proxy

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

	"github.com/harper/notion-copilot/internal/models"
	"github.com/harper/notion-copilot/internal/translate"
	"github.com/rs/zerolog"
)

// HeaderAPIKey carries the Notion integration key to the proxy
const HeaderAPIKey = "X-Notion-Api-Key"

// StatusError is a non-2xx proxy response
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("proxy %s %s returned %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// Unauthorized reports whether the proxy rejected the key
func (e *StatusError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// Client talks to the REST proxy
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	cache   *ValidationCache
	logger  zerolog.Logger
}

// New creates a proxy client. cache may be shared by many clients.
func New(baseURL, apiKey string, cache *ValidationCache, logger zerolog.Logger, opts ...Option) *Client {
	if cache == nil {
		cache = NewValidationCache(5 * time.Minute)
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		cache:   cache,
		logger:  logger.With().Str("component", "proxy").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() models.BackendTier { return models.TierProxy }

// Available is false when unconfigured or when the key is known to be invalid
func (c *Client) Available() bool {
	if c.baseURL == "" || c.apiKey == "" {
		return false
	}
	valid, known := c.cache.Get(c.baseURL, c.apiKey)
	return !known || valid
}

// Validate checks the key against /users/me, at most once per cooldown
func (c *Client) Validate(ctx context.Context) (bool, error) {
	if valid, known := c.cache.Get(c.baseURL, c.apiKey); known {
		return valid, nil
	}

	_, err := c.call(ctx, http.MethodGet, "/users/me", nil)
	if err == nil {
		c.cache.Set(c.baseURL, c.apiKey, true)
		return true, nil
	}
	var se *StatusError
	if errors.As(err, &se) && se.Unauthorized() {
		c.cache.Set(c.baseURL, c.apiKey, false)
		c.logger.Warn().Int("status", se.Status).Msg("proxy rejected api key")
		return false, nil
	}
	return false, err
}

// Do serves op via the proxy
func (c *Client) Do(ctx context.Context, op models.Operation) (*models.Result, error) {
	valid, err := c.Validate(ctx)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, fmt.Errorf("%w: proxy api key rejected", models.ErrTierUnavailable)
	}

	req, err := translate.ToProxy(op)
	if err != nil {
		return nil, err
	}
	body, err := c.call(ctx, req.Method, req.Path, req.Body)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Unauthorized() {
			c.cache.Set(c.baseURL, c.apiKey, false)
		}
		return nil, err
	}
	return translate.FromProxy(op, body)
}

func (c *Client) call(ctx context.Context, method, path string, payload map[string]any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode proxy request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build proxy request: %w", err)
	}
	req.Header.Set(HeaderAPIKey, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug().Str("method", method).Str("path", path).Msg("request")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("proxy %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read proxy response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt := strings.TrimSpace(string(body))
		if len(excerpt) > 200 {
			excerpt = excerpt[:200]
		}
		return nil, &StatusError{Method: method, Path: path, Status: resp.StatusCode, Body: excerpt}
	}
	return body, nil
}
