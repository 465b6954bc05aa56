// ABOUTME: Matches requests sent over the out-of-band channel to pushed responses
// ABOUTME: Each pending request resolves exactly once: by response or by timeout
package correlator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harper/notion-copilot/internal/models"
	"github.com/rs/zerolog"
)

// DefaultTimeout applies when New is given a non-positive timeout
const DefaultTimeout = 30 * time.Second

// Push message types that carry auth results instead of responses
const (
	TypeAuthSuccess = "auth_success"
	TypeAuthError   = "auth_error"
)

// Sender is the out-of-band channel, normally a transport.Transport
type Sender interface {
	Send(ctx context.Context, body []byte) error
}

// Message is the envelope of every pushed event
type Message struct {
	ID     string          `json:"id,omitempty"`
	Type   string          `json:"type,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`
}

// RemoteError is a response that arrived with an error field
type RemoteError struct {
	RequestType string
	Message     string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s request failed: %s", e.RequestType, e.Message)
}

type response struct {
	result json.RawMessage
	err    error
}

type pendingRequest struct {
	id       string
	typ      string
	issuedAt time.Time
	done     chan response
}

// Correlator owns the pending-request table for one connection
type Correlator struct {
	sender  Sender
	timeout time.Duration
	logger  zerolog.Logger

	seq     atomic.Uint64
	mu      sync.Mutex
	pending map[string]*pendingRequest
	onAuth  func(models.AuthMessage)
}

// New creates a correlator that sends through sender
func New(sender Sender, timeout time.Duration, logger zerolog.Logger) *Correlator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Correlator{
		sender:  sender,
		timeout: timeout,
		logger:  logger.With().Str("component", "correlator").Logger(),
		pending: make(map[string]*pendingRequest),
	}
}

// SetAuthHandler routes auth_success / auth_error pushes to fn
func (c *Correlator) SetAuthHandler(fn func(models.AuthMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onAuth = fn
}

// Send transmits {id, type, ...payload} and waits for the matching response
func (c *Correlator) Send(ctx context.Context, typ string, payload map[string]any) (json.RawMessage, error) {
	id := fmt.Sprintf("req_%d", c.seq.Add(1))

	body := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		body[k] = v
	}
	body["id"] = id
	body["type"] = typ

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", typ, err)
	}

	p := &pendingRequest{id: id, typ: typ, issuedAt: time.Now(), done: make(chan response, 1)}
	c.mu.Lock()
	c.pending[id] = p
	c.mu.Unlock()

	c.logger.Debug().Str("id", id).Str("type", typ).Msg("send")
	if err := c.sender.Send(ctx, data); err != nil {
		c.take(id)
		return nil, err
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case r := <-p.done:
		return r.result, r.err
	case <-timer.C:
		if c.take(id) != nil {
			c.logger.Warn().Str("id", id).Str("type", typ).Dur("timeout", c.timeout).Msg("request timed out")
			return nil, fmt.Errorf("%w: %s request %s after %v", models.ErrRequestTimeout, typ, id, c.timeout)
		}
	case <-ctx.Done():
		if c.take(id) != nil {
			return nil, ctx.Err()
		}
	}
	// A response won the race with the timer
	r := <-p.done
	return r.result, r.err
}

// Dispatch handles one pushed event. Malformed events are logged and dropped.
func (c *Correlator) Dispatch(raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.logger.Warn().Err(err).Int("bytes", len(raw)).Msg("dropping malformed push message")
		return
	}

	switch msg.Type {
	case TypeAuthSuccess, TypeAuthError:
		c.mu.Lock()
		fn := c.onAuth
		c.mu.Unlock()
		if fn == nil {
			c.logger.Debug().Str("type", msg.Type).Msg("auth push with no waiter")
			return
		}
		fn(models.AuthMessage{
			Type:    msg.Type,
			Success: msg.Type == TypeAuthSuccess,
			Error:   errorText(msg.Error),
		})
		return
	}

	if msg.ID == "" {
		c.logger.Debug().Str("type", msg.Type).Msg("push message without id")
		return
	}

	p := c.take(msg.ID)
	if p == nil {
		c.logger.Debug().Str("id", msg.ID).Msg("no pending request for response")
		return
	}

	r := response{result: msg.Result}
	if text := errorText(msg.Error); text != "" {
		r = response{err: &RemoteError{RequestType: p.typ, Message: text}}
	}
	c.logger.Debug().Str("id", p.id).Dur("elapsed", time.Since(p.issuedAt)).Msg("resolved")
	p.done <- r
}

// Pending returns the number of unresolved requests
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// take removes and returns the pending request, or nil if already consumed
func (c *Correlator) take(id string) *pendingRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[id]
	if !ok {
		return nil
	}
	delete(c.pending, id)
	return p
}

// errorText accepts "error": "text" or "error": {"message": "text"}
func errorText(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" || trimmed == "false" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return trimmed
}
