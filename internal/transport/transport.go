// ABOUTME: Server-push transport to the Notion MCP server
// ABOUTME: SSE / newline-delimited JSON stream in, POST <url>/send out
package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/harper/notion-copilot/internal/models"
	"github.com/rs/zerolog"
)

// maxEventSize bounds a single pushed event
const maxEventSize = 1 << 20

// Handler receives stream events. OnClose fires once when the stream ends
// without Close having been called.
type Handler struct {
	OnMessage func(data []byte)
	OnClose   func(err error)
}

// Transport is the push channel plus out-of-band send channel
type Transport interface {
	// Open establishes the stream and returns once the server reports open.
	// ctx bounds only the handshake; the stream lives until Close.
	Open(ctx context.Context, h Handler) error
	// Send posts one message on the out-of-band channel
	Send(ctx context.Context, body []byte) error
	// Close tears the stream down; it is safe to call repeatedly
	Close() error
}

// Option configures an SSE transport
type Option func(*SSE)

// WithHTTPClient replaces the client used for the stream and for sends
func WithHTTPClient(c *http.Client) Option {
	return func(s *SSE) { s.client = c }
}

// WithCredentials supplies a bearer token per request (e.g. the OAuth token)
func WithCredentials(token func() string) Option {
	return func(s *SSE) { s.token = token }
}

// WithSendTimeout bounds each POST to /send
func WithSendTimeout(d time.Duration) Option {
	return func(s *SSE) { s.sendTimeout = d }
}

// SSE implements Transport over an HTTP event stream
type SSE struct {
	streamURL   string
	sendURL     string
	client      *http.Client
	token       func() string
	sendTimeout time.Duration
	logger      zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	open   bool
	gen    int
}

// NewSSE creates a transport for the given stream URL
func NewSSE(streamURL string, logger zerolog.Logger, opts ...Option) *SSE {
	jar, _ := cookiejar.New(nil)
	s := &SSE{
		streamURL:   streamURL,
		sendURL:     strings.TrimRight(streamURL, "/") + "/send",
		client:      &http.Client{Jar: jar},
		sendTimeout: 15 * time.Second,
		logger:      logger.With().Str("component", "transport").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to the stream endpoint
func (s *SSE) Open(ctx context.Context, h Handler) error {
	s.mu.Lock()
	if s.open {
		s.mu.Unlock()
		return nil
	}
	streamCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, s.streamURL, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("%w: build stream request: %v", models.ErrTransport, err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	s.authorize(req)

	type dialResult struct {
		resp *http.Response
		err  error
	}
	done := make(chan dialResult, 1)
	go func() {
		resp, err := s.client.Do(req)
		done <- dialResult{resp, err}
	}()

	var resp *http.Response
	select {
	case <-ctx.Done():
		cancel()
		// Drain so the response body is never leaked
		go func() {
			if r := <-done; r.resp != nil {
				_ = r.resp.Body.Close()
			}
		}()
		return fmt.Errorf("%w: open stream: %v", models.ErrTransport, ctx.Err())
	case r := <-done:
		if r.err != nil {
			cancel()
			return fmt.Errorf("%w: open stream: %v", models.ErrTransport, r.err)
		}
		resp = r.resp
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()
		cancel()
		return fmt.Errorf("%w: stream returned %d: %s", models.ErrTransport, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	s.mu.Lock()
	if s.gen != gen {
		// Closed while the handshake was in flight
		s.mu.Unlock()
		_ = resp.Body.Close()
		return fmt.Errorf("%w: transport closed during open", models.ErrTransport)
	}
	s.open = true
	s.mu.Unlock()

	s.logger.Debug().Str("url", s.streamURL).Msg("stream open")
	go s.readLoop(resp.Body, h, gen)
	return nil
}

// readLoop parses the stream until it ends
func (s *SSE) readLoop(body io.ReadCloser, h Handler, gen int) {
	defer func() { _ = body.Close() }()

	err := ReadEvents(body, func(data []byte) {
		if h.OnMessage != nil {
			h.OnMessage(data)
		}
	})

	s.mu.Lock()
	unexpected := s.open && s.gen == gen
	if unexpected {
		s.open = false
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	if !unexpected {
		return
	}
	if err == nil {
		err = io.EOF
	}
	s.logger.Warn().Err(err).Msg("stream ended")
	if h.OnClose != nil {
		h.OnClose(err)
	}
}

// Send posts body to <stream-url>/send. The response arrives on the stream.
func (s *SSE) Send(ctx context.Context, body []byte) error {
	if s.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.sendTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.sendURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build send request: %v", models.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	s.authorize(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: send: %v", models.ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: send returned %d", models.ErrTransport, resp.StatusCode)
	}
	return nil
}

// Close stops the stream
func (s *SSE) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.open = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return nil
}

func (s *SSE) authorize(req *http.Request) {
	if s.token == nil {
		return
	}
	if tok := s.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
}

// ReadEvents parses an SSE or newline-delimited JSON stream, calling emit
// once per event. "data:" lines accumulate until a blank line; bare lines
// starting with '{' are complete events on their own.
func ReadEvents(r io.Reader, emit func([]byte)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	var data []string
	flush := func() {
		if len(data) == 0 {
			return
		}
		emit([]byte(strings.Join(data, "\n")))
		data = data[:0]
	}

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, ":"):
			// comment / keepalive
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case strings.HasPrefix(line, "event:"), strings.HasPrefix(line, "id:"), strings.HasPrefix(line, "retry:"):
			// message type travels inside the JSON payload
		case strings.HasPrefix(strings.TrimSpace(line), "{"):
			flush()
			emit([]byte(strings.TrimSpace(line)))
		}
	}
	flush()

	if err := scanner.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
