// ABOUTME: ConnectionManager owns the push transport, the correlator, and both state machines
// ABOUTME: Connection: disconnected/connecting/connected + error/offline; auth runs independently
package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harper/notion-copilot/internal/correlator"
	"github.com/harper/notion-copilot/internal/models"
	"github.com/harper/notion-copilot/internal/transport"
	"github.com/harper/notion-copilot/internal/util"
	"github.com/rs/zerolog"
)

// Authenticator starts the popup handshake; oauth.Flow implements it
type Authenticator interface {
	Begin(deliver func(models.AuthMessage)) (string, error)
	Cancel()
}

// Options tune timeouts and error policy
type Options struct {
	ConnectTimeout time.Duration
	AuthTimeout    time.Duration
	RequestTimeout time.Duration
	// FallbackConfigured swallows connect/auth errors so the fallback chain
	// can serve the caller instead.
	FallbackConfigured bool
	// AuthRequired gates Ready on a completed handshake
	AuthRequired   bool
	MaxReconnects  int
	ReconnectDelay time.Duration
}

func (o *Options) defaults() {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 10 * time.Second
	}
	if o.AuthTimeout <= 0 {
		o.AuthTimeout = 120 * time.Second
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = 500 * time.Millisecond
	}
}

type authOutcome struct {
	msg models.AuthMessage
	err error
}

// Manager is one logical session; separate sessions use separate managers
type Manager struct {
	transport transport.Transport
	corr      *correlator.Correlator
	auth      Authenticator
	opts      Options
	logger    zerolog.Logger

	mu            sync.Mutex
	status        models.Status
	observers     map[int]func(models.Status)
	nextObserver  int
	authWait      chan authOutcome
	stopReconnect context.CancelFunc
	reconnectGen  uint64
	// streamLost records a close that arrived while still connecting
	streamLost    bool
	streamLostErr error
}

// New creates a manager. auth may be nil when the server needs no handshake.
func New(tr transport.Transport, auth Authenticator, opts Options, logger zerolog.Logger) *Manager {
	opts.defaults()
	m := &Manager{
		transport: tr,
		auth:      auth,
		opts:      opts,
		logger:    logger.With().Str("component", "connection").Logger(),
		status: models.Status{
			Connection: models.ConnDisconnected,
			Auth:       models.AuthUnauthenticated,
			Since:      time.Now(),
		},
		observers: make(map[int]func(models.Status)),
	}
	m.corr = correlator.New(tr, opts.RequestTimeout, logger)
	m.corr.SetAuthHandler(m.DeliverAuthMessage)
	return m
}

// Status returns a snapshot of both state machines
func (m *Manager) Status() models.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Ready reports whether requests can be sent over the push transport
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readyLocked()
}

func (m *Manager) readyLocked() bool {
	if m.status.Connection != models.ConnConnected {
		return false
	}
	return !m.opts.AuthRequired || m.status.Auth == models.AuthAuthenticated
}

// Subscribe registers fn for every transition and returns an unsubscribe func
func (m *Manager) Subscribe(fn func(models.Status)) func() {
	m.mu.Lock()
	id := m.nextObserver
	m.nextObserver++
	m.observers[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.observers, id)
		m.mu.Unlock()
	}
}

// Connect opens the transport. It is a no-op while connecting, connected, or offline.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	switch m.status.Connection {
	case models.ConnOffline:
		m.mu.Unlock()
		m.logger.Warn().Str("reason", m.Status().OfflineReason).Msg("connect ignored: offline mode is enabled")
		return nil
	case models.ConnConnecting, models.ConnConnected:
		m.mu.Unlock()
		return nil
	}
	m.streamLost, m.streamLostErr = false, nil
	notify := m.setLocked(func(s *models.Status) {
		s.Connection = models.ConnConnecting
		s.LastError = ""
	})
	m.mu.Unlock()
	notify()

	openCtx, cancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
	defer cancel()

	err := m.transport.Open(openCtx, transport.Handler{
		OnMessage: m.corr.Dispatch,
		OnClose:   m.handleStreamClosed,
	})

	m.mu.Lock()
	if m.status.Connection != models.ConnConnecting {
		// Disconnected or switched offline while the handshake was in flight
		m.mu.Unlock()
		if err == nil {
			_ = m.transport.Close()
		}
		return nil
	}
	if err != nil {
		notify = m.setLocked(func(s *models.Status) {
			s.Connection = models.ConnError
			s.LastError = err.Error()
		})
		m.mu.Unlock()
		notify()
		if m.opts.FallbackConfigured {
			m.logger.Warn().Err(err).Msg("connect failed, continuing with fallback")
			return nil
		}
		return err
	}
	if m.streamLost {
		lostErr := m.streamLostErr
		if lostErr == nil {
			lostErr = errors.New("stream closed while connecting")
		}
		lostErr = fmt.Errorf("%w: %v", models.ErrTransport, lostErr)
		m.streamLost, m.streamLostErr = false, nil
		notify, reconnectCtx, gen := m.loseStreamLocked(lostErr)
		m.mu.Unlock()
		notify()

		if reconnectCtx != nil {
			go m.reconnect(reconnectCtx, gen)
		}
		if m.opts.FallbackConfigured {
			m.logger.Warn().Err(lostErr).Msg("stream lost during connect, continuing with fallback")
			return nil
		}
		return lostErr
	}
	notify = m.setLocked(func(s *models.Status) { s.Connection = models.ConnConnected })
	m.mu.Unlock()
	notify()

	m.logger.Info().Msg("connected")
	return nil
}

// Disconnect closes the transport and rejects any pending handshake
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	m.cancelReconnectLocked()
	m.rejectAuthLocked(models.ErrDisconnected)
	notify := m.setLocked(func(s *models.Status) {
		if s.Connection != models.ConnOffline {
			s.Connection = models.ConnDisconnected
		}
		s.Auth = models.AuthUnauthenticated
	})
	m.mu.Unlock()

	if m.auth != nil {
		m.auth.Cancel()
	}
	err := m.transport.Close()
	notify()
	m.logger.Info().Msg("disconnected")
	return err
}

// Authenticate runs the popup handshake. Requires a live connection.
func (m *Manager) Authenticate(ctx context.Context) error {
	m.mu.Lock()
	switch {
	case m.status.Auth == models.AuthAuthenticating, m.status.Auth == models.AuthAuthenticated:
		m.mu.Unlock()
		return nil
	case m.status.Connection != models.ConnConnected:
		state := m.status.Connection
		m.mu.Unlock()
		return fmt.Errorf("%w: %w (connection is %s)", models.ErrAuth, models.ErrNotConnected, state)
	case m.auth == nil:
		m.mu.Unlock()
		return fmt.Errorf("%w: oauth is not configured", models.ErrAuth)
	}
	wait := make(chan authOutcome, 1)
	m.authWait = wait
	notify := m.setLocked(func(s *models.Status) {
		s.Auth = models.AuthAuthenticating
		s.LastError = ""
	})
	m.mu.Unlock()
	notify()

	if _, err := m.auth.Begin(m.DeliverAuthMessage); err != nil {
		return m.finishAuth(wait, authOutcome{err: err})
	}

	timer := time.NewTimer(m.opts.AuthTimeout)
	defer timer.Stop()

	select {
	case out := <-wait:
		return m.finishAuth(wait, out)
	case <-timer.C:
		m.auth.Cancel()
		return m.finishAuth(wait, authOutcome{
			err: fmt.Errorf("%w: timed out after %v", models.ErrAuth, m.opts.AuthTimeout),
		})
	case <-ctx.Done():
		m.auth.Cancel()
		return m.finishAuth(wait, authOutcome{err: fmt.Errorf("%w: %v", models.ErrAuth, ctx.Err())})
	}
}

// finishAuth applies the handshake outcome if wait is still the live waiter
func (m *Manager) finishAuth(wait chan authOutcome, out authOutcome) error {
	if out.err == nil && !out.msg.Success {
		reason := out.msg.Error
		if reason == "" {
			reason = "authorization rejected"
		}
		out.err = fmt.Errorf("%w: %s", models.ErrAuth, reason)
	}

	m.mu.Lock()
	if m.authWait != wait {
		// Disconnect or a newer handshake already owns the auth state
		m.mu.Unlock()
		return out.err
	}
	m.authWait = nil
	notify := m.setLocked(func(s *models.Status) {
		if out.err != nil {
			s.Auth = models.AuthError
			s.LastError = out.err.Error()
		} else {
			s.Auth = models.AuthAuthenticated
		}
	})
	m.mu.Unlock()
	notify()

	if out.err != nil {
		if m.opts.FallbackConfigured {
			m.logger.Warn().Err(out.err).Msg("authentication failed, continuing with fallback")
			return nil
		}
		return out.err
	}
	m.logger.Info().Msg("authenticated")
	return nil
}

// DeliverAuthMessage resolves the pending handshake; extra messages are ignored
func (m *Manager) DeliverAuthMessage(msg models.AuthMessage) {
	m.mu.Lock()
	wait := m.authWait
	m.mu.Unlock()
	if wait == nil {
		m.logger.Debug().Str("type", msg.Type).Msg("auth message with no pending handshake")
		return
	}
	select {
	case wait <- authOutcome{msg: msg}:
	default:
	}
}

// EnableOfflineMode forces the offline state, closing any live transport
func (m *Manager) EnableOfflineMode(reason string) {
	m.mu.Lock()
	m.cancelReconnectLocked()
	m.rejectAuthLocked(models.ErrDisconnected)
	notify := m.setLocked(func(s *models.Status) {
		s.Connection = models.ConnOffline
		s.OfflineReason = reason
		s.Auth = models.AuthUnauthenticated
	})
	m.mu.Unlock()

	if m.auth != nil {
		m.auth.Cancel()
	}
	_ = m.transport.Close()
	notify()
	m.logger.Info().Str("reason", reason).Msg("offline mode enabled")
}

// DisableOfflineMode releases the offline state back to disconnected
func (m *Manager) DisableOfflineMode() {
	m.mu.Lock()
	if m.status.Connection != models.ConnOffline {
		m.mu.Unlock()
		return
	}
	notify := m.setLocked(func(s *models.Status) {
		s.Connection = models.ConnDisconnected
		s.OfflineReason = ""
	})
	m.mu.Unlock()
	notify()
	m.logger.Info().Msg("offline mode disabled")
}

// Request sends typ/payload through the correlator and waits for the response
func (m *Manager) Request(ctx context.Context, typ string, payload map[string]any) (json.RawMessage, error) {
	if !m.Ready() {
		return nil, fmt.Errorf("%w: %s", models.ErrNotConnected, typ)
	}
	return m.corr.Send(ctx, typ, payload)
}

// PendingRequests returns the correlator's in-flight count
func (m *Manager) PendingRequests() int {
	return m.corr.Pending()
}

// handleStreamClosed reacts to the server ending the stream
func (m *Manager) handleStreamClosed(err error) {
	m.mu.Lock()
	switch m.status.Connection {
	case models.ConnConnecting:
		// Connect settles the state once Open returns
		m.streamLost, m.streamLostErr = true, err
		m.mu.Unlock()
		return
	case models.ConnConnected:
	default:
		m.mu.Unlock()
		return
	}
	notify, ctx, gen := m.loseStreamLocked(err)
	m.mu.Unlock()
	notify()

	m.logger.Warn().Err(err).Msg("stream lost")
	if ctx != nil {
		go m.reconnect(ctx, gen)
	}
}

// loseStreamLocked moves to Error and, unless one is already running, prepares
// a reconnect loop. ctx is nil when no loop should start.
func (m *Manager) loseStreamLocked(err error) (func(), context.Context, uint64) {
	m.rejectAuthLocked(models.ErrDisconnected)
	notify := m.setLocked(func(s *models.Status) {
		s.Connection = models.ConnError
		s.Auth = models.AuthUnauthenticated
		if err != nil {
			s.LastError = err.Error()
		}
	})
	if m.opts.MaxReconnects <= 0 || m.stopReconnect != nil {
		return notify, nil, 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.stopReconnect = cancel
	m.reconnectGen++
	return notify, ctx, m.reconnectGen
}

// reconnect retries Connect with backoff until it succeeds or runs out of
// attempts. gen identifies this loop so a cancelled one cannot clear a newer
// loop's cancel func.
func (m *Manager) reconnect(ctx context.Context, gen uint64) {
	defer func() {
		m.mu.Lock()
		if m.reconnectGen == gen {
			m.stopReconnect = nil
		}
		m.mu.Unlock()
	}()

	for attempt := 1; attempt <= m.opts.MaxReconnects; attempt++ {
		if err := util.Sleep(ctx, util.CalculateBackoff(m.opts.ReconnectDelay, attempt-1)); err != nil {
			return
		}
		if m.Status().Connection != models.ConnError {
			return
		}
		m.logger.Info().Int("attempt", attempt).Msg("reconnecting")
		_ = m.Connect(ctx)
		if m.Status().Connection == models.ConnConnected {
			return
		}
	}
	m.logger.Warn().Int("attempts", m.opts.MaxReconnects).Msg("giving up on reconnect")
}

func (m *Manager) cancelReconnectLocked() {
	if m.stopReconnect != nil {
		m.stopReconnect()
		m.stopReconnect = nil
	}
}

func (m *Manager) rejectAuthLocked(err error) {
	if m.authWait == nil {
		return
	}
	select {
	case m.authWait <- authOutcome{err: err}:
	default:
	}
	m.authWait = nil
}

// setLocked mutates the status and returns a func that notifies observers
// after the lock is released
func (m *Manager) setLocked(mutate func(*models.Status)) func() {
	before := m.status
	mutate(&m.status)
	if m.status == before {
		return func() {}
	}
	m.status.Since = time.Now()
	snap := m.status
	observers := make([]func(models.Status), 0, len(m.observers))
	for _, fn := range m.observers {
		observers = append(observers, fn)
	}
	return func() {
		for _, fn := range observers {
			fn(snap)
		}
	}
}
