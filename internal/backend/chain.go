// ABOUTME: FallbackChain runs an operation through an ordered list of backend tiers
// ABOUTME: MCP, then proxy, then offline synthesis; only total exhaustion is an error
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harper/notion-copilot/internal/models"
	"github.com/rs/zerolog"
)

// Tier is one way of serving an operation
type Tier interface {
	Name() models.BackendTier
	// Available reports whether the tier's preconditions hold right now
	Available() bool
	Do(ctx context.Context, op models.Operation) (*models.Result, error)
}

// Recorder observes chain outcomes; metrics.Collectors implements it
type Recorder interface {
	ObserveOperation(op models.OpKind, tier models.BackendTier, elapsed time.Duration, err error)
	ObserveFallback(op models.OpKind, from models.BackendTier)
}

// Option configures a Chain
type Option func(*Chain)

// WithOffline sets the synthesis tier and the predicate for explicit offline mode
func WithOffline(t Tier, isOffline func() bool) Option {
	return func(c *Chain) {
		c.offline = t
		c.isOffline = isOffline
	}
}

// WithRecorder attaches a metrics recorder
func WithRecorder(r Recorder) Option {
	return func(c *Chain) { c.recorder = r }
}

// Chain is the generic runner over network tiers
type Chain struct {
	tiers     []Tier
	offline   Tier
	isOffline func() bool
	recorder  Recorder
	logger    zerolog.Logger
}

// NewChain builds a chain trying tiers in order
func NewChain(logger zerolog.Logger, tiers []Tier, opts ...Option) *Chain {
	c := &Chain{
		tiers:     tiers,
		isOffline: func() bool { return false },
		logger:    logger.With().Str("component", "fallback").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do serves op from the first tier that succeeds
func (c *Chain) Do(ctx context.Context, op models.Operation) (*models.Result, error) {
	if err := op.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", op.Kind, err)
	}

	if c.offline != nil && c.isOffline() {
		return c.run(ctx, c.offline, op)
	}

	var lastErr error
	for _, t := range c.tiers {
		if !t.Available() {
			lastErr = fmt.Errorf("%s: %w", t.Name(), models.ErrTierUnavailable)
			continue
		}
		res, err := c.run(ctx, t, op)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn().Err(err).Str("op", string(op.Kind)).Str("tier", string(t.Name())).Msg("tier failed, falling back")
		if c.recorder != nil {
			c.recorder.ObserveFallback(op.Kind, t.Name())
		}
		lastErr = err
	}

	if c.offline != nil {
		res, err := c.run(ctx, c.offline, op)
		if err != nil {
			return nil, err
		}
		res.Degraded = true
		if lastErr != nil {
			c.logger.Warn().Err(lastErr).Str("op", string(op.Kind)).Msg("serving offline placeholder")
		}
		return res, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no tiers configured")
	}
	return nil, fmt.Errorf("%w: %s: %w", models.ErrBackendUnavailable, op.Kind, lastErr)
}

func (c *Chain) run(ctx context.Context, t Tier, op models.Operation) (*models.Result, error) {
	start := time.Now()
	res, err := t.Do(ctx, op)
	if c.recorder != nil {
		c.recorder.ObserveOperation(op.Kind, t.Name(), time.Since(start), err)
	}
	if err != nil {
		return nil, err
	}
	res.Tier = t.Name()
	res.Op = op.Kind
	return res, nil
}
