// ABOUTME: Intent classification with per-text debouncing
// ABOUTME: Identical text inside the window shares one in-flight call and its result
package intent

import (
	"context"
	"strings"
	"time"

	"github.com/harper/notion-copilot/internal/llm"
	"github.com/harper/notion-copilot/internal/models"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

// DefaultDebounce is the window during which identical text is not reclassified
const DefaultDebounce = 800 * time.Millisecond

const systemPrompt = `You classify a user's message for a workspace assistant.
Reply with ONLY a JSON object: {"intent": "...", "confidence": 0.0, "action": "...", "params": {}}
intent is one of: notion, discord, calendar, general.
For notion, action is one of: list, search, view, create, update. Put a search string in params.query,
a page/database id in params.id, a resource type (page, database, block) in params.type,
and a new page title in params.title.`

// Recorder observes debounce hits; metrics.Collectors implements it
type Recorder interface {
	ObserveIntent(intent models.Intent, debounced bool)
}

// call is one classification shared by every caller in the window
type call struct {
	done chan struct{}
	res  *models.IntentResult
	err  error
}

// Classifier detects intents, deferring to the generation collaborator
type Classifier struct {
	completer llm.Completer
	debounce  time.Duration
	inflight  *cache.Cache
	recorder  Recorder
	logger    zerolog.Logger
}

// Option configures a Classifier
type Option func(*Classifier)

// WithRecorder attaches a metrics recorder
func WithRecorder(r Recorder) Option {
	return func(c *Classifier) { c.recorder = r }
}

// NewClassifier creates a classifier. A nil completer classifies with Heuristic.
func NewClassifier(completer llm.Completer, debounce time.Duration, logger zerolog.Logger, opts ...Option) *Classifier {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	c := &Classifier{
		completer: completer,
		debounce:  debounce,
		inflight:  cache.New(debounce, 4*debounce),
		logger:    logger.With().Str("component", "intent").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Detect classifies text. Within the debounce window identical text returns
// the same *IntentResult without another upstream call. A generation failure
// is returned as an error; an unparseable reply yields DefaultIntent.
func (c *Classifier) Detect(ctx context.Context, text string) (*models.IntentResult, error) {
	fresh := &call{done: make(chan struct{})}

	if err := c.inflight.Add(text, fresh, cache.DefaultExpiration); err != nil {
		if x, ok := c.inflight.Get(text); ok {
			shared := x.(*call)
			c.observe(shared, true)
			select {
			case <-shared.done:
				return shared.res, shared.err
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		// Expired between Add and Get
		c.inflight.Set(text, fresh, cache.DefaultExpiration)
	}

	fresh.res, fresh.err = c.classify(ctx, text)
	close(fresh.done)
	c.observe(fresh, false)
	return fresh.res, fresh.err
}

func (c *Classifier) classify(ctx context.Context, text string) (*models.IntentResult, error) {
	if strings.TrimSpace(text) == "" {
		return models.DefaultIntent(), nil
	}
	if c.completer == nil {
		return Heuristic(text), nil
	}

	reply, err := c.completer.Complete(ctx, systemPrompt, text)
	if err != nil {
		c.logger.Warn().Err(err).Msg("intent classification failed")
		return nil, err
	}

	res, err := ParseResponse(reply)
	if err != nil {
		c.logger.Warn().Err(err).Msg("unparseable intent response, using default")
	}
	c.logger.Debug().Str("intent", string(res.Intent)).Float64("confidence", res.Confidence).Str("action", res.Action).Msg("classified")
	return res, nil
}

func (c *Classifier) observe(cl *call, debounced bool) {
	if c.recorder == nil {
		return
	}
	intent := models.IntentGeneral
	select {
	case <-cl.done:
		if cl.res != nil {
			intent = cl.res.Intent
		}
	default:
	}
	c.recorder.ObserveIntent(intent, debounced)
}

// IsUpstream reports whether err should switch the caller into offline mode
func IsUpstream(err error) bool {
	return err != nil && llm.ClassifyError(err) != models.UpstreamUnknown
}
