// ABOUTME: Conversation pipeline: record, classify, enrich, generate, resolve tools, respond
// ABOUTME: Every step degrades to a safe default; only generation failure replaces the reply
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/harper/notion-copilot/internal/intent"
	"github.com/harper/notion-copilot/internal/llm"
	"github.com/harper/notion-copilot/internal/models"
	"github.com/harper/notion-copilot/internal/speech"
	"github.com/rs/zerolog"
)

// DefaultDegradedCooldown is how long generation stays off after a key or quota failure
const DefaultDegradedCooldown = 5 * time.Minute

// DefaultHistoryWindow is how many earlier turns are folded into each prompt
const DefaultHistoryWindow = 10

// Workspace runs canonical operations through the fallback chain
type Workspace interface {
	Do(ctx context.Context, op models.Operation) (*models.Result, error)
}

// Detector classifies user text
type Detector interface {
	Detect(ctx context.Context, text string) (*models.IntentResult, error)
}

// ToolCaller resolves tool directives; tools.Registry implements it
type ToolCaller interface {
	Has(name string) bool
	Call(ctx context.Context, name string, args map[string]any) (string, error)
}

// TranscriptStore persists the conversation log
type TranscriptStore interface {
	Append(turn *models.ConversationTurn) error
	Recent(limit int) ([]models.ConversationTurn, error)
	Clear() error
}

// Recorder observes finished turns; metrics.Collectors implements it
type Recorder interface {
	ObserveTurn(source string, elapsed time.Duration)
}

// Reply is the outcome of one SendMessage call
type Reply struct {
	Text       string             `json:"text"`
	Intent     models.Intent      `json:"intent"`
	Confidence float64            `json:"confidence"`
	Source     string             `json:"source"`
	Tier       models.BackendTier `json:"tier,omitempty"`
	Degraded   bool               `json:"degraded"`
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithTools enables tool directive resolution
func WithTools(t ToolCaller) Option {
	return func(o *Orchestrator) { o.tools = t }
}

// WithSpeech voices replies through s while holding the registry under id
func WithSpeech(registry *speech.Registry, id string, s speech.Speaker) Option {
	return func(o *Orchestrator) {
		o.speechRegistry = registry
		o.speechID = id
		o.speaker = s
	}
}

// WithTranscript mirrors the conversation log to store
func WithTranscript(store TranscriptStore) Option {
	return func(o *Orchestrator) { o.store = store }
}

// WithDegradedCooldown sets how long generation stays off after a key or quota failure
func WithDegradedCooldown(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.cooldown = d
		}
	}
}

// WithHistoryWindow sets how many earlier turns each prompt includes
func WithHistoryWindow(n int) Option {
	return func(o *Orchestrator) { o.historyWindow = n }
}

// WithRecorder attaches a metrics recorder
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithClock overrides time.Now (for tests)
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator owns one conversation
type Orchestrator struct {
	detector  Detector
	generator llm.Generator
	workspace Workspace
	tools     ToolCaller
	store     TranscriptStore
	recorder  Recorder
	logger    zerolog.Logger
	now       func() time.Time

	speechRegistry *speech.Registry
	speechID       string
	speaker        speech.Speaker

	cooldown      time.Duration
	historyWindow int

	mu            sync.Mutex
	turns         []models.ConversationTurn
	degradedUntil time.Time
	degradedKind  models.UpstreamErrorKind
}

// New creates an orchestrator. A nil generator starts permanently degraded.
func New(detector Detector, generator llm.Generator, workspace Workspace, logger zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		detector:      detector,
		generator:     generator,
		workspace:     workspace,
		logger:        logger.With().Str("component", "orchestrator").Logger(),
		now:           time.Now,
		cooldown:      DefaultDegradedCooldown,
		historyWindow: DefaultHistoryWindow,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// LoadHistory seeds the in-memory log from the transcript store
func (o *Orchestrator) LoadHistory(limit int) error {
	if o.store == nil {
		return nil
	}
	turns, err := o.store.Recent(limit)
	if err != nil {
		return fmt.Errorf("failed to load transcript: %w", err)
	}
	o.mu.Lock()
	o.turns = append([]models.ConversationTurn(nil), turns...)
	o.mu.Unlock()
	return nil
}

// SendMessage runs the full pipeline for one user message. The only error is
// an empty message; every other failure becomes a recorded conversational reply.
func (o *Orchestrator) SendMessage(ctx context.Context, text string) (*Reply, error) {
	start := o.now()

	userTurn, err := models.NewTurn(models.RoleUser, text, models.SourceUser)
	if err != nil {
		return nil, err
	}
	history := o.recent()
	o.record(userTurn)

	degraded := o.Degraded()
	classified := o.classify(ctx, text, degraded)

	workspace, tier := o.enrich(ctx, classified)

	reply := &Reply{Intent: classified.Intent, Confidence: classified.Confidence, Tier: tier}

	// Classification may have just tripped degraded mode
	if degraded || o.Degraded() {
		reply.Text = offlineReply(classified, workspace)
		reply.Source = models.SourceOffline
		reply.Degraded = true
	} else {
		generated, err := o.generator.Generate(ctx, buildPrompt(text, workspace, history))
		switch {
		case err == nil:
			reply.Text = o.resolveDirectives(ctx, generated)
			reply.Source = models.SourceLLM
		case o.enterDegraded(err):
			reply.Text = llm.OfflineMessage(llm.ClassifyError(err))
			if workspace != "" {
				reply.Text += "\n\n" + workspace
			}
			reply.Source = models.SourceOffline
			reply.Degraded = true
		default:
			o.logger.Error().Err(err).Msg("text generation failed")
			reply.Text = llm.Apology
			reply.Source = models.SourceError
		}
	}

	if strings.TrimSpace(reply.Text) == "" {
		reply.Text = llm.Apology
		reply.Source = models.SourceError
	}

	assistantTurn, err := models.NewTurn(models.RoleAssistant, reply.Text, reply.Source)
	if err == nil {
		assistantTurn.Intent = reply.Intent
		assistantTurn.Confidence = reply.Confidence
		assistantTurn.Tier = reply.Tier
		o.record(assistantTurn)
	}

	if reply.Source != models.SourceError {
		o.speak(ctx, reply.Text)
	}
	if o.recorder != nil {
		o.recorder.ObserveTurn(reply.Source, o.now().Sub(start))
	}

	o.logger.Info().
		Str("intent", string(reply.Intent)).
		Str("source", reply.Source).
		Str("tier", string(reply.Tier)).
		Bool("degraded", reply.Degraded).
		Msg("turn complete")

	return reply, nil
}

// DetectIntent exposes the classifier, honoring degraded mode
func (o *Orchestrator) DetectIntent(ctx context.Context, text string) *models.IntentResult {
	return o.classify(ctx, text, o.Degraded())
}

func (o *Orchestrator) classify(ctx context.Context, text string, degraded bool) *models.IntentResult {
	if degraded || o.detector == nil {
		return intent.Heuristic(text)
	}

	res, err := o.detector.Detect(ctx, text)
	if err != nil {
		if o.enterDegraded(err) {
			return intent.Heuristic(text)
		}
		o.logger.Warn().Err(err).Msg("intent detection failed, using default")
		return models.DefaultIntent()
	}
	if res == nil {
		return models.DefaultIntent()
	}
	return res
}

// enrich fetches Notion context for list, search, and view actions
func (o *Orchestrator) enrich(ctx context.Context, res *models.IntentResult) (string, models.BackendTier) {
	if res.Intent != models.IntentNotion || o.workspace == nil {
		return "", ""
	}

	var op models.Operation
	switch res.Action {
	case "list":
		op = models.Operation{Kind: models.OpSearch}
	case "search":
		op = models.Operation{Kind: models.OpSearch, Query: res.Param("query")}
		if object := res.Param("type"); object == "page" || object == "database" {
			op.Filter = &models.SearchFilter{Object: object}
		}
	case "view":
		id := res.Param("id")
		if id == "" {
			return "", ""
		}
		kind, err := models.ParseResourceKind(res.Param("type"))
		if err != nil {
			kind = models.KindPage
		}
		op = models.Operation{Kind: models.ViewOp(kind), ID: id}
	default:
		return "", ""
	}

	result, err := o.workspace.Do(ctx, op)
	if err != nil {
		if errors.Is(err, models.ErrBackendUnavailable) {
			o.logger.Warn().Err(err).Str("op", string(op.Kind)).Msg("no backend for context, continuing without it")
		} else {
			o.logger.Warn().Err(err).Str("op", string(op.Kind)).Msg("context fetch failed")
		}
		return "", ""
	}
	if result == nil {
		return "", ""
	}
	return Summarize(result), result.Tier
}

// enterDegraded switches generation off when err is a key or quota failure
func (o *Orchestrator) enterDegraded(err error) bool {
	kind := llm.ClassifyError(err)
	if kind == models.UpstreamUnknown {
		return false
	}

	o.mu.Lock()
	o.degradedUntil = o.now().Add(o.cooldown)
	o.degradedKind = kind
	o.mu.Unlock()

	o.logger.Warn().Err(err).Str("kind", string(kind)).Dur("cooldown", o.cooldown).Msg("generation unavailable, entering offline mode")
	return true
}

// Degraded reports whether generation is currently switched off
func (o *Orchestrator) Degraded() bool {
	if o.generator == nil {
		return true
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.now().Before(o.degradedUntil)
}

// DegradedKind returns the upstream failure that caused degraded mode
func (o *Orchestrator) DegradedKind() models.UpstreamErrorKind {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.degradedKind == "" {
		return models.UpstreamUnknown
	}
	return o.degradedKind
}

// ResumeGeneration leaves degraded mode before the cooldown ends
func (o *Orchestrator) ResumeGeneration() {
	o.mu.Lock()
	o.degradedUntil = time.Time{}
	o.degradedKind = ""
	o.mu.Unlock()
}

// History returns a copy of the conversation log
func (o *Orchestrator) History() []models.ConversationTurn {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]models.ConversationTurn(nil), o.turns...)
}

// Reset clears the conversation log and its transcript
func (o *Orchestrator) Reset() error {
	o.mu.Lock()
	o.turns = nil
	o.mu.Unlock()

	if o.store != nil {
		if err := o.store.Clear(); err != nil {
			return fmt.Errorf("failed to clear transcript: %w", err)
		}
	}
	return nil
}

func (o *Orchestrator) recent() []models.ConversationTurn {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := len(o.turns)
	if o.historyWindow <= 0 {
		return nil
	}
	if n > o.historyWindow {
		return append([]models.ConversationTurn(nil), o.turns[n-o.historyWindow:]...)
	}
	return append([]models.ConversationTurn(nil), o.turns...)
}

func (o *Orchestrator) record(turn *models.ConversationTurn) {
	o.mu.Lock()
	o.turns = append(o.turns, *turn)
	o.mu.Unlock()

	if o.store != nil {
		if err := o.store.Append(turn); err != nil {
			o.logger.Warn().Err(err).Str("turn", turn.ID).Msg("failed to persist turn")
		}
	}
}

func (o *Orchestrator) speak(ctx context.Context, text string) {
	if o.speaker == nil {
		return
	}
	if o.speechRegistry != nil {
		o.speechRegistry.Claim(o.speechID, o.speaker)
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := o.speaker.Speak(ctx, text); err != nil {
			o.logger.Debug().Err(err).Msg("speech failed")
		}
	}()
}
