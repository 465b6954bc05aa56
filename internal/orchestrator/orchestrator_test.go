package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harper/notion-copilot/internal/backend/mock"
	"github.com/harper/notion-copilot/internal/llm"
	"github.com/harper/notion-copilot/internal/models"
	"github.com/harper/notion-copilot/internal/speech"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDetector struct {
	res   *models.IntentResult
	err   error
	calls atomic.Int32
}

func (f *fakeDetector) Detect(context.Context, string) (*models.IntentResult, error) {
	f.calls.Add(1)
	return f.res, f.err
}

type fakeGenerator struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.prompts)
	f.prompts = append(f.prompts, prompt)
	var err error
	if n < len(f.errs) {
		err = f.errs[n]
	}
	if err != nil {
		return "", err
	}
	if n < len(f.replies) {
		return f.replies[n], nil
	}
	return "ok", nil
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type fakeWorkspace struct {
	result *models.Result
	err    error
	ops    []models.Operation
}

func (f *fakeWorkspace) Do(_ context.Context, op models.Operation) (*models.Result, error) {
	f.ops = append(f.ops, op)
	return f.result, f.err
}

type fakeTools struct {
	registered map[string]string
	calls      []string
	args       []map[string]any
}

func (f *fakeTools) Has(name string) bool {
	_, ok := f.registered[name]
	return ok
}

func (f *fakeTools) Call(_ context.Context, name string, args map[string]any) (string, error) {
	f.calls = append(f.calls, name)
	f.args = append(f.args, args)
	out := f.registered[name]
	if out == "!fail" {
		return "", errors.New("tool failed")
	}
	return out, nil
}

type memTranscript struct {
	turns   []models.ConversationTurn
	cleared bool
}

func (m *memTranscript) Append(t *models.ConversationTurn) error {
	m.turns = append(m.turns, *t)
	return nil
}

func (m *memTranscript) Recent(limit int) ([]models.ConversationTurn, error) {
	if limit > 0 && len(m.turns) > limit {
		return m.turns[len(m.turns)-limit:], nil
	}
	return m.turns, nil
}

func (m *memTranscript) Clear() error {
	m.turns = nil
	m.cleared = true
	return nil
}

func workspaceResult() *models.Result {
	return &models.Result{
		Op:   models.OpSearch,
		Tier: models.TierProxy,
		Resources: []models.Resource{
			{Kind: models.KindPage, ID: "p1", Title: "Roadmap"},
			{Kind: models.KindPage, ID: "p2", Title: "Standup notes"},
			{Kind: models.KindDatabase, ID: "d1", Title: "Tasks"},
		},
	}
}

func TestSendMessage_EnrichesNotionListPrompt(t *testing.T) {
	detector := &fakeDetector{res: &models.IntentResult{Intent: models.IntentNotion, Confidence: 0.9, Action: "list"}}
	gen := &fakeGenerator{replies: []string{"You have a roadmap and standup notes."}}
	ws := &fakeWorkspace{result: workspaceResult()}
	o := New(detector, gen, ws, zerolog.Nop())

	reply, err := o.SendMessage(t.Context(), "what's in my notion workspace")
	require.NoError(t, err)

	require.Len(t, ws.ops, 1)
	assert.Equal(t, models.OpSearch, ws.ops[0].Kind)
	assert.Empty(t, ws.ops[0].Query)

	require.Equal(t, 1, gen.calls())
	prompt := gen.prompts[0]
	assert.Contains(t, prompt, "Pages: Roadmap (p1); Standup notes (p2)")
	assert.Contains(t, prompt, "Databases: Tasks (d1)")
	assert.Less(t, strings.Index(prompt, "Pages:"), strings.Index(prompt, "Databases:"))
	assert.Contains(t, prompt, "user: what's in my notion workspace")

	assert.Equal(t, "You have a roadmap and standup notes.", reply.Text)
	assert.Equal(t, models.SourceLLM, reply.Source)
	assert.Equal(t, models.TierProxy, reply.Tier)
	assert.Equal(t, models.IntentNotion, reply.Intent)

	history := o.History()
	require.Len(t, history, 2)
	assert.Equal(t, models.RoleUser, history[0].Role)
	assert.Equal(t, models.RoleAssistant, history[1].Role)
	assert.Equal(t, models.IntentNotion, history[1].Intent)
	assert.Equal(t, 0.9, history[1].Confidence)
	assert.Equal(t, models.TierProxy, history[1].Tier)
}

func TestSendMessage_SearchAndViewActions(t *testing.T) {
	tests := []struct {
		name   string
		intent *models.IntentResult
		want   models.Operation
	}{
		{
			name:   "search",
			intent: &models.IntentResult{Intent: models.IntentNotion, Action: "search", Params: map[string]any{"query": "roadmap", "type": "database"}},
			want:   models.Operation{Kind: models.OpSearch, Query: "roadmap", Filter: &models.SearchFilter{Object: "database"}},
		},
		{
			name:   "view database",
			intent: &models.IntentResult{Intent: models.IntentNotion, Action: "view", Params: map[string]any{"id": "d1", "type": "database"}},
			want:   models.Operation{Kind: models.OpViewDatabase, ID: "d1"},
		},
		{
			name:   "view defaults to page",
			intent: &models.IntentResult{Intent: models.IntentNotion, Action: "view", Params: map[string]any{"id": "p1"}},
			want:   models.Operation{Kind: models.OpViewPage, ID: "p1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := &fakeWorkspace{result: workspaceResult()}
			o := New(&fakeDetector{res: tt.intent}, &fakeGenerator{}, ws, zerolog.Nop())

			_, err := o.SendMessage(t.Context(), "look it up")
			require.NoError(t, err)
			require.Len(t, ws.ops, 1)
			assert.Equal(t, tt.want, ws.ops[0])
		})
	}
}

func TestSendMessage_NoEnrichmentOutsideNotion(t *testing.T) {
	for _, res := range []*models.IntentResult{
		{Intent: models.IntentGeneral, Confidence: 0.8},
		{Intent: models.IntentNotion, Action: "create"},
		{Intent: models.IntentNotion, Action: "view"},
	} {
		ws := &fakeWorkspace{result: workspaceResult()}
		gen := &fakeGenerator{}
		o := New(&fakeDetector{res: res}, gen, ws, zerolog.Nop())

		_, err := o.SendMessage(t.Context(), "hello")
		require.NoError(t, err)
		assert.Empty(t, ws.ops)
		assert.NotContains(t, gen.prompts[0], "Pages:")
	}
}

func TestSendMessage_ClassificationFailureFallsBackToGeneral(t *testing.T) {
	detector := &fakeDetector{err: errors.New("connection reset")}
	gen := &fakeGenerator{replies: []string{"hi!"}}
	o := New(detector, gen, &fakeWorkspace{}, zerolog.Nop())

	reply, err := o.SendMessage(t.Context(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi!", reply.Text)
	assert.Equal(t, models.IntentGeneral, reply.Intent)
	assert.Equal(t, 0.5, reply.Confidence)
	assert.False(t, o.Degraded())
}

func TestSendMessage_BackendUnavailableStillAnswers(t *testing.T) {
	detector := &fakeDetector{res: &models.IntentResult{Intent: models.IntentNotion, Action: "list"}}
	gen := &fakeGenerator{replies: []string{"I couldn't check Notion."}}
	ws := &fakeWorkspace{err: fmt.Errorf("%w: search", models.ErrBackendUnavailable)}
	o := New(detector, gen, ws, zerolog.Nop())

	reply, err := o.SendMessage(t.Context(), "what's in my notion")
	require.NoError(t, err)
	assert.Equal(t, "I couldn't check Notion.", reply.Text)
	assert.Empty(t, reply.Tier)
	assert.NotContains(t, gen.prompts[0], "Pages:")
}

func TestSendMessage_RateLimitSwitchesToOfflineMode(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	detector := &fakeDetector{res: &models.IntentResult{Intent: models.IntentGeneral, Confidence: 0.8}}
	gen := &fakeGenerator{errs: []error{errors.New("429: rate limit exceeded")}}
	o := New(detector, gen, &fakeWorkspace{}, zerolog.Nop(), WithClock(clock), WithDegradedCooldown(time.Minute))

	reply, err := o.SendMessage(t.Context(), "hello")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "offline mode")
	assert.Equal(t, models.SourceOffline, reply.Source)
	assert.True(t, reply.Degraded)
	assert.True(t, o.Degraded())
	assert.Equal(t, models.UpstreamQuotaExceeded, o.DegradedKind())

	// Subsequent turns do not retry the provider or the classifier
	reply, err = o.SendMessage(t.Context(), "what's in my notion")
	require.NoError(t, err)
	assert.Equal(t, 1, gen.calls())
	assert.Equal(t, int32(1), detector.calls.Load())
	assert.Contains(t, reply.Text, "offline mode")
	assert.Equal(t, models.IntentNotion, reply.Intent)

	// After the cooldown the provider is tried again
	now = now.Add(2 * time.Minute)
	reply, err = o.SendMessage(t.Context(), "hello again")
	require.NoError(t, err)
	assert.Equal(t, 2, gen.calls())
	assert.Equal(t, models.SourceLLM, reply.Source)
}

func TestSendMessage_DegradedModeStillFetchesNotion(t *testing.T) {
	gen := &fakeGenerator{errs: []error{&models.UpstreamError{Kind: models.UpstreamKeyExpired, Err: errors.New("401")}}}
	ws := &fakeWorkspace{result: workspaceResult()}
	o := New(&fakeDetector{res: models.DefaultIntent()}, gen, ws, zerolog.Nop())

	_, err := o.SendMessage(t.Context(), "hi")
	require.NoError(t, err)
	require.True(t, o.Degraded())

	reply, err := o.SendMessage(t.Context(), "search notion for roadmap")
	require.NoError(t, err)
	require.Len(t, ws.ops, 1)
	assert.Equal(t, "roadmap", ws.ops[0].Query)
	assert.Contains(t, reply.Text, "offline mode")
	assert.Contains(t, reply.Text, "Roadmap (p1)")
	assert.Equal(t, models.TierProxy, reply.Tier)

	o.ResumeGeneration()
	assert.False(t, o.Degraded())
}

func TestSendMessage_UpstreamClassificationErrorDegrades(t *testing.T) {
	detector := &fakeDetector{err: &models.UpstreamError{Kind: models.UpstreamKeyExpired}}
	gen := &fakeGenerator{}
	o := New(detector, gen, &fakeWorkspace{}, zerolog.Nop())

	reply, err := o.SendMessage(t.Context(), "hello")
	require.NoError(t, err)
	assert.True(t, reply.Degraded)
	assert.Zero(t, gen.calls())
	assert.Contains(t, reply.Text, "offline mode")
}

func TestSendMessage_GenerationFailureRecordsApology(t *testing.T) {
	gen := &fakeGenerator{errs: []error{errors.New("failed to generate completion after 3 attempts")}}
	o := New(&fakeDetector{res: models.DefaultIntent()}, gen, &fakeWorkspace{}, zerolog.Nop())

	reply, err := o.SendMessage(t.Context(), "hello")
	require.NoError(t, err)
	assert.Equal(t, llm.Apology, reply.Text)
	assert.Equal(t, models.SourceError, reply.Source)
	assert.False(t, o.Degraded())

	history := o.History()
	require.Len(t, history, 2)
	assert.Equal(t, llm.Apology, history[1].Text)
}

func TestSendMessage_UnknownToolDirectiveLeftUntouched(t *testing.T) {
	text := `Sure. use tool "foo" with args {"x":1} and done.`
	tools := &fakeTools{registered: map[string]string{"bar": "BAR"}}
	o := New(&fakeDetector{res: models.DefaultIntent()}, &fakeGenerator{replies: []string{text}}, &fakeWorkspace{}, zerolog.Nop(), WithTools(tools))

	reply, err := o.SendMessage(t.Context(), "do the thing")
	require.NoError(t, err)
	assert.Equal(t, text, reply.Text)
	assert.Empty(t, tools.calls)
}

func TestSendMessage_ToolDirectiveResolved(t *testing.T) {
	text := `Result: use tool "bar" with args {"x": 1, "nested": {"y": "}"}} then use tool "baz" with args {"q":"z"}.`
	tools := &fakeTools{registered: map[string]string{"bar": "BAR-OUT", "baz": "BAZ-OUT"}}
	o := New(&fakeDetector{res: models.DefaultIntent()}, &fakeGenerator{replies: []string{text}}, &fakeWorkspace{}, zerolog.Nop(), WithTools(tools))

	reply, err := o.SendMessage(t.Context(), "do the thing")
	require.NoError(t, err)
	assert.Equal(t, "Result: BAR-OUT then BAZ-OUT.", reply.Text)
	assert.Equal(t, []string{"bar", "baz"}, tools.calls)
	assert.Equal(t, float64(1), tools.args[0]["x"])
}

func TestSendMessage_ToolFailureLeavesDirective(t *testing.T) {
	text := `use tool "bar" with args {"x":1}`
	tools := &fakeTools{registered: map[string]string{"bar": "!fail"}}
	o := New(&fakeDetector{res: models.DefaultIntent()}, &fakeGenerator{replies: []string{text}}, &fakeWorkspace{}, zerolog.Nop(), WithTools(tools))

	reply, err := o.SendMessage(t.Context(), "go")
	require.NoError(t, err)
	assert.Equal(t, text, reply.Text)
}

func TestSendMessage_MalformedDirectiveLeftUntouched(t *testing.T) {
	text := `use tool "bar" with args {x:1} ok`
	tools := &fakeTools{registered: map[string]string{"bar": "BAR"}}
	o := New(&fakeDetector{res: models.DefaultIntent()}, &fakeGenerator{replies: []string{text}}, &fakeWorkspace{}, zerolog.Nop(), WithTools(tools))

	reply, err := o.SendMessage(t.Context(), "go")
	require.NoError(t, err)
	assert.Equal(t, text, reply.Text)
	assert.Empty(t, tools.calls)
}

func TestSendMessage_EmptyTextRejected(t *testing.T) {
	o := New(&fakeDetector{res: models.DefaultIntent()}, &fakeGenerator{}, &fakeWorkspace{}, zerolog.Nop())
	_, err := o.SendMessage(t.Context(), "   ")
	assert.Error(t, err)
	assert.Empty(t, o.History())
}

func TestSendMessage_IncludesHistory(t *testing.T) {
	gen := &fakeGenerator{replies: []string{"first answer", "second answer"}}
	o := New(&fakeDetector{res: models.DefaultIntent()}, gen, &fakeWorkspace{}, zerolog.Nop(), WithHistoryWindow(2))

	_, err := o.SendMessage(t.Context(), "first question")
	require.NoError(t, err)
	_, err = o.SendMessage(t.Context(), "second question")
	require.NoError(t, err)

	assert.NotContains(t, gen.prompts[0], "Conversation so far")
	assert.Contains(t, gen.prompts[1], "user: first question\nassistant: first answer\n")
}

func TestTranscript_MirrorsAndResets(t *testing.T) {
	store := &memTranscript{}
	o := New(&fakeDetector{res: models.DefaultIntent()}, &fakeGenerator{}, &fakeWorkspace{}, zerolog.Nop(), WithTranscript(store))

	_, err := o.SendMessage(t.Context(), "hello")
	require.NoError(t, err)
	assert.Len(t, store.turns, 2)

	restored := New(nil, &fakeGenerator{}, &fakeWorkspace{}, zerolog.Nop(), WithTranscript(store))
	require.NoError(t, restored.LoadHistory(0))
	assert.Len(t, restored.History(), 2)

	require.NoError(t, o.Reset())
	assert.Empty(t, o.History())
	assert.True(t, store.cleared)
}

func TestSendMessage_OfflineTierContext(t *testing.T) {
	responder := mock.NewResponder()
	ws := &fakeWorkspace{result: responder.Respond(models.Operation{Kind: models.OpSearch})}
	gen := &fakeGenerator{}
	o := New(&fakeDetector{res: &models.IntentResult{Intent: models.IntentNotion, Action: "list"}}, gen, ws, zerolog.Nop())

	reply, err := o.SendMessage(t.Context(), "what's in my notion")
	require.NoError(t, err)
	assert.Equal(t, models.TierOffline, reply.Tier)
	assert.Contains(t, gen.prompts[0], "placeholder data")
	assert.Contains(t, gen.prompts[0], mock.TitleSuffix)
}

type recordingSpeaker struct {
	spoken chan string
}

func (r *recordingSpeaker) Speak(_ context.Context, text string) error {
	r.spoken <- text
	return nil
}

func (r *recordingSpeaker) Stop() {}

func TestSendMessage_SpeaksReply(t *testing.T) {
	speaker := &recordingSpeaker{spoken: make(chan string, 1)}
	registry := speech.NewRegistry(zerolog.Nop())
	o := New(&fakeDetector{res: models.DefaultIntent()}, &fakeGenerator{replies: []string{"spoken reply"}}, &fakeWorkspace{}, zerolog.Nop(),
		WithSpeech(registry, "session-1", speaker))

	_, err := o.SendMessage(t.Context(), "hello")
	require.NoError(t, err)

	select {
	case got := <-speaker.spoken:
		assert.Equal(t, "spoken reply", got)
	case <-time.After(time.Second):
		t.Fatal("reply was not spoken")
	}
	assert.Equal(t, "session-1", registry.Owner())
}

func TestConcurrentSendMessage_AppendsEveryTurn(t *testing.T) {
	o := New(&fakeDetector{res: models.DefaultIntent()}, &fakeGenerator{}, &fakeWorkspace{}, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := o.SendMessage(context.Background(), fmt.Sprintf("message %d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Len(t, o.History(), 20)
}
