// ABOUTME: Builds the full copilot object graph from configuration
// ABOUTME: Shared by every command that talks to Notion or the assistant
package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/harper/notion-copilot/internal/backend"
	"github.com/harper/notion-copilot/internal/backend/mock"
	"github.com/harper/notion-copilot/internal/backend/proxy"
	"github.com/harper/notion-copilot/internal/charm"
	"github.com/harper/notion-copilot/internal/config"
	"github.com/harper/notion-copilot/internal/connection"
	"github.com/harper/notion-copilot/internal/intent"
	"github.com/harper/notion-copilot/internal/llm"
	"github.com/harper/notion-copilot/internal/logging"
	"github.com/harper/notion-copilot/internal/metrics"
	"github.com/harper/notion-copilot/internal/models"
	"github.com/harper/notion-copilot/internal/oauth"
	"github.com/harper/notion-copilot/internal/orchestrator"
	"github.com/harper/notion-copilot/internal/speech"
	"github.com/harper/notion-copilot/internal/storage/sqlite"
	"github.com/harper/notion-copilot/internal/tools"
	"github.com/harper/notion-copilot/internal/transport"
	"github.com/harper/notion-copilot/internal/workspace"
	"github.com/rs/zerolog"
)

// appOptions select the optional parts of the graph a command needs
type appOptions struct {
	// withAssistant builds the classifier, generator, tools, and transcript
	withAssistant bool
	// speak reads assistant replies aloud
	speak bool
	// popup decides where the OAuth authorize URL goes
	popup oauth.Popup
	// logOut overrides the log destination (stdio MCP must keep stdout clean)
	logOut io.Writer
}

// app is one copilot session
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	metrics   *metrics.Collectors
	flow      *oauth.Flow
	conn      *connection.Manager
	workspace *workspace.Client
	assistant *orchestrator.Orchestrator
	tools     *tools.Registry
	speech    *speech.Registry

	closers []func() error
}

// newApp loads configuration and wires every component
func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	level := cfg.LogLevel
	switch {
	case verbose:
		level = "debug"
	case quiet:
		level = "error"
	}
	logOut := opts.logOut
	if logOut == nil {
		logOut = os.Stderr
	}
	logger := logging.New(logging.Config{Level: level, Format: cfg.LogFormat, Out: logOut})

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(),
	}

	if !cfg.HasNetworkBackend() && !cfg.StartOffline {
		logger.Warn().Msg("no NOTION_MCP_URL or NOTION_PROXY_URL set; workspace calls will use offline placeholder data")
	}

	a.buildWorkspace(opts)

	if opts.withAssistant {
		if err := a.buildAssistant(ctx, opts); err != nil {
			_ = a.Close()
			return nil, err
		}
	}

	return a, nil
}

func (a *app) buildWorkspace(opts appOptions) {
	cfg := a.cfg

	var auth connection.Authenticator
	var trOpts []transport.Option
	if cfg.OAuthConfigured() {
		popup := opts.popup
		if popup == nil {
			popup = oauth.BrowserPopup{}
		}
		a.flow = oauth.NewFlow(oauth.Config{
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			AuthorizeURL: cfg.OAuthAuthorizeURL,
			TokenURL:     cfg.OAuthTokenURL,
			RedirectURL:  cfg.OAuthRedirectURL,
		}, popup, a.logger)
		auth = a.flow
		trOpts = append(trOpts, transport.WithCredentials(a.flow.AccessToken))
	}

	tr := transport.NewSSE(cfg.MCPURL, a.logger, trOpts...)
	a.conn = connection.New(tr, auth, connection.Options{
		ConnectTimeout:     cfg.ConnectTimeout,
		AuthTimeout:        cfg.AuthTimeout,
		RequestTimeout:     cfg.RequestTimeout,
		FallbackConfigured: cfg.ProxyURL != "",
		AuthRequired:       auth != nil,
		MaxReconnects:      cfg.MaxReconnects,
	}, a.logger)
	a.closers = append(a.closers, a.conn.Disconnect)

	a.metrics.ObserveStatus(a.conn.Status())
	a.conn.Subscribe(a.metrics.ObserveStatus)

	tiers := []backend.Tier{backend.NewMCPTier(a.conn)}
	if cfg.ProxyURL != "" {
		cache := proxy.NewValidationCache(cfg.ValidationCooldown)
		tiers = append(tiers, proxy.New(cfg.ProxyURL, cfg.NotionAPIKey, cache, a.logger))
	}

	chain := backend.NewChain(a.logger, tiers,
		backend.WithOffline(mock.NewTier(mock.NewResponder()), func() bool {
			return a.conn.Status().Connection == models.ConnOffline
		}),
		backend.WithRecorder(a.metrics),
	)
	a.workspace = workspace.New(a.conn, chain, a.logger)

	if cfg.StartOffline {
		a.workspace.EnableOfflineMode("COPILOT_OFFLINE is set")
	}
}

func (a *app) buildAssistant(ctx context.Context, opts appOptions) error {
	cfg := a.cfg

	// Interfaces stay nil, not typed-nil, when no key is configured
	var completer llm.Completer
	var generator llm.Generator
	if cfg.OpenAIKey != "" {
		llmCfg := llm.DefaultConfig(cfg.OpenAIKey)
		llmCfg.ChatModel = cfg.ChatModel
		llmCfg.Timeout = cfg.Timeout
		llmCfg.MaxRetries = cfg.MaxRetries
		llmCfg.RetryDelay = cfg.RetryDelay

		client, err := llm.NewOpenAIClientWithConfig(llmCfg)
		if err != nil {
			return fmt.Errorf("creating OpenAI client: %w", err)
		}
		completer, generator = client, client
	} else {
		a.logger.Warn().Msg("OPENAI_API_KEY not set; replies come from the offline responder")
	}

	classifier := intent.NewClassifier(completer, cfg.IntentDebounce, a.logger, intent.WithRecorder(a.metrics))

	orchOpts := []orchestrator.Option{
		orchestrator.WithDegradedCooldown(cfg.DegradedCooldown),
		orchestrator.WithRecorder(a.metrics),
	}

	if cfg.ToolsMCPURL != "" {
		registry, err := tools.Dial(ctx, cfg.ToolsMCPURL, versionInfo.Version, a.logger)
		if err != nil {
			// Tool directives are optional; unresolved ones stay as text
			a.logger.Warn().Err(err).Str("url", cfg.ToolsMCPURL).Msg("tool server unavailable")
		} else {
			a.tools = registry
			a.closers = append(a.closers, registry.Close)
			orchOpts = append(orchOpts, orchestrator.WithTools(registry))
		}
	}

	if opts.speak {
		speaker, err := speech.DetectCommandSpeaker(a.logger)
		if err != nil {
			a.logger.Warn().Err(err).Msg("speech disabled")
		} else {
			a.speech = speech.NewRegistry(a.logger)
			a.closers = append(a.closers, func() error { a.speech.StopAll(); return nil })
			orchOpts = append(orchOpts, orchestrator.WithSpeech(a.speech, "cli", speaker))
		}
	}

	store, closeStore, err := openTranscript(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		a.closers = append(a.closers, closeStore)
		orchOpts = append(orchOpts, orchestrator.WithTranscript(store))
	}

	a.assistant = orchestrator.New(classifier, generator, a.workspace, a.logger, orchOpts...)
	if store != nil {
		if err := a.assistant.LoadHistory(orchestrator.DefaultHistoryWindow); err != nil {
			a.logger.Warn().Err(err).Msg("could not load transcript history")
		}
	}
	return nil
}

// openTranscript opens the configured transcript backend; memory returns a nil store
func openTranscript(cfg *config.Config) (orchestrator.TranscriptStore, func() error, error) {
	switch cfg.Transcript {
	case config.TranscriptSQLite:
		db, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening transcript database: %w", err)
		}
		return sqlite.NewTurnStore(db), db.Close, nil
	case config.TranscriptCharm:
		client, err := charm.NewClient(&charm.Config{
			Host:     cfg.CharmHost,
			DBName:   cfg.CharmDBName,
			AutoSync: cfg.AutoSync,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to Charm: %w", err)
		}
		return client, client.Close, nil
	}
	return nil, nil, nil
}

// Close releases everything in reverse order of construction
func (a *app) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// connect opens the MCP connection when one is configured and not offline
func (a *app) connect(ctx context.Context) {
	if a.cfg.MCPURL == "" || a.cfg.StartOffline {
		return
	}
	if err := a.workspace.Connect(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("MCP connection failed; falling back")
	}
}
