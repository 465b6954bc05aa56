// ABOUTME: HTTP API for the copilot dashboard: chat, intent, connection control, workspace ops
// ABOUTME: Routes are mounted on chi with request ids, panic recovery, and a /health heartbeat
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/harper/notion-copilot/internal/models"
	"github.com/harper/notion-copilot/internal/orchestrator"
	"github.com/rs/zerolog"
)

// maxBodyBytes caps JSON request bodies
const maxBodyBytes = 1 << 20

// Workspace is the part of workspace.Client the API drives
type Workspace interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Authenticate(ctx context.Context) error
	EnableOfflineMode(reason string)
	DisableOfflineMode()
	Status() models.Status
	Search(ctx context.Context, query string, filter *models.SearchFilter) (*models.Result, error)
	View(ctx context.Context, kind models.ResourceKind, id string) (*models.Result, error)
	CreatePage(ctx context.Context, req models.CreatePageRequest) (*models.Result, error)
	UpdatePage(ctx context.Context, req models.UpdatePageRequest) (*models.Result, error)
}

// Assistant is the part of orchestrator.Orchestrator the API drives
type Assistant interface {
	SendMessage(ctx context.Context, text string) (*orchestrator.Reply, error)
	DetectIntent(ctx context.Context, text string) *models.IntentResult
	History() []models.ConversationTurn
	Reset() error
	Degraded() bool
}

// Deps wires the API to the rest of the process. Callback and Metrics are optional.
type Deps struct {
	Workspace Workspace
	Assistant Assistant
	Callback  http.Handler
	Metrics   http.Handler
	Logger    zerolog.Logger
	// AuthTimeout bounds a background handshake started by POST /api/authenticate
	AuthTimeout time.Duration
}

// Handler serves the dashboard API
type Handler struct {
	ws          Workspace
	assistant   Assistant
	callback    http.Handler
	metrics     http.Handler
	logger      zerolog.Logger
	authTimeout time.Duration
}

// NewHandler creates a Handler from its dependencies
func NewHandler(deps Deps) *Handler {
	timeout := deps.AuthTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Handler{
		ws:          deps.Workspace,
		assistant:   deps.Assistant,
		callback:    deps.Callback,
		metrics:     deps.Metrics,
		logger:      deps.Logger.With().Str("component", "api").Logger(),
		authTimeout: timeout,
	}
}

// Router builds the chi router with global middleware and every route
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes mounts the API on r
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.getStatus)
		r.Post("/connect", h.connect)
		r.Post("/disconnect", h.disconnect)
		r.Post("/authenticate", h.authenticate)
		r.Post("/offline", h.enableOffline)
		r.Delete("/offline", h.disableOffline)

		r.Post("/chat", h.chat)
		r.Post("/intent", h.detectIntent)
		r.Get("/history", h.getHistory)
		r.Delete("/history", h.resetHistory)

		r.Get("/search", h.search)
		r.Get("/view/{kind}/{id}", h.view)
		r.Post("/pages", h.createPage)
		r.Patch("/pages/{id}", h.updatePage)
	})

	if h.callback != nil {
		r.Get("/auth/callback", h.callback.ServeHTTP)
	}
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics)
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decodeBody reads a JSON request body into v
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return err
	}
	return nil
}

// statusFor maps the error taxonomy to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, models.ErrRequestTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, models.ErrNotConnected):
		return http.StatusConflict
	case errors.Is(err, models.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrBackendUnavailable), errors.Is(err, models.ErrTransport):
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

// fail logs and writes an error mapped through statusFor
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	h.logger.Error().
		Err(err).
		Str("op", op).
		Str("request_id", chiMiddleware.GetReqID(r.Context())).
		Int("status", status).
		Msg("request failed")
	Error(w, status, err.Error())
}

// requestLogger logs one line per request through zerolog
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("elapsed", time.Since(start)).
				Str("request_id", chiMiddleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
