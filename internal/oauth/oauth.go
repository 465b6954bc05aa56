// ABOUTME: OAuth popup handshake for the Notion MCP server
// ABOUTME: Builds the authorize URL with an anti-CSRF state and handles /auth/callback
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/harper/notion-copilot/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// ErrNoPendingAuth is returned by the callback when no handshake is in flight
var ErrNoPendingAuth = errors.New("no authentication in progress")

// Config holds the OAuth client registration
type Config struct {
	ClientID     string
	ClientSecret string
	AuthorizeURL string
	TokenURL     string
	RedirectURL  string
}

// Popup opens the authorize URL somewhere the user can act on it
type Popup interface {
	Open(url string) error
	Close() error
}

// Flow runs one handshake at a time and remembers the resulting token
type Flow struct {
	conf   *oauth2.Config
	popup  Popup
	logger zerolog.Logger

	mu      sync.Mutex
	state   string
	deliver func(models.AuthMessage)
	token   *oauth2.Token
}

// NewFlow creates a flow; popup may be nil when the URL is surfaced another way
func NewFlow(cfg Config, popup Popup, logger zerolog.Logger) *Flow {
	return &Flow{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthorizeURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		popup:  popup,
		logger: logger.With().Str("component", "oauth").Logger(),
	}
}

// Begin starts a handshake. deliver receives exactly one message unless the
// handshake is cancelled first. Returns the authorize URL that was opened.
func (f *Flow) Begin(deliver func(models.AuthMessage)) (string, error) {
	state, err := newState()
	if err != nil {
		return "", fmt.Errorf("%w: generate state: %v", models.ErrAuth, err)
	}

	f.mu.Lock()
	f.state = state
	f.deliver = deliver
	f.mu.Unlock()

	authURL := f.AuthURL(state)
	if f.popup != nil {
		if err := f.popup.Open(authURL); err != nil {
			f.Cancel()
			return "", fmt.Errorf("%w: open popup: %v", models.ErrAuth, err)
		}
	}
	f.logger.Info().Msg("authorization popup opened")
	return authURL, nil
}

// AuthURL renders the authorize URL for state
func (f *Flow) AuthURL(state string) string {
	return f.conf.AuthCodeURL(state, oauth2.SetAuthURLParam("owner", "user"))
}

// Cancel drops the pending handshake and closes the popup
func (f *Flow) Cancel() {
	f.mu.Lock()
	f.state = ""
	f.deliver = nil
	f.mu.Unlock()
	if f.popup != nil {
		_ = f.popup.Close()
	}
}

// AccessToken returns the current access token or ""
func (f *Flow) AccessToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.token == nil {
		return ""
	}
	return f.token.AccessToken
}

// Complete finishes the handshake given the callback query values
func (f *Flow) Complete(ctx context.Context, state, code, errParam string) models.AuthMessage {
	f.mu.Lock()
	expected, deliver := f.state, f.deliver
	if expected != "" && state == expected {
		f.state, f.deliver = "", nil
	}
	f.mu.Unlock()

	msg := models.AuthMessage{Type: models.AuthMessageType, State: state}
	switch {
	case expected == "":
		msg.Error = ErrNoPendingAuth.Error()
		return msg
	case state != expected:
		// Leave the real handshake pending; this callback is not ours
		f.logger.Warn().Msg("callback state mismatch")
		msg.Error = "state mismatch"
		return msg
	case errParam != "":
		msg.Error = errParam
	case code == "":
		msg.Error = "missing authorization code"
	default:
		tok, err := f.conf.Exchange(ctx, code)
		if err != nil {
			f.logger.Error().Err(err).Msg("code exchange failed")
			msg.Error = "code exchange failed"
			break
		}
		f.mu.Lock()
		f.token = tok
		f.mu.Unlock()
		msg.Success = true
	}

	if f.popup != nil {
		_ = f.popup.Close()
	}
	if deliver != nil {
		deliver(msg)
	}
	return msg
}

var callbackPage = template.Must(template.New("callback").Parse(`<!doctype html>
<html><body>
<p>{{if .Success}}Notion connected. You can close this window.{{else}}Notion authorization failed: {{.Error}}{{end}}</p>
<script>
if (window.opener) { window.opener.postMessage({{.JSON}}, window.location.origin); window.close(); }
</script>
</body></html>`))

// CallbackHandler serves the redirect target and posts the result to the opener
func (f *Flow) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		q := r.URL.Query()
		msg := f.Complete(ctx, q.Get("state"), q.Get("code"), q.Get("error"))

		status := http.StatusOK
		if !msg.Success {
			status = http.StatusBadRequest
		}
		payload, _ := json.Marshal(msg)

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_ = callbackPage.Execute(w, struct {
			models.AuthMessage
			JSON template.JS
		}{msg, template.JS(payload)})
	}
}

func newState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
