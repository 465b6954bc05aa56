// ABOUTME: Speech output for assistant replies
// ABOUTME: Registry keeps exactly one active speaker; a new owner stops the previous one
package speech

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Speaker voices text. Speak blocks until playback ends or Stop is called.
type Speaker interface {
	Speak(ctx context.Context, text string) error
	Stop()
}

// Registry tracks the single speaker allowed to hold the audio device
type Registry struct {
	mu      sync.Mutex
	ownerID string
	owner   Speaker
	logger  zerolog.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{logger: logger.With().Str("component", "speech").Logger()}
}

// Claim makes s the active speaker under id, stopping any other owner first
func (r *Registry) Claim(id string, s Speaker) {
	r.mu.Lock()
	prev, prevID := r.owner, r.ownerID
	r.owner, r.ownerID = s, id
	r.mu.Unlock()

	if prev != nil && prevID != id {
		r.logger.Debug().Str("previous", prevID).Str("owner", id).Msg("speaker ownership transferred")
		prev.Stop()
	}
}

// Release gives up ownership if id still holds it
func (r *Registry) Release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ownerID == id {
		r.owner, r.ownerID = nil, ""
	}
}

// Owner returns the id of the active speaker, or "" when idle
func (r *Registry) Owner() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ownerID
}

// StopAll stops the active speaker and clears ownership
func (r *Registry) StopAll() {
	r.mu.Lock()
	prev := r.owner
	r.owner, r.ownerID = nil, ""
	r.mu.Unlock()
	if prev != nil {
		prev.Stop()
	}
}
