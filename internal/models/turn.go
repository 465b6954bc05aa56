// ABOUTME: ConversationTurn is one entry of the orchestrator's append-only log
// ABOUTME: Records who spoke, what was said, and which backend shaped the answer
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies the speaker of a turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Source tags where an assistant turn came from
const (
	SourceUser    = "user"
	SourceLLM     = "llm"
	SourceOffline = "offline"
	SourceError   = "error"
)

// ConversationTurn is a single message in the conversation log
type ConversationTurn struct {
	ID         string    `json:"id"`
	Role       Role      `json:"role"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	Intent     Intent    `json:"intent,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Source     string    `json:"source"`
	// Tier is the backend that served any workspace context for this turn
	Tier BackendTier `json:"tier,omitempty"`
}

// NewTurn creates a turn with a fresh id and UTC timestamp
func NewTurn(role Role, text, source string) (*ConversationTurn, error) {
	if role != RoleUser && role != RoleAssistant {
		return nil, fmt.Errorf("invalid role %q", role)
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("turn text cannot be empty")
	}
	return &ConversationTurn{
		ID:        generateTurnID(),
		Role:      role,
		Text:      text,
		Timestamp: time.Now().UTC(),
		Source:    source,
	}, nil
}

// generateTurnID generates a unique turn identifier
func generateTurnID() string {
	return fmt.Sprintf("turn_%s_%s", time.Now().Format("20060102_150405"), uuid.New().String()[:8])
}
