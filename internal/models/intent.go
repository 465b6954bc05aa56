// ABOUTME: IntentResult is the coarse classification of a user utterance
// ABOUTME: Decides which context (if any) is fetched before generating a reply
package models

// Intent is one of a small fixed set of domains
type Intent string

const (
	IntentNotion   Intent = "notion"
	IntentDiscord  Intent = "discord"
	IntentCalendar Intent = "calendar"
	IntentGeneral  Intent = "general"
)

// ValidIntent reports whether s names a known intent
func ValidIntent(s string) bool {
	switch Intent(s) {
	case IntentNotion, IntentDiscord, IntentCalendar, IntentGeneral:
		return true
	}
	return false
}

// IntentResult is produced once per distinct input text per debounce window
type IntentResult struct {
	Intent     Intent         `json:"intent"`
	Confidence float64        `json:"confidence"`
	Action     string         `json:"action,omitempty"`
	Params     map[string]any `json:"params,omitempty"`
}

// DefaultIntent is the safe fallback when classification is unavailable
func DefaultIntent() *IntentResult {
	return &IntentResult{Intent: IntentGeneral, Confidence: 0.5}
}

// Param returns a string parameter or "" when missing
func (r *IntentResult) Param(key string) string {
	if r == nil || r.Params == nil {
		return ""
	}
	if v, ok := r.Params[key].(string); ok {
		return v
	}
	return ""
}
