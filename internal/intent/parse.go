// ABOUTME: Defensive parsing of the classifier's JSON reply
// ABOUTME: Fenced block first, then the outermost braces, then the raw text
package intent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/harper/notion-copilot/internal/models"
)

var fencedBlock = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")

type reply struct {
	Intent     string         `json:"intent"`
	Confidence *float64       `json:"confidence"`
	Action     string         `json:"action"`
	Params     map[string]any `json:"params"`
}

// ParseResponse extracts an IntentResult from model output. On failure it
// returns DefaultIntent together with an error wrapping ErrClassification.
func ParseResponse(text string) (*models.IntentResult, error) {
	candidate := extractJSON(text)

	var r reply
	if err := json.Unmarshal([]byte(candidate), &r); err != nil {
		return models.DefaultIntent(), fmt.Errorf("%w: %v", models.ErrClassification, err)
	}

	intent := models.Intent(strings.ToLower(strings.TrimSpace(r.Intent)))
	if !models.ValidIntent(string(intent)) {
		return models.DefaultIntent(), fmt.Errorf("%w: unknown intent %q", models.ErrClassification, r.Intent)
	}

	confidence := 0.5
	if r.Confidence != nil {
		confidence = min(max(*r.Confidence, 0), 1)
	}

	return &models.IntentResult{
		Intent:     intent,
		Confidence: confidence,
		Action:     strings.ToLower(strings.TrimSpace(r.Action)),
		Params:     r.Params,
	}, nil
}

func extractJSON(text string) string {
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return strings.TrimSpace(text)
}
