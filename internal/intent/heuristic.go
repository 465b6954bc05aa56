// ABOUTME: Keyword classifier used without a generation provider or in degraded mode
package intent

import (
	"regexp"
	"strings"

	"github.com/harper/notion-copilot/internal/models"
)

const heuristicConfidence = 0.6

var (
	notionWords   = []string{"notion", "workspace", "page", "pages", "database", "databases", "wiki", "doc", "docs", "notes"}
	discordWords  = []string{"discord", "channel", "server", "dm ", "direct message"}
	calendarWords = []string{"calendar", "meeting", "meetings", "schedule", "event", "events", "appointment"}

	searchPhrase = regexp.MustCompile(`(?i)\b(?:search|find|look\s+(?:up|for))(?:\s+(?:in\s+)?(?:my\s+)?notion)?(?:\s+for)?\s+(.+)`)
	createPhrase = regexp.MustCompile(`(?i)\b(?:create|add|make|new)\s+(?:a\s+)?(?:new\s+)?page\s+(?:called|named|titled)?\s*(.+)`)
	inNotion     = regexp.MustCompile(`(?i)\s+(?:in|on|from)\s+(?:my\s+)?notion.*$`)
	listPhrases  = []string{"what's in", "what is in", "whats in", "list", "show me", "overview"}
)

// Heuristic classifies text by keywords
func Heuristic(text string) *models.IntentResult {
	lower := " " + strings.ToLower(text) + " "

	switch {
	case containsWord(lower, notionWords):
		return notionIntent(text, lower)
	case containsWord(lower, calendarWords):
		return &models.IntentResult{Intent: models.IntentCalendar, Confidence: heuristicConfidence}
	case containsWord(lower, discordWords):
		return &models.IntentResult{Intent: models.IntentDiscord, Confidence: heuristicConfidence}
	}
	return models.DefaultIntent()
}

func notionIntent(text, lower string) *models.IntentResult {
	res := &models.IntentResult{Intent: models.IntentNotion, Confidence: heuristicConfidence, Params: map[string]any{}}

	if m := createPhrase.FindStringSubmatch(text); m != nil {
		res.Action = "create"
		res.Params["title"] = cleanQuery(m[1])
		return res
	}
	if m := searchPhrase.FindStringSubmatch(text); m != nil {
		res.Action = "search"
		res.Params["query"] = cleanQuery(m[1])
		return res
	}
	for _, p := range listPhrases {
		if strings.Contains(lower, p) {
			res.Action = "list"
			return res
		}
	}
	// A bare mention fetches nothing
	return res
}

func cleanQuery(q string) string {
	q = inNotion.ReplaceAllString(q, "")
	return strings.Trim(strings.TrimSpace(q), `"'?.!`)
}

func containsWord(lower string, words []string) bool {
	for _, w := range words {
		if strings.HasSuffix(w, " ") {
			if strings.Contains(lower, " "+w) {
				return true
			}
			continue
		}
		if strings.Contains(lower, " "+w+" ") || strings.Contains(lower, " "+w+"?") || strings.Contains(lower, " "+w+",") || strings.Contains(lower, " "+w+".") {
			return true
		}
	}
	return false
}
