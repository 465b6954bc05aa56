// ABOUTME: Fixed user-facing messages for upstream failures
package llm

import "github.com/harper/notion-copilot/internal/models"

// Apology is recorded when generation fails for reasons other than key or quota
const Apology = "I'm sorry, I couldn't generate a response just now. Please try again in a moment."

// OfflineMessage returns the fixed template for an upstream error kind
func OfflineMessage(kind models.UpstreamErrorKind) string {
	switch kind {
	case models.UpstreamKeyExpired:
		return "The AI service key has expired or is invalid, so I've switched to offline mode. " +
			"I can still look things up in Notion, but my answers will be simpler until the key is renewed."
	case models.UpstreamQuotaExceeded:
		return "The AI service's quota or rate limit was exceeded, so I've switched to offline mode for a while. " +
			"I can still look things up in Notion, but my answers will be simpler until it resets."
	}
	return Apology
}
