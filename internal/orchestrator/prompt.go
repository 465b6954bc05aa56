// ABOUTME: Prompt assembly and Notion context summaries for generation
// ABOUTME: Also the local responder used while generation is degraded
package orchestrator

import (
	"fmt"
	"strings"

	"github.com/harper/notion-copilot/internal/models"
)

// maxSummaryItems bounds each line of the context block
const maxSummaryItems = 10

const assistantPreamble = `You are a helpful workspace assistant with access to the user's Notion workspace.
Answer concisely. When workspace context is provided, ground your answer in it.
To run a tool, write: use tool "<name>" with args {"key": "value"}`

// Summarize renders a fetch result as the compact block folded into the prompt
func Summarize(res *models.Result) string {
	if res == nil {
		return ""
	}

	var pages, databases, blocks []string
	for _, r := range res.Resources {
		switch r.Kind {
		case models.KindPage:
			pages = append(pages, describe(r))
		case models.KindDatabase:
			databases = append(databases, describe(r))
		case models.KindBlock:
			blocks = append(blocks, r.DisplayTitle())
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Notion workspace context (source: %s", res.Tier)
	if res.Tier == models.TierOffline {
		b.WriteString(", placeholder data")
	}
	b.WriteString(")\n")
	fmt.Fprintf(&b, "Pages: %s\n", joinItems(pages))
	fmt.Fprintf(&b, "Databases: %s", joinItems(databases))
	if len(blocks) > 0 {
		fmt.Fprintf(&b, "\nBlocks: %s", joinItems(blocks))
	}
	if res.HasMore {
		b.WriteString("\n(more results available)")
	}
	return b.String()
}

func describe(r models.Resource) string {
	return fmt.Sprintf("%s (%s)", r.DisplayTitle(), r.ID)
}

func joinItems(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	if len(items) > maxSummaryItems {
		return strings.Join(items[:maxSummaryItems], "; ") + fmt.Sprintf("; and %d more", len(items)-maxSummaryItems)
	}
	return strings.Join(items, "; ")
}

// buildPrompt folds history and context into a single generation prompt
func buildPrompt(text, workspace string, history []models.ConversationTurn) string {
	var b strings.Builder
	b.WriteString(assistantPreamble)
	b.WriteString("\n\n")

	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, t := range history {
			fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Text)
		}
		b.WriteString("\n")
	}

	if workspace != "" {
		b.WriteString(workspace)
		b.WriteString("\n\n")
	}

	b.WriteString("user: ")
	b.WriteString(text)
	return b.String()
}

// offlineReply answers without the generation provider
func offlineReply(res *models.IntentResult, workspace string) string {
	switch res.Intent {
	case models.IntentNotion:
		if workspace == "" {
			return "I'm in offline mode and couldn't reach your Notion workspace just now."
		}
		return "I'm in offline mode, but here is what I found in your Notion workspace:\n" + workspace
	case models.IntentCalendar, models.IntentDiscord:
		return fmt.Sprintf("I'm in offline mode, so I can't help with %s right now.", res.Intent)
	}
	return "I'm in offline mode right now, so I can only help with Notion lookups."
}
