// ABOUTME: Shared output helpers for CLI commands
// ABOUTME: Renders workspace results and turns as tables or JSON
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/harper/notion-copilot/internal/models"
)

// truncate shortens a string to maxLen, adding "..." if truncated
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return string(runes[:maxLen-3]) + "..."
}

// formatTime formats a time for display
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	diff := time.Since(t)

	if diff < time.Minute {
		return "just now"
	} else if diff < time.Hour {
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	} else if diff < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	} else if diff < 7*24*time.Hour {
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
	return t.Format("2006-01-02")
}

// validatePositiveInt returns error if n is not positive
func validatePositiveInt(n int, name string) error {
	if n <= 0 {
		return fmt.Errorf("%s must be positive, got %d", name, n)
	}
	return nil
}

// jsonOutput reports whether --format json was requested
func jsonOutput() bool {
	return outputFormat == "json"
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintf(w, "%s\n", data)
	return nil
}

// printResult renders a workspace result with the tier that served it
func printResult(w io.Writer, res *models.Result) error {
	if jsonOutput() {
		return printJSON(w, res)
	}

	if len(res.Resources) == 0 {
		if !quiet {
			fmt.Fprintf(w, "No results (served by %s)\n", res.Tier)
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "KIND\tTITLE\tEDITED\tID\n")
	fmt.Fprintf(tw, "----\t-----\t------\t--\n")
	for _, r := range res.Resources {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			r.Kind,
			truncate(r.DisplayTitle(), 40),
			formatTime(r.EditedAt),
			r.ID)
	}
	tw.Flush()

	if !quiet {
		fmt.Fprintf(w, "\n%d result(s) from %s", len(res.Resources), res.Tier)
		if res.HasMore {
			fmt.Fprint(w, ", more available")
		}
		if res.Degraded {
			fmt.Fprint(w, " (placeholder data: network backends failed)")
		}
		fmt.Fprintln(w)
	}
	return nil
}

// printTurns renders conversation turns oldest first
func printTurns(w io.Writer, turns []models.ConversationTurn) error {
	if jsonOutput() {
		if turns == nil {
			turns = []models.ConversationTurn{}
		}
		return printJSON(w, turns)
	}

	if len(turns) == 0 {
		if !quiet {
			fmt.Fprintln(w, "No conversation history")
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "WHEN\tROLE\tSOURCE\tTEXT\n")
	fmt.Fprintf(tw, "----\t----\t------\t----\n")
	for _, t := range turns {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			formatTime(t.Timestamp),
			t.Role,
			t.Source,
			truncate(t.Text, 70))
	}
	return tw.Flush()
}
