// ABOUTME: History command lists or clears the persisted conversation transcript
package commands

import (
	"fmt"

	"github.com/harper/notion-copilot/internal/config"
	"github.com/spf13/cobra"
)

var (
	historyLimit   int
	historyClear   bool
	historyConfirm bool
)

// NewHistoryCmd creates the history command
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the saved conversation",
		Long: `Show recent turns from the transcript store.

The store is chosen by COPILOT_TRANSCRIPT: sqlite (local database at
COPILOT_DB_PATH), charm (synced through Charm cloud), or memory (not
persisted, so there is nothing to show).

Examples:
  copilot history
  copilot history --limit 50
  copilot history --clear --confirm`,
		RunE: runHistory,
	}

	cmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of most recent turns to show")
	cmd.Flags().BoolVar(&historyClear, "clear", false, "Delete the saved conversation")
	cmd.Flags().BoolVar(&historyConfirm, "confirm", false, "Confirm --clear")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(historyLimit, "limit"); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	out := cmd.OutOrStdout()
	if cfg.Transcript == config.TranscriptMemory {
		if !quiet {
			fmt.Fprintln(out, "COPILOT_TRANSCRIPT=memory: conversations are not persisted")
		}
		return nil
	}

	store, closeStore, err := openTranscript(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if historyClear {
		if !historyConfirm {
			fmt.Fprintln(out, "This will delete the saved conversation!")
			fmt.Fprintln(out, "Run with --confirm to proceed")
			return nil
		}
		if err := store.Clear(); err != nil {
			return fmt.Errorf("clearing transcript: %w", err)
		}
		fmt.Fprintln(out, "Conversation cleared")
		return nil
	}

	turns, err := store.Recent(historyLimit)
	if err != nil {
		return fmt.Errorf("reading transcript: %w", err)
	}
	return printTurns(out, turns)
}
